package report

import (
	"bytes"
	"fmt"
	"time"

	"parkwise/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	KindOutgoing  = "outgoing"
	KindIncoming  = "incoming"
	KindOccupancy = "occupancy"
	KindRevenue   = "revenue"
	KindEntries   = "entries"
)

const (
	xlsxTimeLayout = "2006-01-02 15:04"
	headerColor    = "#DDEBF7"
)

var entryHeaders = []string{"ID", "Parking", "Plate", "Entry", "Exit", "Charged", "Status"}

// ExportXLSX renders a report as a single-sheet workbook.
func ExportXLSX(kind string, data interface{}, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := kind
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	w := &sheetWriter{f: f, sheet: sheet, loc: loc}

	switch rep := data.(type) {
	case *models.OutgoingReport:
		w.title("Outgoing", &rep.Range)
		w.summary("Count", rep.Count)
		w.summary("Total charged", rep.TotalCharged)
		w.entries(rep.Entries)
	case *models.IncomingReport:
		w.title("Incoming", &rep.Range)
		w.summary("Count", rep.Count)
		w.entries(rep.Entries)
	case *models.EntriesReport:
		w.title("Entries", &rep.Range)
		w.summary("Count", rep.Count)
		w.summary("Open", rep.Open)
		w.summary("Closed", rep.Closed)
		w.summary("Revenue", rep.Revenue)
		w.entries(rep.Entries)
	case *models.RevenueReport:
		w.title("Revenue", &rep.Range)
		w.summary("Count", rep.Count)
		w.summary("Total revenue", rep.TotalRevenue)
		if len(rep.Groups) > 0 {
			w.header(rep.GroupBy, "Count", "Revenue")
			for _, g := range rep.Groups {
				w.row(g.Key, g.Count, g.Revenue)
			}
		}
	case *models.OccupancyReport:
		w.title("Occupancy", nil)
		w.header("Parking", "Name", "Total", "Occupied", "Available", "Rate %")
		for _, p := range rep.Parkings {
			w.row(p.ParkingCode, p.ParkingName, p.TotalSpaces, p.Occupied, p.Available, p.OccupancyRate)
		}
		w.row("TOTAL", "", rep.TotalSpaces, rep.Occupied, rep.Available, rep.OccupancyRate)
	default:
		return nil, fmt.Errorf("unsupported report type %T", data)
	}
	if w.err != nil {
		return nil, w.err
	}

	_ = f.SetColWidth(sheet, "A", "A", 18)
	_ = f.SetColWidth(sheet, "B", "G", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// ExportFileName is the attachment name for an exported report.
func ExportFileName(kind string, r *models.DateRange, loc *time.Location) string {
	if r == nil {
		return fmt.Sprintf("%s_%s.xlsx", kind, time.Now().In(loc).Format(models.DateLayout))
	}
	return fmt.Sprintf("%s_%s_to_%s.xlsx", kind,
		r.From.In(loc).Format(models.DateLayout),
		r.To.In(loc).AddDate(0, 0, -1).Format(models.DateLayout))
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	loc   *time.Location
	cur   int
	err   error
}

func (w *sheetWriter) next() int {
	w.cur++
	return w.cur
}

func (w *sheetWriter) set(col, row int, v interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
		w.err = err
	}
}

func (w *sheetWriter) title(name string, r *models.DateRange) {
	row := w.next()
	text := name
	if r != nil {
		text = fmt.Sprintf("%s: %s - %s", name,
			r.From.In(w.loc).Format(models.DateLayout),
			r.To.In(w.loc).AddDate(0, 0, -1).Format(models.DateLayout))
	}
	w.set(1, row, text)

	style, err := w.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err == nil {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = w.f.SetCellStyle(w.sheet, cell, cell, style)
	}
	w.next()
}

func (w *sheetWriter) summary(label string, v interface{}) {
	row := w.next()
	w.set(1, row, label)
	w.set(2, row, v)
}

func (w *sheetWriter) header(cols ...string) {
	if w.cur > 1 {
		w.next()
	}
	row := w.next()
	for i, c := range cols {
		w.set(i+1, row, c)
	}

	style, err := w.f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerColor}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		first, _ := excelize.CoordinatesToCellName(1, row)
		last, _ := excelize.CoordinatesToCellName(len(cols), row)
		_ = w.f.SetCellStyle(w.sheet, first, last, style)
	}
}

func (w *sheetWriter) row(values ...interface{}) {
	row := w.next()
	for i, v := range values {
		w.set(i+1, row, v)
	}
}

func (w *sheetWriter) entries(entries []*models.Entry) {
	w.header(entryHeaders...)
	for _, e := range entries {
		exit := ""
		if e.ExitDateTime != nil {
			exit = e.ExitDateTime.In(w.loc).Format(xlsxTimeLayout)
		}
		var charged interface{} = ""
		if e.ChargedAmount != nil {
			charged = *e.ChargedAmount
		}
		w.row(e.ID, e.ParkingCode, e.PlateNumber, e.EntryDateTime.In(w.loc).Format(xlsxTimeLayout), exit, charged, e.Status())
	}
}
