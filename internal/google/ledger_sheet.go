package google

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"parkwise/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const ledgerLastColumn = "J"

var ledgerHeader = []interface{}{
	"Entry ID", "Bill ID", "Plate", "Parking Code", "Parking Name",
	"Entered At", "Left At", "Hours", "Hourly Fee", "Total",
}

// LedgerSheet mirrors closed bills into a Google Sheets revenue ledger, one
// row per entry. Rows are keyed by entry id so retried appends update in place.
type LedgerSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string

	rowCache map[int64]int
	cacheMu  sync.RWMutex
}

func NewLedgerSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*LedgerSheet, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return NewLedgerSheetWithService(srv, spreadsheetID, sheetName), nil
}

func NewLedgerSheetWithService(srv *sheets.Service, spreadsheetID, sheetName string) *LedgerSheet {
	return &LedgerSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[int64]int),
	}
}

func (s *LedgerSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the header row.
func (s *LedgerSheet) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:%s1", s.sheetName, ledgerLastColumn)
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]interface{}{ledgerHeader},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	return nil
}

// WarmUpCache loads the entry id column so later appends can find existing rows.
func (s *LedgerSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A:A").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read ledger ids: %w", err)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		id, err := strconv.ParseInt(fmt.Sprint(row[0]), 10, 64)
		if err != nil {
			continue
		}
		s.rowCache[id] = i + 1
	}
	return nil
}

// AppendBill writes the bill row, updating the existing row for the entry if known.
func (s *LedgerSheet) AppendBill(ctx context.Context, bill models.Bill) error {
	values := &sheets.ValueRange{Values: [][]interface{}{billRowValues(bill)}}

	if row, ok := s.getCachedRow(bill.EntryID); ok {
		rng := fmt.Sprintf("%s!A%d:%s%d", s.sheetName, row, ledgerLastColumn, row)
		_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, values).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update ledger row %d: %w", row, err)
		}
		return nil
	}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetName+"!A:A", values).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}

	if resp.Updates != nil {
		if row, ok := rowFromRange(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(bill.EntryID, row)
		}
	}
	return nil
}

func (s *LedgerSheet) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *LedgerSheet) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func billRowValues(bill models.Bill) []interface{} {
	return []interface{}{
		bill.EntryID,
		bill.BillID,
		bill.PlateNumber,
		bill.ParkingCode,
		bill.ParkingName,
		bill.EntryDateTime.Format("2006-01-02 15:04:05"),
		bill.ExitDateTime.Format("2006-01-02 15:04:05"),
		bill.DurationHours,
		bill.HourlyFee,
		bill.TotalAmount,
	}
}

var rangeRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// rowFromRange extracts the first row number from an A1 range such as "Ledger!A10:J10".
func rowFromRange(a1 string) (int, bool) {
	m := rangeRowRe.FindStringSubmatch(a1)
	if len(m) != 2 {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}
