package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"parkwise/internal/models"
)

const entryColumns = `id, parking_code, plate_number, entry_date_time, exit_date_time, charged_amount,
                      registered_by, closed_by, version`

// ChargeFunc prices a visit at exit time. It runs inside the closing transaction.
type ChargeFunc func(parking *models.Parking, entry *models.Entry, exitAt time.Time) float64

// CloseResult describes a committed exit.
type CloseResult struct {
	Entry   *models.Entry
	Parking *models.Parking
	// Clamped is set when the released space would have exceeded the total.
	Clamped bool
}

// EntryFilter narrows ListEntries. Zero value lists everything.
type EntryFilter struct {
	ParkingCode string
	ActiveOnly  bool
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var e models.Entry
	err := row.Scan(&e.ID, &e.ParkingCode, &e.PlateNumber, &e.EntryDateTime, &e.ExitDateTime, &e.ChargedAmount,
		&e.RegisteredBy, &e.ClosedBy, &e.Version)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// CreateEntryWithLock reserves a space and records an open entry in a single
// transaction. A duplicate open entry is reported before capacity, so a
// repeated registration on a full lot is still a conflict. Unknown parking
// and no capacity follow. Nothing is persisted on failure.
func (db *DB) CreateEntryWithLock(ctx context.Context, entry *models.Entry) (*models.Parking, error) {
	entry.PlateNumber = NormalizePlate(entry.PlateNumber)
	if entry.PlateNumber == "" || entry.ParkingCode == "" {
		return nil, fmt.Errorf("plate and parking code are required: %w", ErrInvalidInput)
	}
	if entry.EntryDateTime.IsZero() {
		entry.EntryDateTime = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. One open entry per plate and parking
	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE plate_number = ? AND parking_code = ? AND exit_date_time IS NULL`,
		entry.PlateNumber, entry.ParkingCode).Scan(&open)
	if err != nil {
		return nil, fmt.Errorf("failed to check open entries in tx: %w", err)
	}
	if open > 0 {
		return nil, fmt.Errorf("vehicle %s already inside %s: %w", entry.PlateNumber, entry.ParkingCode, ErrConflict)
	}

	// 2. Take the space
	if err := reserveSpace(ctx, tx, entry.ParkingCode); err != nil {
		return nil, err
	}

	// 3. Record the entry
	entry.EntryDateTime = entry.EntryDateTime.UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO entries (parking_code, plate_number, entry_date_time, registered_by, version)
         VALUES (?, ?, ?, ?, ?)`,
		entry.ParkingCode, entry.PlateNumber, entry.EntryDateTime, entry.RegisteredBy, 1)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("vehicle %s already inside %s: %w", entry.PlateNumber, entry.ParkingCode, ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert entry in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	parking, err := getParkingTx(ctx, tx, entry.ParkingCode)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entry: %w", err)
	}

	entry.ID = id
	entry.ExitDateTime = nil
	entry.ChargedAmount = nil
	entry.Version = 1
	return parking, nil
}

// CloseEntryWithLock closes an open entry, stores its charge and releases the
// space in one transaction. The close is guarded by the entry version, so only
// one of several concurrent exits for the same entry can succeed.
func (db *DB) CloseEntryWithLock(ctx context.Context, id int64, closedBy string, exitAt time.Time, charge ChargeFunc) (*CloseResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entry, err := scanEntry(tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry in tx: %w", err)
	}
	if !entry.IsOpen() {
		return nil, fmt.Errorf("entry %d already closed: %w", id, ErrConflict)
	}

	parking, err := getParkingTx(ctx, tx, entry.ParkingCode)
	if err != nil {
		return nil, err
	}

	exitAt = exitAt.UTC()
	amount := charge(parking, entry, exitAt)

	res, err := tx.ExecContext(ctx,
		`UPDATE entries SET exit_date_time = ?, charged_amount = ?, closed_by = ?, version = version + 1
         WHERE id = ? AND exit_date_time IS NULL AND version = ?`,
		exitAt, amount, closedBy, id, entry.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to close entry in tx: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to close entry in tx: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("entry %d: %w: %w", id, ErrConflict, ErrConcurrentModification)
	}

	clamped, err := releaseSpace(ctx, tx, entry.ParkingCode)
	if err != nil {
		return nil, err
	}
	if !clamped {
		parking.AvailableSpaces++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit exit: %w", err)
	}

	entry.ExitDateTime = &exitAt
	entry.ChargedAmount = &amount
	entry.ClosedBy = closedBy
	entry.Version++

	return &CloseResult{Entry: entry, Parking: parking, Clamped: clamped}, nil
}

func (db *DB) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	entry, err := scanEntry(db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns entries newest first.
func (db *DB) ListEntries(ctx context.Context, filter EntryFilter) ([]*models.Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ParkingCode != "" {
		where = append(where, "parking_code = ?")
		args = append(args, filter.ParkingCode)
	}
	if filter.ActiveOnly {
		where = append(where, "exit_date_time IS NULL")
	}

	query := `SELECT ` + entryColumns + ` FROM entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY entry_date_time DESC, id DESC`

	return db.queryEntries(ctx, query, args...)
}

// GetEntriesExitedBetween returns closed entries with from <= exit < to, oldest exit first.
func (db *DB) GetEntriesExitedBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
              WHERE exit_date_time IS NOT NULL AND exit_date_time >= ? AND exit_date_time < ?
              ORDER BY exit_date_time ASC, id ASC`
	return db.queryEntries(ctx, query, from.UTC(), to.UTC())
}

// GetEntriesEnteredBetween returns entries with from <= entry < to, oldest first.
func (db *DB) GetEntriesEnteredBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
              WHERE entry_date_time >= ? AND entry_date_time < ?
              ORDER BY entry_date_time ASC, id ASC`
	return db.queryEntries(ctx, query, from.UTC(), to.UTC())
}

// GetEntriesActiveBetween returns entries that were inside at some instant of [from, to).
func (db *DB) GetEntriesActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
              WHERE entry_date_time < ? AND (exit_date_time IS NULL OR exit_date_time >= ?)
              ORDER BY entry_date_time ASC, id ASC`
	return db.queryEntries(ctx, query, to.UTC(), from.UTC())
}

// CountOpenEntries returns open entries per parking code.
func (db *DB) CountOpenEntries(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT parking_code, COUNT(*) FROM entries WHERE exit_date_time IS NULL GROUP BY parking_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to count open entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var code string
		var n int64
		if err := rows.Scan(&code, &n); err != nil {
			return nil, fmt.Errorf("failed to scan open entry count: %w", err)
		}
		counts[code] = n
	}
	return counts, rows.Err()
}

func (db *DB) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*models.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
