package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkwise/internal/models"
)

const parkingColumns = `code, name, location, total_spaces, available_spaces, hourly_fee, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParking(row rowScanner) (*models.Parking, error) {
	var p models.Parking
	err := row.Scan(&p.Code, &p.Name, &p.Location, &p.TotalSpaces, &p.AvailableSpaces, &p.HourlyFee, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateParking inserts a parking with every space available.
func (db *DB) CreateParking(ctx context.Context, p *models.Parking) error {
	if p.Code == "" || p.Name == "" || p.TotalSpaces < 0 || p.HourlyFee < 0 {
		return fmt.Errorf("parking: %w", ErrInvalidInput)
	}

	query := `INSERT INTO parkings (` + parkingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		p.Code,
		p.Name,
		p.Location,
		p.TotalSpaces,
		p.TotalSpaces,
		p.HourlyFee,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("parking %s already exists: %w", p.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create parking: %w", err)
	}

	p.AvailableSpaces = p.TotalSpaces
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (db *DB) GetParking(ctx context.Context, code string) (*models.Parking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+parkingColumns+` FROM parkings WHERE code = ?`, code)
	p, err := scanParking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parking %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parking: %w", err)
	}
	return p, nil
}

func getParkingTx(ctx context.Context, tx *sql.Tx, code string) (*models.Parking, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+parkingColumns+` FROM parkings WHERE code = ?`, code)
	p, err := scanParking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("parking %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parking in tx: %w", err)
	}
	return p, nil
}

func (db *DB) ListParkings(ctx context.Context) ([]*models.Parking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+parkingColumns+` FROM parkings ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list parkings: %w", err)
	}
	defer rows.Close()

	parkings := make([]*models.Parking, 0)
	for rows.Next() {
		p, err := scanParking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parking: %w", err)
		}
		parkings = append(parkings, p)
	}
	return parkings, rows.Err()
}

// UpdateParking applies an admin change. A new total moves available spaces by
// the same delta and may not drop below the spaces currently occupied.
func (db *DB) UpdateParking(ctx context.Context, code string, upd models.ParkingUpdate) (*models.Parking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	p, err := getParkingTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, fmt.Errorf("parking name: %w", ErrInvalidInput)
		}
		p.Name = *upd.Name
	}
	if upd.Location != nil {
		p.Location = *upd.Location
	}
	if upd.HourlyFee != nil {
		if *upd.HourlyFee < 0 {
			return nil, fmt.Errorf("hourly fee: %w", ErrInvalidInput)
		}
		p.HourlyFee = *upd.HourlyFee
	}
	if upd.TotalSpaces != nil {
		occupied := p.Occupied()
		if *upd.TotalSpaces < occupied {
			return nil, fmt.Errorf("total spaces %d below %d occupied: %w", *upd.TotalSpaces, occupied, ErrInvalidInput)
		}
		p.AvailableSpaces += *upd.TotalSpaces - p.TotalSpaces
		p.TotalSpaces = *upd.TotalSpaces
	}

	p.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE parkings SET name = ?, location = ?, total_spaces = ?, available_spaces = ?, hourly_fee = ?, updated_at = ?
         WHERE code = ?`,
		p.Name, p.Location, p.TotalSpaces, p.AvailableSpaces, p.HourlyFee, p.UpdatedAt, code)
	if err != nil {
		return nil, fmt.Errorf("failed to update parking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit parking update: %w", err)
	}
	return p, nil
}

// DeleteParking removes a parking that has no open entries. Closed entries
// stay for reporting.
func (db *DB) DeleteParking(ctx context.Context, code string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var open int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE parking_code = ? AND exit_date_time IS NULL`, code).Scan(&open)
	if err != nil {
		return fmt.Errorf("failed to count open entries: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("parking %s has %d open entries: %w", code, open, ErrConflict)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM parkings WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("failed to delete parking: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("parking %s: %w", code, ErrNotFound)
	}

	return tx.Commit()
}

// SyncParkings upserts seed data. Existing parkings keep their occupancy.
func (db *DB) SyncParkings(ctx context.Context, parkings []models.Parking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, p := range parkings {
		if p.Code == "" || p.TotalSpaces < 0 || p.HourlyFee < 0 {
			return fmt.Errorf("seed parking %q: %w", p.Code, ErrInvalidInput)
		}

		existing, err := getParkingTx(ctx, tx, p.Code)
		if errors.Is(err, ErrNotFound) {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO parkings (`+parkingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				p.Code, p.Name, p.Location, p.TotalSpaces, p.TotalSpaces, p.HourlyFee, now, now)
			if err != nil {
				return fmt.Errorf("failed to insert parking %s: %w", p.Code, err)
			}
			continue
		}
		if err != nil {
			return err
		}

		occupied := existing.Occupied()
		if p.TotalSpaces < occupied {
			return fmt.Errorf("seed parking %s: total %d below %d occupied: %w", p.Code, p.TotalSpaces, occupied, ErrInvalidInput)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE parkings SET name = ?, location = ?, total_spaces = ?, available_spaces = ?, hourly_fee = ?, updated_at = ?
             WHERE code = ?`,
			p.Name, p.Location, p.TotalSpaces, p.TotalSpaces-occupied, p.HourlyFee, now, p.Code)
		if err != nil {
			return fmt.Errorf("failed to update parking %s: %w", p.Code, err)
		}
	}

	return tx.Commit()
}
