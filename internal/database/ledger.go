package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// The space ledger only ever runs inside a caller's transaction so that the
// counter moves together with the entry row it accounts for.

// reserveSpace takes one space. The conditional decrement keeps
// available_spaces from going negative.
func reserveSpace(ctx context.Context, tx *sql.Tx, code string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE parkings SET available_spaces = available_spaces - 1, updated_at = ?
         WHERE code = ? AND available_spaces > 0`, time.Now().UTC(), code)
	if err != nil {
		return fmt.Errorf("failed to reserve space: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reserve space: %w", err)
	}
	if n == 1 {
		return nil
	}

	exists, err := parkingExists(ctx, tx, code)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("parking %s: %w", code, ErrNotFound)
	}
	return fmt.Errorf("parking %s: %w", code, ErrNoCapacity)
}

// releaseSpace gives one space back. It never raises available_spaces above
// total_spaces; clamped reports that the increment was dropped.
func releaseSpace(ctx context.Context, tx *sql.Tx, code string) (clamped bool, err error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE parkings SET available_spaces = available_spaces + 1, updated_at = ?
         WHERE code = ? AND available_spaces < total_spaces`, time.Now().UTC(), code)
	if err != nil {
		return false, fmt.Errorf("failed to release space: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to release space: %w", err)
	}
	if n == 1 {
		return false, nil
	}

	exists, err := parkingExists(ctx, tx, code)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("parking %s: %w", code, ErrNotFound)
	}
	return true, nil
}

func parkingExists(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM parkings WHERE code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check parking: %w", err)
	}
	return exists, nil
}
