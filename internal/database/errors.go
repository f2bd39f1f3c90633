package database

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrNoCapacity             = errors.New("no available spaces")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConcurrentModification = errors.New("concurrent modification")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
