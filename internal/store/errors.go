package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound reports a lookup, update or delete that matched no row.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate reports a unique-constraint violation.
	ErrDuplicate = errors.New("store: duplicate record")
)

// mapError folds driver-specific failures into the store taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE") {
		return ErrDuplicate
	}
	return err
}
