package store

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

// ErrZoneFull is returned when a speculative batch would push a zone past
// its capacity. The mint service maps it to a conflict for the caller.
var ErrZoneFull = errors.New("zone capacity exceeded")

type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

// noRows collapses sql.ErrNoRows into a nil result so lookups can report
// absence without an error branch at every call site.
func noRows(err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	return false, err
}
