package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point reads that match no row.
var ErrNotFound = errors.New("not found")

// Error describes a failed store operation against one table.
type Error struct {
	Op    string // "open", "migrate", "select", "insert", "update"
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Table: table, Err: err}
}
