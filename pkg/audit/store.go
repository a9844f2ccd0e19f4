package audit

import (
	"context"
	"errors"
)

var (
	ErrInvalidRecord = errors.New("invalid audit record")
	ErrAppendFailed  = errors.New("failed to append audit record")
	ErrReadFailed    = errors.New("failed to read audit records")
)

// Store persists webhook audit records. Append-only: implementations
// never update or delete rows.
type Store interface {
	// Append writes one record. The record's ID and ReceivedAt must be
	// set by the caller so redelivered provider calls produce distinct
	// rows with their own timestamps.
	Append(ctx context.Context, record *Record) error
}

// Reader serves operator inspection queries over the audit log.
type Reader interface {
	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]Record, error)
}
