package storage

import "errors"

var (
	// ErrUnavailable means the underlying database could not be opened or
	// migrated. It is fatal to the whole core and is never retried here.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrTxAborted means an operation inside a transaction failed and the
	// whole batch was rolled back; none of its writes are observable.
	ErrTxAborted = errors.New("transaction aborted")
)
