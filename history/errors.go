package history

import "errors"

var (
	// ErrDuplicateRecord indicates a record for the child txid already exists.
	ErrDuplicateRecord = errors.New("history: duplicate boost record")

	// ErrRecordNotFound indicates no record exists for the child txid.
	ErrRecordNotFound = errors.New("history: boost record not found")

	// ErrInvalidRecord indicates a record with missing or malformed fields.
	ErrInvalidRecord = errors.New("history: invalid boost record")

	// ErrCycle indicates a record would make a transaction its own ancestor.
	ErrCycle = errors.New("history: boost record would create a cycle")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("history: required parameter is nil")
)
