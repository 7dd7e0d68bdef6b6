package wallet

import "errors"

var (
	// ErrInvalidNetwork indicates an unknown network name.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrInvalidAddress indicates an address that does not decode for the
	// book's network.
	ErrInvalidAddress = errors.New("wallet: invalid address")

	// ErrDuplicateAddress indicates an address listed more than once.
	ErrDuplicateAddress = errors.New("wallet: duplicate address")

	// ErrNoChangeAddress indicates the book has no change addresses.
	ErrNoChangeAddress = errors.New("wallet: no change address available")

	// ErrUnknownAddress indicates an address the wallet does not own.
	ErrUnknownAddress = errors.New("wallet: address not owned by wallet")
)
