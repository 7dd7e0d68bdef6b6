package boost

import "errors"

var (
	// ErrIneligible indicates the transaction cannot be boosted the
	// requested way.
	ErrIneligible = errors.New("boost: transaction is not eligible for this boost")

	// ErrInsufficientFunds indicates the wallet cannot pay the boost fee.
	ErrInsufficientFunds = errors.New("boost: insufficient funds for boost")

	// ErrAlreadyInProgress indicates another boost of the same transaction
	// is running.
	ErrAlreadyInProgress = errors.New("boost: boost already in progress")

	// ErrSign indicates the signer rejected the draft.
	ErrSign = errors.New("boost: signing failed")

	// ErrBroadcast indicates the network rejected the signed boost.
	ErrBroadcast = errors.New("boost: broadcast failed")

	// ErrInvalidDraft indicates a draft that spends more than its inputs.
	ErrInvalidDraft = errors.New("boost: invalid draft transaction")

	// ErrInvalidTxID indicates a malformed transaction id.
	ErrInvalidTxID = errors.New("boost: invalid txid")

	// ErrFeeTooLow indicates a draft that would not reach its target rate.
	ErrFeeTooLow = errors.New("boost: fee below target rate")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("boost: required parameter is nil")
)
