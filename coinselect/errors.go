package coinselect

import "errors"

var (
	// ErrInsufficientFunds indicates the candidate UTXOs cannot cover the target plus fee.
	ErrInsufficientFunds = errors.New("coinselect: insufficient funds")

	// ErrNoOutputs indicates the request has no destination outputs.
	ErrNoOutputs = errors.New("coinselect: no outputs")

	// ErrInvalidFeeRate indicates a zero fee rate.
	ErrInvalidFeeRate = errors.New("coinselect: fee rate must be positive")

	// ErrInvalidSweep indicates a sweep request without exactly one output.
	ErrInvalidSweep = errors.New("coinselect: sweep requires exactly one output")
)
