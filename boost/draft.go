package boost

import (
	"fmt"

	"github.com/bitfsorg/feebump-go/coinselect"
	"github.com/bitfsorg/feebump-go/history"
)

// DraftTransaction is an unsigned boost.
type DraftTransaction struct {
	Kind          history.Kind        `json:"kind"`
	OriginalTxID  string              `json:"originalTxId"`
	Inputs        []coinselect.Utxo   `json:"inputs"`
	Outputs       []coinselect.Output `json:"outputs"`
	Fee           uint64              `json:"fee"`
	SatsPerByte   uint64              `json:"satsPerByte"`
	VSize         uint64              `json:"vsize"`
	Message       string              `json:"message,omitempty"` // OP_RETURN text
	IsMax         bool                `json:"isMax"`             // single output takes everything after fee
	IsReplaceable bool                `json:"isReplaceable"`
}

// TotalIn returns the sum of the inputs.
func (d *DraftTransaction) TotalIn() uint64 {
	return coinselect.SumUtxos(d.Inputs)
}

// TotalOut returns the sum of the outputs.
func (d *DraftTransaction) TotalOut() uint64 {
	return coinselect.SumOutputs(d.Outputs)
}

// FeeRate returns the effective rate in sat/vB.
func (d *DraftTransaction) FeeRate() float64 {
	if d.VSize == 0 {
		return 0
	}
	return float64(d.Fee) / float64(d.VSize)
}

// Validate checks that the draft is spendable as built.
func (d *DraftTransaction) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: draft", ErrNilParam)
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("%w: kind %s", ErrInvalidDraft, d.Kind)
	}
	if len(d.Inputs) == 0 || len(d.Outputs) == 0 {
		return fmt.Errorf("%w: %d inputs, %d outputs", ErrInvalidDraft, len(d.Inputs), len(d.Outputs))
	}
	in, out := d.TotalIn(), d.TotalOut()
	if in < out || in-out < d.Fee {
		return fmt.Errorf("%w: inputs %d < outputs %d + fee %d", ErrInvalidDraft, in, out, d.Fee)
	}
	for _, o := range d.Outputs {
		if o.Value == 0 {
			return fmt.Errorf("%w: output %d is empty", ErrInvalidDraft, o.Vout)
		}
	}
	return nil
}
