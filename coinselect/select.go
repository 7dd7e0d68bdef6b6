package coinselect

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

// Policy orders candidate UTXOs for selection.
type Policy int

const (
	// SmallestFirst picks the smallest UTXO that covers what is still
	// needed, falling back to the largest remaining one. It is the default.
	SmallestFirst Policy = iota
	// LargestFirst accumulates from the largest UTXO down.
	LargestFirst
	// Consolidate spends every candidate regardless of the target.
	Consolidate
)

func (p Policy) String() string {
	switch p {
	case SmallestFirst:
		return "smallest-first"
	case LargestFirst:
		return "largest-first"
	case Consolidate:
		return "consolidate"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a policy name to its value.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "smallest-first", "small":
		return SmallestFirst, nil
	case "largest-first", "large":
		return LargestFirst, nil
	case "consolidate":
		return Consolidate, nil
	}
	return 0, fmt.Errorf("coinselect: unknown policy %q", s)
}

// Request describes one selection.
type Request struct {
	Utxos       []Utxo   // candidates
	Required    []Utxo   // always spent, ahead of any candidate
	Outputs     []Output // destinations, change excluded
	SatsPerByte uint64
	Policy      Policy

	// Target is the amount the inputs must fund before fees. It defaults
	// to, and is never less than, the sum of Outputs.
	Target uint64

	// ExtraFee is added on top of the size-based fee.
	ExtraFee uint64

	// Sweep sends everything left after the fee to the single output.
	// No change output is costed.
	Sweep bool

	// ChangeType is the address type costed for the change output. The
	// type of the first input is used when unset.
	ChangeType AddressType

	// Message is an optional OP_RETURN payload.
	Message string

	// Params decodes addresses. Nil means mainnet.
	Params *chaincfg.Params
}

// Result is an affordable input set. Change, when non-zero, still needs an
// output; its size is already included in Fee and VSize.
type Result struct {
	Inputs  []Utxo
	Outputs []Output
	Fee     uint64
	Change  uint64
	VSize   uint64
}

// Select chooses inputs from req.Utxos that, together with req.Required,
// pay for req.Outputs and the fee at req.SatsPerByte.
func Select(req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrNoOutputs)
	}
	if len(req.Outputs) == 0 {
		return nil, ErrNoOutputs
	}
	if req.Sweep && len(req.Outputs) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSweep, len(req.Outputs))
	}
	if req.SatsPerByte == 0 {
		return nil, ErrInvalidFeeRate
	}
	if len(req.Utxos) == 0 && len(req.Required) == 0 {
		return nil, fmt.Errorf("%w: no spendable outputs", ErrInsufficientFunds)
	}

	s := newSelection(req)
	for _, u := range req.Required {
		s.add(u)
	}
	remaining := s.candidates()

	switch req.Policy {
	case Consolidate:
		for _, u := range remaining {
			s.add(u)
		}
	case LargestFirst:
		// Descending order: accumulating to the target and topping up for
		// the fee are the same walk.
		for len(remaining) > 0 && !s.covered() {
			s.add(remaining[0])
			remaining = remaining[1:]
		}
	default:
		for len(remaining) > 0 && !s.covered() {
			i := s.smallestCovering(remaining)
			s.add(remaining[i])
			remaining = append(remaining[:i:i], remaining[i+1:]...)
		}
	}

	if !s.covered() {
		return nil, fmt.Errorf("%w: need %d sat, have %d sat",
			ErrInsufficientFunds, s.target+s.fee(true), s.sum)
	}
	return s.result(), nil
}

type selection struct {
	req     *Request
	target  uint64
	inputs  []Utxo
	inHist  Histogram
	outHist Histogram
	sum     uint64
	chosen  map[string]struct{}
}

func newSelection(req *Request) *selection {
	s := &selection{
		req:     req,
		outHist: OutputHistogram(req.Outputs, req.Params),
		chosen:  make(map[string]struct{}),
	}
	if req.Sweep {
		s.target = DustLimit
	} else {
		s.target = SumOutputs(req.Outputs)
		if req.Target > s.target {
			s.target = req.Target
		}
	}
	return s
}

func (s *selection) add(u Utxo) {
	s.inputs = append(s.inputs, u)
	s.inHist.Add(Classify(u.Address, s.req.Params))
	s.sum += u.Value
	s.chosen[u.Outpoint()] = struct{}{}
}

// candidates returns the unchosen UTXOs sorted per policy. Ties break on
// outpoint so results are deterministic.
func (s *selection) candidates() []Utxo {
	out := make([]Utxo, 0, len(s.req.Utxos))
	for _, u := range s.req.Utxos {
		if _, ok := s.chosen[u.Outpoint()]; ok {
			continue
		}
		out = append(out, u)
	}
	desc := s.req.Policy == LargestFirst
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			if desc {
				return out[i].Value > out[j].Value
			}
			return out[i].Value < out[j].Value
		}
		return out[i].Outpoint() < out[j].Outpoint()
	})
	return out
}

func (s *selection) changeType() AddressType {
	if s.req.ChangeType != AddressUnknown {
		return s.req.ChangeType
	}
	if len(s.inputs) > 0 {
		return Classify(s.inputs[0].Address, s.req.Params)
	}
	return AddressP2WPKH
}

func (s *selection) vsize(inputs Histogram, withChange bool) uint64 {
	outputs := s.outHist
	if withChange {
		outputs.Add(s.changeType())
	}
	return ByteCost(inputs, outputs, len(s.req.Message))
}

func (s *selection) feeFor(inputs Histogram, withChange bool) uint64 {
	return s.vsize(inputs, withChange)*s.req.SatsPerByte + s.req.ExtraFee
}

// fee is the fee for the current inputs. A sweep never has change.
func (s *selection) fee(withChange bool) uint64 {
	return s.feeFor(s.inHist, withChange && !s.req.Sweep)
}

func (s *selection) covered() bool {
	return s.sum >= s.target+s.fee(true)
}

func (s *selection) coveredWith(u Utxo) bool {
	h := s.inHist
	h.Add(Classify(u.Address, s.req.Params))
	return s.sum+u.Value >= s.target+s.feeFor(h, !s.req.Sweep)
}

// smallestCovering returns the index of the first (smallest) candidate that
// finishes the selection, or the last (largest) one when none does.
func (s *selection) smallestCovering(ascending []Utxo) int {
	for i, u := range ascending {
		if s.coveredWith(u) {
			return i
		}
	}
	return len(ascending) - 1
}

func (s *selection) result() *Result {
	res := &Result{
		Inputs:  append([]Utxo(nil), s.inputs...),
		Outputs: append([]Output(nil), s.req.Outputs...),
	}
	if s.req.Sweep {
		res.Fee = s.fee(false)
		res.VSize = s.vsize(s.inHist, false)
		res.Outputs[0].Value = s.sum - res.Fee
		return res
	}

	spent := SumOutputs(res.Outputs)
	fee := s.fee(true)
	if change := s.sum - spent - fee; change >= DustLimit {
		res.Fee = fee
		res.Change = change
		res.VSize = s.vsize(s.inHist, true)
		return res
	}
	// Sub-dust change is left to the miner.
	res.Fee = s.sum - spent
	res.VSize = s.vsize(s.inHist, false)
	return res
}
