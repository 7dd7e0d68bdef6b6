package boost

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/bitfsorg/feebump-go/coinselect"
	"github.com/bitfsorg/feebump-go/feerate"
	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/logging"
	"github.com/bitfsorg/feebump-go/network"
)

const (
	// incrementalRelayFee is the per-vbyte fee a replacement must add on
	// top of the fee it replaces (BIP125 rule 4).
	incrementalRelayFee = 1

	maxFeeAdjustments = 8
)

// BuildOptions tune a boost.
type BuildOptions struct {
	// Kind selects the strategy. Zero picks Eligibility.Preferred.
	Kind history.Kind
	// FeeRate overrides the estimate, in sat/vB. It is still raised to
	// beat the original transaction's rate.
	FeeRate uint64
	// Tier is the estimate used when FeeRate is zero.
	Tier feerate.Tier
	// Message is an optional OP_RETURN text.
	Message string
	// Policy orders extra wallet inputs for a replacement. Consolidate is
	// treated as SmallestFirst.
	Policy coinselect.Policy
}

// Builder turns an unconfirmed wallet transaction into a boost draft.
// It neither signs nor broadcasts.
type Builder struct {
	book   AddressBook
	eval   *Evaluator
	source *Source
	fees   feerate.Provider
	params *chaincfg.Params
	log    logging.Logger
}

// NewBuilder creates a Builder. Nil params means mainnet.
func NewBuilder(chain network.BlockchainService, book AddressBook, fees feerate.Provider,
	params *chaincfg.Params, log logging.Logger) *Builder {

	if params == nil {
		params = &chaincfg.MainNetParams
	}
	return &Builder{
		book:   book,
		eval:   NewEvaluator(chain, book, log),
		source: NewSource(chain, book),
		fees:   fees,
		params: params,
		log:    logging.OrDisabled(log),
	}
}

// Evaluator returns the evaluator the builder checks eligibility with.
func (b *Builder) Evaluator() *Evaluator {
	return b.eval
}

// BuildRBF drafts a replacement of txid.
func (b *Builder) BuildRBF(ctx context.Context, txid string, opts BuildOptions) (*DraftTransaction, error) {
	opts.Kind = history.ReplaceByFee
	return b.Build(ctx, txid, opts)
}

// BuildCPFP drafts a child spending txid's wallet output.
func (b *Builder) BuildCPFP(ctx context.Context, txid string, opts BuildOptions) (*DraftTransaction, error) {
	opts.Kind = history.ChildPaysForParent
	return b.Build(ctx, txid, opts)
}

// Build drafts a boost of txid of kind opts.Kind.
func (b *Builder) Build(ctx context.Context, txid string, opts BuildOptions) (*DraftTransaction, error) {
	elig, ins, err := b.eval.evaluate(ctx, txid)
	if err != nil {
		return nil, err
	}
	kind := opts.Kind
	if kind == 0 {
		kind = elig.Preferred()
	}
	if !elig.Supports(kind) {
		return nil, fmt.Errorf("%w: %s of %s", ErrIneligible, kind, txid)
	}

	var draft *DraftTransaction
	switch kind {
	case history.ReplaceByFee:
		draft, err = b.buildRBF(ctx, ins, opts)
	case history.ChildPaysForParent:
		draft, err = b.buildCPFP(ctx, ins.tx, opts)
	}
	if err != nil {
		return nil, err
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return draft, nil
}

// requestedRate returns opts.FeeRate, or the estimate for opts.Tier.
func (b *Builder) requestedRate(ctx context.Context, opts BuildOptions) (uint64, error) {
	if opts.FeeRate > 0 {
		return opts.FeeRate, nil
	}
	est, err := b.fees.CurrentRate(ctx, opts.Tier)
	if err != nil {
		return 0, fmt.Errorf("boost: fee estimate for %s: %w", opts.Tier, err)
	}
	return est, nil
}

// targetRate returns the requested rate, raised to at least one sat/vB
// above floor.
func (b *Builder) targetRate(ctx context.Context, opts BuildOptions, floor uint64) (uint64, error) {
	rate, err := b.requestedRate(ctx, opts)
	if err != nil {
		return 0, err
	}
	return max(rate, floor+1), nil
}

// candidates returns the wallet's confirmed UTXOs that are not outputs of
// exclude.
func (b *Builder) candidates(ctx context.Context, exclude string) ([]coinselect.Utxo, error) {
	wallet, err := b.source.Utxos(ctx)
	if err != nil {
		return nil, err
	}
	var out []coinselect.Utxo
	for _, u := range wallet {
		if u.Confirmed() && u.TxID != exclude {
			out = append(out, u)
		}
	}
	return out, nil
}

func selectPolicy(p coinselect.Policy) coinselect.Policy {
	if p == coinselect.Consolidate {
		return coinselect.SmallestFirst
	}
	return p
}

// buildRBF replaces ins.tx. Inputs a mined transaction already spent are
// left out; the replacement cannot spend them either.
func (b *Builder) buildRBF(ctx context.Context, ins *inspection, opts BuildOptions) (*DraftTransaction, error) {
	tx := ins.tx
	required := make([]coinselect.Utxo, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if ins.isConflicted(in.PrevTxID, in.PrevVout) {
			continue
		}
		if in.Value == 0 {
			return nil, fmt.Errorf("%w: input %s:%d of %s has no known value",
				ErrIneligible, in.PrevTxID, in.PrevVout, tx.TxID)
		}
		u, err := b.source.toUtxo(in.Address, in.PrevTxID, in.PrevVout, in.Value)
		if err != nil {
			return nil, err
		}
		required = append(required, u)
	}

	changeAddr, err := b.book.ChangeAddress()
	if err != nil {
		return nil, fmt.Errorf("boost: change address: %w", err)
	}
	var outputs []coinselect.Output
	for _, o := range tx.Outputs {
		if o.Address == "" || b.book.IsChange(o.Address) {
			continue
		}
		outputs = append(outputs, coinselect.Output{Address: o.Address, Value: o.Value})
	}
	// A transaction paying only the wallet's change becomes a sweep.
	sweep := len(outputs) == 0
	if sweep {
		outputs = []coinselect.Output{{Address: changeAddr}}
	}

	rate, err := b.targetRate(ctx, opts, floorRate(tx))
	if err != nil {
		return nil, err
	}

	candidates, err := b.candidates(ctx, tx.TxID)
	if err != nil {
		return nil, err
	}
	req := &coinselect.Request{
		Utxos:       candidates,
		Required:    required,
		Outputs:     outputs,
		SatsPerByte: rate,
		Policy:      selectPolicy(opts.Policy),
		Sweep:       sweep,
		ChangeType:  coinselect.Classify(changeAddr, b.params),
		Message:     opts.Message,
		Params:      b.params,
	}

	var res *coinselect.Result
	for i := 0; ; i++ {
		if res, err = coinselect.Select(req); err != nil {
			return nil, selectError(err)
		}
		minFee := tx.Fee + res.VSize*incrementalRelayFee
		if res.Fee >= minFee {
			break
		}
		if i == maxFeeAdjustments {
			return nil, fmt.Errorf("%w: replacement fee %d < %d", ErrFeeTooLow, res.Fee, minFee)
		}
		req.ExtraFee += minFee - res.Fee
	}

	draft := &DraftTransaction{
		Kind:          history.ReplaceByFee,
		OriginalTxID:  tx.TxID,
		Inputs:        res.Inputs,
		Outputs:       draftOutputs(res, changeAddr),
		Fee:           res.Fee,
		SatsPerByte:   rate,
		VSize:         res.VSize,
		Message:       opts.Message,
		IsMax:         sweep,
		IsReplaceable: true,
	}
	b.log.Infof("Drafted replacement of %s: fee %d sat (was %d), %d sat/vB, %d inputs",
		tx.TxID, draft.Fee, tx.Fee, rate, len(draft.Inputs))
	return draft, nil
}

// buildCPFP spends the largest unspent wallet output of tx, adding
// confirmed wallet UTXOs when that output cannot pay the fee alone. The
// child sweeps everything to a change address. The package rate must
// end up above the requested rate.
func (b *Builder) buildCPFP(ctx context.Context, tx *network.Transaction, opts BuildOptions) (*DraftTransaction, error) {
	spendable, err := b.source.UnspentOutputsOf(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(spendable) == 0 {
		return nil, fmt.Errorf("%w: %s has no unspent wallet output", ErrIneligible, tx.TxID)
	}
	input := spendable[0]
	for _, u := range spendable[1:] {
		if u.Value > input.Value {
			input = u
		}
	}

	changeAddr, err := b.book.ChangeAddress()
	if err != nil {
		return nil, fmt.Errorf("boost: change address: %w", err)
	}
	requested, err := b.requestedRate(ctx, opts)
	if err != nil {
		return nil, err
	}
	rate := max(requested, floorRate(tx)+1)

	candidates, err := b.candidates(ctx, tx.TxID)
	if err != nil {
		return nil, err
	}
	req := &coinselect.Request{
		Utxos:       candidates,
		Required:    []coinselect.Utxo{input},
		Outputs:     []coinselect.Output{{Address: changeAddr}},
		SatsPerByte: rate,
		Policy:      selectPolicy(opts.Policy),
		Sweep:       true,
		ChangeType:  coinselect.Classify(changeAddr, b.params),
		Message:     opts.Message,
		Params:      b.params,
	}
	// The child also pays what the parent lacks at the target rate.
	if need := rate * tx.VSize; need > tx.Fee {
		req.ExtraFee = need - tx.Fee
	}

	var res *coinselect.Result
	for i := 0; ; i++ {
		if res, err = coinselect.Select(req); err != nil {
			return nil, selectError(err)
		}
		paid, want := tx.Fee+res.Fee, requested*(tx.VSize+res.VSize)
		if paid > want {
			break
		}
		if i == maxFeeAdjustments {
			return nil, fmt.Errorf("%w: package pays %d sat, needs more than %d", ErrFeeTooLow, paid, want)
		}
		req.ExtraFee += want - paid + 1
	}

	draft := &DraftTransaction{
		Kind:          history.ChildPaysForParent,
		OriginalTxID:  tx.TxID,
		Inputs:        res.Inputs,
		Outputs:       draftOutputs(res, changeAddr),
		Fee:           res.Fee,
		SatsPerByte:   rate,
		VSize:         res.VSize,
		Message:       opts.Message,
		IsMax:         true,
		IsReplaceable: true,
	}
	b.log.Infof("Drafted child of %s: fee %d sat, %d inputs, package rate %d sat/vB",
		tx.TxID, draft.Fee, len(draft.Inputs), rate)
	return draft, nil
}

// draftOutputs appends any change to the selected outputs and numbers
// them in order.
func draftOutputs(res *coinselect.Result, changeAddr string) []coinselect.Output {
	outputs := append([]coinselect.Output(nil), res.Outputs...)
	if res.Change > 0 {
		outputs = append(outputs, coinselect.Output{Address: changeAddr, Value: res.Change})
	}
	for i := range outputs {
		outputs[i].Vout = uint32(i)
	}
	return outputs
}

func floorRate(tx *network.Transaction) uint64 {
	if tx.VSize == 0 {
		return 0
	}
	return tx.Fee / tx.VSize
}

func selectError(err error) error {
	if errors.Is(err, coinselect.ErrInsufficientFunds) {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return fmt.Errorf("boost: select inputs: %w", err)
}
