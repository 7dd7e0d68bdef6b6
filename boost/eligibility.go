package boost

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/logging"
	"github.com/bitfsorg/feebump-go/network"
)

// maxOutspendLookups bounds concurrent outspend queries per evaluation.
const maxOutspendLookups = 8

// Eligibility reports how a transaction can be boosted.
type Eligibility struct {
	CanBoost     bool `json:"canBoost"`
	SupportsRBF  bool `json:"supportsRbf"`
	SupportsCPFP bool `json:"supportsCpfp"`
}

// Preferred returns the kind to use when the caller has no preference,
// replacement first. The zero Kind means the transaction cannot be boosted.
func (e Eligibility) Preferred() history.Kind {
	switch {
	case e.SupportsRBF:
		return history.ReplaceByFee
	case e.SupportsCPFP:
		return history.ChildPaysForParent
	}
	return 0
}

// Supports reports whether kind is possible.
func (e Eligibility) Supports(kind history.Kind) bool {
	switch kind {
	case history.ReplaceByFee:
		return e.SupportsRBF
	case history.ChildPaysForParent:
		return e.SupportsCPFP
	}
	return false
}

// Evaluator decides whether wallet transactions can be boosted. It only
// reads from the network.
type Evaluator struct {
	chain  network.BlockchainService
	book   AddressBook
	source *Source
	log    logging.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(chain network.BlockchainService, book AddressBook, log logging.Logger) *Evaluator {
	return &Evaluator{
		chain:  chain,
		book:   book,
		source: NewSource(chain, book),
		log:    logging.OrDisabled(log),
	}
}

// Evaluate reports the boost options for txid. Unknown and confirmed
// transactions yield a zero Eligibility without error.
func (e *Evaluator) Evaluate(ctx context.Context, txid string) (Eligibility, error) {
	elig, _, err := e.evaluate(ctx, txid)
	return elig, err
}

// inspection is what evaluate learned about a transaction.
type inspection struct {
	tx *network.Transaction
	// conflicted holds the outpoints of inputs a mined transaction has
	// already spent.
	conflicted map[string]struct{}
}

func (in *inspection) isConflicted(txid string, vout uint32) bool {
	_, ok := in.conflicted[fmt.Sprintf("%s:%d", txid, vout)]
	return ok
}

func (e *Evaluator) evaluate(ctx context.Context, txid string) (Eligibility, *inspection, error) {
	if err := validateTxID(txid); err != nil {
		return Eligibility{}, nil, err
	}
	tx, err := e.chain.GetTransaction(ctx, txid)
	if errors.Is(err, network.ErrTxNotFound) {
		e.log.Debugf("Transaction %s not found, not boostable", txid)
		return Eligibility{}, nil, nil
	}
	if err != nil {
		return Eligibility{}, nil, fmt.Errorf("boost: load %s: %w", txid, err)
	}
	ins := &inspection{tx: tx}
	if tx.Confirmed {
		e.log.Debugf("Transaction %s already confirmed at height %d", txid, tx.BlockHeight)
		return Eligibility{}, ins, nil
	}

	var elig Eligibility
	if elig.SupportsRBF, ins.conflicted, err = e.replaceable(ctx, tx); err != nil {
		return Eligibility{}, nil, err
	}
	if elig.SupportsCPFP, err = e.hasSpendableOutput(ctx, tx); err != nil {
		return Eligibility{}, nil, err
	}
	elig.CanBoost = elig.SupportsRBF || elig.SupportsCPFP
	e.log.Debugf("Transaction %s: rbf=%v cpfp=%v", txid, elig.SupportsRBF, elig.SupportsCPFP)
	return elig, ins, nil
}

// replaceable reports whether tx opts in to replacement, spends a wallet
// output, and has an input not already taken by a mined conflict. It also
// returns the conflicted outpoints.
func (e *Evaluator) replaceable(ctx context.Context, tx *network.Transaction) (bool, map[string]struct{}, error) {
	if !tx.SignalsRBF() {
		return false, nil, nil
	}
	owned := false
	for _, in := range tx.Inputs {
		if e.book.IsOwned(in.Address) {
			owned = true
			break
		}
	}
	if !owned {
		return false, nil, nil
	}

	conflicted := make([]bool, len(tx.Inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxOutspendLookups)
	for i, in := range tx.Inputs {
		i, in := i, in
		g.Go(func() error {
			out, err := e.chain.GetOutspend(gctx, in.PrevTxID, in.PrevVout)
			if err != nil {
				return fmt.Errorf("boost: outspend %s:%d: %w", in.PrevTxID, in.PrevVout, err)
			}
			// tx itself is unconfirmed, so a mined spend is a conflict.
			conflicted[i] = out.Spent && out.Confirmed && out.SpentBy != tx.TxID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, nil, err
	}

	spent := make(map[string]struct{})
	for i, c := range conflicted {
		if c {
			in := tx.Inputs[i]
			spent[fmt.Sprintf("%s:%d", in.PrevTxID, in.PrevVout)] = struct{}{}
		}
	}
	if len(spent) == len(tx.Inputs) {
		e.log.Infof("Every input of %s is spent by a mined transaction", tx.TxID)
		return false, spent, nil
	}
	if len(spent) > 0 {
		e.log.Infof("%d of %d inputs of %s are spent by a mined transaction",
			len(spent), len(tx.Inputs), tx.TxID)
	}
	return true, spent, nil
}

// hasSpendableOutput reports whether tx pays the wallet an output that is
// still unspent.
func (e *Evaluator) hasSpendableOutput(ctx context.Context, tx *network.Transaction) (bool, error) {
	utxos, err := e.source.UnspentOutputsOf(ctx, tx)
	if err != nil {
		return false, err
	}
	return len(utxos) > 0, nil
}

func validateTxID(txid string) error {
	if _, err := chainhash.NewHashFromStr(txid); err != nil || len(txid) != 2*chainhash.HashSize {
		return fmt.Errorf("%w: %q", ErrInvalidTxID, txid)
	}
	return nil
}
