package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/bitfsorg/feebump-go/boost"
	"github.com/bitfsorg/feebump-go/coinselect"
	"github.com/bitfsorg/feebump-go/feerate"
	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/network"
	"github.com/bitfsorg/feebump-go/wallet"
)

// stdout is where command output is written.
var stdout io.Writer = os.Stdout

func printJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run wires the app and calls fn with a context cancelled on interrupt.
func run(fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadSettings(&opts)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return fn(ctx, a)
}

type txidArg struct {
	TxID string `positional-arg-name:"txid" required:"yes"`
}

// checkCmd reports boost eligibility.
type checkCmd struct {
	Args txidArg `positional-args:"yes"`
}

func (c *checkCmd) Execute(_ []string) error {
	return run(func(ctx context.Context, a *app) error {
		el, err := a.builder.Evaluator().Evaluate(ctx, c.Args.TxID)
		if err != nil {
			return err
		}
		out := struct {
			TxID string `json:"txid"`
			boost.Eligibility
			Preferred string `json:"preferred,omitempty"`
		}{TxID: c.Args.TxID, Eligibility: el}
		if k := el.Preferred(); k.Valid() {
			out.Preferred = k.String()
		}
		return printJSON(out)
	})
}

// draftCmd builds and prints an unsigned boost.
type draftCmd struct {
	Kind    string  `short:"k" long:"kind" choice:"rbf" choice:"cpfp" description:"Boost strategy (default: RBF when possible)"`
	Rate    uint64  `short:"r" long:"rate" description:"Fee rate in sat/vB, overriding the estimate"`
	Tier    string  `short:"t" long:"tier" description:"Fee estimate tier: fastest, halfhour, hour, economy or minimum"`
	Policy  string  `short:"p" long:"policy" description:"Coin selection: smallest-first, largest-first or consolidate"`
	Message string  `short:"m" long:"message" description:"OP_RETURN text to attach"`
	Args    txidArg `positional-args:"yes"`
}

// buildOptions resolves the flags against the configured defaults.
func (c *draftCmd) buildOptions(tierName, policyName string) (boost.BuildOptions, error) {
	bo := boost.BuildOptions{FeeRate: c.Rate, Message: c.Message}
	if c.Kind != "" {
		kind, err := history.ParseKind(c.Kind)
		if err != nil {
			return bo, err
		}
		bo.Kind = kind
	}
	if c.Tier != "" {
		tierName = c.Tier
	}
	tier, err := feerate.ParseTier(tierName)
	if err != nil {
		return bo, err
	}
	bo.Tier = tier
	if c.Policy != "" {
		policyName = c.Policy
	}
	policy, err := coinselect.ParsePolicy(policyName)
	if err != nil {
		return bo, err
	}
	bo.Policy = policy
	return bo, nil
}

func (c *draftCmd) Execute(_ []string) error {
	return run(func(ctx context.Context, a *app) error {
		bo, err := c.buildOptions(a.cfg.FeeTier, a.cfg.CoinSelection)
		if err != nil {
			return err
		}
		draft, err := a.builder.Build(ctx, c.Args.TxID, bo)
		if err != nil {
			return err
		}
		a.log.Infof("Drafted %s boost of %s at %d sat/vB (fee %d sat, %d vB)",
			draft.Kind, c.Args.TxID, draft.SatsPerByte, draft.Fee, draft.VSize)
		return printJSON(draft)
	})
}

// historyCmd prints a transaction's recorded boost chain.
type historyCmd struct {
	Args txidArg `positional-args:"yes"`
}

type historyOutput struct {
	TxID         string          `json:"txid"`
	Root         string          `json:"root"`
	Record       *history.Record `json:"record,omitempty"`
	Ancestors    []string        `json:"ancestors"`
	Descendants  []string        `json:"descendants"`
	LogicalValue *uint64         `json:"logicalValue,omitempty"`
}

func (c *historyCmd) Execute(_ []string) error {
	return run(func(ctx context.Context, a *app) error {
		txid := c.Args.TxID
		out := historyOutput{
			TxID:        txid,
			Root:        a.tracker.Root(txid),
			Ancestors:   a.tracker.AncestorsOf(txid),
			Descendants: a.tracker.DescendantsOf(txid),
		}
		if rec, ok := a.tracker.Record(txid); ok {
			out.Record = &rec
		}

		chain := append(append([]string(nil), out.Ancestors...), txid)
		items, err := chainActivity(ctx, a.chain, a.book, chain)
		if err != nil {
			return err
		}
		value, err := a.tracker.LogicalValueOf(txid, items, true)
		switch {
		case err == nil:
			out.LogicalValue = &value
		case !errors.Is(err, history.ErrUnknownTransaction):
			return err
		}
		return printJSON(out)
	})
}

// recordCmd stores a broadcast boost in the history.
type recordCmd struct {
	Kind string `short:"k" long:"kind" choice:"rbf" choice:"cpfp" required:"yes" description:"Boost strategy used"`
	Fee  uint64 `short:"f" long:"fee" description:"Fee paid by the boost in sat"`
	Args struct {
		Child   string   `positional-arg-name:"child" required:"yes"`
		Parents []string `positional-arg-name:"parent" required:"1"`
	} `positional-args:"yes"`
}

func (c *recordCmd) Execute(_ []string) error {
	kind, err := history.ParseKind(c.Kind)
	if err != nil {
		return err
	}
	for _, id := range append([]string{c.Args.Child}, c.Args.Parents...) {
		if _, err := chainhash.NewHashFromStr(id); err != nil || len(id) != 2*chainhash.HashSize {
			return fmt.Errorf("%w: bad txid %q", history.ErrInvalidRecord, id)
		}
	}
	return run(func(_ context.Context, a *app) error {
		rec := history.Record{
			ChildTxID:   c.Args.Child,
			ParentTxIDs: c.Args.Parents,
			Kind:        kind,
			Fee:         c.Fee,
		}
		if err := a.tracker.RecordBoost(rec); err != nil {
			return err
		}
		stored, _ := a.tracker.Record(rec.ChildTxID)
		return printJSON(stored)
	})
}

// chainActivity fetches txids and turns the ones still known to the
// network into activity items. Replaced transactions are skipped.
func chainActivity(ctx context.Context, chain network.BlockchainService, book *wallet.AddressBook,
	txids []string) ([]history.ActivityItem, error) {

	var items []history.ActivityItem
	for _, id := range txids {
		tx, err := chain.GetTransaction(ctx, id)
		if errors.Is(err, network.ErrTxNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, activityItem(tx, book))
	}
	return items, nil
}

// activityItem values a transaction the way the wallet lists it: a spend
// is worth what left the wallet, a receipt what arrived.
func activityItem(tx *network.Transaction, book *wallet.AddressBook) history.ActivityItem {
	spend := false
	for _, in := range tx.Inputs {
		if book.IsOwned(in.Address) {
			spend = true
			break
		}
	}
	var value uint64
	for _, o := range tx.Outputs {
		if book.IsOwned(o.Address) != spend {
			value += o.Value
		}
	}
	return history.ActivityItem{ID: tx.TxID, TxID: tx.TxID, Value: value, Fee: tx.Fee}
}

// addressCmd adds addresses to the address book.
type addressCmd struct {
	Change bool   `short:"c" long:"change" description:"Add as change addresses"`
	Path   string `long:"path" description:"Derivation path, for a single address"`
	Args   struct {
		Addresses []string `positional-arg-name:"address" required:"1"`
	} `positional-args:"yes"`
}

func (c *addressCmd) Execute(_ []string) error {
	if c.Path != "" && len(c.Args.Addresses) > 1 {
		return fmt.Errorf("--path applies to a single address, got %d", len(c.Args.Addresses))
	}
	cfg, err := loadSettings(&opts)
	if err != nil {
		return err
	}
	book, err := openAddressBook(cfg)
	if err != nil {
		return err
	}

	entries := make([]wallet.Entry, len(c.Args.Addresses))
	for i, addr := range c.Args.Addresses {
		entries[i] = wallet.Entry{Address: addr, DerivationPath: c.Path}
	}
	if c.Change {
		err = book.AddChange(entries...)
	} else {
		err = book.AddReceive(entries...)
	}
	if err != nil {
		return err
	}
	if err := book.Save(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "added %d address(es), %d receive and %d change in book\n",
		len(entries), len(book.Receive), len(book.Change))
	return nil
}
