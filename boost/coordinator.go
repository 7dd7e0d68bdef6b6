package boost

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/feebump-go/history"
	"github.com/bitfsorg/feebump-go/logging"
	"github.com/bitfsorg/feebump-go/network"
)

// Signer signs a draft and returns the raw transaction hex.
type Signer interface {
	Sign(ctx context.Context, draft *DraftTransaction) (string, error)
}

// ActivityLedger is the wallet's activity list.
type ActivityLedger interface {
	// RawActivity returns the list as the wallet sees it on chain.
	RawActivity(ctx context.Context) ([]history.ActivityItem, error)
	// Publish replaces the displayed list.
	Publish(ctx context.Context, items []history.ActivityItem) error
	// Remove drops txid's standalone entry.
	Remove(ctx context.Context, txid string) error
}

// Stage is a step of a boost attempt.
type Stage int

const (
	StageBuilt Stage = iota + 1
	StageSigned
	StageBroadcast
	StageRecorded
)

func (s Stage) String() string {
	switch s {
	case StageBuilt:
		return "build"
	case StageSigned:
		return "sign"
	case StageBroadcast:
		return "broadcast"
	case StageRecorded:
		return "record"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// StageError is returned by BroadcastBoost with the stage that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("boost: %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Coordinator runs a boost end to end: build, sign, broadcast, record.
// At most one attempt per original transaction runs at a time.
type Coordinator struct {
	builder *Builder
	signer  Signer
	chain   network.BlockchainService
	tracker *history.Tracker
	ledger  ActivityLedger // optional
	log     logging.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewCoordinator creates a Coordinator. ledger may be nil.
func NewCoordinator(builder *Builder, signer Signer, chain network.BlockchainService,
	tracker *history.Tracker, ledger ActivityLedger, log logging.Logger) (*Coordinator, error) {

	switch {
	case builder == nil:
		return nil, fmt.Errorf("%w: builder", ErrNilParam)
	case signer == nil:
		return nil, fmt.Errorf("%w: signer", ErrNilParam)
	case chain == nil:
		return nil, fmt.Errorf("%w: chain", ErrNilParam)
	case tracker == nil:
		return nil, fmt.Errorf("%w: tracker", ErrNilParam)
	}
	return &Coordinator{
		builder:  builder,
		signer:   signer,
		chain:    chain,
		tracker:  tracker,
		ledger:   ledger,
		log:      logging.OrDisabled(log),
		inFlight: make(map[string]struct{}),
	}, nil
}

func (c *Coordinator) acquire(txid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[txid]; busy {
		return false
	}
	c.inFlight[txid] = struct{}{}
	return true
}

func (c *Coordinator) release(txid string) {
	c.mu.Lock()
	delete(c.inFlight, txid)
	c.mu.Unlock()
}

// BroadcastBoost boosts txid and returns the boost's txid. Nothing is
// recorded unless the broadcast succeeds. Once it has, the record step
// ignores ctx cancellation; a record failure returns the new txid along
// with the error.
func (c *Coordinator) BroadcastBoost(ctx context.Context, txid string, opts BuildOptions) (string, error) {
	if !c.acquire(txid) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyInProgress, txid)
	}
	defer c.release(txid)

	draft, err := c.builder.Build(ctx, txid, opts)
	if err != nil {
		return "", &StageError{Stage: StageBuilt, Err: err}
	}

	raw, err := c.signer.Sign(ctx, draft)
	if err != nil {
		return "", &StageError{Stage: StageSigned, Err: fmt.Errorf("%w: %w", ErrSign, err)}
	}

	newTxID, err := c.chain.BroadcastTx(ctx, raw)
	if err != nil {
		return "", &StageError{Stage: StageBroadcast, Err: fmt.Errorf("%w: %w", ErrBroadcast, err)}
	}
	c.log.Infof("Broadcast %s boost %s of %s (fee %d sat)", draft.Kind, newTxID, txid, draft.Fee)

	rctx := context.WithoutCancel(ctx)
	err = c.tracker.RecordBoost(history.Record{
		ChildTxID:   newTxID,
		ParentTxIDs: []string{txid},
		Kind:        draft.Kind,
		Fee:         draft.Fee,
	})
	if err != nil {
		c.log.Errorf("Boost %s is on the network but was not recorded: %v", newTxID, err)
		return newTxID, &StageError{Stage: StageRecorded, Err: err}
	}

	for _, o := range draft.Outputs {
		if c.builder.book.IsChange(o.Address) {
			c.builder.book.UseChangeAddress(o.Address)
		}
	}
	c.refreshActivity(rctx, draft.Kind, txid)
	return newTxID, nil
}

// refreshActivity republishes the projected activity list. Failures are
// logged only; the boost itself has already succeeded.
func (c *Coordinator) refreshActivity(ctx context.Context, kind history.Kind, original string) {
	if c.ledger == nil {
		return
	}
	if kind == history.ReplaceByFee {
		if err := c.ledger.Remove(ctx, original); err != nil {
			c.log.Warnf("Failed to remove replaced transaction %s from activity: %v", original, err)
		}
	}
	items, err := c.ledger.RawActivity(ctx)
	if err != nil {
		c.log.Warnf("Failed to load activity: %v", err)
		return
	}
	if err := c.ledger.Publish(ctx, c.tracker.ProjectActivity(items)); err != nil {
		c.log.Warnf("Failed to publish activity: %v", err)
	}
}
