package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bitfsorg/feebump-go/logging"
)

// ErrUnknownTransaction indicates none of a chain's transactions are in
// the supplied history.
var ErrUnknownTransaction = errors.New("history: transaction not in history")

// Tracker owns the set of boost records. It indexes them in memory and
// writes through to a Store. Records can only be appended.
type Tracker struct {
	store Store
	log   logging.Logger
	now   func() time.Time

	mu       sync.RWMutex
	records  map[string]*Record  // child txid -> record
	children map[string][]string // parent txid -> child txids
}

// NewTracker loads every record from store.
func NewTracker(store Store, log logging.Logger) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParam)
	}
	t := &Tracker{
		store:    store,
		log:      logging.OrDisabled(log),
		now:      time.Now,
		records:  make(map[string]*Record),
		children: make(map[string][]string),
	}
	recs, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("history: load records: %w", err)
	}
	for _, rec := range recs {
		t.index(rec)
	}
	t.log.Debugf("Loaded %d boost records", len(recs))
	return t, nil
}

func (t *Tracker) index(rec *Record) {
	t.records[rec.ChildTxID] = rec
	for _, p := range rec.ParentTxIDs {
		t.children[p] = append(t.children[p], rec.ChildTxID)
	}
}

// RecordBoost appends rec. It fails with ErrDuplicateRecord when the child
// is already recorded and with ErrCycle when a parent descends from the
// child. A zero CreatedAt is set to the current time.
func (t *Tracker) RecordBoost(rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	stored := rec.clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = t.now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.records[stored.ChildTxID]; exists {
		t.log.Errorf("Boost %s is already recorded", stored.ChildTxID)
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, stored.ChildTxID)
	}
	for _, p := range stored.ParentTxIDs {
		for _, a := range t.ancestors(p) {
			if a == stored.ChildTxID {
				return fmt.Errorf("%w: %s descends from %s", ErrCycle, p, stored.ChildTxID)
			}
		}
	}

	if err := t.store.Put(stored); err != nil {
		return err
	}
	t.index(stored)
	t.log.Infof("Recorded %s boost %s of %v (fee %d sat)", stored.Kind, stored.ChildTxID, stored.ParentTxIDs, stored.Fee)
	return nil
}

// AncestorsOf returns every transaction txid was built on, root-first,
// each exactly once. A transaction that is not a boost has no ancestors.
func (t *Tracker) AncestorsOf(txid string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ancestors(txid)
}

func (t *Tracker) ancestors(txid string) []string {
	var out []string
	seen := map[string]struct{}{txid: {}}
	var visit func(id string)
	visit = func(id string) {
		rec, ok := t.records[id]
		if !ok {
			return
		}
		for _, p := range rec.ParentTxIDs {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			visit(p)
			out = append(out, p)
		}
	}
	visit(txid)
	return out
}

// DescendantsOf returns every boost built on txid, nearest first.
func (t *Tracker) DescendantsOf(txid string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return descendants(t.children, txid)
}

func descendants(children map[string][]string, txid string) []string {
	var out []string
	seen := map[string]struct{}{txid: {}}
	queue := []string{txid}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range children[id] {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Root returns the original transaction of txid's chain, or txid itself.
func (t *Tracker) Root(txid string) string {
	if anc := t.AncestorsOf(txid); len(anc) > 0 {
		return anc[0]
	}
	return txid
}

// Record returns the record whose child is txid.
func (t *Tracker) Record(txid string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[txid]
	if !ok {
		return Record{}, false
	}
	return *rec.clone(), true
}

// IsBoosted reports whether any boost was built on txid.
func (t *Tracker) IsBoosted(txid string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.children[txid]) > 0
}

// Records returns a copy of every record ordered by creation time.
func (t *Tracker) Records() []*Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec.clone())
	}
	sortRecords(out)
	return out
}

// Reset forgets every record, in the store as well.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Reset(); err != nil {
		return err
	}
	t.records = make(map[string]*Record)
	t.children = make(map[string][]string)
	t.log.Infof("Boost history reset")
	return nil
}

// LogicalValueOf returns the value the user sees for txid: that of the
// chain's root, taken from items. If the root is missing from items, the
// nearest chain member that is present is used. With includeFee set, a
// chain containing a CPFP link also has every ancestor's fee subtracted,
// since those fees came out of the spendable balance.
func (t *Tracker) LogicalValueOf(txid string, items []ActivityItem, includeFee bool) (uint64, error) {
	byTx := make(map[string]ActivityItem, len(items))
	for _, it := range items {
		byTx[it.TxID] = it
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	ancestors := t.ancestors(txid)
	chain := append(append([]string(nil), ancestors...), txid)

	var (
		value uint64
		found bool
	)
	for _, id := range chain {
		if it, ok := byTx[id]; ok {
			value, found = it.Value, true
			break
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTransaction, txid)
	}
	if !includeFee || !t.hasCPFP(chain) {
		return value, nil
	}

	for _, id := range ancestors {
		var fee uint64
		if rec, ok := t.records[id]; ok {
			fee = rec.Fee
		} else {
			fee = byTx[id].Fee
		}
		if fee >= value {
			return 0, nil
		}
		value -= fee
	}
	return value, nil
}

func (t *Tracker) hasCPFP(chain []string) bool {
	for _, id := range chain {
		if rec, ok := t.records[id]; ok && rec.Kind == ChildPaysForParent {
			return true
		}
	}
	return false
}

// ProjectActivity folds the tracker's records into items. See Project.
func (t *Tracker) ProjectActivity(items []ActivityItem) []ActivityItem {
	return Project(items, t.Records())
}
