package history

import (
	"fmt"
	"time"
)

// Kind is the strategy used to accelerate a transaction.
type Kind uint8

const (
	// ReplaceByFee replaces the parent with a higher-fee spend of the same inputs.
	ReplaceByFee Kind = iota + 1
	// ChildPaysForParent spends an output of the parent at a rate high
	// enough to pull both into a block.
	ChildPaysForParent
)

func (k Kind) String() string {
	switch k {
	case ReplaceByFee:
		return "rbf"
	case ChildPaysForParent:
		return "cpfp"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == ReplaceByFee || k == ChildPaysForParent
}

// ParseKind maps "rbf" or "cpfp" to its Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "rbf":
		return ReplaceByFee, nil
	case "cpfp":
		return ChildPaysForParent, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidRecord, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Record links a boost transaction to the transaction(s) it accelerated.
// Records are written once and never modified.
type Record struct {
	ChildTxID   string    `json:"childTxId"`
	ParentTxIDs []string  `json:"parentTxIds"`
	Kind        Kind      `json:"kind"`
	Fee         uint64    `json:"fee"` // satoshis paid by the child
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate checks the record's fields, not its place in the graph.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}
	if r.ChildTxID == "" {
		return fmt.Errorf("%w: empty child txid", ErrInvalidRecord)
	}
	if len(r.ParentTxIDs) == 0 {
		return fmt.Errorf("%w: %s has no parents", ErrInvalidRecord, r.ChildTxID)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %s has kind %d", ErrInvalidRecord, r.ChildTxID, uint8(r.Kind))
	}
	seen := make(map[string]struct{}, len(r.ParentTxIDs))
	for _, p := range r.ParentTxIDs {
		if p == "" {
			return fmt.Errorf("%w: %s has an empty parent", ErrInvalidRecord, r.ChildTxID)
		}
		if p == r.ChildTxID {
			return fmt.Errorf("%w: %s lists itself as parent", ErrCycle, r.ChildTxID)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: %s lists parent %s twice", ErrInvalidRecord, r.ChildTxID, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}

func (r *Record) clone() *Record {
	c := *r
	c.ParentTxIDs = append([]string(nil), r.ParentTxIDs...)
	return &c
}
