// Package feerate supplies fee rate estimates in sat/vB per confirmation
// speed tier.
package feerate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRate indicates no source could produce a rate for the tier.
	ErrNoRate = errors.New("feerate: no fee rate available")

	// ErrUnknownTier indicates an unrecognized tier value or name.
	ErrUnknownTier = errors.New("feerate: unknown tier")
)

// Tier is a confirmation speed.
type Tier int

const (
	Fastest Tier = iota
	HalfHour
	Hour
	Economy
	Minimum
)

var tierNames = [...]string{"fastest", "halfhour", "hour", "economy", "minimum"}

func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t >= 0 && int(t) < len(tierNames)
}

// ParseTier maps a tier name, case-insensitively, to its value. The empty
// string is Fastest.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Fastest, nil
	}
	for i, name := range tierNames {
		if s == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Provider returns the current fee rate for a tier.
type Provider interface {
	CurrentRate(ctx context.Context, tier Tier) (uint64, error)
}

// Static serves fixed rates. Missing tiers fall back to the next faster
// tier that is set.
type Static map[Tier]uint64

// CurrentRate implements Provider.
func (s Static) CurrentRate(_ context.Context, tier Tier) (uint64, error) {
	if !tier.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	for t := tier; t >= Fastest; t-- {
		if r := s[t]; r > 0 {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoRate, tier)
}

// Capped limits the rate returned by Provider to Max. A zero Max disables
// the cap.
type Capped struct {
	Provider Provider
	Max      uint64
}

// CurrentRate implements Provider.
func (c Capped) CurrentRate(ctx context.Context, tier Tier) (uint64, error) {
	r, err := c.Provider.CurrentRate(ctx, tier)
	if err != nil {
		return 0, err
	}
	if c.Max > 0 && r > c.Max {
		return c.Max, nil
	}
	return r, nil
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, tier Tier) (uint64, error)

// CurrentRate implements Provider.
func (f ProviderFunc) CurrentRate(ctx context.Context, tier Tier) (uint64, error) {
	return f(ctx, tier)
}
