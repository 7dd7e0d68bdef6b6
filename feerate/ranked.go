package feerate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bitfsorg/feebump-go/logging"
)

const (
	fetchTimeout     = 10 * time.Second
	defaultFailDelay = time.Minute
)

// Source is one provider taking part in a Ranked lookup.
type Source struct {
	Name     string
	Provider Provider
	// Rank controls which priority group the source is in. Lower Rank is
	// higher priority. Rates from same-ranked sources are averaged. A
	// group is only consulted when every higher group failed.
	Rank uint
}

type rankedSource struct {
	*Source
	failUntil time.Time
}

// Ranked queries sources by priority group. A failing source is skipped
// for FailDelay.
type Ranked struct {
	log       logging.Logger
	FailDelay time.Duration
	now       func() time.Time

	mu     sync.Mutex
	groups [][]*rankedSource
}

// NewRanked groups sources by rank.
func NewRanked(sources []*Source, log logging.Logger) *Ranked {
	var groups [][]*rankedSource
next:
	for _, src := range sources {
		rs := &rankedSource{Source: src}
		for i, group := range groups {
			if group[0].Rank == src.Rank {
				groups[i] = append(group, rs)
				continue next
			}
		}
		groups = append(groups, []*rankedSource{rs})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i][0].Rank < groups[j][0].Rank
	})
	return &Ranked{
		log:       logging.OrDisabled(log),
		FailDelay: defaultFailDelay,
		now:       time.Now,
		groups:    groups,
	}
}

// CurrentRate implements Provider. It returns the rounded mean of the
// first group with at least one working source.
func (r *Ranked) CurrentRate(ctx context.Context, tier Tier) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, group := range r.groups {
		var sum float64
		var n int
		for _, src := range group {
			if r.now().Before(src.failUntil) {
				continue
			}
			rate, err := r.fetch(ctx, src, tier)
			if err == nil && rate == 0 {
				err = fmt.Errorf("%w: zero rate", ErrNoRate)
			}
			if err != nil {
				if ctx.Err() != nil {
					return 0, ctx.Err()
				}
				r.log.Warnf("Fee source %s failed: %v", src.Name, err)
				src.failUntil = r.now().Add(r.FailDelay)
				continue
			}
			src.failUntil = time.Time{}
			r.log.Tracef("Fee source %s: %d sat/vB for %s", src.Name, rate, tier)
			sum += float64(rate)
			n++
		}
		if n > 0 {
			return max(1, uint64(math.Round(sum/float64(n)))), nil
		}
	}
	return 0, fmt.Errorf("%w: every source failed for %s", ErrNoRate, tier)
}

func (r *Ranked) fetch(ctx context.Context, src *rankedSource, tier Tier) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	return src.Provider.CurrentRate(ctx, tier)
}
