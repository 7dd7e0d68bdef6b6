package feerate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfsorg/feebump-go/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	for _, tier := range []Tier{Fastest, HalfHour, Hour, Economy, Minimum} {
		got, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}
	got, err := ParseTier(" Economy ")
	require.NoError(t, err)
	assert.Equal(t, Economy, got)

	got, err = ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, Fastest, got)

	_, err = ParseTier("ludicrous")
	assert.ErrorIs(t, err, ErrUnknownTier)
	assert.Equal(t, "tier(9)", Tier(9).String())
}

func TestStatic(t *testing.T) {
	s := Static{Fastest: 20, Hour: 8}
	ctx := context.Background()

	r, err := s.CurrentRate(ctx, Hour)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), r)

	r, err = s.CurrentRate(ctx, HalfHour)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), r, "falls back to the next faster tier")

	r, err = s.CurrentRate(ctx, Minimum)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), r)

	_, err = Static{}.CurrentRate(ctx, Fastest)
	assert.ErrorIs(t, err, ErrNoRate)
	_, err = s.CurrentRate(ctx, Tier(-1))
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestCapped(t *testing.T) {
	p := Capped{Provider: Static{Fastest: 500}, Max: 100}
	r, err := p.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), r)

	p.Max = 0
	r, err = p.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), r)
}

type fakeRecommended struct {
	fees *network.RecommendedFees
	err  error
}

func (f *fakeRecommended) RecommendedFees(context.Context) (*network.RecommendedFees, error) {
	return f.fees, f.err
}

func TestMempool(t *testing.T) {
	src := &fakeRecommended{fees: &network.RecommendedFees{
		FastestFee: 30, HalfHourFee: 20, HourFee: 10, EconomyFee: 4, MinimumFee: 1,
	}}
	m := NewMempool(src)
	want := map[Tier]uint64{Fastest: 30, HalfHour: 20, Hour: 10, Economy: 4, Minimum: 1}
	for tier, rate := range want {
		got, err := m.CurrentRate(context.Background(), tier)
		require.NoError(t, err)
		assert.Equal(t, rate, got, tier.String())
	}

	src.fees.EconomyFee = 0
	_, err := m.CurrentRate(context.Background(), Economy)
	assert.ErrorIs(t, err, ErrNoRate)

	src.err = network.ErrConnectionFailed
	_, err = m.CurrentRate(context.Background(), Fastest)
	assert.ErrorIs(t, err, network.ErrConnectionFailed)
}

type fakeEstimator struct {
	targets []int64
	rate    uint64
}

func (f *fakeEstimator) EstimateSmartFee(_ context.Context, confTarget int64) (uint64, error) {
	f.targets = append(f.targets, confTarget)
	return f.rate, nil
}

func TestNode(t *testing.T) {
	est := &fakeEstimator{rate: 0}
	n := NewNode(est)
	for _, tier := range []Tier{Fastest, HalfHour, Hour, Economy, Minimum} {
		r, err := n.CurrentRate(context.Background(), tier)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), r)
	}
	assert.Equal(t, []int64{1, 3, 6, 144, 1008}, est.targets)
}

func TestCacheExpires(t *testing.T) {
	var calls int
	p := ProviderFunc(func(context.Context, Tier) (uint64, error) {
		calls++
		return uint64(calls * 10), nil
	})
	c := NewCache(p, time.Minute)
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	r, err := c.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), r)

	now = now.Add(30 * time.Second)
	r, _ = c.CurrentRate(context.Background(), Fastest)
	assert.Equal(t, uint64(10), r)

	r, _ = c.CurrentRate(context.Background(), Hour)
	assert.Equal(t, uint64(20), r, "tiers are cached separately")

	now = now.Add(time.Minute)
	r, _ = c.CurrentRate(context.Background(), Fastest)
	assert.Equal(t, uint64(30), r)
	assert.Equal(t, 3, calls)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	fail := true
	p := ProviderFunc(func(context.Context, Tier) (uint64, error) {
		if fail {
			return 0, errors.New("down")
		}
		return 7, nil
	})
	c := NewCache(p, time.Hour)
	_, err := c.CurrentRate(context.Background(), Fastest)
	assert.Error(t, err)

	fail = false
	r, err := c.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), r)
}

func TestRankedAveragesTopGroup(t *testing.T) {
	r := NewRanked([]*Source{
		{Name: "backup", Provider: Static{Fastest: 100}, Rank: 2},
		{Name: "a", Provider: Static{Fastest: 10}, Rank: 1},
		{Name: "b", Provider: Static{Fastest: 13}, Rank: 1},
	}, nil)
	rate, err := r.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), rate)
}

func TestRankedFallsBackAndBacksOff(t *testing.T) {
	var primaryCalls int
	primary := ProviderFunc(func(context.Context, Tier) (uint64, error) {
		primaryCalls++
		return 0, errors.New("unreachable")
	})
	r := NewRanked([]*Source{
		{Name: "primary", Provider: primary, Rank: 0},
		{Name: "backup", Provider: Static{Fastest: 9}, Rank: 1},
	}, nil)
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	rate, err := r.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), rate)

	_, err = r.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, 1, primaryCalls, "failed source is skipped during its delay")

	now = now.Add(2 * time.Minute)
	_, err = r.CurrentRate(context.Background(), Fastest)
	require.NoError(t, err)
	assert.Equal(t, 2, primaryCalls)
}

func TestRankedAllFail(t *testing.T) {
	r := NewRanked([]*Source{{Name: "empty", Provider: Static{}}}, nil)
	_, err := r.CurrentRate(context.Background(), Fastest)
	assert.ErrorIs(t, err, ErrNoRate)

	_, err = NewRanked(nil, nil).CurrentRate(context.Background(), Fastest)
	assert.ErrorIs(t, err, ErrNoRate)
}
