package feerate

import (
	"context"
	"fmt"

	"github.com/bitfsorg/feebump-go/network"
)

// RecommendedSource serves mempool.space style recommended fees.
// *network.EsploraClient implements it.
type RecommendedSource interface {
	RecommendedFees(ctx context.Context) (*network.RecommendedFees, error)
}

// Mempool reads the tier rate from a RecommendedSource.
type Mempool struct {
	src RecommendedSource
}

// NewMempool wraps src.
func NewMempool(src RecommendedSource) *Mempool {
	return &Mempool{src: src}
}

// CurrentRate implements Provider.
func (m *Mempool) CurrentRate(ctx context.Context, tier Tier) (uint64, error) {
	fees, err := m.src.RecommendedFees(ctx)
	if err != nil {
		return 0, fmt.Errorf("feerate: recommended fees: %w", err)
	}
	var r uint64
	switch tier {
	case Fastest:
		r = fees.FastestFee
	case HalfHour:
		r = fees.HalfHourFee
	case Hour:
		r = fees.HourFee
	case Economy:
		r = fees.EconomyFee
	case Minimum:
		r = fees.MinimumFee
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	if r == 0 {
		return 0, fmt.Errorf("%w: %s is zero", ErrNoRate, tier)
	}
	return r, nil
}

// SmartFeeEstimator serves bitcoind estimatesmartfee results in sat/vB.
// *network.RPCClient implements it.
type SmartFeeEstimator interface {
	EstimateSmartFee(ctx context.Context, confTarget int64) (uint64, error)
}

// confTargets maps tiers to estimatesmartfee block targets.
var confTargets = [...]int64{
	Fastest:  1,
	HalfHour: 3,
	Hour:     6,
	Economy:  144,
	Minimum:  1008,
}

// Node asks a bitcoind node for its estimate.
type Node struct {
	est SmartFeeEstimator
}

// NewNode wraps est.
func NewNode(est SmartFeeEstimator) *Node {
	return &Node{est: est}
}

// CurrentRate implements Provider. The estimate is never below 1 sat/vB.
func (n *Node) CurrentRate(ctx context.Context, tier Tier) (uint64, error) {
	if !tier.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	r, err := n.est.EstimateSmartFee(ctx, confTargets[tier])
	if err != nil {
		return 0, fmt.Errorf("feerate: estimatesmartfee %d: %w", confTargets[tier], err)
	}
	return max(r, 1), nil
}
