package engine

import (
	"context"
	"math/big"

	"github.com/gaugehub/gauged/internal/store"
)

// Queries project from stored checkpoints without writing, so they run
// outside the mutation lock and outside any transaction.

// GaugeWeight returns the gauge's weight at the current period.
func (e *Engine) GaugeWeight(ctx context.Context, addr string) (*big.Int, error) {
	cfg, err := e.config(ctx)
	if err != nil {
		return nil, err
	}
	return e.GaugeWeightAt(ctx, addr, e.currentPeriod(cfg.PeriodSeconds))
}

// GaugeWeightAt returns the gauge's weight at an arbitrary period, past
// or future. Future projections assume no further votes.
func (e *Engine) GaugeWeightAt(ctx context.Context, addr string, period uint64) (*big.Int, error) {
	g, err := e.DB.GaugeByAddr(ctx, addr)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGaugeNotFound
	}
	return weightAt(ctx, &e.DB.Conn, store.GaugeSeries(addr), period)
}

// TotalWeight returns the aggregate weight at the current period.
func (e *Engine) TotalWeight(ctx context.Context) (*big.Int, error) {
	cfg, err := e.config(ctx)
	if err != nil {
		return nil, err
	}
	return e.TotalWeightAt(ctx, e.currentPeriod(cfg.PeriodSeconds))
}

// TotalWeightAt returns the aggregate weight at an arbitrary period.
func (e *Engine) TotalWeightAt(ctx context.Context, period uint64) (*big.Int, error) {
	return weightAt(ctx, &e.DB.Conn, store.TotalSeries, period)
}

// GaugeRelativeWeight returns the gauge's share of the aggregate at the
// current period as an 18-digit decimal in [0, 1].
func (e *Engine) GaugeRelativeWeight(ctx context.Context, addr string) (Dec, error) {
	cfg, err := e.config(ctx)
	if err != nil {
		return Dec{}, err
	}
	return e.GaugeRelativeWeightAt(ctx, addr, e.currentPeriod(cfg.PeriodSeconds))
}

// GaugeRelativeWeightAt is GaugeRelativeWeight at an arbitrary period.
// A zero aggregate has no meaningful shares and is ErrTotalWeightIsZero.
func (e *Engine) GaugeRelativeWeightAt(ctx context.Context, addr string, period uint64) (Dec, error) {
	total, err := e.TotalWeightAt(ctx, period)
	if err != nil {
		return Dec{}, err
	}
	if total.Sign() == 0 {
		return Dec{}, ErrTotalWeightIsZero
	}
	w, err := e.GaugeWeightAt(ctx, addr, period)
	if err != nil {
		return Dec{}, err
	}
	return DecFromRatio(w, total)
}

// GaugeCount returns the number of registered gauges.
func (e *Engine) GaugeCount(ctx context.Context) (uint64, error) {
	return e.DB.GaugeCount(ctx)
}

// GaugeAddr resolves a gauge's registration index to its address.
func (e *Engine) GaugeAddr(ctx context.Context, id uint64) (string, error) {
	g, err := e.DB.GaugeByID(ctx, id)
	if err != nil {
		return "", err
	}
	if g == nil {
		return "", ErrGaugeNotFound
	}
	return g.Addr, nil
}

// GaugeAddrs returns all gauge addresses in registration order.
func (e *Engine) GaugeAddrs(ctx context.Context) ([]string, error) {
	return e.DB.AllGaugeAddrs(ctx)
}

// Config returns the persisted controller configuration.
func (e *Engine) Config(ctx context.Context) (*store.ControllerConfig, error) {
	return e.config(ctx)
}

// VoterUsedRatio returns the basis points the voter has allocated across
// all gauges.
func (e *Engine) VoterUsedRatio(ctx context.Context, voter string) (uint64, error) {
	return e.DB.VoterRatio(ctx, voter)
}

// VoterVote returns the voter's live vote record on a gauge, or nil.
func (e *Engine) VoterVote(ctx context.Context, voter, addr string) (*store.VoteRecord, error) {
	return e.DB.Vote(ctx, voter, addr)
}
