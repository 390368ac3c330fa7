package engine

import (
	"context"
	"math/big"

	"github.com/gaugehub/gauged/internal/store"
)

const ratioDenom = 10000

// Vote commits ratio basis points of the voter's lock to a gauge. A
// re-vote replaces the pair's previous vote: the new contribution is
// applied first, then whatever remains of the old one is backed out, so
// a voter never transiently exceeds their whole lock. Ratio zero cancels
// the vote.
func (e *Engine) Vote(ctx context.Context, voter, addr string, ratio uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ratio > ratioDenom {
		return ErrInvalidVotingRatio
	}
	cfg, err := e.config(ctx)
	if err != nil {
		return err
	}
	g, err := e.DB.GaugeByAddr(ctx, addr)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGaugeNotFound
	}
	p := e.currentPeriod(cfg.PeriodSeconds)

	prior, err := e.DB.Vote(ctx, voter, addr)
	if err != nil {
		return err
	}
	var oldRatio uint64
	if prior != nil {
		oldRatio = prior.Ratio
		if p < prior.VotePeriod+cfg.VoteDelay {
			return ErrVoteTooOften
		}
	}
	used, err := e.DB.VoterRatio(ctx, voter)
	if err != nil {
		return err
	}
	if used-oldRatio+ratio > ratioDenom {
		return ErrInsufficientVotingRatio
	}

	unlock, err := e.Escrow.UnlockPeriod(ctx, voter)
	if err != nil {
		return err
	}
	if unlock <= p {
		return ErrLockExpiresTooSoon
	}
	full, err := e.Escrow.FullSlope(ctx, voter)
	if err != nil {
		return err
	}

	// The vote's slope is ratio/10000 of the voter's full lock slope.
	// If the whole remaining lifetime rounds to zero weight the slope is
	// dropped entirely so no dead schedule entry lingers at unlock.
	dt := unlock - p
	slope, err := DecFromRatio(
		new(big.Int).Mul(new(big.Int).SetUint64(ratio), full.Num),
		new(big.Int).Mul(big.NewInt(ratioDenom), full.Den),
	)
	if err != nil {
		return err
	}
	contribution, err := slope.MulPeriods(dt)
	if err != nil {
		return err
	}
	if contribution.Sign() == 0 {
		slope = ZeroDec()
	}

	series := store.GaugeSeries(addr)
	return e.DB.WithTx(ctx, func(tx *store.Tx) error {
		gp, err := catchUp(ctx, tx, series, p)
		if err != nil {
			return err
		}
		tp, err := catchUp(ctx, tx, store.TotalSeries, p)
		if err != nil {
			return err
		}

		if gp.bias, err = addBias(gp.bias, contribution); err != nil {
			return err
		}
		if gp.slope, err = gp.slope.Add(slope); err != nil {
			return err
		}
		if tp.bias, err = addBias(tp.bias, contribution); err != nil {
			return err
		}
		if tp.slope, err = tp.slope.Add(slope); err != nil {
			return err
		}
		if !slope.IsZero() {
			if err := bumpSchedule(ctx, tx, series, unlock, slope, false); err != nil {
				return err
			}
			if err := bumpSchedule(ctx, tx, store.TotalSeries, unlock, slope, false); err != nil {
				return err
			}
		}

		if prior != nil {
			if prior.UnlockPeriod > p {
				oldSlope, err := DecFromScaled(prior.Slope)
				if err != nil {
					return err
				}
				remaining, err := oldSlope.MulPeriods(prior.UnlockPeriod - p)
				if err != nil {
					return err
				}
				gp.bias = subBiasSat(gp.bias, remaining)
				gp.slope = gp.slope.SubSat(oldSlope)
				tp.bias = subBiasSat(tp.bias, remaining)
				tp.slope = tp.slope.SubSat(oldSlope)
				if !oldSlope.IsZero() {
					if err := bumpSchedule(ctx, tx, series, prior.UnlockPeriod, oldSlope, true); err != nil {
						return err
					}
					if err := bumpSchedule(ctx, tx, store.TotalSeries, prior.UnlockPeriod, oldSlope, true); err != nil {
						return err
					}
				}
			}
			used -= prior.Ratio
		}

		if err := tx.PutCheckpoint(ctx, encodePoint(series, *gp)); err != nil {
			return err
		}
		if err := tx.PutCheckpoint(ctx, encodePoint(store.TotalSeries, *tp)); err != nil {
			return err
		}
		if err := tx.PutVote(ctx, store.VoteRecord{
			Voter:        voter,
			Gauge:        addr,
			Slope:        slope.Scaled(),
			VotePeriod:   p,
			UnlockPeriod: unlock,
			Ratio:        ratio,
		}); err != nil {
			return err
		}
		return tx.PutVoterRatio(ctx, voter, used+ratio)
	})
}

// bumpSchedule adjusts the scheduled slope reduction at period by delta,
// subtracting when negate is set.
func bumpSchedule(ctx context.Context, tx *store.Tx, series string, period uint64, delta Dec, negate bool) error {
	raw, err := tx.ScheduleDelta(ctx, series, period)
	if err != nil {
		return err
	}
	cur := ZeroDec()
	if raw != "" {
		if cur, err = DecFromScaled(raw); err != nil {
			return err
		}
	}
	if negate {
		cur = cur.SubSat(delta)
	} else {
		if cur, err = cur.Add(delta); err != nil {
			return err
		}
	}
	return tx.PutScheduleDelta(ctx, series, period, cur.Scaled())
}
