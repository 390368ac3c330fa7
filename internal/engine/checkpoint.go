package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gaugehub/gauged/internal/store"
)

// reader is the store surface the decay math needs. Both *store.DB and
// *store.Tx satisfy it, so projections run against either.
type reader interface {
	LastCheckpoint(ctx context.Context, series string, atOrBefore uint64) (*store.Checkpoint, error)
	LatestCheckpoint(ctx context.Context, series string) (*store.Checkpoint, error)
	ScheduleDeltas(ctx context.Context, series string, after, through uint64) ([]store.SlopeChange, error)
}

// point is one decoded checkpoint: the decaying weight function at a
// period. bias decreases by slope per elapsed period, floored at zero.
type point struct {
	period uint64
	bias   *big.Int
	slope  Dec
}

func decodePoint(cp *store.Checkpoint) (point, error) {
	bias, err := ParseBias(cp.Bias)
	if err != nil {
		return point{}, fmt.Errorf("checkpoint %s@%d: %w", cp.Series, cp.Period, err)
	}
	slope, err := DecFromScaled(cp.Slope)
	if err != nil {
		return point{}, fmt.Errorf("checkpoint %s@%d: %w", cp.Series, cp.Period, err)
	}
	return point{period: cp.Period, bias: bias, slope: slope}, nil
}

func encodePoint(series string, p point) store.Checkpoint {
	return store.Checkpoint{Series: series, Period: p.period, Bias: p.bias.String(), Slope: p.slope.Scaled()}
}

// advance walks the series from its last checkpoint at or before target
// up to target, honoring every scheduled slope reduction in period order.
// Decay across a gap is computed in closed form per segment, so the work
// is bounded by the number of schedule entries in range no matter how
// long the series sat idle. The returned slice holds the points at each
// crossed schedule period plus the final point at target; it is nil when
// the series already had a checkpoint at target or has none at all.
func advance(ctx context.Context, r reader, series string, target uint64) (*point, []point, error) {
	last, err := r.LastCheckpoint(ctx, series, target)
	if err != nil {
		return nil, nil, err
	}
	if last == nil {
		return nil, nil, nil
	}
	cur, err := decodePoint(last)
	if err != nil {
		return nil, nil, err
	}
	if cur.period == target {
		return &cur, nil, nil
	}

	deltas, err := r.ScheduleDeltas(ctx, series, cur.period, target)
	if err != nil {
		return nil, nil, err
	}

	var crossed []point
	for _, sc := range deltas {
		if err := decayTo(&cur, sc.Period); err != nil {
			return nil, nil, err
		}
		delta, err := DecFromScaled(sc.Delta)
		if err != nil {
			return nil, nil, fmt.Errorf("slope change %s@%d: %w", series, sc.Period, err)
		}
		cur.slope = cur.slope.SubSat(delta)
		crossed = append(crossed, cur)
	}
	if err := decayTo(&cur, target); err != nil {
		return nil, nil, err
	}
	if len(crossed) == 0 || crossed[len(crossed)-1].period != target {
		crossed = append(crossed, cur)
	} else {
		crossed[len(crossed)-1] = cur
	}
	return &cur, crossed, nil
}

// decayTo moves p forward to period, consuming bias at the current slope.
func decayTo(p *point, period uint64) error {
	n := period - p.period
	if n == 0 {
		return nil
	}
	dec, err := p.slope.MulPeriods(n)
	if err != nil {
		return err
	}
	p.bias = subBiasSat(p.bias, dec)
	p.period = period
	return nil
}

// catchUp is the mutating form of advance: it persists every crossed
// point and the final point at target, and rejects targets behind the
// series head. Returns nil when the series is uninitialized.
func catchUp(ctx context.Context, tx *store.Tx, series string, target uint64) (*point, error) {
	head, err := tx.LatestCheckpoint(ctx, series)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, nil
	}
	if head.Period > target {
		return nil, fmt.Errorf("series %s at period %d, target %d: %w", series, head.Period, target, ErrTimestampError)
	}
	final, crossed, err := advance(ctx, tx, series, target)
	if err != nil {
		return nil, err
	}
	for _, p := range crossed {
		if err := tx.PutCheckpoint(ctx, encodePoint(series, p)); err != nil {
			return nil, err
		}
	}
	return final, nil
}

// weightAt projects the series weight at a period without writing.
// Uninitialized series (or periods before the first checkpoint) weigh
// zero.
func weightAt(ctx context.Context, r reader, series string, period uint64) (*big.Int, error) {
	final, _, err := advance(ctx, r, series, period)
	if err != nil {
		return nil, err
	}
	if final == nil {
		return new(big.Int), nil
	}
	return final.bias, nil
}
