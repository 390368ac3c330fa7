package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SlopeChange is a future slope reduction scheduled at a period. Deltas
// are additive across voters; the engine adds on vote and subtracts on
// cancellation.
type SlopeChange struct {
	Series string
	Period uint64
	Delta  string
}

// ScheduleDeltas returns the slope changes of the series with
// after < period <= through, in ascending period order.
func (c *Conn) ScheduleDeltas(ctx context.Context, series string, after, through uint64) ([]SlopeChange, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT series, period, delta FROM slope_changes
		WHERE series = ? AND period > ? AND period <= ?
		ORDER BY period ASC
	`, series, after, through)
	if err != nil {
		return nil, fmt.Errorf("schedule deltas %s: %w", series, err)
	}
	defer rows.Close()

	var out []SlopeChange
	for rows.Next() {
		var sc SlopeChange
		if err := rows.Scan(&sc.Series, &sc.Period, &sc.Delta); err != nil {
			return nil, fmt.Errorf("scan slope change: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ScheduleDelta returns the delta recorded at exactly one period, or ""
// if absent.
func (c *Conn) ScheduleDelta(ctx context.Context, series string, period uint64) (string, error) {
	var delta string
	err := c.q.QueryRowContext(ctx, `
		SELECT delta FROM slope_changes WHERE series = ? AND period = ?
	`, series, period).Scan(&delta)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("schedule delta %s@%d: %w", series, period, err)
	}
	return delta, nil
}

// PutScheduleDelta inserts or replaces the delta at a period.
func (c *Conn) PutScheduleDelta(ctx context.Context, series string, period uint64, delta string) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO slope_changes (series, period, delta) VALUES (?, ?, ?)
		ON CONFLICT (series, period) DO UPDATE SET delta = excluded.delta
	`, series, period, delta)
	if err != nil {
		return fmt.Errorf("put slope change %s@%d: %w", series, period, err)
	}
	return nil
}
