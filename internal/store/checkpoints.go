package store

import (
	"context"
	"database/sql"
	"fmt"
)

// TotalSeries is the key of the aggregate checkpoint series. Gauge series
// use the "gauge:" prefix so an address can never collide with it.
const TotalSeries = "total"

// GaugeSeries returns the checkpoint series key for a gauge address.
func GaugeSeries(addr string) string {
	return "gauge:" + addr
}

// Checkpoint is one persisted (period, bias, slope) point of a series.
// Bias and slope are decimal strings; the engine owns their arithmetic.
type Checkpoint struct {
	Series string
	Period uint64
	Bias   string
	Slope  string
}

// LastCheckpoint returns the latest checkpoint of the series with
// period <= atOrBefore, or nil if the series has none there.
func (c *Conn) LastCheckpoint(ctx context.Context, series string, atOrBefore uint64) (*Checkpoint, error) {
	var cp Checkpoint
	err := c.q.QueryRowContext(ctx, `
		SELECT series, period, bias, slope FROM checkpoints
		WHERE series = ? AND period <= ?
		ORDER BY period DESC LIMIT 1
	`, series, atOrBefore).Scan(&cp.Series, &cp.Period, &cp.Bias, &cp.Slope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last checkpoint %s: %w", series, err)
	}
	return &cp, nil
}

// LatestCheckpoint returns the newest checkpoint of the series regardless
// of period, or nil if the series is uninitialized.
func (c *Conn) LatestCheckpoint(ctx context.Context, series string) (*Checkpoint, error) {
	var cp Checkpoint
	err := c.q.QueryRowContext(ctx, `
		SELECT series, period, bias, slope FROM checkpoints
		WHERE series = ?
		ORDER BY period DESC LIMIT 1
	`, series).Scan(&cp.Series, &cp.Period, &cp.Bias, &cp.Slope)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest checkpoint %s: %w", series, err)
	}
	return &cp, nil
}

// PutCheckpoint inserts or overwrites the checkpoint at its period.
// Series history only ever grows; an overwrite happens when several
// mutations land in the same period.
func (c *Conn) PutCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO checkpoints (series, period, bias, slope) VALUES (?, ?, ?, ?)
		ON CONFLICT (series, period) DO UPDATE SET bias = excluded.bias, slope = excluded.slope
	`, cp.Series, cp.Period, cp.Bias, cp.Slope)
	if err != nil {
		return fmt.Errorf("put checkpoint %s@%d: %w", cp.Series, cp.Period, err)
	}
	return nil
}
