package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Gauge is one row of the append-only gauge registry. Ids are assigned
// sequentially at registration and never reused.
type Gauge struct {
	ID            uint64
	Addr          string
	CreatedPeriod uint64
}

// GaugeCount returns the number of registered gauges.
func (c *Conn) GaugeCount(ctx context.Context) (uint64, error) {
	var n uint64
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM gauges").Scan(&n); err != nil {
		return 0, fmt.Errorf("gauge count: %w", err)
	}
	return n, nil
}

// GaugeByAddr returns the gauge registered at addr, or nil.
func (c *Conn) GaugeByAddr(ctx context.Context, addr string) (*Gauge, error) {
	var g Gauge
	err := c.q.QueryRowContext(ctx, `
		SELECT id, addr, created_period FROM gauges WHERE addr = ?
	`, addr).Scan(&g.ID, &g.Addr, &g.CreatedPeriod)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gauge by addr %s: %w", addr, err)
	}
	return &g, nil
}

// GaugeByID returns the gauge with the given sequential id, or nil.
func (c *Conn) GaugeByID(ctx context.Context, id uint64) (*Gauge, error) {
	var g Gauge
	err := c.q.QueryRowContext(ctx, `
		SELECT id, addr, created_period FROM gauges WHERE id = ?
	`, id).Scan(&g.ID, &g.Addr, &g.CreatedPeriod)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gauge by id %d: %w", id, err)
	}
	return &g, nil
}

// InsertGauge registers addr under the next sequential id and returns it.
func (c *Conn) InsertGauge(ctx context.Context, addr string, createdPeriod uint64) (uint64, error) {
	var next uint64
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM gauges").Scan(&next); err != nil {
		return 0, fmt.Errorf("next gauge id: %w", err)
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO gauges (id, addr, created_period) VALUES (?, ?, ?)
	`, next, addr, createdPeriod)
	if err != nil {
		return 0, fmt.Errorf("insert gauge %s: %w", addr, err)
	}
	return next, nil
}

// AllGaugeAddrs returns every registered address in registration order.
func (c *Conn) AllGaugeAddrs(ctx context.Context) ([]string, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT addr FROM gauges ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("all gauge addrs: %w", err)
	}
	defer rows.Close()

	var addrs []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan gauge addr: %w", err)
		}
		addrs = append(addrs, a)
	}
	return addrs, rows.Err()
}
