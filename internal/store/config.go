package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ControllerConfig is the persisted controller state: who may administer
// gauges, the token and escrow references, and the time parameters.
// PeriodSeconds is immutable once written; changing it would reinterpret
// every stored period index.
type ControllerConfig struct {
	Owner         string
	RewardToken   string
	EscrowAddr    string
	PeriodSeconds uint64
	VoteDelay     uint64
}

// Config returns the controller configuration, or nil if the controller
// has not been initialized.
func (c *Conn) Config(ctx context.Context) (*ControllerConfig, error) {
	var cfg ControllerConfig
	err := c.q.QueryRowContext(ctx, `
		SELECT owner, reward_token, escrow_addr, period_seconds, vote_delay
		FROM config WHERE id = 1
	`).Scan(&cfg.Owner, &cfg.RewardToken, &cfg.EscrowAddr, &cfg.PeriodSeconds, &cfg.VoteDelay)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// InsertConfig writes the initial controller configuration.
func (c *Conn) InsertConfig(ctx context.Context, cfg ControllerConfig) error {
	now := time.Now().UnixMilli()
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO config (id, owner, reward_token, escrow_addr, period_seconds, vote_delay, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`, cfg.Owner, cfg.RewardToken, cfg.EscrowAddr, cfg.PeriodSeconds, cfg.VoteDelay, now, now)
	if err != nil {
		return fmt.Errorf("insert config: %w", err)
	}
	return nil
}

// UpdateConfig overwrites the mutable controller configuration fields.
func (c *Conn) UpdateConfig(ctx context.Context, cfg ControllerConfig) error {
	now := time.Now().UnixMilli()
	_, err := c.q.ExecContext(ctx, `
		UPDATE config SET owner = ?, reward_token = ?, escrow_addr = ?, vote_delay = ?, updated_at = ?
		WHERE id = 1
	`, cfg.Owner, cfg.RewardToken, cfg.EscrowAddr, cfg.VoteDelay, now)
	if err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	return nil
}
