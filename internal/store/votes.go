package store

import (
	"context"
	"database/sql"
	"fmt"
)

// VoteRecord is the single live vote of a (voter, gauge) pair. A re-vote
// overwrites it; records are never deleted.
type VoteRecord struct {
	Voter        string
	Gauge        string
	Slope        string
	VotePeriod   uint64
	UnlockPeriod uint64
	Ratio        uint64
}

// Vote returns the live vote record for (voter, gauge), or nil.
func (c *Conn) Vote(ctx context.Context, voter, gauge string) (*VoteRecord, error) {
	var v VoteRecord
	err := c.q.QueryRowContext(ctx, `
		SELECT voter, gauge, slope, vote_period, unlock_period, ratio
		FROM votes WHERE voter = ? AND gauge = ?
	`, voter, gauge).Scan(&v.Voter, &v.Gauge, &v.Slope, &v.VotePeriod, &v.UnlockPeriod, &v.Ratio)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vote %s/%s: %w", voter, gauge, err)
	}
	return &v, nil
}

// PutVote inserts or overwrites the vote record for its (voter, gauge).
func (c *Conn) PutVote(ctx context.Context, v VoteRecord) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO votes (voter, gauge, slope, vote_period, unlock_period, ratio)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (voter, gauge) DO UPDATE SET
			slope = excluded.slope,
			vote_period = excluded.vote_period,
			unlock_period = excluded.unlock_period,
			ratio = excluded.ratio
	`, v.Voter, v.Gauge, v.Slope, v.VotePeriod, v.UnlockPeriod, v.Ratio)
	if err != nil {
		return fmt.Errorf("put vote %s/%s: %w", v.Voter, v.Gauge, err)
	}
	return nil
}

// VoterRatio returns the voter's total allocated basis points.
func (c *Conn) VoterRatio(ctx context.Context, voter string) (uint64, error) {
	var used uint64
	err := c.q.QueryRowContext(ctx, `
		SELECT used FROM voter_ratios WHERE voter = ?
	`, voter).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("voter ratio %s: %w", voter, err)
	}
	return used, nil
}

// PutVoterRatio sets the voter's total allocated basis points.
func (c *Conn) PutVoterRatio(ctx context.Context, voter string, used uint64) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO voter_ratios (voter, used) VALUES (?, ?)
		ON CONFLICT (voter) DO UPDATE SET used = excluded.used
	`, voter, used)
	if err != nil {
		return fmt.Errorf("put voter ratio %s: %w", voter, err)
	}
	return nil
}

// SumVoteRatios returns the sum of the voter's live vote record ratios.
// It exists so tests can check it against the voter_ratios row.
func (c *Conn) SumVoteRatios(ctx context.Context, voter string) (uint64, error) {
	var sum uint64
	err := c.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ratio), 0) FROM votes WHERE voter = ?
	`, voter).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum vote ratios %s: %w", voter, err)
	}
	return sum, nil
}
