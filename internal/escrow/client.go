// Package escrow talks to the voting-escrow service that knows each
// voter's lock. The gauge engine only needs two facts per voter: the
// period the lock expires, and the voter's undiluted decay slope as an
// exact fraction.
package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gaugehub/gauged/internal/config"
)

// Fraction is an exact rational slope: Num/Den weight units per period.
type Fraction struct {
	Num *big.Int
	Den *big.Int
}

// Client is the interface for lock-authority providers.
type Client interface {
	// UnlockPeriod returns the period at which the voter's lock expires.
	UnlockPeriod(ctx context.Context, voter string) (uint64, error)
	// FullSlope returns the voter's maximum decay slope as an exact fraction.
	FullSlope(ctx context.Context, voter string) (Fraction, error)
}

// NewClient creates an escrow client based on the config provider setting.
func NewClient(cfg config.EscrowConfig) (Client, error) {
	switch cfg.Provider {
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http escrow provider requires a url")
		}
		return NewHTTP(cfg.URL), nil
	case "static":
		return NewStaticFromConfig(cfg.Locks)
	default:
		return nil, fmt.Errorf("unknown escrow provider: %q", cfg.Provider)
	}
}

// HTTP fetches lock state from a voting-escrow HTTP service.
type HTTP struct {
	http    *http.Client
	baseURL string
}

// NewHTTP creates an HTTP escrow client for the given base URL.
func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		http:    &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
	}
}

type lockResponse struct {
	UnlockPeriod uint64 `json:"unlock_period"`
	SlopeNum     string `json:"slope_num"`
	SlopeDen     string `json:"slope_den"`
}

func (h *HTTP) lock(ctx context.Context, voter string) (*lockResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/v1/locks/"+voter, nil)
	if err != nil {
		return nil, fmt.Errorf("build lock request: %w", err)
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch lock for %s: %w", voter, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch lock for %s: status %d", voter, resp.StatusCode)
	}
	var lr lockResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("decode lock for %s: %w", voter, err)
	}
	return &lr, nil
}

// UnlockPeriod implements Client.
func (h *HTTP) UnlockPeriod(ctx context.Context, voter string) (uint64, error) {
	lr, err := h.lock(ctx, voter)
	if err != nil {
		return 0, err
	}
	return lr.UnlockPeriod, nil
}

// FullSlope implements Client.
func (h *HTTP) FullSlope(ctx context.Context, voter string) (Fraction, error) {
	lr, err := h.lock(ctx, voter)
	if err != nil {
		return Fraction{}, err
	}
	return parseFraction(lr.SlopeNum, lr.SlopeDen)
}

func parseFraction(num, den string) (Fraction, error) {
	n, ok := new(big.Int).SetString(num, 10)
	if !ok || n.Sign() < 0 {
		return Fraction{}, fmt.Errorf("bad slope numerator %q", num)
	}
	d, ok := new(big.Int).SetString(den, 10)
	if !ok || d.Sign() <= 0 {
		return Fraction{}, fmt.Errorf("bad slope denominator %q", den)
	}
	return Fraction{Num: n, Den: d}, nil
}
