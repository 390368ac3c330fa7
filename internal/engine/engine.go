package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gaugehub/gauged/internal/escrow"
	"github.com/gaugehub/gauged/internal/store"
)

// Engine owns the gauge-weight state machine. State-changing operations
// are serialized by a mutex and each runs in a single store transaction,
// so every call is atomic and sequential; read queries go straight to the
// store and never block behind writers.
type Engine struct {
	DB     *store.DB
	Escrow escrow.Client

	// Now is the clock; overridable in tests.
	Now func() time.Time

	mu sync.Mutex
}

// New creates an Engine over the given store and lock authority.
func New(db *store.DB, esc escrow.Client) *Engine {
	return &Engine{DB: db, Escrow: esc, Now: time.Now}
}

// Init writes the controller configuration and seeds the aggregate
// checkpoint series on first start. Subsequent starts verify the period
// duration matches the stored one and otherwise leave state alone.
func (e *Engine) Init(ctx context.Context, seed store.ControllerConfig) error {
	if seed.PeriodSeconds == 0 {
		return fmt.Errorf("period duration must be > 0")
	}
	existing, err := e.DB.Config(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.PeriodSeconds != seed.PeriodSeconds {
			return fmt.Errorf("stored period duration %ds does not match configured %ds",
				existing.PeriodSeconds, seed.PeriodSeconds)
		}
		return nil
	}
	if seed.Owner == "" {
		return fmt.Errorf("controller owner required for initialization")
	}
	p := e.currentPeriod(seed.PeriodSeconds)
	return e.DB.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertConfig(ctx, seed); err != nil {
			return err
		}
		return tx.PutCheckpoint(ctx, store.Checkpoint{
			Series: store.TotalSeries,
			Period: p,
			Bias:   "0",
			Slope:  ZeroDec().Scaled(),
		})
	})
}

func (e *Engine) currentPeriod(periodSeconds uint64) uint64 {
	return PeriodOf(uint64(e.Now().Unix()), periodSeconds)
}

func (e *Engine) config(ctx context.Context) (*store.ControllerConfig, error) {
	cfg, err := e.DB.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("controller not initialized")
	}
	return cfg, nil
}

func validWeight(w *big.Int) error {
	if w == nil || w.Sign() < 0 {
		return fmt.Errorf("weight must be non-negative")
	}
	if _, err := addBias(new(big.Int), w); err != nil {
		return err
	}
	return nil
}

// AddGauge registers addr with an initial weight, seeding its checkpoint
// series at the current period. Owner-only.
func (e *Engine) AddGauge(ctx context.Context, sender, addr string, weight *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.config(ctx)
	if err != nil {
		return err
	}
	if sender != cfg.Owner {
		return ErrUnauthorized
	}
	if addr == "" {
		return fmt.Errorf("gauge address required")
	}
	if err := validWeight(weight); err != nil {
		return err
	}
	existing, err := e.DB.GaugeByAddr(ctx, addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrGaugeAlreadyExists
	}

	p := e.currentPeriod(cfg.PeriodSeconds)
	return e.DB.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.InsertGauge(ctx, addr, p); err != nil {
			return err
		}
		if err := tx.PutCheckpoint(ctx, store.Checkpoint{
			Series: store.GaugeSeries(addr),
			Period: p,
			Bias:   weight.String(),
			Slope:  ZeroDec().Scaled(),
		}); err != nil {
			return err
		}
		total, err := catchUp(ctx, tx, store.TotalSeries, p)
		if err != nil {
			return err
		}
		total.bias, err = addBias(total.bias, weight)
		if err != nil {
			return err
		}
		return tx.PutCheckpoint(ctx, encodePoint(store.TotalSeries, *total))
	})
}

// ChangeGaugeWeight catches the gauge up to the current period and
// replaces its bias, preserving the accumulated slope. Owner-only.
func (e *Engine) ChangeGaugeWeight(ctx context.Context, sender, addr string, weight *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.config(ctx)
	if err != nil {
		return err
	}
	if sender != cfg.Owner {
		return ErrUnauthorized
	}
	if err := validWeight(weight); err != nil {
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
	return e.DB.WithTx(ctx, func(tx *store.Tx) error {
		gp, err := catchUp(ctx, tx, store.GaugeSeries(addr), p)
		if err != nil {
			return err
		}
		oldBias := gp.bias
		if err := tx.PutCheckpoint(ctx, store.Checkpoint{
			Series: store.GaugeSeries(addr),
			Period: p,
			Bias:   weight.String(),
			Slope:  gp.slope.Scaled(),
		}); err != nil {
			return err
		}
		total, err := catchUp(ctx, tx, store.TotalSeries, p)
		if err != nil {
			return err
		}
		total.bias = subBiasSat(total.bias, oldBias)
		total.bias, err = addBias(total.bias, weight)
		if err != nil {
			return err
		}
		return tx.PutCheckpoint(ctx, encodePoint(store.TotalSeries, *total))
	})
}

// ConfigUpdate carries the mutable controller fields; nil means keep.
type ConfigUpdate struct {
	Owner       *string
	RewardToken *string
	EscrowAddr  *string
	VoteDelay   *uint64
}

// UpdateConfig replaces controller references. Owner-only. The period
// duration is immutable: changing it would reinterpret stored periods.
func (e *Engine) UpdateConfig(ctx context.Context, sender string, upd ConfigUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.config(ctx)
	if err != nil {
		return err
	}
	if sender != cfg.Owner {
		return ErrUnauthorized
	}
	if upd.Owner != nil {
		cfg.Owner = *upd.Owner
	}
	if upd.RewardToken != nil {
		cfg.RewardToken = *upd.RewardToken
	}
	if upd.EscrowAddr != nil {
		cfg.EscrowAddr = *upd.EscrowAddr
	}
	if upd.VoteDelay != nil {
		cfg.VoteDelay = *upd.VoteDelay
	}
	return e.DB.WithTx(ctx, func(tx *store.Tx) error {
		return tx.UpdateConfig(ctx, *cfg)
	})
}

// Compact runs a mutating catch-up of every series to the current period
// so long-idle gauges don't pay the whole gap on their next query. Safe
// to run at any time; it changes no observable weight.
func (e *Engine) Compact(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, err := e.config(ctx)
	if err != nil {
		return err
	}
	p := e.currentPeriod(cfg.PeriodSeconds)
	addrs, err := e.DB.AllGaugeAddrs(ctx)
	if err != nil {
		return err
	}
	return e.DB.WithTx(ctx, func(tx *store.Tx) error {
		for _, addr := range addrs {
			if _, err := catchUp(ctx, tx, store.GaugeSeries(addr), p); err != nil {
				return err
			}
		}
		_, err := catchUp(ctx, tx, store.TotalSeries, p)
		return err
	})
}
