package escrow

import (
	"context"
	"fmt"

	"github.com/gaugehub/gauged/internal/config"
)

// Lock is one voter's lock state as held by a Static client.
type Lock struct {
	UnlockPeriod uint64
	Slope        Fraction
}

// Static serves lock state from a fixed in-memory table. It backs the
// "static" config provider for local runs and is the test double for the
// Client interface.
type Static struct {
	Locks map[string]Lock
	Calls []string // records voters queried
}

// NewStaticFromConfig builds a Static client from the config lock table.
func NewStaticFromConfig(locks map[string]config.EscrowLock) (*Static, error) {
	s := &Static{Locks: make(map[string]Lock, len(locks))}
	for voter, l := range locks {
		f, err := parseFraction(l.SlopeNum, l.SlopeDen)
		if err != nil {
			return nil, fmt.Errorf("static lock %s: %w", voter, err)
		}
		s.Locks[voter] = Lock{UnlockPeriod: l.UnlockPeriod, Slope: f}
	}
	return s, nil
}

// UnlockPeriod implements Client. Unknown voters have period 0, i.e. an
// already-expired lock.
func (s *Static) UnlockPeriod(ctx context.Context, voter string) (uint64, error) {
	s.Calls = append(s.Calls, voter)
	return s.Locks[voter].UnlockPeriod, nil
}

// FullSlope implements Client.
func (s *Static) FullSlope(ctx context.Context, voter string) (Fraction, error) {
	s.Calls = append(s.Calls, voter)
	l, ok := s.Locks[voter]
	if !ok {
		return parseFraction("0", "1")
	}
	return l.Slope, nil
}
