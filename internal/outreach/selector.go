// Package outreach implements the call-a-representative workflow: picking a
// US House representative nobody has reached yet, and saving the four forms
// a volunteer fills in after calling.
package outreach

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"townhall/internal/civic"
	"townhall/internal/logging"
)

// Source is the read side of the store the workflow needs.
type Source interface {
	EligibleRepresentativeIDs(ctx context.Context) ([]int64, error)
	GetOfficial(ctx context.Context, id int64) (*civic.Official, error)
	ListContactAttempts(ctx context.Context, officialID int64) ([]civic.ContactAttempt, error)
}

// Selector draws an eligible representative uniformly at random.
type Selector struct {
	src Source

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector returns a selector drawing from rng. A nil rng is seeded from
// the clock.
func NewSelector(src Source, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{src: src, rng: rng}
}

// Pick returns a US House representative with no meetings and no contact
// attempts, or (nil, nil) when every representative has been covered.
func (s *Selector) Pick(ctx context.Context) (*civic.Official, error) {
	ids, err := s.src.EligibleRepresentativeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible representatives: %w", err)
	}
	if len(ids) == 0 {
		logging.OutreachDebug("No eligible representatives left")
		return nil, nil
	}

	s.mu.Lock()
	id := ids[s.rng.Intn(len(ids))]
	s.mu.Unlock()

	logging.OutreachDebug("Picked official %d of %d eligible", id, len(ids))
	o, err := s.src.GetOfficial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load representative %d: %w", id, err)
	}
	return o, nil
}
