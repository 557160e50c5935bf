// Package session holds isolated per-player simulation state.
//
// Each Session carries a single-writer token: mutating operations acquire it
// for their whole duration, including any generator I/O, so calls on the same
// session run one after another. Readers use Snapshot, which never waits for
// the token.
package session

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
)

// Session is one player's play-through.
type Session struct {
	id        string
	createdAt time.Time
	token     chan struct{}
	abandoned atomic.Bool
	rng       *rand.Rand // guarded by token

	mu         sync.RWMutex
	phase      Phase
	drawn      bool
	traits     []models.Trait
	budget     int
	allocation models.Allocation
	stats      models.Allocation
	highs      models.Allocation
	records    []models.YearRecord
}

func newSession(id string, rng *rand.Rand, now time.Time) *Session {
	return &Session{
		id:        id,
		createdAt: now,
		token:     make(chan struct{}, 1),
		rng:       rng,
	}
}

// ID returns the caller-supplied identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Acquire takes the session's writer token, waiting until it is free or ctx
// is done. The returned release func is idempotent.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	if s.abandoned.Load() {
		return nil, abandoned(s.id)
	}
	select {
	case s.token <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.abandoned.Load() {
		<-s.token
		return nil, abandoned(s.id)
	}
	var once sync.Once
	return func() { once.Do(func() { <-s.token }) }, nil
}

// Abandoned reports whether the session was removed from its store.
func (s *Session) Abandoned() bool { return s.abandoned.Load() }

// abandon marks the session removed. Taking mu orders it against every
// state change.
func (s *Session) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned.Store(true)
}

// Rand returns the session's random source. Callers must hold the token.
func (s *Session) Rand() *rand.Rand { return s.rng }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetTraits stores the drawn traits and the allocation budget they yield.
// Traits are drawn once per session.
func (s *Session) SetTraits(traits []models.Trait, budget int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned.Load() {
		return abandoned(s.id)
	}
	if s.phase != PhaseNew || s.drawn {
		return invalidState(s.id, "draw traits", s.phase)
	}
	s.traits = append([]models.Trait(nil), traits...)
	s.budget = budget
	s.drawn = true
	return nil
}

// Budget returns the allocation budget set with the traits.
func (s *Session) Budget() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.budget
}

// Allocate stores a validated allocation and moves the session to
// PhaseAllocated.
func (s *Session) Allocate(a models.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned.Load() {
		return abandoned(s.id)
	}
	if !s.drawn {
		return invalidState(s.id, "allocate", s.phase)
	}
	if err := transition(s.id, "allocate", s.phase, PhaseAllocated); err != nil {
		return err
	}
	if a == nil {
		a = models.Allocation{}
	}
	s.allocation = a.Clone()
	s.stats = a.Clone()
	s.highs = a.Clone()
	s.phase = PhaseAllocated
	return nil
}

// CheckAllocate reports whether an allocation may be stored.
func (s *Session) CheckAllocate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.drawn {
		return invalidState(s.id, "allocate", s.phase)
	}
	return transition(s.id, "allocate", s.phase, PhaseAllocated)
}

// Years returns the number of recorded years.
func (s *Session) Years() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// CheckAdvance reports whether a year may be appended.
func (s *Session) CheckAdvance() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transition(s.id, "advance", s.phase, PhaseRunning)
}

// Append records a generated year. Records on an abandoned session are
// discarded. A terminal record ends the session and freezes its records.
func (s *Session) Append(rec models.YearRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.abandoned.Load() {
		return abandoned(s.id)
	}

	next := PhaseRunning
	if rec.Terminal {
		next = PhaseTerminated
	}
	if err := transition(s.id, "advance", s.phase, next); err != nil {
		return err
	}
	if rec.Age < 0 || (len(s.records) > 0 && rec.Age <= s.records[len(s.records)-1].Age) {
		return apperrors.WithMetadata(apperrors.CodeInvalidState, "record age out of order",
			map[string]string{"session": s.id, "age": strconv.Itoa(rec.Age)})
	}

	rec = rec.Clone()
	if rec.Stats == nil {
		rec.Stats = s.stats.Clone()
	}
	for k, v := range rec.Stats {
		s.stats[k] = v
		if v > s.highs[k] {
			s.highs[k] = v
		}
	}
	s.records = append(s.records, rec)
	s.phase = next
	return nil
}

// Life builds the generator's view of the session with up to recent
// trailing records. Callers must hold the token.
func (s *Session) Life(recent int) models.LifeContext {
	s.mu.RLock()
	defer s.mu.RUnlock()

	age := -1
	if n := len(s.records); n > 0 {
		age = s.records[n-1].Age
	}
	start := max(len(s.records)-recent, 0)
	tail := make([]models.YearRecord, 0, len(s.records)-start)
	for _, r := range s.records[start:] {
		tail = append(tail, r.Clone())
	}
	return models.LifeContext{
		SessionID: s.id,
		Age:       age,
		Stats:     s.stats.Clone(),
		Traits:    append([]models.Trait(nil), s.traits...),
		Recent:    tail,
		Rand:      s.rng,
	}
}

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID         string
	Phase      Phase
	Traits     []models.Trait
	Budget     int
	Allocation models.Allocation
	Stats      models.Allocation
	Highs      models.Allocation
	Records    []models.YearRecord
}

// Age returns the age of the last record, or -1 before the first year.
func (s Snapshot) Age() int {
	if len(s.Records) == 0 {
		return -1
	}
	return s.Records[len(s.Records)-1].Age
}

// Snapshot copies the session state. It does not wait for the token.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.YearRecord, len(s.records))
	for i, r := range s.records {
		records[i] = r.Clone()
	}
	return Snapshot{
		ID:         s.id,
		Phase:      s.phase,
		Traits:     append([]models.Trait(nil), s.traits...),
		Budget:     s.budget,
		Allocation: s.allocation.Clone(),
		Stats:      s.stats.Clone(),
		Highs:      s.highs.Clone(),
		Records:    records,
	}
}

// AbandonedError reports that work on session id was discarded.
func AbandonedError(id string) error { return abandoned(id) }

func abandoned(id string) error {
	return apperrors.WithMetadata(apperrors.CodeSessionAbandoned, "session was abandoned",
		map[string]string{"session": id})
}
