// Package engine drives a life from a new game through allocation and the
// yearly loop to its graded summary. Sessions are isolated; each is stepped
// by an external year generator.
package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/tatianab/life-restart/internal/allocation"
	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/draw"
	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/events"
	"github.com/tatianab/life-restart/internal/logging"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/session"
	"github.com/tatianab/life-restart/internal/summary"
)

// YearGenerator produces the record for the year after lc.Age. It must not
// retain lc.Rand.
type YearGenerator interface {
	Next(ctx context.Context, lc models.LifeContext) (models.YearRecord, error)
}

// BonusSource supplies the accumulated metrics used by draw additions.
type BonusSource interface {
	Bonus(ctx context.Context) (draw.BonusContext, error)
}

// Recorder stores finished lives and returns their identifier.
type Recorder interface {
	RecordLife(ctx context.Context, life models.Life) (string, error)
}

// Options configure an Engine. Rules, Traits and Generator are required.
type Options struct {
	Rules     content.Rules
	Traits    []models.Trait
	Generator YearGenerator
	Store     *session.Store
	Bus       *events.Bus
	Bonus     BonusSource
	Recorder  Recorder
	Logger    *slog.Logger
	// Seed makes every session's source deterministic for its id when
	// non-zero.
	Seed uint64
}

// Engine runs games.
type Engine struct {
	rules    content.Rules
	limits   allocation.Limits
	pool     *draw.Pool
	summary  *summary.Builder
	gen      YearGenerator
	store    *session.Store
	bus      *events.Bus
	bonus    BonusSource
	recorder Recorder
	log      *slog.Logger
	seed     uint64
}

// New validates the options and builds an engine.
func New(opts Options) (*Engine, error) {
	if opts.Generator == nil {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "year generator is required")
	}
	if err := opts.Rules.Validate(); err != nil {
		return nil, err
	}
	pool, err := draw.NewPool(opts.Traits, opts.Rules.Traits.Rates, opts.Rules.Traits.Additions)
	if err != nil {
		return nil, err
	}
	if pool.Size() < opts.Rules.Traits.Pull {
		return nil, apperrors.WithMetadata(apperrors.CodeInsufficientPool, "trait pool smaller than pull count",
			map[string]string{"available": strconv.Itoa(pool.Size()), "requested": strconv.Itoa(opts.Rules.Traits.Pull)})
	}
	tables, err := opts.Rules.Grading()
	if err != nil {
		return nil, err
	}
	builder, err := summary.NewBuilder(tables, opts.Rules.Summary)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		rules:    opts.Rules,
		limits:   opts.Rules.Limits(),
		pool:     pool,
		summary:  builder,
		gen:      opts.Generator,
		store:    opts.Store,
		bus:      opts.Bus,
		bonus:    opts.Bonus,
		recorder: opts.Recorder,
		log:      opts.Logger,
		seed:     opts.Seed,
	}
	if e.store == nil {
		e.store = session.NewStore()
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	return e, nil
}

// Rules returns the engine's game rules.
func (e *Engine) Rules() content.Rules { return e.rules }

// Store returns the session store.
func (e *Engine) Store() *session.Store { return e.store }

// Game is the state handed to the player after a new game starts.
type Game struct {
	SessionID string
	Traits    []models.Trait
	Budget    int
	Defaults  models.Allocation
}

// NewGame creates a session for id and draws its traits.
func (e *Engine) NewGame(ctx context.Context, id string) (Game, error) {
	rng := e.newRand(id)
	s, err := e.store.Create(id, rng)
	if err != nil {
		return Game{}, err
	}
	release, err := s.Acquire(ctx)
	if err != nil {
		e.store.Discard(s)
		return Game{}, err
	}
	defer release()

	traits, err := e.drawTraits(ctx, rng)
	if err != nil {
		e.store.Discard(s)
		return Game{}, err
	}

	budget := e.rules.Budget
	for _, t := range traits {
		budget += t.Points
	}
	budget = max(budget, 0)
	if err := s.SetTraits(traits, budget); err != nil {
		if s.Abandoned() {
			e.log.Info("discarded traits for abandoned session", "session", id)
		}
		return Game{}, err
	}

	e.log.Info("new game", "session", id, "traits", traitNames(traits), "budget", budget, "live", e.store.Len())
	e.bus.Publish(events.Event{Kind: events.GameCreated, SessionID: id, Age: -1, Data: traits})

	return Game{
		SessionID: id,
		Traits:    traits,
		Budget:    budget,
		Defaults:  e.rules.Defaults(),
	}, nil
}

// drawTraits pulls candidates by weight and keeps a shuffled selection.
func (e *Engine) drawTraits(ctx context.Context, rng *rand.Rand) ([]models.Trait, error) {
	pulled, err := e.pool.Draw(rng, e.rules.Traits.Pull, e.bonusContext(ctx))
	if err != nil {
		return nil, err
	}
	rng.Shuffle(len(pulled), func(i, j int) { pulled[i], pulled[j] = pulled[j], pulled[i] })
	return pulled[:min(e.rules.Traits.Select, len(pulled))], nil
}

func (e *Engine) bonusContext(ctx context.Context) draw.BonusContext {
	if e.bonus == nil {
		return nil
	}
	bonus, err := e.bonus.Bonus(ctx)
	if err != nil {
		e.log.Warn("bonus context unavailable", "error", err)
		return nil
	}
	return bonus
}

// Allocate validates and stores the player's allocation. A rejected
// allocation leaves the session waiting for another attempt.
func (e *Engine) Allocate(ctx context.Context, id string, a models.Allocation) error {
	s, release, err := e.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if err := s.CheckAllocate(); err != nil {
		return err
	}
	if err := allocation.Validate(a, s.Budget(), e.limits); err != nil {
		e.log.Debug("allocation rejected", "session", id, "error", err)
		return err
	}
	return e.commitAllocation(s, a)
}

// AutoAllocate assigns a random valid allocation and stores it.
func (e *Engine) AutoAllocate(ctx context.Context, id string) (models.Allocation, error) {
	s, release, err := e.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.CheckAllocate(); err != nil {
		return nil, err
	}
	a, err := allocation.AutoAllocate(s.Rand(), s.Budget(), e.limits, e.rules.Fixed)
	if err != nil {
		e.log.Error("auto allocation failed", "session", id, "budget", s.Budget(), "error", err)
		if apperrors.CodeOf(err).Fatal() {
			e.evict(s)
		}
		return nil, err
	}
	if err := e.commitAllocation(s, a); err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (e *Engine) commitAllocation(s *session.Session, a models.Allocation) error {
	if err := s.Allocate(a); err != nil {
		return err
	}
	e.log.Info("stats allocated", "session", s.ID(), "allocation", a)
	e.bus.Publish(events.Event{Kind: events.StatsAllocated, SessionID: s.ID(), Age: -1, Data: a.Clone()})
	return nil
}

// Advance generates and records one year.
func (e *Engine) Advance(ctx context.Context, id string) (models.YearRecord, error) {
	s, release, err := e.acquire(ctx, id)
	if err != nil {
		return models.YearRecord{}, err
	}
	defer release()

	rec, err := e.advance(ctx, s)
	if err != nil {
		return models.YearRecord{}, err
	}
	return rec.Clone(), nil
}

// RunToCompletion advances until the life ends and returns its summary.
// A life still running after the configured number of years is an error.
func (e *Engine) RunToCompletion(ctx context.Context, id string) (models.Summary, error) {
	s, release, err := e.acquire(ctx, id)
	if err != nil {
		return models.Summary{}, err
	}
	defer release()

	if err := s.CheckAdvance(); err != nil {
		return models.Summary{}, err
	}
	for years := 1; ; years++ {
		rec, err := e.advance(ctx, s)
		if err != nil {
			return models.Summary{}, err
		}
		if years%10 == 0 {
			e.log.Debug("simulating", "session", id, "years", years, "age", rec.Age)
		}
		if rec.Terminal {
			break
		}
	}
	return e.summary.Build(s.Snapshot())
}

// advance runs one generator step. The caller holds the session token.
func (e *Engine) advance(ctx context.Context, s *session.Session) (models.YearRecord, error) {
	if err := s.CheckAdvance(); err != nil {
		return models.YearRecord{}, err
	}
	if n := s.Years(); n >= e.rules.MaxYears {
		err := apperrors.WithMetadata(apperrors.CodeYearCeiling, "life exceeded the year ceiling",
			map[string]string{"session": s.ID(), "max_years": strconv.Itoa(e.rules.MaxYears)})
		e.log.Error("year ceiling reached", "session", s.ID(), "years", n, "error", err)
		return models.YearRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.YearRecord{}, err
	}

	lc := s.Life(e.rules.RecentYears)
	rec, err := e.gen.Next(ctx, lc)
	if err != nil {
		return models.YearRecord{}, fmt.Errorf("generate age %d: %w", lc.Age+1, err)
	}
	if err := s.Append(rec); err != nil {
		if s.Abandoned() {
			e.log.Info("discarded year for abandoned session", "session", s.ID(), "age", rec.Age)
		}
		return models.YearRecord{}, err
	}
	if s.Abandoned() {
		e.log.Info("discarded year for abandoned session", "session", s.ID(), "age", rec.Age)
		return models.YearRecord{}, session.AbandonedError(s.ID())
	}

	e.log.Log(ctx, logging.LevelTrace, "year", "session", s.ID(), "age", rec.Age, "items", len(rec.Content), "end", rec.Terminal)
	e.bus.Publish(events.Event{Kind: events.YearAdvanced, SessionID: s.ID(), Age: rec.Age, Data: rec.Clone()})
	if rec.Terminal {
		e.finish(ctx, s)
	}
	return rec, nil
}

// finish reports a terminated life. Archive failures are logged and do not
// affect the session.
func (e *Engine) finish(ctx context.Context, s *session.Session) {
	snap := s.Snapshot()
	sum, err := e.summary.Build(snap)
	if err != nil {
		e.log.Error("build summary", "session", s.ID(), "error", err)
		return
	}

	life := lifeFrom(snap, sum)
	if e.recorder != nil {
		lifeID, err := e.recorder.RecordLife(ctx, life)
		if err != nil {
			e.log.Warn("archive life", "session", s.ID(), "error", err)
		} else {
			life.ID = lifeID
		}
	}

	attrs := []any{"session", s.ID(), "age", snap.Age(), "years", len(snap.Records), "elapsed", time.Since(s.CreatedAt())}
	if g, ok := sum.Get(summary.MetricTotal); ok {
		attrs = append(attrs, "total", g.Value, "grade", g.Grade)
	}
	e.log.Info("life ended", attrs...)
	e.bus.Publish(events.Event{Kind: events.LifeEnded, SessionID: s.ID(), Age: snap.Age(), Data: life})
}

// Records returns the recorded years. It does not wait for running steps.
func (e *Engine) Records(id string) ([]models.YearRecord, error) {
	s, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return s.Snapshot().Records, nil
}

// Summary grades a terminated session. It may be called repeatedly.
func (e *Engine) Summary(id string) (models.Summary, error) {
	s, err := e.store.Get(id)
	if err != nil {
		return models.Summary{}, err
	}
	return e.summary.Build(s.Snapshot())
}

// Life assembles a terminated session into a Life.
func (e *Engine) Life(id string) (models.Life, error) {
	s, err := e.store.Get(id)
	if err != nil {
		return models.Life{}, err
	}
	snap := s.Snapshot()
	sum, err := e.summary.Build(snap)
	if err != nil {
		return models.Life{}, err
	}
	return lifeFrom(snap, sum), nil
}

// Snapshot returns a copy of the session state.
func (e *Engine) Snapshot(id string) (session.Snapshot, error) {
	s, err := e.store.Get(id)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Abandon evicts a session in any phase. A step still running on it has its
// result discarded.
func (e *Engine) Abandon(id string) error {
	s, err := e.store.Get(id)
	if err != nil {
		return err
	}
	phase := s.Phase()
	if err := e.store.Remove(id); err != nil {
		return err
	}
	e.log.Info("session removed", "session", id, "phase", phase.String())
	e.bus.Publish(events.Event{Kind: events.SessionAbandoned, SessionID: id, Age: s.Snapshot().Age()})
	return nil
}

// evict drops a session after an error that ends it.
func (e *Engine) evict(s *session.Session) {
	e.store.Discard(s)
	e.log.Warn("session evicted", "session", s.ID())
	e.bus.Publish(events.Event{Kind: events.SessionAbandoned, SessionID: s.ID(), Age: s.Snapshot().Age()})
}

func (e *Engine) acquire(ctx context.Context, id string) (*session.Session, func(), error) {
	s, err := e.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	release, err := s.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, release, nil
}

func (e *Engine) newRand(id string) *rand.Rand {
	if e.seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return rand.New(rand.NewPCG(e.seed, h.Sum64()))
}

func lifeFrom(snap session.Snapshot, sum models.Summary) models.Life {
	return models.Life{
		SessionID:  snap.ID,
		Traits:     snap.Traits,
		Allocation: snap.Allocation,
		Records:    snap.Records,
		Summary:    sum,
	}
}

func traitNames(traits []models.Trait) []string {
	names := make([]string, len(traits))
	for i, t := range traits {
		names[i] = t.Name
	}
	return names
}
