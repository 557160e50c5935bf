package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
)

func newRand() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }

func allocated(t *testing.T, st *Store, id string) *Session {
	t.Helper()
	s, err := st.Create(id, newRand())
	if err != nil {
		t.Fatalf("Create(%q) error = %v", id, err)
	}
	if err := s.SetTraits([]models.Trait{{ID: "1001", Name: "Lucky"}}, 20); err != nil {
		t.Fatalf("SetTraits() error = %v", err)
	}
	if err := s.Allocate(models.Allocation{"CHR": 3, "INT": 4, "STR": 4, "MNY": 4, "SPR": 5}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	return s
}

func TestStoreCreateRejectsLiveDuplicate(t *testing.T) {
	st := NewStore()
	if _, err := st.Create("p1", newRand()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := st.Create("p1", newRand())
	if !errors.Is(err, apperrors.ErrSessionExists) {
		t.Fatalf("second Create() error = %v, want SESSION_EXISTS", err)
	}
	if st.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", st.Len())
	}
}

func TestStoreCreateReplacesTerminated(t *testing.T) {
	st := NewStore()
	old := allocated(t, st, "p1")
	if err := old.Append(models.YearRecord{Age: 0, Terminal: true}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	fresh, err := st.Create("p1", newRand())
	if err != nil {
		t.Fatalf("Create() over terminated session error = %v", err)
	}
	if fresh == old {
		t.Fatal("expected a new session")
	}
	if got, _ := st.Get("p1"); got != fresh {
		t.Fatal("Get() did not return the replacement")
	}
}

func TestStoreGetAndRemove(t *testing.T) {
	st := NewStore()
	if _, err := st.Get("ghost"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("Get(ghost) error = %v, want SESSION_NOT_FOUND", err)
	}
	if _, err := st.Create("", newRand()); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Create(\"\") error = %v, want INVALID_STATE", err)
	}

	s := allocated(t, st, "p1")
	if err := st.Remove("p1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !s.Abandoned() {
		t.Fatal("removed session not marked abandoned")
	}
	if err := st.Remove("p1"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("second Remove() error = %v, want SESSION_NOT_FOUND", err)
	}
	if err := s.Append(models.YearRecord{Age: 0}); !errors.Is(err, apperrors.ErrSessionAbandoned) {
		t.Fatalf("Append() after Remove error = %v, want SESSION_ABANDONED", err)
	}
	if _, err := s.Acquire(context.Background()); !errors.Is(err, apperrors.ErrSessionAbandoned) {
		t.Fatalf("Acquire() after Remove error = %v, want SESSION_ABANDONED", err)
	}
}

func TestStoreStampsCreatedAt(t *testing.T) {
	st := NewStore()
	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	st.nowFunc = func() time.Time { return at }

	s, err := st.Create("p1", newRand())
	if err != nil {
		t.Fatal(err)
	}
	if !s.CreatedAt().Equal(at) {
		t.Errorf("CreatedAt() = %v, want %v", s.CreatedAt(), at)
	}
}

func TestStoreDiscardLeavesReplacement(t *testing.T) {
	st := NewStore()
	old, _ := st.Create("p1", newRand())
	if err := st.Remove("p1"); err != nil {
		t.Fatal(err)
	}
	fresh, _ := st.Create("p1", newRand())

	st.Discard(old)
	if got, err := st.Get("p1"); err != nil || got != fresh {
		t.Fatalf("Get() after discarding the old session = %v, %v, want the replacement", got, err)
	}

	st.Discard(fresh)
	if _, err := st.Get("p1"); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Fatalf("Get() after Discard error = %v, want SESSION_NOT_FOUND", err)
	}
	if !fresh.Abandoned() {
		t.Error("discarded session is not marked abandoned")
	}
}

func TestAbandonedSessionRejectsWrites(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *Session)
		write func(s *Session) error
	}{
		{
			name:  "set traits",
			setup: func(*Session) {},
			write: func(s *Session) error { return s.SetTraits(nil, 20) },
		},
		{
			name:  "allocate",
			setup: func(s *Session) { _ = s.SetTraits(nil, 20) },
			write: func(s *Session) error { return s.Allocate(models.Allocation{"SPR": 5}) },
		},
		{
			name: "append",
			setup: func(s *Session) {
				_ = s.SetTraits(nil, 20)
				_ = s.Allocate(models.Allocation{"SPR": 5})
			},
			write: func(s *Session) error { return s.Append(models.YearRecord{Age: 0}) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore()
			s, _ := st.Create("p1", newRand())
			tt.setup(s)
			before := s.Snapshot()

			if err := st.Remove("p1"); err != nil {
				t.Fatal(err)
			}
			if err := tt.write(s); !errors.Is(err, apperrors.ErrSessionAbandoned) {
				t.Fatalf("write after Remove error = %v, want SESSION_ABANDONED", err)
			}
			after := s.Snapshot()
			if after.Phase != before.Phase || len(after.Traits) != len(before.Traits) || len(after.Records) != len(before.Records) {
				t.Errorf("abandoned session changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestPhaseTransitions(t *testing.T) {
	st := NewStore()
	s, _ := st.Create("p1", newRand())

	if err := s.Allocate(models.Allocation{"SPR": 5}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Allocate() before traits error = %v, want INVALID_STATE", err)
	}
	if err := s.CheckAdvance(); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("CheckAdvance() in new phase error = %v, want INVALID_STATE", err)
	}
	if err := s.SetTraits(nil, 20); err != nil {
		t.Fatal(err)
	}
	if err := s.SetTraits(nil, 20); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("second SetTraits() error = %v, want INVALID_STATE", err)
	}
	if err := s.Allocate(models.Allocation{"SPR": 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.Allocate(models.Allocation{"SPR": 5}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("second Allocate() error = %v, want INVALID_STATE", err)
	}
	if s.Phase() != PhaseAllocated {
		t.Fatalf("Phase() = %s, want allocated", s.Phase())
	}
	if err := s.Append(models.YearRecord{Age: 0}); err != nil {
		t.Fatal(err)
	}
	if s.Phase() != PhaseRunning {
		t.Fatalf("Phase() = %s, want running", s.Phase())
	}
	if err := s.Append(models.YearRecord{Age: 1, Terminal: true}); err != nil {
		t.Fatal(err)
	}
	if s.Phase() != PhaseTerminated {
		t.Fatalf("Phase() = %s, want terminated", s.Phase())
	}

	err := s.Append(models.YearRecord{Age: 2})
	if !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Append() after end error = %v, want INVALID_STATE", err)
	}
	if n := len(s.Snapshot().Records); n != 2 {
		t.Fatalf("records after rejected append = %d, want 2", n)
	}
}

func TestAppendRejectsOutOfOrderAges(t *testing.T) {
	st := NewStore()
	s := allocated(t, st, "p1")
	if err := s.Append(models.YearRecord{Age: -1}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Append(age -1) error = %v, want INVALID_STATE", err)
	}
	_ = s.Append(models.YearRecord{Age: 0})
	_ = s.Append(models.YearRecord{Age: 1})
	if err := s.Append(models.YearRecord{Age: 1}); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("Append(repeated age) error = %v, want INVALID_STATE", err)
	}
	if s.Years() != 2 {
		t.Fatalf("Years() = %d, want 2", s.Years())
	}
}

func TestCheckAllocate(t *testing.T) {
	st := NewStore()
	s, _ := st.Create("p1", newRand())
	if err := s.CheckAllocate(); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("CheckAllocate() before traits error = %v", err)
	}
	_ = s.SetTraits(nil, 20)
	if err := s.CheckAllocate(); err != nil {
		t.Fatalf("CheckAllocate() error = %v", err)
	}
	_ = s.Allocate(models.Allocation{"SPR": 5})
	if err := s.CheckAllocate(); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("CheckAllocate() after allocate error = %v", err)
	}
}

func TestAppendTracksHighs(t *testing.T) {
	st := NewStore()
	s := allocated(t, st, "p1")

	years := []models.Allocation{
		{"CHR": 3, "INT": 9, "STR": 4, "MNY": 4, "SPR": 5},
		nil,
		{"CHR": 1, "INT": 2, "STR": 4, "MNY": 12, "SPR": 5},
	}
	for age, stats := range years {
		if err := s.Append(models.YearRecord{Age: age, Stats: stats}); err != nil {
			t.Fatal(err)
		}
	}

	snap := s.Snapshot()
	if snap.Age() != 2 {
		t.Fatalf("Age() = %d, want 2", snap.Age())
	}
	if snap.Highs["INT"] != 9 || snap.Highs["MNY"] != 12 || snap.Highs["CHR"] != 3 {
		t.Fatalf("Highs = %v", snap.Highs)
	}
	if snap.Stats["INT"] != 2 {
		t.Fatalf("Stats[INT] = %d, want 2", snap.Stats["INT"])
	}
	if snap.Records[1].Stats["INT"] != 9 {
		t.Fatalf("record without stats should carry previous stats, got %v", snap.Records[1].Stats)
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	st := NewStore()
	s := allocated(t, st, "p1")
	_ = s.Append(models.YearRecord{Age: 0, Content: []models.ContentItem{models.Plain("born")}})

	snap := s.Snapshot()
	snap.Records[0].Content[0].Description = "changed"
	snap.Stats["CHR"] = 99

	again := s.Snapshot()
	if again.Records[0].Content[0].Description != "born" {
		t.Fatal("snapshot shares record content with session")
	}
	if again.Stats["CHR"] == 99 {
		t.Fatal("snapshot shares stats with session")
	}
}

func TestLifeContextRecentWindow(t *testing.T) {
	st := NewStore()
	s := allocated(t, st, "p1")
	if got := s.Life(3).Age; got != -1 {
		t.Fatalf("Life().Age before first year = %d, want -1", got)
	}
	for age := range 5 {
		_ = s.Append(models.YearRecord{Age: age})
	}
	lc := s.Life(3)
	if lc.Age != 4 || len(lc.Recent) != 3 || lc.Recent[0].Age != 2 {
		t.Fatalf("Life(3) = age %d, recent %v", lc.Age, lc.Recent)
	}
	if lc.Rand != s.Rand() {
		t.Fatal("Life() should expose the session source")
	}
}

func TestAcquireSerializesWriters(t *testing.T) {
	st := NewStore()
	s := allocated(t, st, "p1")

	release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() while held error = %v, want deadline exceeded", err)
	}

	// Snapshot does not wait for the token.
	_ = s.Snapshot()

	release()
	release()

	var wg sync.WaitGroup
	var mu sync.Mutex
	active, peak := 0, 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := s.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			active++
			peak = max(peak, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			rel()
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Fatalf("peak concurrent holders = %d, want 1", peak)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseTerminated.String() != "terminated" || Phase(9).String() != "phase(9)" {
		t.Fatal("unexpected phase names")
	}
}
