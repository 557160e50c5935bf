package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tatianab/life-restart/internal/allocation"
	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/engine"
	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
)

type fakeGame struct {
	rules     content.Rules
	allocated models.Allocation
	abandoned []string
}

func (f *fakeGame) NewGame(_ context.Context, id string) (engine.Game, error) {
	return engine.Game{
		SessionID: id,
		Traits:    []models.Trait{{ID: "1001", Name: "Lucky", Description: "Things go your way."}},
		Budget:    20,
		Defaults:  f.rules.Defaults(),
	}, nil
}

func (f *fakeGame) Allocate(_ context.Context, _ string, a models.Allocation) error {
	f.allocated = a
	return nil
}

func (f *fakeGame) AutoAllocate(context.Context, string) (models.Allocation, error) {
	return models.Allocation{"CHR": 4, "INT": 4, "STR": 4, "MNY": 4, "SPR": 4}, nil
}

func (f *fakeGame) Advance(context.Context, string) (models.YearRecord, error) {
	return models.YearRecord{}, nil
}

func (f *fakeGame) Life(id string) (models.Life, error) {
	return models.Life{SessionID: id}, nil
}

func (f *fakeGame) Abandon(id string) error {
	f.abandoned = append(f.abandoned, id)
	return nil
}

func (f *fakeGame) Rules() content.Rules { return f.rules }

func newTestModel(t *testing.T) (model, *fakeGame) {
	t.Helper()
	l := content.NewLoader("")
	b, err := content.Load(l, "en")
	if err != nil {
		t.Fatalf("content.Load() error = %v", err)
	}
	game := &fakeGame{rules: b.Rules}
	m := NewModel(game, b.Strings, models.Saves{Dir: t.TempDir()})
	m.newID = func() string { return "life-1" }
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, game
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func started(t *testing.T) (model, *fakeGame) {
	t.Helper()
	m, game := newTestModel(t)
	g, _ := game.NewGame(context.Background(), "life-1")
	return update(t, m, gameStartedMsg{g}), game
}

func TestGameStarted(t *testing.T) {
	m, _ := started(t)

	if m.state != stateAllocating {
		t.Fatalf("state = %v, want stateAllocating", m.state)
	}
	if !strings.Contains(m.gameLog, "Lucky") {
		t.Errorf("log does not list the drawn trait:\n%s", m.gameLog)
	}
	if m.stats["SPR"] != 5 {
		t.Errorf("stats = %v, want the fixed defaults", m.stats)
	}
}

func TestEnterParsesAllocation(t *testing.T) {
	m, game := started(t)

	m.textInput.SetValue("4 4 x 4 4")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if cmd != nil || m.notice == "" {
		t.Fatalf("bad input: cmd = %v, notice = %q", cmd, m.notice)
	}

	m.textInput.SetValue("3 4 5 4 4")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if cmd == nil || m.notice != "" {
		t.Fatalf("good input: cmd = %v, notice = %q", cmd, m.notice)
	}
	msg := cmd()
	if _, ok := msg.(allocatedMsg); !ok {
		t.Fatalf("cmd() = %T, want allocatedMsg", msg)
	}
	if game.allocated["STR"] != 5 {
		t.Errorf("allocated = %v", game.allocated)
	}
}

func TestAllocationRejected(t *testing.T) {
	m, _ := started(t)

	err := &allocation.ValidationError{Rule: allocation.RuleBudgetMismatch, Expected: 20, Actual: 19}
	m = update(t, m, allocatedMsg{id: "life-1", err: err})

	if m.state != stateAllocating {
		t.Errorf("state = %v, want stateAllocating", m.state)
	}
	if m.notice == "" {
		t.Error("notice is empty")
	}

	m = update(t, m, allocatedMsg{id: "life-1", err: apperrors.New(apperrors.CodeSessionNotFound, "gone")})
	if m.state != stateError {
		t.Errorf("state = %v, want stateError", m.state)
	}
}

func TestYearsAndEnd(t *testing.T) {
	m, _ := started(t)

	next, cmd := m.Update(allocatedMsg{id: "life-1", allocation: models.Allocation{"CHR": 4, "INT": 4, "STR": 4, "MNY": 4, "SPR": 4}})
	m = next.(model)
	if m.state != statePlaying || cmd == nil {
		t.Fatalf("after allocation: state = %v, cmd = %v", m.state, cmd)
	}

	rec := models.YearRecord{Age: 0, Stats: models.Allocation{"STR": 6}, Content: []models.ContentItem{{Kind: models.KindEvent, Description: "You were born."}}}
	m = update(t, m, yearMsg{id: "life-1", record: rec})
	if m.stats["STR"] != 6 || !strings.Contains(m.gameLog, "You were born.") {
		t.Errorf("year not shown: stats = %v", m.stats)
	}

	m = update(t, m, yearMsg{id: "older-life", err: apperrors.ErrSessionAbandoned})
	if m.state != statePlaying {
		t.Errorf("stale message changed state to %v", m.state)
	}

	sum := models.Summary{Grades: []models.Grade{{Metric: "SUM", Value: 59, Grade: 0, Label: "Unremarkable"}}}
	m = update(t, m, lifeEndedMsg{models.Life{SessionID: "life-1", Summary: sum}})
	if m.state != stateEnded {
		t.Fatalf("state = %v, want stateEnded", m.state)
	}
	if !strings.Contains(m.View(), "SUMMARY") {
		t.Error("view does not show the summary")
	}
}

func TestRestartAbandonsLife(t *testing.T) {
	m, game := started(t)

	m.textInput.SetValue("/restart")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)

	if len(game.abandoned) != 1 || game.abandoned[0] != "life-1" {
		t.Errorf("abandoned = %v, want [life-1]", game.abandoned)
	}
	if m.state != stateLoading || m.gameLog != "" {
		t.Errorf("state = %v, log = %q after restart", m.state, m.gameLog)
	}
	if cmd == nil {
		t.Fatal("restart returned no command")
	}
	if _, ok := cmd().(gameStartedMsg); !ok {
		t.Error("restart does not start a new game")
	}
}

func TestFatalErrorAbandonsLife(t *testing.T) {
	tests := []struct {
		name string
		msg  func(id string) tea.Msg
	}{
		{
			name: "unallocatable budget",
			msg: func(id string) tea.Msg {
				return allocatedMsg{id: id, err: apperrors.New(apperrors.CodeUnallocatableBudget, "budget cannot be allocated")}
			},
		},
		{
			name: "year ceiling",
			msg: func(id string) tea.Msg {
				return yearMsg{id: id, err: apperrors.New(apperrors.CodeYearCeiling, "life exceeded the year ceiling")}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, game := started(t)
			m = update(t, m, tt.msg("life-1"))

			if m.state != stateError {
				t.Errorf("state = %v, want stateError", m.state)
			}
			if len(game.abandoned) != 1 || game.abandoned[0] != "life-1" {
				t.Errorf("abandoned = %v, want [life-1]", game.abandoned)
			}
		})
	}
}

func TestRecoverableErrorKeepsLife(t *testing.T) {
	m, game := started(t)
	m = update(t, m, yearMsg{id: "life-1", err: context.DeadlineExceeded})

	if m.state != stateError {
		t.Errorf("state = %v, want stateError", m.state)
	}
	if len(game.abandoned) != 0 {
		t.Errorf("abandoned = %v, want none", game.abandoned)
	}
}
