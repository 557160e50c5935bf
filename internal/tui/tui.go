package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/tatianab/life-restart/internal/allocation"
	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/engine"
	apperrors "github.com/tatianab/life-restart/internal/errors"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/render"
)

type sessionState int

const (
	stateLoading sessionState = iota
	stateAllocating
	statePlaying
	stateEnded
	stateError
)

// Game is the part of the engine the interface drives.
type Game interface {
	NewGame(ctx context.Context, id string) (engine.Game, error)
	Allocate(ctx context.Context, id string, a models.Allocation) error
	AutoAllocate(ctx context.Context, id string) (models.Allocation, error)
	Advance(ctx context.Context, id string) (models.YearRecord, error)
	Life(id string) (models.Life, error)
	Abandon(id string) error
	Rules() content.Rules
}

type model struct {
	state     sessionState
	game      Game
	strings   *content.Strings
	saves     models.Saves
	current   engine.Game
	stats     models.Allocation
	summary   models.Summary
	textInput textinput.Model
	viewport  viewport.Model
	err       error
	notice    string
	gameLog   string
	width     int
	height    int
	newID     func() string
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)
)

const allocatePlaceholder = "CHR INT STR MNY SPR, or 'random'..."

func NewModel(game Game, strs *content.Strings, saves models.Saves) model {
	ti := textinput.New()
	ti.Placeholder = allocatePlaceholder
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	return model{
		state:     stateLoading,
		game:      game,
		strings:   strs,
		saves:     saves,
		textInput: ti,
		newID:     uuid.NewString,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.newGame())
}

type gameStartedMsg struct {
	game engine.Game
}

type allocatedMsg struct {
	id         string
	allocation models.Allocation
	err        error
}

type yearMsg struct {
	id     string
	record models.YearRecord
	err    error
}

type lifeEndedMsg struct {
	life models.Life
}

type errMsg struct {
	err error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.abandon()
			return m, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textInput.Value())
			m.textInput.Reset()

			switch input {
			case "/quit":
				m.abandon()
				return m, tea.Quit
			case "/restart":
				m.abandon()
				m.reset()
				return m, m.newGame()
			}

			if m.state != stateAllocating {
				return m, nil
			}
			m.notice = ""
			if input == "" || strings.EqualFold(input, "random") {
				m.appendLog(userStyle.Width(m.logWidth()).Render("> random"))
				return m, m.autoAllocate()
			}
			a, err := allocation.Parse(strings.Fields(input))
			if err != nil {
				m.notice = err.Error()
				return m, nil
			}
			m.appendLog(userStyle.Width(m.logWidth()).Render("> " + input))
			return m, m.allocate(a)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = msg.Height - 6
		m.viewport.SetContent(m.renderLog())

	case gameStartedMsg:
		m.current = msg.game
		m.stats = msg.game.Defaults.Clone()
		m.state = stateAllocating
		if m.viewport.Width == 0 {
			m.viewport = viewport.New(m.logWidth(), max(m.height-6, 1))
		}
		var b strings.Builder
		for _, t := range msg.game.Traits {
			b.WriteString("- " + render.Trait(t) + "\n")
		}
		b.WriteString("\n" + render.Guide(m.strings, m.game.Rules()))
		m.appendLog(gameStyle.Width(m.logWidth()).Render(b.String()))
		m.textInput.Placeholder = allocatePlaceholder
		return m, nil

	case allocatedMsg:
		if msg.id != m.current.SessionID {
			return m, nil
		}
		if msg.err != nil {
			if errors.Is(msg.err, apperrors.ErrAllocationInvalid) {
				m.notice = msg.err.Error()
				return m, nil
			}
			return m.fail(msg.err)
		}
		m.stats = msg.allocation.Clone()
		m.state = statePlaying
		m.appendLog(gameStyle.Width(m.logWidth()).Render(render.Allocation(m.strings, msg.allocation, m.current.Budget)))
		return m, m.advance()

	case yearMsg:
		if msg.id != m.current.SessionID {
			return m, nil
		}
		if msg.err != nil {
			return m.fail(msg.err)
		}
		m.stats = msg.record.Stats.Clone()
		m.appendLog(gameStyle.Width(m.logWidth()).Render(render.Record(m.strings, msg.record)))
		if msg.record.Terminal {
			return m, m.endLife()
		}
		return m, m.advance()

	case lifeEndedMsg:
		if msg.life.SessionID != m.current.SessionID {
			return m, nil
		}
		m.summary = msg.life.Summary
		m.state = stateEnded
		m.textInput.Placeholder = "/restart or /quit"
		return m, nil

	case errMsg:
		return m.fail(msg.err)
	}

	if m.state != stateError {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateLoading:
		s = "\n  Drawing your traits... please wait.\n"

	case stateAllocating, statePlaying, stateEnded:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderState(),
		)

		help := helpStyle.Render("Commands: /restart, /quit")
		if m.state == stateAllocating {
			help = helpStyle.Render("Type five values or 'random'. Commands: /restart, /quit")
		}
		parts := []string{mainView, "\n" + m.textInput.View()}
		if m.notice != "" {
			parts = append(parts, noticeStyle.Render(m.notice))
		}
		parts = append(parts, "\n"+help)
		s = lipgloss.JoinVertical(lipgloss.Left, parts...)

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) renderState() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("STATS") + "\n")
	for _, st := range models.Stats {
		fmt.Fprintf(&b, "%s: %d\n", m.strings.Stat(st), m.stats[st])
	}
	if m.current.Budget > 0 && m.state == stateAllocating {
		fmt.Fprintf(&b, "(%d points)\n", m.current.Budget)
	}
	b.WriteString("\n")

	b.WriteString(titleStyle.Render("TRAITS") + "\n")
	if len(m.current.Traits) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range m.current.Traits {
		b.WriteString("- " + t.Name + "\n")
	}

	if m.state == stateEnded {
		b.WriteString("\n" + titleStyle.Render("SUMMARY") + "\n")
		b.WriteString(render.Summary(m.strings, m.summary) + "\n")
	}

	stateWidth := int(float64(m.width) * 0.23)
	return stateStyle.Width(stateWidth).Height(m.viewport.Height).Render(b.String())
}

func (m model) renderLog() string {
	return m.gameLog
}

func (m model) logWidth() int {
	return int(float64(m.width) * 0.75)
}

func (m *model) appendLog(s string) {
	if m.gameLog != "" {
		m.gameLog += "\n\n"
	}
	m.gameLog += s
	m.viewport.SetContent(m.renderLog())
	m.viewport.GotoBottom()
}

func (m *model) reset() {
	m.state = stateLoading
	m.current = engine.Game{}
	m.stats = nil
	m.summary = models.Summary{}
	m.gameLog = ""
	m.notice = ""
	m.viewport.SetContent("")
}

// fail shows err. Errors that end the session also abandon it.
func (m model) fail(err error) (tea.Model, tea.Cmd) {
	if apperrors.CodeOf(err).Fatal() {
		m.abandon()
	}
	m.err = err
	m.state = stateError
	return m, nil
}

// abandon drops a life that has not ended yet.
func (m model) abandon() {
	if m.current.SessionID == "" || m.state == stateEnded {
		return
	}
	_ = m.game.Abandon(m.current.SessionID)
}

func (m model) newGame() tea.Cmd {
	id := m.newID()
	return func() tea.Msg {
		g, err := m.game.NewGame(context.Background(), id)
		if err != nil {
			return errMsg{err}
		}
		return gameStartedMsg{g}
	}
}

func (m model) allocate(a models.Allocation) tea.Cmd {
	id := m.current.SessionID
	return func() tea.Msg {
		return allocatedMsg{id, a, m.game.Allocate(context.Background(), id, a)}
	}
}

func (m model) autoAllocate() tea.Cmd {
	id := m.current.SessionID
	return func() tea.Msg {
		a, err := m.game.AutoAllocate(context.Background(), id)
		return allocatedMsg{id, a, err}
	}
}

func (m model) advance() tea.Cmd {
	id := m.current.SessionID
	return func() tea.Msg {
		rec, err := m.game.Advance(context.Background(), id)
		return yearMsg{id, rec, err}
	}
}

func (m model) endLife() tea.Cmd {
	id := m.current.SessionID
	return func() tea.Msg {
		life, err := m.game.Life(id)
		if err != nil {
			return errMsg{err}
		}
		if err := m.saves.Save("current", &life); err != nil {
			return errMsg{err}
		}
		return lifeEndedMsg{life}
	}
}

func Run(game Game, strs *content.Strings, saves models.Saves) error {
	p := tea.NewProgram(NewModel(game, strs, saves), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
