// Package tui provides the Bubble Tea workout timer interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/claude/freelift/internal/models"
	"github.com/claude/freelift/internal/timer"
)

// Pending stores finalizes that did not reach the server.
type Pending interface {
	Save(p timer.PendingClose) error
	Delete(sessionID int64) error
}

type retryKind int

const (
	retryNone retryKind = iota
	retryStart
	retrySet
	retryFinalize
)

type (
	tickMsg      time.Time
	startedMsg   struct{ err error }
	setSavedMsg  struct{ err error }
	finalizedMsg struct{ err error }
)

type keyMap struct {
	Complete key.Binding
	Skip     key.Binding
	Pause    key.Binding
	End      key.Binding
	Retry    key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Complete, k.Skip, k.Pause, k.End, k.Retry, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Complete: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "set done")),
	Skip:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "skip rest")),
	Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
	End:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end workout")),
	Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry save")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	clockStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	restStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#3A8DC8"))
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Italic(true)
	doneStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#16A34A"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
	tickInterval  = time.Second
	writeDeadline = 15 * time.Second
)

// Model implements the Bubble Tea timer UI around a timer.Timer.
type Model struct {
	timer     *timer.Timer
	workoutID int64
	pending   Pending
	log       *slog.Logger

	bar  progress.Model
	help help.Model

	width     int
	restTotal int
	lastState timer.State

	started  bool
	retry    retryKind
	saveErr  error
	notice   string
	closing  bool // quit requested, waiting on the final save
	quitting bool
}

// NewModel builds a Model that starts workoutID on Init.
func NewModel(t *timer.Timer, workoutID int64, pending Pending, log *slog.Logger) *Model {
	return &Model{
		timer:     t,
		workoutID: workoutID,
		pending:   pending,
		log:       log,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		help:      help.New(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.startCmd()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeDeadline)
		defer cancel()
		return startedMsg{err: m.timer.Start(ctx, m.workoutID)}
	}
}

func (m *Model) completeSetCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeDeadline)
		defer cancel()
		return setSavedMsg{err: m.timer.CompleteSet(ctx)}
	}
}

func (m *Model) endCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeDeadline)
		defer cancel()
		return finalizedMsg{err: m.timer.EndEarly(ctx)}
	}
}

func (m *Model) finalizeCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), writeDeadline)
		defer cancel()
		return finalizedMsg{err: m.timer.Finalize(ctx)}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.timer.Tick()
		m.trackRest()
		if m.timer.Snapshot().Finalized {
			return m, nil
		}
		return m, tick()

	case startedMsg:
		if msg.err != nil {
			m.fail(retryStart, msg.err)
			return m, nil
		}
		m.clearError()
		m.started = true
		return m, tick()

	case setSavedMsg:
		return m, m.afterSave(m.handleSaved(msg.err))

	case finalizedMsg:
		return m, m.afterSave(m.handleSaved(msg.err))

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	snap := m.timer.Snapshot()
	switch {
	case key.Matches(msg, keys.Quit):
		// Leaving mid-workout ends it, so the session is closed or at least
		// recorded as a pending close.
		if m.closing || !m.started {
			m.quitting = true
			return tea.Quit
		}
		if snap.Saving {
			m.closing = true
			m.notice = "finishing save before quitting…"
			return nil
		}
		if snap.State.Terminal() {
			m.quitting = true
			return tea.Quit
		}
		m.closing = true
		m.notice = "saving before quitting…"
		return m.endCmd()

	case key.Matches(msg, keys.Retry):
		switch m.retry {
		case retryStart:
			m.notice = "starting…"
			return m.startCmd()
		case retrySet:
			m.notice = "saving…"
			return m.completeSetCmd()
		case retryFinalize:
			m.notice = "saving…"
			return m.finalizeCmd()
		}
		return nil
	}

	if m.retry != retryNone || snap.Saving || !m.started {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Complete):
		if snap.State == timer.Running || snap.State == timer.Resting {
			m.notice = "saving…"
			return m.completeSetCmd()
		}
	case key.Matches(msg, keys.Skip):
		m.report(m.timer.SkipRest())
	case key.Matches(msg, keys.Pause):
		if snap.State == timer.Paused {
			m.report(m.timer.Resume())
		} else {
			m.report(m.timer.Pause())
		}
	case key.Matches(msg, keys.End):
		if !snap.State.Terminal() {
			m.notice = "saving…"
			return m.endCmd()
		}
	}
	return nil
}

// afterSave continues a requested quit once the in-flight write returned.
func (m *Model) afterSave(cmd tea.Cmd) tea.Cmd {
	if !m.closing {
		return cmd
	}
	if !m.timer.Snapshot().State.Terminal() {
		return m.endCmd()
	}
	m.quitting = true
	return tea.Quit
}

// handleSaved reacts to the result of a set write or a finalize.
func (m *Model) handleSaved(err error) tea.Cmd {
	m.notice = ""
	snap := m.timer.Snapshot()
	m.trackRest()

	if err == nil || errors.Is(err, timer.ErrAlreadyFinalized) {
		m.clearError()
		if snap.Finalized {
			if m.pending != nil {
				if derr := m.pending.Delete(snap.SessionID); derr != nil {
					m.log.Error("clearing pending close", "session_id", snap.SessionID, "error", derr)
				}
			}
		}
		return nil
	}

	if snap.State.Terminal() && !snap.Finalized {
		if p := m.timer.PendingClose(); p != nil && m.pending != nil {
			if serr := m.pending.Save(*p); serr != nil {
				m.log.Error("saving pending close", "session_id", p.SessionID, "error", serr)
			}
		}
		m.fail(retryFinalize, err)
		return nil
	}
	m.fail(retrySet, err)
	return nil
}

func (m *Model) fail(kind retryKind, err error) {
	m.retry = kind
	m.saveErr = err
}

func (m *Model) clearError() {
	m.retry = retryNone
	m.saveErr = nil
}

func (m *Model) report(err error) {
	if err != nil {
		m.notice = err.Error()
		return
	}
	m.notice = ""
}

// trackRest remembers the length of the rest period in progress so the bar
// can show how much of it is left.
func (m *Model) trackRest() {
	snap := m.timer.Snapshot()
	if snap.State == timer.Resting && (m.lastState != timer.Resting || snap.RestRemaining > m.restTotal) {
		m.restTotal = snap.RestRemaining
	}
	if snap.State != timer.Paused {
		m.lastState = snap.State
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.timer.Snapshot()

	var b strings.Builder
	if !m.started {
		b.WriteString(titleStyle.Render("FreeLift") + "\n\n")
		if m.saveErr != nil {
			b.WriteString(m.errorLine())
		} else {
			b.WriteString(subtleStyle.Render("starting workout…"))
		}
		b.WriteString("\n\n" + m.help.View(keys))
		return b.String()
	}

	b.WriteString(titleStyle.Render(snap.WorkoutName))
	b.WriteString("  " + clockStyle.Render(Clock(snap.Elapsed)) + "\n\n")

	switch {
	case snap.State == timer.Completed || snap.State == timer.Ended:
		b.WriteString(m.summary(snap))
	default:
		b.WriteString(m.current(snap))
	}

	b.WriteString("\n")
	if m.saveErr != nil {
		b.WriteString(m.errorLine() + "\n")
	} else if m.notice != "" {
		b.WriteString(subtleStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + m.help.View(keys))
	return panelStyle.Render(b.String())
}

func (m *Model) current(snap timer.Snapshot) string {
	var b strings.Builder
	we := snap.Exercise
	fmt.Fprintf(&b, "Exercise %d/%d  %s", snap.ExerciseIndex+1, snap.ExerciseCount, we.Exercise.Name)
	if badge := Badge(we.Exercise.Difficulty); badge != "" {
		b.WriteString("  " + badge)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Set %d/%d · %d reps%s\n", snap.Set, we.Sets, we.Reps, weight(we.Weight))
	fmt.Fprintf(&b, "Sets done %d/%d\n\n", snap.SetsDone, snap.TotalSets)

	switch snap.State {
	case timer.Resting:
		b.WriteString(restStyle.Render("Rest "+Clock(snap.RestRemaining)) + "\n")
		b.WriteString(m.bar.ViewAs(restFraction(snap.RestRemaining, m.restTotal)) + "\n")
	case timer.Paused:
		b.WriteString(pausedStyle.Render("Paused") + "\n")
	case timer.Running:
		b.WriteString("Go!\n")
	}
	return b.String()
}

func (m *Model) summary(snap timer.Snapshot) string {
	var b strings.Builder
	if snap.State == timer.Completed {
		b.WriteString(doneStyle.Render("Workout complete") + "\n")
	} else {
		b.WriteString(doneStyle.Render("Workout ended") + "\n")
	}
	fmt.Fprintf(&b, "%d min · %d kcal · %d/%d sets\n",
		timer.DurationMinutes(snap.Elapsed), timer.Calories(snap.Elapsed), snap.SetsDone, snap.TotalSets)
	if st := snap.Stats; st != nil {
		fmt.Fprintf(&b, "Total workouts %d · streak %d (best %d)\n", st.TotalWorkouts, st.CurrentStreak, st.LongestStreak)
	}
	if !snap.Finalized && m.saveErr == nil {
		b.WriteString(subtleStyle.Render("saving…") + "\n")
	}
	return b.String()
}

func (m *Model) errorLine() string {
	msg := "can't save, try again (r)"
	if errors.Is(m.saveErr, models.ErrUnavailable) {
		msg = "server unreachable: can't save, try again (r)"
	}
	var verr *models.ValidationError
	if errors.As(m.saveErr, &verr) || errors.Is(m.saveErr, models.ErrNotFound) {
		msg = m.saveErr.Error()
	}
	return errorStyle.Render(msg)
}

// Badge renders a difficulty as three colored stars, empty for an unknown
// grade.
func Badge(d models.Difficulty) string {
	if !d.Valid() {
		return ""
	}
	n := d.Stars()
	stars := strings.Repeat("★", n) + strings.Repeat("☆", 3-n)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(d.Color())).Render(stars)
}

// Clock formats seconds as MM:SS, or H:MM:SS from one hour.
func Clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func restFraction(remaining, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(remaining) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

func weight(w *float64) string {
	if w == nil || *w == 0 {
		return ""
	}
	return fmt.Sprintf(" @ %g lb", *w)
}

// Settle makes one last attempt to close a workout the UI left open, and
// records the close in pending when the server cannot take it.
func Settle(ctx context.Context, t *timer.Timer, pending Pending, log *slog.Logger) {
	snap := t.Snapshot()
	if snap.SessionID != 0 && !snap.State.Terminal() {
		if err := t.EndEarly(ctx); err != nil {
			log.Error("ending workout on exit", "session_id", snap.SessionID, "error", err)
		}
	}
	if t.Snapshot().Finalized {
		return
	}
	if p := t.PendingClose(); p != nil && pending != nil {
		if err := pending.Save(*p); err != nil {
			log.Error("saving pending close", "session_id", p.SessionID, "error", err)
		}
	}
}
