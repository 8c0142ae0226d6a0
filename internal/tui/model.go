// Package tui provides the BubbleTea-based terminal presenter.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/nudge/internal/engine"
	"github.com/jmylchreest/nudge/internal/model"
)

const (
	minCardWidth = 30
	maxCardWidth = 60
)

// Controller is the session surface the TUI drives.
type Controller interface {
	Subscribe() <-chan engine.Event
	Unsubscribe(ch <-chan engine.Event)
	Status() engine.Status
	Dismiss(id string) error
	Activate(ctx context.Context, id string) error
}

// Model is the main TUI model.
type Model struct {
	ctx    context.Context
	ctl    Controller
	events <-chan engine.Event

	progress progress.Model
	help     help.Model
	keys     KeyMap

	state       engine.State
	current     *model.Notification
	percent     float64
	pending     int
	celebrating bool
	showHelp    bool
	width       int

	statusMsg string
	statusErr bool
}

type eventMsg engine.Event

type sessionClosedMsg struct{}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

// New creates a TUI model bound to ctl. The subscription is released
// when the program exits through Close.
func New(ctx context.Context, ctl Controller) Model {
	p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	p.Width = maxCardWidth - 4

	m := Model{
		ctx:      ctx,
		ctl:      ctl,
		events:   ctl.Subscribe(),
		progress: p,
		help:     help.New(),
		keys:     DefaultKeyMap(),
	}
	m.applyStatus(ctl.Status())
	return m
}

// Close releases the session subscription.
func (m Model) Close() {
	m.ctl.Unsubscribe(m.events)
}

// Init starts listening for session events.
func (m Model) Init() tea.Cmd {
	return m.waitForEvent
}

// waitForEvent blocks until the session publishes.
func (m Model) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return sessionClosedMsg{}
	}
	return eventMsg(ev)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = m.cardWidth() - 4
		return m, nil

	case eventMsg:
		m.applyEvent(engine.Event(msg))
		return m, m.waitForEvent

	case sessionClosedMsg:
		return m, tea.Quit

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil
	}

	return m, nil
}

func (m *Model) applyEvent(ev engine.Event) {
	m.state = ev.State
	m.pending = ev.Pending

	switch ev.Type {
	case engine.EventShown:
		m.current = ev.Notification
		m.percent = 1
		m.celebrating = false
	case engine.EventProgress:
		m.percent = ev.Progress / 100
	case engine.EventCelebrationStarted:
		m.celebrating = true
	case engine.EventCelebrationEnded:
		m.celebrating = false
	case engine.EventExiting:
		m.celebrating = false
	case engine.EventCleared:
		m.current = nil
		m.percent = 0
		m.celebrating = false
	}
}

func (m *Model) applyStatus(st engine.Status) {
	m.state = st.State
	m.current = st.Current
	m.percent = st.Progress / 100
	m.pending = len(st.Pending)
	m.celebrating = st.Celebrating
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		if m.state != engine.StateShowing || m.current == nil {
			return m, nil
		}
		return m, m.dismiss(m.current.ID)
	case key.Matches(msg, m.keys.Activate):
		if m.state != engine.StateShowing || m.current == nil {
			return m, nil
		}
		return m, m.activate(m.current.ID)
	}
	return m, nil
}

// stale reports errors that mean the notification on screen already moved on.
func stale(err error) bool {
	return errors.Is(err, engine.ErrNothingShown) || errors.Is(err, engine.ErrNotDisplayed)
}

func (m Model) dismiss(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctl.Dismiss(id); err != nil && !stale(err) {
			return statusMsg{text: "Dismiss failed: " + err.Error(), isErr: true}
		}
		return nil
	}
}

func (m Model) activate(id string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctl.Activate(m.ctx, id); err != nil && !stale(err) {
			return statusMsg{text: "Open failed: " + err.Error(), isErr: true}
		}
		return nil
	}
}

func (m Model) cardWidth() int {
	w := m.width - 2
	if w > maxCardWidth || w <= 0 {
		return maxCardWidth
	}
	if w < minCardWidth {
		return minCardWidth
	}
	return w
}

// View renders the TUI.
func (m Model) View() string {
	var b strings.Builder

	if m.current == nil {
		idle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		b.WriteString(idle.Render("No notifications"))
	} else {
		b.WriteString(m.renderCard(m.current))
	}
	b.WriteString("\n")

	if m.pending > 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).
			Render(fmt.Sprintf("%d more waiting", m.pending)))
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		b.WriteString(statusStyle.Render(m.statusMsg))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

func (m Model) renderCard(n *model.Notification) string {
	width := m.cardWidth()
	border := lipgloss.Color(typeColor(n.Type))
	if m.state == engine.StateExiting {
		border = lipgloss.Color("8")
	}

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(width)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(border)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var s strings.Builder
	if m.celebrating {
		s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")).
			Render("★ Celebrate! ★"))
		s.WriteString("\n")
	}
	s.WriteString(titleStyle.Render(n.Title))
	s.WriteString("\n")
	if n.Message != "" {
		s.WriteString(n.MessageTruncated(width * 3))
		s.WriteString("\n")
	}
	if reward := n.Reward.String(); reward != "" {
		s.WriteString(labelStyle.Render("Reward: ") + reward + "\n")
	}
	if n.Action != nil {
		s.WriteString(labelStyle.Render("enter: ") + actionHint(n.Action) + "\n")
	}
	s.WriteString(labelStyle.Render(string(n.Type) + " · " + humanize.Time(n.CreatedAt)))
	s.WriteString("\n")
	s.WriteString(m.progress.ViewAs(m.percent))

	return card.Render(s.String())
}

func actionHint(a *model.Action) string {
	switch a.Kind {
	case model.ActionClaim:
		return "claim reward"
	case model.ActionTryTool:
		return "try " + a.ToolID
	case model.ActionInvite:
		return "invite friends"
	case model.ActionShare:
		return "share"
	default:
		if a.Destination != "" {
			return "open " + a.Destination
		}
		return "open"
	}
}

func typeColor(t model.Type) string {
	switch t {
	case model.TypeAchievement, model.TypeReward:
		return "11"
	case model.TypeStreak:
		return "9"
	case model.TypeReferral:
		return "13"
	case model.TypeChallenge, model.TypeMilestone:
		return "12"
	default:
		return "14"
	}
}
