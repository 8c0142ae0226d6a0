package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/nudge/internal/engine"
	"github.com/jmylchreest/nudge/internal/model"
)

type fakeController struct {
	events       chan engine.Event
	status       engine.Status
	dismissed    []string
	activated    []string
	err          error
	unsubscribed bool
}

func newFakeController() *fakeController {
	return &fakeController{events: make(chan engine.Event, 8)}
}

func (f *fakeController) Subscribe() <-chan engine.Event { return f.events }
func (f *fakeController) Unsubscribe(<-chan engine.Event) { f.unsubscribed = true }
func (f *fakeController) Status() engine.Status { return f.status }
func (f *fakeController) Dismiss(id string) error {
	f.dismissed = append(f.dismissed, id)
	return f.err
}

func (f *fakeController) Activate(_ context.Context, id string) error {
	f.activated = append(f.activated, id)
	return f.err
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func showing() engine.Event {
	return engine.Event{
		Type:  engine.EventShown,
		State: engine.StateShowing,
		Notification: &model.Notification{
			ID:        "a",
			Type:      model.TypeAchievement,
			Title:     "Ten lessons done",
			Message:   "Keep going",
			Action:    &model.Action{Kind: model.ActionTryTool, ToolID: "flashcards"},
			CreatedAt: time.Now(),
		},
		Pending: 2,
	}
}

func TestModel_InitialStatus(t *testing.T) {
	ctl := newFakeController()
	n := &model.Notification{ID: "a", Title: "Hi"}
	ctl.status = engine.Status{State: engine.StateShowing, Current: n, Progress: 50, Pending: []string{"b"}}

	m := New(context.Background(), ctl)

	assert.Equal(t, engine.StateShowing, m.state)
	assert.Equal(t, n, m.current)
	assert.InDelta(t, 0.5, m.percent, 1e-9)
	assert.Equal(t, 1, m.pending)
}

func TestModel_Events(t *testing.T) {
	m := New(context.Background(), newFakeController())

	m, cmd := update(t, m, eventMsg(showing()))
	assert.NotNil(t, cmd)
	assert.Equal(t, "a", m.current.ID)
	assert.Equal(t, 1.0, m.percent)
	assert.Equal(t, 2, m.pending)

	m, _ = update(t, m, eventMsg(engine.Event{Type: engine.EventCelebrationStarted, State: engine.StateShowing, Pending: 2}))
	assert.True(t, m.celebrating)
	assert.Contains(t, m.View(), "Celebrate")

	m, _ = update(t, m, eventMsg(engine.Event{Type: engine.EventProgress, State: engine.StateShowing, Progress: 40, Pending: 2}))
	assert.InDelta(t, 0.4, m.percent, 1e-9)

	view := m.View()
	assert.Contains(t, view, "Ten lessons done")
	assert.Contains(t, view, "try flashcards")
	assert.Contains(t, view, "2 more waiting")

	m, _ = update(t, m, eventMsg(engine.Event{Type: engine.EventExiting, State: engine.StateExiting, Pending: 2}))
	assert.False(t, m.celebrating)

	m, _ = update(t, m, eventMsg(engine.Event{Type: engine.EventCleared, State: engine.StateIdle, Pending: 2}))
	assert.Nil(t, m.current)
	assert.Contains(t, m.View(), "No notifications")
}

func TestModel_Keys(t *testing.T) {
	ctl := newFakeController()
	m := New(context.Background(), ctl)

	// Nothing on screen: no commands
	_, cmd := update(t, m, runeKey('d'))
	assert.Nil(t, cmd)

	m, _ = update(t, m, eventMsg(showing()))

	_, cmd = update(t, m, runeKey('d'))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"a"}, ctl.dismissed)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"a", "a"}, ctl.dismissed)

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"a"}, ctl.activated)

	m, _ = update(t, m, runeKey('?'))
	assert.True(t, m.showHelp)

	_, cmd = update(t, m, runeKey('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModel_KeysTargetNotificationOnScreen(t *testing.T) {
	ctl := newFakeController()
	m := New(context.Background(), ctl)
	m, _ = update(t, m, eventMsg(showing()))

	_, dismiss := update(t, m, runeKey('d'))
	_, activate := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, dismiss)
	require.NotNil(t, activate)

	// The session promoted another notification before the commands ran.
	ctl.err = engine.ErrNotDisplayed
	assert.Nil(t, dismiss())
	assert.Nil(t, activate())
	assert.Equal(t, []string{"a"}, ctl.dismissed)
	assert.Equal(t, []string{"a"}, ctl.activated)

	ctl.err = engine.ErrSessionClosed
	msg, ok := dismiss().(statusMsg)
	require.True(t, ok)
	assert.True(t, msg.isErr)
}

func TestModel_WaitForEvent(t *testing.T) {
	ctl := newFakeController()
	m := New(context.Background(), ctl)

	ctl.events <- engine.Event{Type: engine.EventQueueChanged, Pending: 1}
	msg := m.waitForEvent()
	assert.Equal(t, eventMsg(engine.Event{Type: engine.EventQueueChanged, Pending: 1}), msg)

	close(ctl.events)
	assert.Equal(t, sessionClosedMsg{}, m.waitForEvent())

	m.Close()
	assert.True(t, ctl.unsubscribed)
}

func TestModel_Status(t *testing.T) {
	m := New(context.Background(), newFakeController())

	m, cmd := update(t, m, statusMsg{text: "Open failed: boom", isErr: true})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Open failed: boom")

	m, _ = update(t, m, clearStatusMsg{})
	assert.NotContains(t, m.View(), "Open failed")
}
