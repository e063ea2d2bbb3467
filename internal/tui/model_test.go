package tui

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
	"github.com/bluefermion/marketfeedback/internal/dialog"
	"github.com/bluefermion/marketfeedback/internal/feedback"
)

type stubTransport struct{ paths []string }

func (s *stubTransport) Request(_ context.Context, path string, _ apiclient.RequestOptions) (json.RawMessage, error) {
	s.paths = append(s.paths, path)
	return json.RawMessage(`{"id":9}`), nil
}

func newTestModel(t *testing.T, opts feedback.Options) (Model, *feedback.Machine, *stubTransport) {
	t.Helper()
	tr := &stubTransport{}
	cfg := feedback.DefaultConfig()
	cfg.ResetDelay = 0
	machine := feedback.New(tr, cfg)
	ctrl := dialog.NewController(machine)
	ctrl.Open(opts)
	return New(context.Background(), ctrl, nil), machine, tr
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keySave  = tea.KeyMsg{Type: tea.KeyCtrlS}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

// deliver runs cmd and feeds its message back into the model.
func deliver(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	next, out := m.Update(cmd())
	return next.(Model), out
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModel_RateChooseTypeAndSubmit(t *testing.T) {
	m, machine, tr := newTestModel(t, feedback.Options{ShowRatingSummary: true})
	assert.Contains(t, m.View(), dialog.DefaultTitle)

	m, _ = press(t, m, runes("4"), keyTab, keyRight)
	snap := machine.Snapshot()
	assert.Equal(t, 4, snap.Draft.Rating)
	assert.Equal(t, feedback.TypePerformance, snap.Draft.Type)

	m, cmd := press(t, m, keySave)
	m, _ = deliver(t, m, cmd)

	require.NoError(t, m.Err())
	assert.Equal(t, []string{"/feedback"}, tr.paths)
	assert.Equal(t, dialog.KindSuccess, m.view.Kind)
	out := m.View()
	assert.Contains(t, out, dialog.DefaultSuccessTitle)
	assert.Contains(t, out, "Performance")
	assert.Contains(t, out, "★★★★☆")
}

func TestModel_SubmitWithoutRatingShowsError(t *testing.T) {
	m, _, tr := newTestModel(t, feedback.Options{})

	m, cmd := press(t, m, keySave)
	m, _ = deliver(t, m, cmd)

	assert.ErrorIs(t, m.Err(), feedback.ErrRatingRequired)
	assert.Empty(t, tr.paths)
	assert.Contains(t, m.View(), feedback.MsgRatingRequired)
}

func TestModel_TypingUpdatesComment(t *testing.T) {
	m, machine, _ := newTestModel(t, feedback.Options{})

	m, _ = press(t, m, keyTab, keyTab)
	require.Equal(t, focusComment, m.focus)

	m, _ = press(t, m, runes("fresh"), runes(" eggs"))
	assert.Equal(t, "fresh eggs", machine.Snapshot().Draft.Comment)
	assert.Contains(t, m.View(), "10/1000")

	// Digits are text while the comment has focus.
	m, _ = press(t, m, runes("5"))
	assert.Zero(t, machine.Snapshot().Draft.Rating)
	assert.Equal(t, "fresh eggs5", m.comment.Value())
}

func TestModel_EscGoesHome(t *testing.T) {
	closed := 0
	m, machine, _ := newTestModel(t, feedback.Options{OnClosed: func() { closed++ }})

	m, cmd := press(t, m, keyEsc)
	assert.True(t, isQuit(cmd))
	assert.Equal(t, feedback.StateClosed, machine.Snapshot().State)
	assert.Equal(t, 1, closed)
	assert.Empty(t, m.View())
}

func TestModel_EditAfterSuccess(t *testing.T) {
	m, machine, tr := newTestModel(t, feedback.Options{})

	m, _ = press(t, m, runes("3"), keyTab, keyTab, runes("slow"))
	m, cmd := press(t, m, keySave)
	m, _ = deliver(t, m, cmd)
	require.Equal(t, dialog.KindSuccess, m.view.Kind)
	assert.Contains(t, m.View(), dialog.DefaultEditLabel)

	m, _ = press(t, m, runes("e"))
	require.Equal(t, dialog.KindForm, m.view.Kind)
	assert.Equal(t, "slow", m.comment.Value())
	assert.Equal(t, focusRating, m.focus)
	assert.Contains(t, m.View(), dialog.DefaultUpdateLabel)

	m, _ = press(t, m, runes("5"))
	m, cmd = press(t, m, keyEnter)
	_, _ = deliver(t, m, cmd)

	assert.Equal(t, []string{"/feedback", "/feedback/9"}, tr.paths)
	assert.Equal(t, 5, machine.Snapshot().LastSubmitted.Rating)
}

func TestModel_SuccessCloseQuits(t *testing.T) {
	m, machine, _ := newTestModel(t, feedback.Options{})
	m, _ = press(t, m, runes("2"))
	m, cmd := press(t, m, keySave)
	m, _ = deliver(t, m, cmd)

	_, cmd = press(t, m, keyEnter)
	assert.True(t, isQuit(cmd))
	assert.Equal(t, feedback.StateClosed, machine.Snapshot().State)
}

func TestModel_ExternalCloseQuits(t *testing.T) {
	m, machine, _ := newTestModel(t, feedback.Options{})
	updates, cancel := Watch(machine)
	defer cancel()
	m.updates = updates

	machine.Close()
	m, cmd := deliver(t, m, waitForSnapshot(updates))
	assert.True(t, isQuit(cmd))
	assert.True(t, m.quitting)
}

func TestModel_SnapshotKeepsListening(t *testing.T) {
	m, machine, _ := newTestModel(t, feedback.Options{})
	updates, cancel := Watch(machine)
	defer cancel()
	m.updates = updates

	require.NoError(t, machine.SetRating(1))
	m, cmd := deliver(t, m, waitForSnapshot(updates))
	assert.NotNil(t, cmd)
	assert.False(t, m.quitting)
	assert.Equal(t, 1, m.view.Form.Rating)
}

func TestWatch_KeepsNewest(t *testing.T) {
	tr := &stubTransport{}
	machine := feedback.New(tr, feedback.DefaultConfig())
	updates, cancel := Watch(machine)
	defer cancel()

	machine.Open(feedback.Options{})
	require.NoError(t, machine.SetRating(2))
	require.NoError(t, machine.SetRating(3))

	s := <-updates
	assert.Equal(t, 3, s.Draft.Rating)
	select {
	case <-updates:
		t.Fatal("expected a single pending snapshot")
	default:
	}
}

func TestModel_WindowSize(t *testing.T) {
	m, _, _ := newTestModel(t, feedback.Options{})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 20})
	assert.Equal(t, 38, next.(Model).width)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 500, Height: 20})
	assert.Equal(t, maxFrameWidth, next.(Model).width)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 0, Height: 0})
	assert.Equal(t, 20, next.(Model).width)
	assert.True(t, strings.Contains(next.View(), "Rating"))
}
