// Package tui draws the feedback dialog in a terminal.
//
// The Model is a thin bubbletea shell around dialog.Controller: every key is
// turned into a controller gesture and every frame is drawn from
// dialog.Present. Machine changes that happen without a key press, such as a
// submission finishing or the auto-close timer firing, arrive on the channel
// returned by Watch and trigger a redraw.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bluefermion/marketfeedback/internal/dialog"
	"github.com/bluefermion/marketfeedback/internal/feedback"
)

const maxFrameWidth = 72

type focus int

const (
	focusRating focus = iota
	focusType
	focusComment
	focusCount
)

// snapshotMsg reports that the machine changed state.
type snapshotMsg feedback.Snapshot

// submitDoneMsg carries the outcome of a submit command.
type submitDoneMsg struct{ err error }

// Model is the bubbletea model for the dialog.
type Model struct {
	ctx     context.Context
	ctrl    *dialog.Controller
	updates <-chan feedback.Snapshot

	view    dialog.View
	comment textarea.Model
	focus   focus
	styles  Styles
	width   int

	// lastErr is the most recent submit failure, kept for the caller of Run.
	lastErr  error
	quitting bool
}

// New builds a model over ctrl. updates may be nil, in which case the model
// only redraws on input.
func New(ctx context.Context, ctrl *dialog.Controller, updates <-chan feedback.Snapshot) Model {
	ta := textarea.New()
	ta.Placeholder = "Tell us more (optional)"
	ta.CharLimit = feedback.MaxCommentLength
	ta.ShowLineNumbers = false
	ta.SetWidth(maxFrameWidth - 8)
	ta.SetHeight(4)

	m := Model{
		ctx:     ctx,
		ctrl:    ctrl,
		updates: updates,
		comment: ta,
		styles:  DefaultStyles(),
		width:   maxFrameWidth,
	}
	m.sync()
	return m
}

// Watch subscribes to m and returns a channel that always holds the newest
// pending snapshot. Older undelivered snapshots are dropped since the model
// redraws from the machine's current state anyway.
func Watch(m *feedback.Machine) (<-chan feedback.Snapshot, func()) {
	ch := make(chan feedback.Snapshot, 1)
	cancel := m.Subscribe(func(s feedback.Snapshot) {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	})
	return ch, cancel
}

func waitForSnapshot(ch <-chan feedback.Snapshot) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(s)
	}
}

// Init starts the cursor blink and the snapshot listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForSnapshot(m.updates))
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width-2, 20), maxFrameWidth)
		m.comment.SetWidth(m.width - 8)
		return m, nil

	case snapshotMsg:
		m.sync()
		if m.view.Kind == dialog.KindNone {
			m.quitting = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.updates)

	case submitDoneMsg:
		m.lastErr = msg.err
		m.sync()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.ctrl.Close()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.view.Kind {
	case dialog.KindForm:
		return m.handleFormKey(msg)
	case dialog.KindSuccess:
		return m.handleSuccessKey(msg)
	}
	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.GoHome()
		m.quitting = true
		return m, tea.Quit
	case "ctrl+s":
		return m, m.submit()
	case "tab":
		m.setFocus((m.focus + 1) % focusCount)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + focusCount - 1) % focusCount)
		return m, nil
	}

	if m.focus == focusComment {
		var cmd tea.Cmd
		before := m.comment.Value()
		m.comment, cmd = m.comment.Update(msg)
		if v := m.comment.Value(); v != before {
			_ = m.ctrl.EditComment(v)
			m.sync()
		}
		return m, cmd
	}

	switch key := msg.String(); key {
	case "1", "2", "3", "4", "5":
		_ = m.ctrl.SelectRating(int(key[0] - '0'))
		m.focus = focusRating
	case "left", "h":
		_ = m.ctrl.SelectType(m.shiftType(-1))
	case "right", "l":
		_ = m.ctrl.SelectType(m.shiftType(1))
	case "enter":
		return m, m.submit()
	default:
		return m, nil
	}
	m.sync()
	return m, nil
}

func (m Model) handleSuccessKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "e":
		if m.view.Success.CanEdit && m.ctrl.Edit() == nil {
			m.setFocus(focusRating)
			m.sync()
		}
		return m, nil
	case "enter", "esc", "q":
		m.ctrl.Close()
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// submit returns the command that performs the submission off the UI loop.
func (m Model) submit() tea.Cmd {
	if m.view.Form == nil || m.view.Form.Submitting {
		return nil
	}
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return submitDoneMsg{err: ctrl.Submit(ctx)}
	}
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusComment {
		m.comment.Focus()
	} else {
		m.comment.Blur()
	}
}

func (m Model) shiftType(step int) feedback.Type {
	types := m.view.Form.Types
	cur := 0
	for i, t := range types {
		if t.Selected {
			cur = i
			break
		}
	}
	n := len(types)
	return types[((cur+step)%n+n)%n].Value
}

// sync refreshes the cached view and keeps the textarea in line with the
// draft, which may have been truncated or restored for editing.
func (m *Model) sync() {
	m.view = m.ctrl.View()
	if f := m.view.Form; f != nil && m.comment.Value() != f.Comment {
		m.comment.SetValue(f.Comment)
	}
}

// Err returns the last submit failure seen by the model, if any.
func (m Model) Err() error { return m.lastErr }

// View renders the dialog.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var body string
	switch m.view.Kind {
	case dialog.KindForm:
		body = m.renderForm(m.view.Form)
	case dialog.KindSuccess:
		body = m.renderSuccess(m.view.Success)
	default:
		return ""
	}
	return m.styles.Frame.Width(m.width).Render(body) + "\n"
}

func (m Model) renderForm(f *dialog.Form) string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Title.Render(f.Title) + "\n")
	b.WriteString(s.Subtitle.Render(f.Subtitle) + "\n\n")

	b.WriteString(m.label("Rating", focusRating) + m.stars(f.Rating, len(f.RatingOptions)) + "\n")

	types := make([]string, 0, len(f.Types))
	for _, t := range f.Types {
		if t.Selected {
			types = append(types, s.TypeActive.Render(t.Label))
		} else {
			types = append(types, s.Type.Render(t.Label))
		}
	}
	b.WriteString(m.label("Type", focusType) + lipgloss.JoinHorizontal(lipgloss.Top, types...) + "\n\n")

	b.WriteString(m.label("Comment", focusComment) + "\n")
	b.WriteString(m.comment.View() + "\n")
	b.WriteString(s.Counter.Render(fmt.Sprintf("%d/%d", len([]rune(f.Comment)), f.CommentLimit)) + "\n")

	if f.Error != "" {
		b.WriteString(s.Error.Render(f.Error) + "\n")
	}
	b.WriteString("\n")

	button := s.Button
	if f.SubmitDisabled {
		button = s.ButtonOff
	}
	b.WriteString(button.Render(f.SubmitLabel) + "  " + s.Help.Render("esc "+f.HomeLabel) + "\n\n")
	b.WriteString(s.Help.Render("1-5 rate • tab next field • ←/→ type • ctrl+s submit"))
	return b.String()
}

func (m Model) renderSuccess(v *dialog.Success) string {
	s := m.styles
	var b strings.Builder

	b.WriteString(s.Success.Render("✓ "+v.Title) + "\n")
	b.WriteString(s.Subtitle.Render(v.Message) + "\n")

	if sum := v.Summary; sum != nil {
		b.WriteString("\n")
		b.WriteString(s.Label.Render("Type") + sum.TypeLabel + "\n")
		b.WriteString(s.Label.Render("Rating") + m.stars(sum.Rating, feedback.MaxRating) + "\n")
		if sum.Comment != "" {
			b.WriteString(s.Label.Render("Comment") + sum.Comment + "\n")
		}
	}

	b.WriteString("\n")
	help := "enter " + v.CloseLabel
	if v.CanEdit {
		help = "e " + v.EditLabel + " • " + help
	}
	b.WriteString(s.Help.Render(help))
	return b.String()
}

func (m Model) label(name string, f focus) string {
	if m.focus == f {
		return m.styles.FocusLabel.Render(name)
	}
	return m.styles.Label.Render(name)
}

func (m Model) stars(n, of int) string {
	return m.styles.Star.Render(strings.Repeat("★", n)) +
		m.styles.StarEmpty.Render(strings.Repeat("☆", of-n))
}

// Run opens the dialog on machine with opts and drives it until it closes.
// It returns the last submission error the user saw, if any.
func Run(ctx context.Context, machine *feedback.Machine, opts feedback.Options, progOpts ...tea.ProgramOption) error {
	updates, cancel := Watch(machine)
	defer cancel()

	ctrl := dialog.NewController(machine)
	ctrl.Open(opts)

	progOpts = append([]tea.ProgramOption{tea.WithContext(ctx)}, progOpts...)
	final, err := tea.NewProgram(New(ctx, ctrl, updates), progOpts...).Run()
	if err != nil {
		ctrl.Close()
		return fmt.Errorf("run dialog: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
