package dialog

import (
	"context"

	"github.com/bluefermion/marketfeedback/internal/feedback"
)

// Machine is what the controller drives. *feedback.Machine satisfies it.
type Machine interface {
	Open(feedback.Options)
	Close()
	SetRating(int) error
	SetComment(string) error
	SetType(feedback.Type) error
	Submit(context.Context) error
	StartEdit() error
	Snapshot() feedback.Snapshot
}

// Controller maps dialog gestures to machine operations. It is the only thing a
// page needs to hold to trigger and drive the dialog.
type Controller struct {
	m Machine
}

// NewController wraps m.
func NewController(m Machine) *Controller {
	return &Controller{m: m}
}

// Open shows the dialog.
func (c *Controller) Open(opts feedback.Options) { c.m.Open(opts) }

// View renders the current state.
func (c *Controller) View() View { return Present(c.m.Snapshot()) }

// SelectRating handles a click on star n.
func (c *Controller) SelectRating(n int) error { return c.m.SetRating(n) }

// EditComment handles typing in the comment box.
func (c *Controller) EditComment(s string) error { return c.m.SetComment(s) }

// SelectType handles the type selector.
func (c *Controller) SelectType(t feedback.Type) error { return c.m.SetType(t) }

// Submit handles the submit button. While a submission is in flight it is a
// no-op, so key repeat or double clicks never reach the machine. An unrated
// draft still goes through so the machine can show why it was refused.
func (c *Controller) Submit(ctx context.Context) error {
	v := c.View()
	if v.Kind != KindForm || v.Form.Submitting {
		return nil
	}
	return c.m.Submit(ctx)
}

// Edit handles the success screen's edit action.
func (c *Controller) Edit() error { return c.m.StartEdit() }

// Close handles the close action on either view.
func (c *Controller) Close() { c.m.Close() }

// GoHome handles the form's secondary action. It dismisses the dialog, which
// also runs the opener's OnClosed so the page can navigate.
func (c *Controller) GoHome() { c.m.Close() }
