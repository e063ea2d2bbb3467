// Package dialog binds the feedback state machine to a presentation.
//
// Present turns a snapshot into exactly one view (nothing, the form, or the
// success screen) with every label resolved. Controller forwards user gestures
// back to the machine. Neither holds business rules; renderers such as the
// terminal UI only draw a View and call the Controller.
package dialog

import (
	"github.com/bluefermion/marketfeedback/internal/feedback"
)

// Default labels used when the opener leaves an option empty.
const (
	DefaultTitle          = "Share your feedback"
	DefaultSubtitle       = "How was your experience on the marketplace?"
	DefaultSubmitLabel    = "Submit feedback"
	DefaultSubmittingText = "Submitting..."
	DefaultUpdateLabel    = "Update feedback"
	DefaultHomeLabel      = "Back to home"
	DefaultSuccessTitle   = "Thank you!"
	DefaultSuccessMessage = "Your feedback helps farmers, drivers and buyers get a better marketplace."
	DefaultEditLabel      = "Edit feedback"
	DefaultCloseLabel     = "Close"
)

// Kind says which view is shown.
type Kind int

const (
	KindNone Kind = iota
	KindForm
	KindSuccess
)

// View is the render model. Exactly one of Form and Success is set, matching Kind.
type View struct {
	Kind    Kind
	Form    *Form
	Success *Success
}

// Form is the editing view.
type Form struct {
	Title    string
	Subtitle string

	Rating        int
	RatingOptions []int

	Comment      string
	CommentLimit int

	Types []TypeOption

	SubmitLabel    string
	SubmitDisabled bool
	Submitting     bool

	Error     string
	HomeLabel string
}

// TypeOption is one entry of the type selector.
type TypeOption struct {
	Value    feedback.Type
	Label    string
	Selected bool
}

// Success is the confirmation view.
type Success struct {
	Title   string
	Message string
	// Summary is nil unless the opener asked for a recap.
	Summary    *Summary
	CanEdit    bool
	EditLabel  string
	CloseLabel string
}

// Summary recaps what was submitted.
type Summary struct {
	TypeLabel string
	Rating    int
	Comment   string
}

// Present renders s.
func Present(s feedback.Snapshot) View {
	switch s.State {
	case feedback.StateEditing, feedback.StateSubmitting:
		return View{Kind: KindForm, Form: presentForm(s)}
	case feedback.StateSuccess:
		return View{Kind: KindSuccess, Success: presentSuccess(s)}
	default:
		return View{Kind: KindNone}
	}
}

func presentForm(s feedback.Snapshot) *Form {
	o := s.Options
	submitting := s.State == feedback.StateSubmitting

	submitLabel := or(o.SubmitLabel, DefaultSubmitLabel)
	if s.Updating && o.SubmitLabel == "" {
		submitLabel = DefaultUpdateLabel
	}
	if submitting {
		submitLabel = DefaultSubmittingText
	}

	types := make([]TypeOption, 0, len(feedback.Types))
	for _, t := range feedback.Types {
		types = append(types, TypeOption{Value: t, Label: t.Label(), Selected: t == s.Draft.Type})
	}

	ratings := make([]int, feedback.MaxRating)
	for i := range ratings {
		ratings[i] = i + 1
	}

	return &Form{
		Title:          or(o.Title, DefaultTitle),
		Subtitle:       or(o.Subtitle, DefaultSubtitle),
		Rating:         s.Draft.Rating,
		RatingOptions:  ratings,
		Comment:        s.Draft.Comment,
		CommentLimit:   feedback.MaxCommentLength,
		Types:          types,
		SubmitLabel:    submitLabel,
		SubmitDisabled: submitting || s.Draft.Rating == 0,
		Submitting:     submitting,
		Error:          s.Error,
		HomeLabel:      or(o.HomeLabel, DefaultHomeLabel),
	}
}

func presentSuccess(s feedback.Snapshot) *Success {
	o := s.Options
	v := &Success{
		Title:      or(o.SuccessTitle, DefaultSuccessTitle),
		Message:    or(o.SuccessMessage, DefaultSuccessMessage),
		CanEdit:    s.CanEdit,
		EditLabel:  DefaultEditLabel,
		CloseLabel: DefaultCloseLabel,
	}
	if o.ShowRatingSummary && s.LastSubmitted != nil {
		v.Summary = &Summary{
			TypeLabel: s.LastSubmitted.Type.Label(),
			Rating:    s.LastSubmitted.Rating,
			Comment:   s.LastSubmitted.Comment,
		}
	}
	return v
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
