// Package feedback implements the feedback dialog state machine.
//
// A Machine owns everything the dialog shows: the options it was opened with,
// the in-progress Draft, the submission lifecycle and the edit-after-submit flow.
// Views never mutate state directly; they call Machine operations and render the
// Snapshot they are notified with.
package feedback

import (
	"strings"
	"time"

	"github.com/bluefermion/marketfeedback/internal/model"
)

// MaxCommentLength is the comment limit in characters.
const MaxCommentLength = 1000

// MaxRating is the highest selectable rating. 0 means "not rated yet".
const MaxRating = 5

// Type is the feedback category chosen in the dialog.
type Type string

const (
	TypeUserExperience Type = "user-experience"
	TypePerformance    Type = "performance"
	TypeProductService Type = "product-service"
	TypeTransactional  Type = "transactional"
)

// DefaultType is selected when the opener gives no hint.
const DefaultType = TypeUserExperience

// Types lists the selectable types in display order.
var Types = []Type{TypeUserExperience, TypePerformance, TypeProductService, TypeTransactional}

// ParseType accepts the kebab-case, snake_case and camelCase spellings.
func ParseType(s string) (Type, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	switch key {
	case "user-experience", "userexperience", "ux":
		return TypeUserExperience, true
	case "performance":
		return TypePerformance, true
	case "product-service", "productservice":
		return TypeProductService, true
	case "transactional":
		return TypeTransactional, true
	}
	return "", false
}

// Wire returns the canonical snake-case value sent as feedback_type.
func (t Type) Wire() string {
	switch t {
	case TypePerformance:
		return model.FeedbackTypePerformance
	case TypeProductService:
		return model.FeedbackTypeProductService
	case TypeTransactional:
		return model.FeedbackTypeTransactional
	default:
		return model.FeedbackTypeUserExperience
	}
}

// Label is the human-readable name.
func (t Type) Label() string {
	switch t {
	case TypePerformance:
		return "Performance"
	case TypeProductService:
		return "Product / Service"
	case TypeTransactional:
		return "Transactional"
	default:
		return "User Experience"
	}
}

// Draft is the in-progress submission.
type Draft struct {
	Rating  int
	Comment string
	Type    Type
}

func newDraft(t Type) Draft {
	return Draft{Type: t}
}

// Options configure one opening of the dialog. They are never persisted.
type Options struct {
	Title          string
	Subtitle       string
	SubmitLabel    string
	HomeLabel      string
	SuccessTitle   string
	SuccessMessage string

	// ShowRatingSummary shows type, rating and comment on the success screen.
	ShowRatingSummary bool
	// AutoCloseDelay closes the dialog that long after success. Nil disables auto-close.
	AutoCloseDelay *time.Duration

	// Meta is passed through to the submission payload (order id, subject, priority, ...).
	Meta map[string]any

	// OnSubmitted runs after the backend accepted the draft. A returned error is
	// shown like a submission failure.
	OnSubmitted func(Draft) error
	// OnClosed runs whenever the dialog is dismissed.
	OnClosed func()
}

// AutoCloseAfter is a helper for Options.AutoCloseDelay.
func AutoCloseAfter(d time.Duration) *time.Duration {
	return &d
}

// typeHint reads an initial type from the opener's meta.
func (o Options) typeHint() (Type, bool) {
	for _, key := range []string{"type", "feedbackType", "feedback_type", "category"} {
		if s, ok := o.Meta[key].(string); ok {
			if t, ok := ParseType(s); ok {
				return t, true
			}
		}
	}
	return "", false
}

// State is the dialog lifecycle position.
type State int

const (
	StateClosed State = iota
	StateEditing
	StateSubmitting
	StateSuccess
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "open-editing"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	default:
		return "closed"
	}
}

// Identity is the acting marketplace user, if known.
type Identity struct {
	UserID string
	Role   string
}

// IdentityFunc returns the current user. ok is false for anonymous visitors.
type IdentityFunc func() (id Identity, ok bool)

// StaticIdentity always returns id; an empty UserID is treated as anonymous.
func StaticIdentity(id Identity) IdentityFunc {
	return func() (Identity, bool) {
		return id, id.UserID != ""
	}
}
