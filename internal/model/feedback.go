// Package model defines the wire-level entities exchanged with the feedback service.
//
// The same types are used on both sides of the wire: the dialog client builds
// SubmissionPayload values and reads Feedback records back, while the reference
// backend binds FeedbackRequest bodies and persists Feedback records.
package model

import "time"

// Canonical snake-case feedback types accepted by the feedback service.
const (
	FeedbackTypeUserExperience = "user_experience"
	FeedbackTypePerformance    = "performance"
	FeedbackTypeProductService = "product_service"
	FeedbackTypeTransactional  = "transactional"
)

// Marketplace roles that may appear as user_type. Anything else is sent as UserTypeAnonymous.
const (
	UserTypeFarmer    = "farmer"
	UserTypeConsumer  = "consumer"
	UserTypeDriver    = "driver"
	UserTypeAdmin     = "admin"
	UserTypeAnonymous = "anonymous"
)

// Defaults applied when the opener does not supply priority or status.
const (
	DefaultPriority = "medium"
	DefaultStatus   = "pending"
)

// UserTypes is the allow-list for user_type.
var UserTypes = []string{UserTypeFarmer, UserTypeConsumer, UserTypeDriver, UserTypeAdmin, UserTypeAnonymous}

// IsUserType reports whether role is on the user_type allow-list.
func IsUserType(role string) bool {
	for _, t := range UserTypes {
		if t == role {
			return true
		}
	}
	return false
}

// Feedback is a stored feedback record.
type Feedback struct {
	ID int64 `json:"id"`

	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	FeedbackType string `json:"feedback_type"`

	// Triage fields. Subject, priority and status default on the client so that
	// older backends that require them accept the record.
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
	Status   string `json:"status"`

	// Who submitted it. UserID is empty for anonymous visitors.
	UserID   string `json:"user_id,omitempty"`
	UserType string `json:"user_type"`

	// Meta holds caller-supplied context (order id, page, ...) that the service does not interpret.
	Meta map[string]any `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedbackRequest is the body of POST /feedback and PUT /feedback/{id}.
//
// The legacy fields are read only when the canonical ones are empty; they exist
// for clients that still send the camelCase or aliased names.
type FeedbackRequest struct {
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	Comment      string `json:"comment" binding:"max=1000"`
	FeedbackType string `json:"feedback_type" binding:"omitempty,oneof=user_experience performance product_service transactional"`
	Subject      string `json:"subject" binding:"max=200"`
	Priority     string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Status       string `json:"status" binding:"omitempty,oneof=pending reviewed resolved"`
	UserID       string `json:"user_id" binding:"max=64"`
	UserType     string `json:"user_type" binding:"omitempty,oneof=farmer consumer driver admin anonymous"`

	LegacyFeedbackType string `json:"feedbackType,omitempty"`
	LegacyType         string `json:"type,omitempty"`
	LegacyCategory     string `json:"category,omitempty"`
	LegacyMessage      string `json:"message,omitempty" binding:"max=1000"`
}

// SubmissionPayload is the JSON object the dialog sends. Meta keys are merged at
// the top level, so it is modelled as a map rather than a struct.
type SubmissionPayload map[string]any

// FeedbackResponse wraps a record in the service's success envelope.
type FeedbackResponse struct {
	Data    *Feedback `json:"data"`
	Message string    `json:"message,omitempty"`
}

// FeedbackListResponse is the envelope for GET /feedback.
type FeedbackListResponse struct {
	Data   []*Feedback `json:"data"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ErrorResponse defines the standard error structure.
// Fields maps a request field to its validation messages, first message first.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Code    string              `json:"code,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
	ErrorID string              `json:"error_id,omitempty"`
}
