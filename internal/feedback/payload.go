package feedback

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bluefermion/marketfeedback/internal/model"
)

// coreFields are written by the dialog and cannot be overridden through meta.
var coreFields = map[string]bool{
	"rating":        true,
	"comment":       true,
	"feedback_type": true,
	"user_type":     true,
	"feedbackType":  true,
	"type":          true,
	"category":      true,
	"message":       true,
}

// BuildPayload renders a draft into the body sent to the feedback service.
//
// Order of precedence: defaults, then caller meta, then the draft itself.
// user_id from meta wins over the identity so that admin tooling can submit on
// behalf of another user.
func BuildPayload(d Draft, meta map[string]any, who Identity, known bool, legacyAliases bool) model.SubmissionPayload {
	p := model.SubmissionPayload{
		"subject":  fmt.Sprintf("%s feedback", d.Type.Label()),
		"priority": model.DefaultPriority,
		"status":   model.DefaultStatus,
	}
	if known && who.UserID != "" {
		p["user_id"] = who.UserID
	}

	for k, v := range meta {
		if coreFields[k] || v == nil {
			continue
		}
		p[k] = v
	}

	p["rating"] = d.Rating
	p["comment"] = d.Comment
	p["feedback_type"] = d.Type.Wire()
	p["user_type"] = normalizeUserType(who.Role, known)

	if legacyAliases {
		p["feedbackType"] = string(d.Type)
		p["type"] = d.Type.Wire()
		p["category"] = d.Type.Wire()
		p["message"] = d.Comment
	}
	return p
}

func normalizeUserType(role string, known bool) string {
	if !known {
		return model.UserTypeAnonymous
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if model.IsUserType(role) {
		return role
	}
	return model.UserTypeAnonymous
}

// recordID extracts the created record's id from a response body that has
// already had its envelope removed. Strings and json.Number are both accepted;
// numbers keep their literal text so ids above 2^53 survive intact.
func recordID(body map[string]any) string {
	for _, key := range []string{"id", "feedback_id"} {
		switch v := body[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
