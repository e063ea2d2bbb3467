package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ErrTransport marks failures where no HTTP response was received.
var ErrTransport = errors.New("apiclient: transport failure")

// Error is returned for every non-2xx response.
type Error struct {
	Status int
	// Message is the human-readable message from the body ("message", then "error"). May be empty.
	Message string
	// Code is the machine-readable code from the body ("code", then "error"). May be empty.
	Code string
	// Details is the raw JSON error body, nil when the body was not JSON.
	Details json.RawMessage
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" && e.Code != msg {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, msg)
}

// IsValidation reports whether the backend rejected the input.
func (e *Error) IsValidation() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
}

// FieldError is one field-level message from an error body.
type FieldError struct {
	Field   string
	Message string
}

// Field error bodies are looked up under these keys, in order.
var fieldKeys = []string{"fields", "errors", "details"}

// FieldList extracts per-field messages from Details in display order. It
// understands two shapes under "fields", "errors" or "details":
//
//	{"comment": ["too short"], "rating": "required"}      objects, visited by field name
//	[{"field": "comment", "message": "too short"}, ...]   lists, kept in order
//
// List items may name the field "field", "param" or "path" and the text
// "message" or "msg".
func (e *Error) FieldList() []FieldError {
	if len(e.Details) == 0 {
		return nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(e.Details, &body); err != nil {
		return nil
	}
	for _, key := range fieldKeys {
		raw, ok := body[key]
		if !ok {
			continue
		}
		if out := fieldsFromObject(raw); len(out) > 0 {
			return out
		}
		if out := fieldsFromList(raw); len(out) > 0 {
			return out
		}
	}
	return nil
}

// FieldErrors is FieldList grouped by field.
func (e *Error) FieldErrors() map[string][]string {
	list := e.FieldList()
	if len(list) == 0 {
		return nil
	}
	out := make(map[string][]string, len(list))
	for _, fe := range list {
		out[fe.Field] = append(out[fe.Field], fe.Message)
	}
	return out
}

func fieldsFromObject(raw json.RawMessage) []FieldError {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []FieldError
	for _, name := range names {
		var list []string
		if err := json.Unmarshal(fields[name], &list); err == nil {
			for _, msg := range list {
				if msg != "" {
					out = append(out, FieldError{Field: name, Message: msg})
				}
			}
			continue
		}
		var single string
		if err := json.Unmarshal(fields[name], &single); err == nil && single != "" {
			out = append(out, FieldError{Field: name, Message: single})
		}
	}
	return out
}

func fieldsFromList(raw json.RawMessage) []FieldError {
	var items []struct {
		Field   string `json:"field"`
		Param   string `json:"param"`
		Path    string `json:"path"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []FieldError
	for _, it := range items {
		msg := it.Message
		if msg == "" {
			msg = it.Msg
		}
		if msg == "" {
			continue
		}
		name := it.Field
		if name == "" {
			name = it.Param
		}
		if name == "" {
			name = it.Path
		}
		out = append(out, FieldError{Field: name, Message: msg})
	}
	return out
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func parseError(status int, payload []byte) *Error {
	apiErr := &Error{Status: status}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		if len(trimmed) > 0 && len(trimmed) <= 200 {
			apiErr.Message = string(trimmed)
		}
		return apiErr
	}
	apiErr.Details = json.RawMessage(trimmed)

	var body struct {
		Message any `json:"message"`
		Error   any `json:"error"`
		Code    any `json:"code"`
	}
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return apiErr
	}
	message, errField, code := asString(body.Message), asString(body.Error), asString(body.Code)

	apiErr.Message = message
	if apiErr.Message == "" {
		apiErr.Message = errField
	}
	apiErr.Code = code
	if apiErr.Code == "" {
		apiErr.Code = errField
	}
	return apiErr
}

// asString accepts strings and numbers; codes are sometimes numeric.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return ""
	}
}
