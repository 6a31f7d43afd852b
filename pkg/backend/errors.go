package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
)

const authNotProvided = "Authentication credentials were not provided"

// APIError is a non-2xx backend response.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *APIError) StatusCode() int {
	return e.Status
}

func (e *APIError) Detail() string {
	return e.Message
}

// Quiet marks anonymous reads hitting an authenticated endpoint. They are
// logged but never shown to the user.
func (e *APIError) Quiet() bool {
	if e == nil {
		return false
	}
	read := e.Method == "" || e.Method == http.MethodGet
	return read && e.Status == http.StatusForbidden && strings.Contains(e.Message, authNotProvided)
}

// Detail returns the backend's human readable message for err, or fallback.
func Detail(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

// IsStatus reports whether err is a backend response with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func codeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	}
	return pkgerrors.CodeDependency
}

// extractDetail pulls the message out of DRF style error bodies:
// {"detail": "..."}, {"message": "..."} or {"field": ["..."]}.
func extractDetail(raw []byte, fallback string) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "<") {
			return text
		}
		return fallback
	}
	for _, key := range []string{"detail", "message", "error", "non_field_errors"} {
		if msg := firstMessage(body[key]); msg != "" {
			return msg
		}
	}
	keys := make([]string, 0, len(body))
	for key := range body {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if msg := firstMessage(body[key]); msg != "" {
			return key + ": " + msg
		}
	}
	return fallback
}

func firstMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0])
	}
	return ""
}
