package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrTransport matches errors where no HTTP response was received.
var ErrTransport = errors.New("transport failure")

// Error is returned by every operation that reached the network. Status is
// zero when the request never got a response.
type Error struct {
	Op     string
	Status int
	Detail string
	Err    error
}

// Error returns the backend detail when present, otherwise the operation's
// fallback message.
func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fallback(e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == ErrTransport && e.Status == 0
}

// ValidationError reports inputs rejected before any request was built.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string { return e.Message }

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool { return hasStatus(err, http.StatusForbidden) }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func hasStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}

var fallbacks = map[string]string{
	opLogin:         "Login failed",
	opRegister:      "Registration failed",
	opListProjects:  "Failed to load projects",
	opGetProject:    "Failed to load project",
	opCreateProject: "Failed to create project",
	opUpdateProject: "Failed to update project",
	opListTasks:     "Failed to load tasks",
	opGetTask:       "Failed to load task",
	opCreateTask:    "Failed to create task",
	opUpdateTask:    "Failed to update task",
	opListBugs:      "Failed to load bugs",
	opGetBug:        "Failed to load bug",
	opCreateBug:     "Failed to create bug report",
	opUpdateBug:     "Failed to update bug",
	opDashboard:     "Failed to load dashboard data",
}

func fallback(op string) string {
	if msg, ok := fallbacks[op]; ok {
		return msg
	}
	return "Request failed"
}

// parseDetail extracts a human message from an error body. The backend
// sends {"detail": "..."}; request validation failures send a list of
// {"msg": "..."} objects, summarised by the first one.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &list); err == nil && len(list) > 0 {
		return strings.TrimSpace(list[0].Msg)
	}
	return ""
}
