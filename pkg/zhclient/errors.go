package zhclient

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is a failed envelope returned by the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string // per-field validation messages, if any
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("zhclient: %d %s", e.StatusCode, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("zhclient: %d %s (%s)", e.StatusCode, e.Message, strings.Join(parts, "; "))
}

// StatusOf returns the HTTP status of an *APIError, or 0 for any other
// error.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }
func IsForbidden(err error) bool    { return StatusOf(err) == http.StatusForbidden }
func IsNotFound(err error) bool     { return StatusOf(err) == http.StatusNotFound }
func IsConflict(err error) bool     { return StatusOf(err) == http.StatusConflict }
func IsBadRequest(err error) bool   { return StatusOf(err) == http.StatusBadRequest }
