// Package graph provides an HTTP client for the Microsoft Graph API covering
// the calls needed to place one file into a SharePoint document library:
// site lookup, library listing, folder lookup and creation, and uploads.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, graph.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("graph: bad request")
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrConflict     = errors.New("graph: conflict")
	ErrGone         = errors.New("graph: resource gone")
	ErrThrottled    = errors.New("graph: throttled")
	ErrLocked       = errors.New("graph: resource locked")
	ErrServerError  = errors.New("graph: server error")
)

// CodeNameAlreadyExists is the Graph error code returned when a create with
// conflictBehavior "fail" collides with an existing item.
const CodeNameAlreadyExists = "nameAlreadyExists"

// maxErrorBody bounds how much of an error response is read into memory.
const maxErrorBody = 64 * 1024

// GraphError wraps a sentinel error with HTTP status code, request ID,
// the raw response body and, when the body is a Graph error document, its
// decoded form.
type GraphError struct {
	StatusCode int
	RequestID  string
	Message    string
	Provider   *ProviderError // nil when the body was not a Graph error document
	Err        error          // sentinel, for errors.Is()
}

func (e *GraphError) Error() string {
	msg := e.Message
	if e.Provider != nil {
		msg = e.Provider.Code + ": " + e.Provider.Message
	}

	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, msg)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, msg)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// ProviderError is the structured error document Graph returns in the
// "error" member of a failed response.
type ProviderError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Target  string        `json:"target,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
	Inner   *InnerError   `json:"innerError,omitempty"` //nolint:tagliatelle // Graph API casing
}

// ErrorDetail is one entry of ProviderError.Details.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

// InnerError is a link in the singly-linked chain of nested errors. Graph
// usually nests one or two levels; callers walking the chain must bound it.
type InnerError struct {
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"request-id,omitempty"` //nolint:tagliatelle // Graph API casing
	Date      string      `json:"date,omitempty"`
	Inner     *InnerError `json:"innerError,omitempty"` //nolint:tagliatelle // Graph API casing
}

// errorEnvelope is the top-level JSON shape of a Graph error response.
type errorEnvelope struct {
	Error *ProviderError `json:"error"`
}

// DecodeProviderError parses a Graph error response body. It returns nil if
// the body is not a Graph error document.
func DecodeProviderError(body []byte) *ProviderError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}

	if env.Error == nil || (env.Error.Code == "" && env.Error.Message == "") {
		return nil
	}

	return env.Error
}

// newGraphError reads and closes the body of a failed response and builds
// the corresponding *GraphError.
func newGraphError(resp *http.Response) *GraphError {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	if readErr != nil {
		body = []byte("(failed to read response body)")
	}

	reqID := resp.Header.Get("request-id")

	provider := DecodeProviderError(body)
	if provider != nil && reqID == "" && provider.Inner != nil {
		reqID = provider.Inner.RequestID
	}

	return &GraphError{
		StatusCode: resp.StatusCode,
		RequestID:  reqID,
		Message:    string(body),
		Provider:   provider,
		Err:        classifyStatus(resp.StatusCode),
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx success codes.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusGone:
		return ErrGone
	case http.StatusTooManyRequests:
		return ErrThrottled
	case http.StatusLocked:
		return ErrLocked
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsNameConflict reports whether err says an item with the requested name
// already exists. The structured code is authoritative; matching on the
// message text is only a fallback for responses that omit the code.
func IsNameConflict(err error) bool {
	var ge *GraphError
	if !errors.As(err, &ge) {
		return false
	}

	if ge.Provider != nil {
		if ge.Provider.Code == CodeNameAlreadyExists {
			return true
		}

		for in := ge.Provider.Inner; in != nil; in = in.Inner {
			if in.Code == CodeNameAlreadyExists {
				return true
			}
		}
	}

	if ge.StatusCode != http.StatusConflict {
		return false
	}

	return strings.Contains(strings.ToLower(ge.Message), "already exists")
}
