package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// duplicateVoteDetail is the exact detail string the backend returns when
// the user already voted for the position. Matching anything looser risks
// misreading validation errors as duplicates.
const duplicateVoteDetail = "Already voted for this position"

// Error variables for consistent error handling
var (
	ErrAuthFailure          = errors.New("authentication failed")
	ErrSessionExpired       = errors.New("stored credential rejected")
	ErrCatalogUnavailable   = errors.New("election catalog unavailable")
	ErrSubmissionInProgress = errors.New("vote submission already in progress")
	ErrAlreadyVoted         = errors.New("already voted for this position")
	ErrResultsUnavailable   = errors.New("election results unavailable")
)

// APIError carries the backend's extracted rejection message alongside the
// HTTP status. It covers every rejection that is not a duplicate vote.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
}

// errorPayload mirrors the backend's error body: detail is either a plain
// string or a list of validation items each carrying a msg.
type errorPayload struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// decodeError turns a non-2xx response into a taxonomy error. Duplicate-vote
// rejections become ErrAlreadyVoted, everything else an *APIError with the
// extracted message.
func decodeError(resp *http.Response, fallback string) error {
	msg := extractDetail(resp.Body, fallback)
	if msg == duplicateVoteDetail {
		return ErrAlreadyVoted
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// extractDetail reads the backend error payload and returns a single
// human-readable message. Lists of validation messages are joined with ", ".
func extractDetail(body io.Reader, fallback string) string {
	var payload errorPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail != "" {
		return detail
	}

	var items []validationItem
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, ", ")
		}
	}

	return fallback
}

// ErrorMessage returns the user-facing message for any error produced by this
// package, falling back to err.Error() for transport-level failures.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ErrAlreadyVoted) {
		return duplicateVoteDetail
	}
	return err.Error()
}
