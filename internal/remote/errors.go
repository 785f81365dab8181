package remote

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"advising-chat/internal/constant"
)

var (
	ErrRemoteUnavailable = errors.New("remote endpoint is not configured")
	ErrCredential        = errors.New("failed to retrieve authentication token")
	ErrRateLimited       = errors.New("daily query limit reached")
	ErrMalformedResponse = errors.New("malformed response")
)

// HTTPError is any non-2xx answer. A daily-quota rejection is an HTTPError that also
// matches ErrRateLimited under errors.Is.
type HTTPError struct {
	Status      int
	Body        string
	RateLimited bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote error: status %d, body: %s", e.Status, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

type errorBody struct {
	Error string `json:"error"`
}

// classifyStatus builds the error for a non-2xx chat or CRUD answer.
func classifyStatus(status int, body []byte) error {
	return &HTTPError{
		Status:      status,
		Body:        string(body),
		RateLimited: status == http.StatusUnauthorized && hasDailyLimitMarker(body),
	}
}

func hasDailyLimitMarker(body []byte) bool {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error == constant.DailyLimitMarker {
		return true
	}
	return bytes.Contains(body, []byte(constant.DailyLimitMarker))
}
