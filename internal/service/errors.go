package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/maheshrc27/instaflow/internal/transfer"
)

// PlatformError is a non-2xx response from the Graph API. The raw body and the
// decoded error object are both kept so callers can record exactly what the
// platform said.
type PlatformError struct {
	Op         string
	StatusCode int
	Body       string
	Graph      *transfer.InstagramError
}

func newPlatformError(op string, statusCode int, body []byte) *PlatformError {
	perr := &PlatformError{Op: op, StatusCode: statusCode, Body: strings.TrimSpace(string(body))}

	var parsed transfer.InstagramErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		perr.Graph = parsed.Error
	}
	return perr
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: instagram returned status %d: %s", e.Op, e.StatusCode, e.Detail())
}

// Detail is the structured error payload as JSON when the platform sent one,
// otherwise the raw response body.
func (e *PlatformError) Detail() string {
	if e.Graph != nil {
		b, err := json.Marshal(e.Graph)
		if err == nil {
			return string(b)
		}
	}
	return e.Body
}

func (e *PlatformError) RateLimited() bool {
	if e.Graph == nil {
		return e.StatusCode == 429
	}
	switch e.Graph.Code {
	case 4, 17, 32, 613:
		return true
	}
	return false
}

// ErrorDetail prefers the platform's structured payload over the wrapped message.
func ErrorDetail(err error) string {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.Detail()
	}
	return err.Error()
}

// IsRateLimited reports whether err carries a platform rate-limit response.
func IsRateLimited(err error) bool {
	var perr *PlatformError
	return errors.As(err, &perr) && perr.RateLimited()
}
