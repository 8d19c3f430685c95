package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// AuthError reports a failed credential exchange.
type AuthError struct {
	Registry string
	// Status is the HTTP status of the failing response, 0 when none.
	Status  int
	message string
	err     error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth: %s: %s", e.Registry, e.message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.err }

func (e *AuthError) Is(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}

// AuthExpiredError is returned instead of sending a request with a token
// whose validity window has elapsed.
type AuthExpiredError struct {
	ExpiredAt time.Time
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("auth: token expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

func (e *AuthExpiredError) Is(err error) bool {
	_, ok := err.(*AuthExpiredError)
	return ok
}

// FetchError reports a failed manifest or blob request.
type FetchError struct {
	URL     string
	Status  int
	Timeout bool
	err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch: %s: timed out", e.URL)
	case e.Status != 0:
		return fmt.Sprintf("fetch: %s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
	default:
		return fmt.Sprintf("fetch: %s: %v", e.URL, e.err)
	}
}

func (e *FetchError) Unwrap() error { return e.err }

func (e *FetchError) Is(err error) bool {
	_, ok := err.(*FetchError)
	return ok
}

// Retryable is true for timeouts, throttling and server side failures.
func (e *FetchError) Retryable() bool {
	return e.Timeout || e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// IntegrityError reports a blob whose content does not hash to its digest.
type IntegrityError struct {
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: blob %s hashed to %s", e.Expected, e.Actual)
}

func (e *IntegrityError) Is(err error) bool {
	_, ok := err.(*IntegrityError)
	return ok
}

// ParseError reports a malformed manifest.
type ParseError struct {
	message string
	err     error
}

func (e *ParseError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("parse manifest: %s: %v", e.message, e.err)
	}
	return "parse manifest: " + e.message
}

func (e *ParseError) Unwrap() error { return e.err }

func (e *ParseError) Is(err error) bool {
	_, ok := err.(*ParseError)
	return ok
}

// IsRetryable reports whether err is a FetchError worth retrying.
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable()
}

// fetchErr classifies a transport level failure.
func fetchErr(url string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &FetchError{URL: url, Timeout: true, err: err}
	}
	return &FetchError{URL: url, err: err}
}
