package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
)

type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindNetwork         ErrorKind = "network"
	KindCancelled       ErrorKind = "cancelled"
	KindNotFound        ErrorKind = "not_found"
)

// CallError is the classified failure of a single classification call.
// The pipeline branches on Kind; the message is for logs and summaries.
type CallError struct {
	Kind    ErrorKind
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Transient reports whether retrying the call can reasonably succeed.
func (e *CallError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimited, KindNetwork:
		return true
	}
	return false
}

func Errf(kind ErrorKind, format string, args ...any) *CallError {
	return &CallError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// classifyErr maps an arbitrary provider error onto the call taxonomy.
func classifyErr(err error) *CallError {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Errf(KindTimeout, "%v", err)
	}
	if errors.Is(err, context.Canceled) {
		return Errf(KindCancelled, "%v", err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, apiErr.Error())
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Errf(KindTimeout, "%v", err)
	}
	return Errf(KindNetwork, "%v", err)
}

func classifyStatus(status int, msg string) *CallError {
	switch {
	case status == 408:
		return Errf(KindTimeout, "http %d: %s", status, msg)
	case status == 429:
		return Errf(KindRateLimited, "http %d: %s", status, msg)
	case status >= 500:
		return Errf(KindNetwork, "http %d: %s", status, msg)
	default:
		// Permanent rejections (bad request, auth) are not retryable.
		return Errf(KindInvalidResponse, "http %d: %s", status, msg)
	}
}
