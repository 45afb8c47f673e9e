package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Sentinel errors marking the pipeline's terminal failure kinds. Every error
// that escapes the orchestrator wraps exactly one of these.
var (
	ErrAPIKeyMissing        = errors.New("api key missing")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrRequestFailed        = errors.New("request failed")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrImageProcessing      = errors.New("image processing failed")
	ErrTimeout              = errors.New("timeout")
	ErrNetworkUnavailable   = errors.New("network unavailable")
	ErrRateLimited          = errors.New("rate limited")
	ErrUpstream             = errors.New("upstream error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrRequestFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// UpstreamError carries the status code and optional message returned by a
// remote service. It wraps ErrUpstream (or ErrRateLimited for 429) so kind
// classification still works through errors.Is.
type UpstreamError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("upstream error: http %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream error: http %d: %s", e.StatusCode, msg)
}

func (e *UpstreamError) Unwrap() error {
	if e.StatusCode == 429 {
		return ErrRateLimited
	}
	return ErrUpstream
}

// Kind identifies the user-visible message class for a terminal failure.
type Kind string

const (
	KindAPIKeyMissing        Kind = "api_key_missing"
	KindInvalidConfiguration Kind = "invalid_configuration"
	KindRequestFailed        Kind = "request_failed"
	KindInvalidResponse      Kind = "invalid_response"
	KindImageProcessing      Kind = "image_processing_failed"
	KindTimeout              Kind = "timeout"
	KindNetworkUnavailable   Kind = "network_unavailable"
	KindRateLimited          Kind = "rate_limited"
	KindUpstream             Kind = "upstream_error"
)

// Classify maps an error that escaped the pipeline to its failure kind.
// Context deadline errors always classify as timeout, regardless of which
// stage was active when the deadline fired.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindRequestFailed
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded), isNetTimeout(err):
		return KindTimeout
	case errors.Is(err, ErrAPIKeyMissing):
		return KindAPIKeyMissing
	case errors.Is(err, ErrInvalidConfiguration):
		return KindInvalidConfiguration
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	case errors.Is(err, ErrImageProcessing):
		return KindImageProcessing
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrNetworkUnavailable), isNetError(err):
		return KindNetworkUnavailable
	default:
		return KindRequestFailed
	}
}

// UserMessage renders the single user-facing message class for a kind. The
// presentation layer may localize these; the pipeline never bakes display
// strings into progress state.
func UserMessage(kind Kind) string {
	switch kind {
	case KindAPIKeyMissing:
		return "No API key is configured. Add one with 'lumen config init'."
	case KindInvalidConfiguration:
		return "The configuration is invalid. Check your config file."
	case KindInvalidResponse:
		return "The recognition service returned a malformed response."
	case KindImageProcessing:
		return "The photo could not be processed. Try another shot."
	case KindTimeout:
		return "Recognition timed out. Try again."
	case KindNetworkUnavailable:
		return "The network is unavailable. Check your connection."
	case KindRateLimited:
		return "The service is rate limiting requests. Wait a moment and retry."
	case KindUpstream:
		return "The recognition service reported an error."
	default:
		return "The request failed. Try again."
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
