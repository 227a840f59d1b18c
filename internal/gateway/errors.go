package gateway

import (
	"fmt"
	"time"
)

// UpstreamError indicates the provider returned a failure for a model call.
// The orchestrator treats this as a member-level failure.
type UpstreamError struct {
	Model      string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error from %s: status %d: %s", e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error from %s: %s", e.Model, e.Message)
}

// TimeoutError indicates a model call exceeded its deadline.
type TimeoutError struct {
	Model   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model %s timed out after %s", e.Model, e.Timeout)
}

// RateLimitError indicates the provider throttled a model call. The
// orchestrator may retry it once after a delay.
type RateLimitError struct {
	Model string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("model %s rate limited by provider", e.Model)
}
