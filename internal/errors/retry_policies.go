package errors

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// RetryPolicy pairs a backoff schedule with an optional allow-list of
// retryable error substrings, matching the three named presets of the
// download pipeline's retry policy. Unlike RetryConfig's jitter (a
// multiplicative 0.5-1.0x factor), a Policy's jitter is additive:
// backoff + rand[0, backoff/4], matching the pipeline's stated bound.
type RetryPolicy struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	Multiplier       float64
	Jitter           bool
	RetryablePattern []string // lowercase substrings; nil/empty means retry all errors
}

// RetryPolicyForNetwork retries connection-level failures: refused,
// reset, timed out, or a broken pipe.
func RetryPolicyForNetwork() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     120 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		RetryablePattern: []string{
			"connection", "timeout", "refused", "reset", "broken pipe",
		},
	}
}

// RetryPolicyForFileIO retries transient filesystem contention:
// permission races, file locks, and "resource busy".
func RetryPolicyForFileIO() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		RetryablePattern: []string{
			"permission", "locked", "busy",
		},
	}
}

// RetryPolicyForDatabase retries embedded-KV contention: locked
// databases, deadlocks, and write conflicts.
func RetryPolicyForDatabase() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		RetryablePattern: []string{
			"locked", "deadlock", "concurrent", "conflict",
		},
	}
}

// isRetryable reports whether err matches one of the policy's allowed
// substrings. An empty pattern list retries every error.
func (p RetryPolicy) isRetryable(err error) bool {
	if len(p.RetryablePattern) == 0 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range p.RetryablePattern {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// backoffFor computes the (possibly jittered) backoff duration before
// the given zero-indexed attempt's retry.
func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.Multiplier
	}
	if max := float64(p.MaxBackoff); backoff > max {
		backoff = max
	}
	d := time.Duration(backoff)
	if p.Jitter && d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
	}
	return d
}

// Run executes fn, retrying on pattern-matching errors according to the
// policy's backoff schedule. It honors ctx cancellation between
// attempts and during backoff sleeps.
func (p RetryPolicy) Run(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.isRetryable(err) {
			return fmt.Errorf("non-retryable error in %s: %w", op, err)
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoffFor(attempt)):
		}
	}

	return fmt.Errorf("failed after %d attempts for %s: %w", p.MaxAttempts, op, lastErr)
}
