// Package retry holds the backoff policy applied to transient git network failures.
package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/depsync/internal/config"
)

// Policy is an immutable description of how often and how slowly to retry.
// A zero MaxRetries disables retrying entirely.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy never retries; retrying must be enabled explicitly.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second}
}

// FromGitConfig builds a policy from the git section of the configuration.
// Unparseable durations keep the defaults.
func FromGitConfig(g config.GitConfig) Policy {
	p := DefaultPolicy()
	if g.MaxRetries > 0 {
		p.MaxRetries = g.MaxRetries
	}
	if d, err := time.ParseDuration(g.RetryInitialDelay); err == nil && d > 0 {
		p.Initial = d
	}
	if d, err := time.ParseDuration(g.RetryMaxDelay); err == nil && d > 0 {
		p.Max = d
	}
	if mode := config.NormalizeRetryBackoff(string(g.RetryBackoff)); mode != "" {
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		d = p.Initial << (n - 1)
		if d <= 0 { // overflow
			d = p.Max
		}
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Do runs op until it succeeds, returns a non-transient error, or the retry
// budget is spent. onRetry, when non-nil, is told about every retry before the wait.
func (p Policy) Do(ctx context.Context, op func(context.Context) error, transient func(error) bool, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || transient == nil || !transient(err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt+1, err)
		}
		timer := time.NewTimer(p.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
