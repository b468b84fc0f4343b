package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.home.luguber.info/inful/depsync/internal/config"
)

func TestDefaultPolicyDoesNotRetry(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxRetries != 0 {
		t.Fatalf("expected retries disabled by default, got %d", p.MaxRetries)
	}
	if p.Mode != config.RetryBackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
}

func TestFromGitConfigClampsInitial(t *testing.T) {
	p := FromGitConfig(config.GitConfig{
		MaxRetries:        3,
		RetryBackoff:      "fixed",
		RetryInitialDelay: "5s",
		RetryMaxDelay:     "2s",
	})
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != config.RetryBackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 3 {
		t.Fatalf("expected 3 retries got %d", p.MaxRetries)
	}
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond
	cases := []struct {
		mode    config.RetryBackoffMode
		initial time.Duration
		max     time.Duration
		want    []time.Duration
	}{
		{config.RetryBackoffFixed, 100 * ms, 500 * ms, []time.Duration{100 * ms, 100 * ms, 100 * ms}},
		{config.RetryBackoffLinear, 100 * ms, 250 * ms, []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms}},
		{config.RetryBackoffExponential, 50 * ms, 160 * ms, []time.Duration{50 * ms, 100 * ms, 160 * ms, 160 * ms}},
	}
	for _, c := range cases {
		p := Policy{Mode: c.mode, Initial: c.initial, Max: c.max}
		for i, want := range c.want {
			if got := p.Delay(i + 1); got != want {
				t.Fatalf("%s attempt %d expected %v got %v", c.mode, i+1, want, got)
			}
		}
	}
	if d := DefaultPolicy().Delay(0); d != 0 {
		t.Fatalf("expected zero delay for attempt 0, got %v", d)
	}
}

var errTransient = errors.New("connection reset")

func TestDoRetriesTransientOnly(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}
	isTransient := func(err error) bool { return errors.Is(err, errTransient) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, isTransient, nil)
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 calls, got err=%v calls=%d", err, calls)
	}

	calls = 0
	permanent := errors.New("repository not found")
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	}, isTransient, nil)
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected single attempt for permanent error, got err=%v calls=%d", err, calls)
	}
}

func TestDoDisabledByDefault(t *testing.T) {
	calls := 0
	retried := false
	_ = DefaultPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, func(error) bool { return true }, func(int, error) { retried = true })
	if calls != 1 || retried {
		t.Fatalf("expected exactly one attempt, got %d (retried=%v)", calls, retried)
	}
}
