package git

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"

	ferrors "git.home.luguber.info/inful/depsync/internal/foundation/errors"
)

func TestClassifyNetworkError(t *testing.T) {
	const url = "https://example.com/r.git"
	tests := []struct {
		name  string
		in    error
		check func(error) bool
	}{
		{"auth sentinel", transport.ErrAuthenticationRequired, func(e error) bool { return errors.As(e, new(*AuthError)) }},
		{"repo not found", transport.ErrRepositoryNotFound, func(e error) bool { return errors.As(e, new(*NotFoundError)) }},
		{"missing ref", gogit.NoMatchingRefSpecError{}, isRefMissing},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), func(e error) bool { return errors.As(e, new(*NetworkTimeoutError)) }},
		{"rate limit text", errors.New("HTTP 429 too many requests"), func(e error) bool { return errors.As(e, new(*RateLimitError)) }},
		{"scheme text", errors.New("unsupported scheme \"foo\""), func(e error) bool { return errors.As(e, new(*UnsupportedProtocolError)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyNetworkError("fetch", url, "8.0", tt.in)
			assert.True(t, tt.check(got), "unexpected classification %T: %v", got, got)
			assert.True(t, errors.Is(got, tt.in))
		})
	}
	assert.Nil(t, classifyNetworkError("fetch", url, "8.0", nil))
}

func TestRepositoryNotFoundIsNotRefMissing(t *testing.T) {
	err := classifyNetworkError("clone", "u", "8.0", transport.ErrRepositoryNotFound)
	assert.False(t, isRefMissing(err))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&RateLimitError{Err: errors.New("x")}))
	assert.True(t, isTransient(fmt.Errorf("wrapped: %w", &NetworkTimeoutError{Err: errors.New("x")})))
	assert.False(t, isTransient(&AuthError{Err: errors.New("x")}))
}

func TestClassifyCategories(t *testing.T) {
	cases := map[ferrors.ErrorCategory]error{
		ferrors.CategoryAuth:     &AuthError{Err: errors.New("x")},
		ferrors.CategoryNotFound: &NotFoundError{Err: errors.New("x")},
		ferrors.CategoryNetwork:  &NetworkTimeoutError{Err: errors.New("x")},
		ferrors.CategoryConfig:   &UnsupportedProtocolError{Err: errors.New("x")},
		ferrors.CategoryGit:      &RemoteDivergedError{Err: errNotFastForward},
	}
	for want, in := range cases {
		got := classify(in, "update", "proj", "u", "8.0")
		assert.Equal(t, want, ferrors.GetCategory(got))
		ce, _ := ferrors.AsClassified(got)
		assert.True(t, ce.IsFatal())
	}
}
