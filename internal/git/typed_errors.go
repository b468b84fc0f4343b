package git

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Typed git errors enabling structured classification without string parsing upstream.

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL, Ref string
	Err          error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found %s@%s: %v", e.Op, e.URL, e.Ref, e.Err)
}
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("%s rate limited %s: %v", e.Op, e.URL, e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s network timeout %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// RemoteDivergedError reports a checkout whose HEAD is not an ancestor of the fetched commit.
// NotRepositoryError reports a directory occupying a checkout path without being a
// git repository. Its content is never touched.
type NotRepositoryError struct {
	Op, Path string
}

func (e *NotRepositoryError) Error() string {
	return fmt.Sprintf("%s: %s exists but is not a git repository", e.Op, e.Path)
}

type RemoteDivergedError struct {
	Op, URL, Ref string
	Local        string
	Remote       string
	Err          error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged %s@%s (local %s, remote %s): %v",
		e.Op, e.URL, e.Ref, shortHash(e.Local), shortHash(e.Remote), e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

var errNotFastForward = errors.New("local history is not an ancestor of the fetched commit")

// classifyNetworkError wraps clone/fetch failures into typed variants when possible.
func classifyNetworkError(op, url, ref string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return &AuthError{Op: op, URL: url, Err: err}
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, gogit.NoMatchingRefSpecError{}):
		return &NotFoundError{Op: op, URL: url, Ref: ref, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}

	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist") || strings.Contains(l, "couldn't find remote ref"):
		return &NotFoundError{Op: op, URL: url, Ref: ref, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "unsupported scheme") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "connection reset") || strings.Contains(l, "remote hung up"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	}
	return err
}

// isRefMissing reports whether err means the remote has no such ref.
func isRefMissing(err error) bool {
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		return false
	}
	return errors.Is(err, plumbing.ErrReferenceNotFound) ||
		errors.Is(err, gogit.NoMatchingRefSpecError{}) ||
		strings.Contains(strings.ToLower(err.Error()), "couldn't find remote ref")
}

// isTransient is the retry predicate: only timeouts and rate limiting are retried.
func isTransient(err error) bool {
	return errors.As(err, new(*RateLimitError)) || errors.As(err, new(*NetworkTimeoutError))
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
