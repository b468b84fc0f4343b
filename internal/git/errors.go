package git

import (
	stderrors "errors"

	"git.home.luguber.info/inful/depsync/internal/foundation/errors"
)

// classify turns a synchronization failure into a fatal ClassifiedError carrying the
// project, URL and ref. Typed errors stay reachable through errors.As.
func classify(err error, op, name, url, ref string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	b := errors.WrapError(err, errors.CategoryGit, "git "+op+" failed").
		Fatal().
		WithContext("op", op).
		WithContext("project", name).
		WithContext("url", url).
		WithContext("ref", ref)

	switch {
	case stderrors.As(err, new(*AuthError)):
		b.WithCategory(errors.CategoryAuth).UserAction()
	case stderrors.As(err, new(*NotFoundError)):
		b.WithCategory(errors.CategoryNotFound)
	case stderrors.As(err, new(*UnsupportedProtocolError)):
		b.WithCategory(errors.CategoryConfig)
	case stderrors.As(err, new(*RateLimitError)):
		b.WithCategory(errors.CategoryNetwork).RateLimit()
	case stderrors.As(err, new(*NetworkTimeoutError)):
		b.WithCategory(errors.CategoryNetwork).Retryable()
	case stderrors.As(err, new(*NotRepositoryError)):
		b.WithCategory(errors.CategoryFileSystem).UserAction()
	case stderrors.As(err, new(*RemoteDivergedError)):
		b.WithContext("diverged", true).UserAction()
	}
	return b.Build()
}
