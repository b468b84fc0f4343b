// Package errors provides the classified error primitives used across depsync.
//
// A ClassifiedError carries a category (config, git, install, ...), a severity and
// a retry strategy next to the usual message and cause. The CLI adapter maps the
// category to a process exit code, so only fatal synchronization or configuration
// failures terminate a run with a non-zero status.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryGit, "fetch failed").
//		WithContext("project", name).
//		WithContext("ref", ref).
//		Fatal().
//		Build()
package errors
