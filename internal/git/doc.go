// Package git keeps repository checkouts in sync with their upstream ref.
//
// A Client owns one checkout root. Sync clones a missing repository or, for an
// existing checkout, fetches the requested ref and fast-forwards the working copy
// when the upstream content differs. Local history that has diverged from the
// remote is never rewritten; it is reported as a *RemoteDivergedError.
//
// All errors returned by Sync are ClassifiedErrors wrapping one of the typed
// errors in this package, so callers can use errors.As on either layer.
package git
