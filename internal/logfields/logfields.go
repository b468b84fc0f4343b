package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyProject    = "project"
	KeyURL        = "url"
	KeyRef        = "ref"
	KeyPath       = "path"
	KeyCommit     = "commit"
	KeyManifest   = "manifest"
	KeyInstaller  = "installer"
	KeyReason     = "reason"
	KeyChanged    = "changed"
	KeyDurationMS = "duration_ms"
	KeyAttempt    = "attempt"
	KeyOperation  = "operation"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Project(name string) slog.Attr   { return slog.String(KeyProject, name) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Ref(r string) slog.Attr          { return slog.String(KeyRef, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Manifest(p string) slog.Attr     { return slog.String(KeyManifest, p) }
func Installer(n string) slog.Attr    { return slog.String(KeyInstaller, n) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Changed(c bool) slog.Attr        { return slog.Bool(KeyChanged, c) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Operation(op string) slog.Attr   { return slog.String(KeyOperation, op) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

// Commit shortens a commit hash to eight characters.
func Commit(hash string) slog.Attr {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return slog.String(KeyCommit, hash)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
