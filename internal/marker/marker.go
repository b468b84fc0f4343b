// Package marker persists the time of the last forced full refresh of a checkout root.
package marker

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

// FileName is hidden so the traversal never mistakes it for a repository.
const FileName = ".depsync_last_refresh"

// DefaultThreshold is the age after which a full refresh is forced.
const DefaultThreshold = 24 * time.Hour

// Marker is a decimal Unix timestamp stored in a single file.
type Marker struct {
	Path      string
	Threshold time.Duration
	Now       func() time.Time
}

// New returns the marker of checkoutRoot.
func New(checkoutRoot string, threshold time.Duration) *Marker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Marker{Path: filepath.Join(checkoutRoot, FileName), Threshold: threshold, Now: time.Now}
}

func (m *Marker) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// LastRefresh returns the stored time, or false when the file is absent or corrupt.
func (m *Marker) LastRefresh() (time.Time, bool) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// Expired reports whether a full refresh is due. When it is, the marker is rewritten
// with the current time first. An absent, unreadable or corrupt marker counts as
// expired. A failed rewrite is logged and Expired still reports true.
func (m *Marker) Expired() bool {
	due, reason := m.Due()
	if !due {
		return false
	}
	if err := m.Touch(); err != nil {
		slog.Warn("Failed to rewrite refresh marker", logfields.Path(m.Path), logfields.Error(err))
	}
	slog.Info("Full refresh forced", logfields.Reason(reason), logfields.Path(m.Path))
	return true
}

// Due reports whether a full refresh is due without touching the file.
func (m *Marker) Due() (bool, string) {
	last, ok := m.LastRefresh()
	switch {
	case !ok:
		return true, "missing"
	case m.now().Sub(last) > m.Threshold:
		return true, "stale"
	default:
		return false, ""
	}
}

// Touch stores the current time.
func (m *Marker) Touch() error {
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o750); err != nil {
		return err
	}
	stamp := strconv.FormatInt(m.now().Unix(), 10)
	return os.WriteFile(m.Path, []byte(stamp), 0o600)
}
