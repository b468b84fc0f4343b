package traversal

import (
	"time"
)

// SyncOutcome records one synchronized project.
type SyncOutcome struct {
	Name     string
	URL      string
	Ref      string
	Path     string
	Head     string
	Changed  bool
	Cloned   bool
	Duration time.Duration
}

// InstallOutcome records the decision taken for one requirement file.
type InstallOutcome struct {
	Manifest  string
	Installed bool
	// Reason explains why an install ran or would have run; empty when skipped.
	Reason string
	Err    error
}

// Report summarizes a run.
type Report struct {
	RunID        string
	Seeded       []string
	Synced       []SyncOutcome
	Requirements []string
	Installs     []InstallOutcome
	AnyChanged   bool
	Forced       bool
	Duration     time.Duration
}

// InstallFailures counts requirement files whose install failed.
func (r *Report) InstallFailures() int {
	n := 0
	for _, in := range r.Installs {
		if in.Err != nil {
			n++
		}
	}
	return n
}

// Processed returns the number of distinct projects handled by the run.
func (r *Report) Processed() int { return len(r.Seeded) + len(r.Synced) }
