package metrics

import "time"

// SyncResult enumerates repository synchronization outcomes.
type SyncResult string

const (
	SyncCloned    SyncResult = "cloned"
	SyncUpdated   SyncResult = "updated"
	SyncUnchanged SyncResult = "unchanged"
	SyncFailed    SyncResult = "failed"
)

// InstallResult enumerates requirement manifest outcomes.
type InstallResult string

const (
	InstallInstalled InstallResult = "installed"
	InstallSkipped   InstallResult = "skipped"
	InstallFailed    InstallResult = "failed"
)

// Recorder defines the metric hooks of a run. Implementations must be safe for
// concurrent use since repositories may be synchronized by several workers.
type Recorder interface {
	ObserveSyncDuration(d time.Duration, result SyncResult)
	IncSyncResult(result SyncResult)
	IncGitRetry(op string)
	IncInstallResult(result InstallResult)
	ObserveRunDuration(d time.Duration)
	SetProcessedProjects(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveSyncDuration(time.Duration, SyncResult) {}
func (NoopRecorder) IncSyncResult(SyncResult)                      {}
func (NoopRecorder) IncGitRetry(string)                            {}
func (NoopRecorder) IncInstallResult(InstallResult)                {}
func (NoopRecorder) ObserveRunDuration(time.Duration)              {}
func (NoopRecorder) SetProcessedProjects(int)                      {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
