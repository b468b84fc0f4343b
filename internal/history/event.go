package history

import (
	"encoding/json"
	"time"
)

// Event types written during a run.
const (
	TypeRunStarted            = "run.started"
	TypeRepoSynced            = "repo.synced"
	TypeRequirementsInstalled = "requirements.installed"
	TypeRequirementsSkipped   = "requirements.skipped"
	TypeRequirementsFailed    = "requirements.failed"
	TypeRunFinished           = "run.finished"
)

// Event is one ledger row.
type Event struct {
	ID        int64
	RunID     string
	Type      string
	Timestamp time.Time
	Project   string
	Payload   json.RawMessage
	Metadata  map[string]string
}

// RunPayload is stored with run.started and run.finished.
type RunPayload struct {
	CheckoutRoot string `json:"checkout_root"`
	BuildRoot    string `json:"build_root"`
	Forced       bool   `json:"forced,omitempty"`
	AnyChanged   bool   `json:"any_changed,omitempty"`
	Synced       int    `json:"synced,omitempty"`
	Installs     int    `json:"installs,omitempty"`
	DurationMS   int64  `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SyncPayload is stored with repo.synced.
type SyncPayload struct {
	URL     string `json:"url"`
	Ref     string `json:"ref"`
	Commit  string `json:"commit"`
	Changed bool   `json:"changed"`
	Cloned  bool   `json:"cloned"`
}

// InstallPayload is stored with the requirements.* events.
type InstallPayload struct {
	Manifest  string `json:"manifest"`
	Installer string `json:"installer,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewEvent builds an event with a JSON encoded payload.
func NewEvent(runID, eventType, project string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{RunID: runID, Type: eventType, Project: project, Payload: raw, Timestamp: time.Now()}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error { return json.Unmarshal(e.Payload, v) }
