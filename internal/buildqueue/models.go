package buildqueue

import (
	"strings"
	"time"
)

// Kind identifies the build a job requests.
type Kind string

const (
	KindUnified  Kind = "unified"
	KindPlaylist Kind = "playlist"
	KindExport   Kind = "export"
)

var allKinds = []Kind{KindUnified, KindPlaylist, KindExport}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, true
		}
	}
	return "", false
}

// Status represents the lifecycle of a build job.
type Status string

const (
	StatusPending  Status = "pending"
	StatusBuilding Status = "building"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

var allStatuses = []Status{StatusPending, StatusBuilding, StatusReady, StatusFailed}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return normalized, true
		}
	}
	return "", false
}

// DaemonStopReason is the error message set when jobs are failed due to
// daemon shutdown.
const DaemonStopReason = "Daemon stopped"

// Job represents a build job persisted in SQLite.
type Job struct {
	ID           int64
	JobKey       string
	Kind         Kind
	EDLHash      string
	EditID       string
	CutsJSON     string
	OutputPath   string
	Status       Status
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// IsTerminal reports whether the job reached a final state.
func (j Job) IsTerminal() bool {
	return j.Status == StatusReady || j.Status == StatusFailed
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total    int
	Pending  int
	Building int
	Ready    int
	Failed   int
}
