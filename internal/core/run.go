package core

import "time"

// RunHandle identifies the pipeline created for one synchronization.
type RunHandle struct {
	ProjectID   int    `json:"ci_project_id"`
	RunID       int    `json:"run_id"`
	TargetRef   string `json:"target_ref"`
	SourceSHA   string `json:"source_sha"`
	ProjectPath string `json:"project_path,omitempty"`
	WebURL      string `json:"web_url,omitempty"`
}

// Check-run states.
const (
	CheckQueued     = "queued"
	CheckInProgress = "in_progress"
	CheckCompleted  = "completed"
)

// Check-run conclusions.
const (
	ConclusionSuccess        = "success"
	ConclusionFailure        = "failure"
	ConclusionNeutral        = "neutral"
	ConclusionCancelled      = "cancelled"
	ConclusionTimedOut       = "timed_out"
	ConclusionActionRequired = "action_required"
)

// CheckAction is a button offered on a check run.
type CheckAction struct {
	Label       string
	Description string
	Identifier  string
}

// CheckProjection is the GitHub check run derived from one CI object. It is
// rebuilt from upstream state on every signal.
type CheckProjection struct {
	Name        string
	HeadSHA     string
	DetailsURL  string
	ExternalID  string
	Status      string
	Conclusion  string
	StartedAt   *time.Time
	CompletedAt *time.Time
	Title       string
	Summary     string
	Body        string
	// Icon is an image URL shown in the check output.
	Icon    string
	Actions []CheckAction
}

// Commit status states.
const (
	StatePending = "pending"
	StateSuccess = "success"
	StateFailure = "failure"
	StateError   = "error"
)

// CommitStatus is the legacy per-commit status posted for pipelines.
type CommitStatus struct {
	State       string
	TargetURL   string
	Description string
	Context     string
}
