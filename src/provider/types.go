package provider

import "time"

// RunStatus is the normalized state of a workflow run.
type RunStatus string

const (
	StatusQueued     RunStatus = "queued"
	StatusInProgress RunStatus = "in_progress"
	StatusSuccess    RunStatus = "success"
	StatusFailure    RunStatus = "failure"
	StatusCancelled  RunStatus = "cancelled"
)

// Completed reports whether the run reached a terminal state that can carry test results.
func (s RunStatus) Completed() bool {
	return s == StatusSuccess || s == StatusFailure
}

// WorkflowRun is a single CI execution as reported by the provider.
type WorkflowRun struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	Status     RunStatus     `json:"status"`
	HTMLURL    string        `json:"html_url"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Duration   time.Duration `json:"duration,omitempty"`
	HeadBranch string        `json:"head_branch,omitempty"`
	Event      string        `json:"event,omitempty"`
}

// ListRunsOptions narrows a run listing.
type ListRunsOptions struct {
	Branch       string
	WorkflowName string
	// Since drops runs created before this instant. Zero means no lower bound.
	Since time.Time
	// Limit caps the number of runs returned. Zero means unbounded.
	Limit int
	// InterPageDelay is waited before requesting every page after the first.
	InterPageDelay time.Duration
}

// Commit is the head commit of a repository.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// Artifact is a file bundle uploaded by a run.
type Artifact struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// Workflow is a workflow definition in a repository.
type Workflow struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
}
