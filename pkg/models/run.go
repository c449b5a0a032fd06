package models

import "time"

// RunStatus is the state of a workflow run as seen by polling clients
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunSuspended RunStatus = "suspended"
)

// Terminal reports whether no further transitions will happen
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunSuspended
}

// Run is one course-creation workflow run
type Run struct {
	ID           string          `json:"runId"`
	Status       RunStatus       `json:"status"`
	Request      *CourseRequest  `json:"request,omitempty"`
	Result       *FullCourse     `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	PersistError string          `json:"persistError,omitempty"`
	Progress     []ProgressEvent `json:"progress"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// LastProgress returns the most recent progress event, if any
func (r *Run) LastProgress() (ProgressEvent, bool) {
	if len(r.Progress) == 0 {
		return ProgressEvent{}, false
	}
	return r.Progress[len(r.Progress)-1], true
}
