package models

import "time"

// CheckpointPhase represents the current phase of a course generation
type CheckpointPhase string

const (
	PhaseInfo     CheckpointPhase = "info"
	PhasePlan     CheckpointPhase = "plan"
	PhaseChapters CheckpointPhase = "chapters"
	PhasePersist  CheckpointPhase = "persist"
	PhaseComplete CheckpointPhase = "complete"
)

// Checkpoint represents the saved state of a course generation session
type Checkpoint struct {
	// Session identification
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastSavedAt time.Time `json:"last_saved_at"`

	CurrentPhase CheckpointPhase `json:"current_phase"`

	// Phase 1: course info
	InfoComplete bool       `json:"info_complete"`
	Info         CourseInfo `json:"info"`

	// Phase 2: outline and cover image
	PlanComplete bool          `json:"plan_complete"`
	Plan         []ChapterPlan `json:"plan"`

	// Phase 3: finished chapters keyed by plan index
	CompletedChapters map[int]FullChapter `json:"completed_chapters"`

	Stats RunStats `json:"stats"`

	// Hash of the request that started the session, for mismatch detection
	RequestHash string `json:"request_hash"`
}
