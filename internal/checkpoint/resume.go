package checkpoint

import (
	"fmt"

	"github.com/lamim/uxie/pkg/models"
)

// ValidateCheckpoint verifies checkpoint is compatible with the request
func ValidateCheckpoint(cp *models.Checkpoint, req models.CourseRequest) error {
	expectedHash := RequestHash(req)
	if cp.RequestHash != expectedHash {
		return fmt.Errorf("checkpoint request mismatch: checkpoint was created for a different course request (hash: %s vs %s)", cp.RequestHash, expectedHash)
	}

	if cp.CurrentPhase == models.PhaseComplete {
		return fmt.Errorf("checkpoint is already complete, nothing to resume")
	}

	return nil
}

// GetPendingChapters returns the plan indices that still need generating
func GetPendingChapters(cp *models.Checkpoint) []int {
	if !cp.PlanComplete {
		return nil // Need to complete the plan phase first
	}

	var pending []int
	for i := range cp.Plan {
		if _, ok := cp.CompletedChapters[i]; !ok {
			pending = append(pending, i)
		}
	}
	return pending
}

// GetCompletedCount returns the number of finished chapters
func GetCompletedCount(cp *models.Checkpoint) int {
	return len(cp.CompletedChapters)
}

// GetTotalCount returns the number of planned chapters
func GetTotalCount(cp *models.Checkpoint) int {
	return len(cp.Plan)
}

// GetProgressPercentage returns completion percentage
func GetProgressPercentage(cp *models.Checkpoint) float64 {
	total := GetTotalCount(cp)
	if total == 0 {
		return 0.0
	}
	completed := GetCompletedCount(cp)
	return float64(completed) / float64(total) * 100.0
}
