package checkpoint

import (
	"testing"

	"github.com/lamim/uxie/pkg/models"
)

func TestValidateCheckpoint(t *testing.T) {
	cp := &models.Checkpoint{
		RequestHash:  RequestHash(testRequest),
		CurrentPhase: models.PhaseChapters,
	}

	if err := ValidateCheckpoint(cp, testRequest); err != nil {
		t.Errorf("ValidateCheckpoint failed: %v", err)
	}

	different := testRequest
	different.Difficulty = models.DifficultyHard
	if err := ValidateCheckpoint(cp, different); err == nil {
		t.Error("ValidateCheckpoint should fail with mismatched request")
	}

	cpComplete := &models.Checkpoint{
		RequestHash:  RequestHash(testRequest),
		CurrentPhase: models.PhaseComplete,
	}
	if err := ValidateCheckpoint(cpComplete, testRequest); err == nil {
		t.Error("ValidateCheckpoint should fail for complete checkpoint")
	}
}

func TestGetPendingChapters(t *testing.T) {
	plan := []models.ChapterPlan{{Caption: "1"}, {Caption: "2"}, {Caption: "3"}, {Caption: "4"}}

	tests := []struct {
		name      string
		cp        *models.Checkpoint
		want      []int
		wantPct   float64
		wantTotal int
	}{
		{
			name:      "plan incomplete",
			cp:        &models.Checkpoint{Plan: plan},
			want:      nil,
			wantPct:   0,
			wantTotal: 4,
		},
		{
			name: "some done",
			cp: &models.Checkpoint{
				PlanComplete:      true,
				Plan:              plan,
				CompletedChapters: map[int]models.FullChapter{0: {}, 2: {}},
			},
			want:      []int{1, 3},
			wantPct:   50,
			wantTotal: 4,
		},
		{
			name: "all done",
			cp: &models.Checkpoint{
				PlanComplete:      true,
				Plan:              plan,
				CompletedChapters: map[int]models.FullChapter{0: {}, 1: {}, 2: {}, 3: {}},
			},
			want:      nil,
			wantPct:   100,
			wantTotal: 4,
		},
		{
			name:      "empty plan",
			cp:        &models.Checkpoint{PlanComplete: true},
			want:      nil,
			wantPct:   0,
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetPendingChapters(tt.cp)
			if len(got) != len(tt.want) {
				t.Fatalf("GetPendingChapters() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("GetPendingChapters()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
			if pct := GetProgressPercentage(tt.cp); pct != tt.wantPct {
				t.Errorf("GetProgressPercentage() = %v, want %v", pct, tt.wantPct)
			}
			if total := GetTotalCount(tt.cp); total != tt.wantTotal {
				t.Errorf("GetTotalCount() = %d, want %d", total, tt.wantTotal)
			}
		})
	}
}
