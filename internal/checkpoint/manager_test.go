package checkpoint

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lamim/uxie/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testRequest = models.CourseRequest{
	Query:      "Intro to Variables",
	TimeHours:  1,
	Difficulty: models.DifficultyEasy,
	Language:   models.LanguageEnglish,
}

func testChapter(caption string) models.FullChapter {
	return models.FullChapter{
		Plan:    models.ChapterPlan{Caption: caption, ContentPoints: []string{"a", "b", "c"}, TimeMinutes: 20},
		Content: models.ChapterContent{Code: "function C() { return null; }", KeyTakeaways: []string{"a"}},
		Quiz:    models.Quiz{Questions: []models.Question{}},
	}
}

func TestNewManager(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, testRequest, true, testLogger())

	if mgr.sessionDir != tempDir {
		t.Errorf("Expected sessionDir %s, got %s", tempDir, mgr.sessionDir)
	}
	if !mgr.enabled {
		t.Error("Expected enabled to be true")
	}

	cp := mgr.GetCheckpoint()
	if cp.CurrentPhase != models.PhaseInfo {
		t.Errorf("Expected phase %s, got %s", models.PhaseInfo, cp.CurrentPhase)
	}
	if cp.RequestHash != RequestHash(testRequest) {
		t.Error("Checkpoint should carry the request hash")
	}

	if err := mgr.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("Second Close() failed: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	logger := testLogger()
	mgr := NewManager(tempDir, testRequest, true, logger)
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	info := models.CourseInfo{Title: "Variables 101", ImageQuery: "variables"}
	if err := mgr.MarkInfoComplete(info); err != nil {
		t.Fatalf("MarkInfoComplete failed: %v", err)
	}
	plan := []models.ChapterPlan{testChapter("One").Plan, testChapter("Two").Plan}
	if err := mgr.MarkPlanComplete(plan, "https://cover"); err != nil {
		t.Fatalf("MarkPlanComplete failed: %v", err)
	}

	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.InfoComplete || loaded.Info.Title != "Variables 101" || loaded.Info.ImageURL != "https://cover" {
		t.Errorf("Unexpected info: %+v", loaded.Info)
	}
	if !loaded.PlanComplete || len(loaded.Plan) != 2 {
		t.Errorf("Expected 2 planned chapters, got %d", len(loaded.Plan))
	}
	if loaded.CurrentPhase != models.PhaseChapters {
		t.Errorf("Expected phase %s, got %s", models.PhaseChapters, loaded.CurrentPhase)
	}
}

func TestMarkChapterComplete(t *testing.T) {
	tempDir := t.TempDir()
	logger := testLogger()
	mgr := NewManager(tempDir, testRequest, true, logger)

	for i := range 12 {
		stats := models.RunStats{TotalChapters: 12, ContentAttempts: i + 1}
		if err := mgr.MarkChapterComplete(i, testChapter("Chapter"), stats); err != nil {
			t.Fatalf("MarkChapterComplete(%d) failed: %v", i, err)
		}
	}

	cp := mgr.GetCheckpoint()
	if len(cp.CompletedChapters) != 12 {
		t.Errorf("Expected 12 chapters in memory, got %d", len(cp.CompletedChapters))
	}

	// Close flushes pending async writes
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	loaded, err := Load(tempDir, logger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.CompletedChapters) != 12 {
		t.Errorf("Expected 12 saved chapters, got %d", len(loaded.CompletedChapters))
	}
	if loaded.Stats.ContentAttempts != 12 {
		t.Errorf("Expected ContentAttempts 12, got %d", loaded.Stats.ContentAttempts)
	}
}

func TestGetCheckpointIsACopy(t *testing.T) {
	mgr := NewManager(t.TempDir(), testRequest, false, testLogger())
	_ = mgr.MarkPlanComplete([]models.ChapterPlan{testChapter("One").Plan}, "")

	cp := mgr.GetCheckpoint()
	cp.Plan[0].Caption = "mutated"
	cp.CompletedChapters[5] = testChapter("x")

	again := mgr.GetCheckpoint()
	if again.Plan[0].Caption != "One" || len(again.CompletedChapters) != 0 {
		t.Error("GetCheckpoint should return an independent copy")
	}
}

func TestCheckpointNotEnabledNoFiles(t *testing.T) {
	tempDir := t.TempDir()
	mgr := NewManager(tempDir, testRequest, false, testLogger())
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	}()

	if err := mgr.Save(); err != nil {
		t.Fatalf("Save() should not error when disabled: %v", err)
	}
	if err := mgr.MarkInfoComplete(models.CourseInfo{Title: "x"}); err != nil {
		t.Fatalf("MarkInfoComplete() should not error when disabled: %v", err)
	}

	checkpointPath := filepath.Join(tempDir, CheckpointFilename)
	if _, err := os.Stat(checkpointPath); !os.IsNotExist(err) {
		t.Error("Checkpoint file should not exist when checkpointing is disabled")
	}
}

func TestRequestHash(t *testing.T) {
	other := testRequest
	other.Query = "Intro to Loops"
	if RequestHash(testRequest) == RequestHash(other) {
		t.Error("Different requests should produce different hashes")
	}

	a, b := testRequest, testRequest
	a.DocumentIDs = []string{"d1", "d2"}
	b.DocumentIDs = []string{"d2", "d1"}
	if RequestHash(a) != RequestHash(b) {
		t.Error("Document order should not change the hash")
	}

	withCourse := testRequest
	withCourse.CourseID = "c1"
	if RequestHash(withCourse) != RequestHash(testRequest) {
		t.Error("Course id does not shape the generated course")
	}
}
