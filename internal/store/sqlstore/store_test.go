package sqlstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "uxie.db"), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func TestCourseLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	missing, err := s.GetCourse(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("GetCourse(missing) = %+v, %v", missing, err)
	}
	owner, err := s.GetCourseOwner(ctx, "nope")
	if err != nil || owner != "" {
		t.Fatalf("GetCourseOwner(missing) = %q, %v", owner, err)
	}

	req := models.CourseRequest{Query: "Go", TimeHours: 1, Difficulty: models.DifficultyEasy, Language: models.LanguageEnglish}
	created, err := s.CreateCourse(ctx, store.CourseFromInfo("c1", "u1", models.CourseInfo{Title: "Go Basics"}, req))
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	if created.ID != "c1" || created.Status != models.CourseGenerating {
		t.Errorf("CreateCourse() = %+v", created)
	}

	update := *created
	update.Title = "Go Fundamentals"
	update.Status = ""
	update.UserID = ""
	if err := s.UpdateCourse(ctx, update); err != nil {
		t.Fatalf("UpdateCourse() error = %v", err)
	}
	if err := s.UpdateCourseStatus(ctx, "c1", models.CourseFinished, ""); err != nil {
		t.Fatalf("UpdateCourseStatus() error = %v", err)
	}

	got, err := s.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCourse() error = %v", err)
	}
	if got.Title != "Go Fundamentals" || got.Status != models.CourseFinished || got.UserID != "u1" {
		t.Errorf("GetCourse() = %+v", got)
	}

	if err := s.UpdateCourseStatus(ctx, "nope", models.CourseFailed, "x"); err == nil {
		t.Error("Expected error updating a missing course")
	}
}

func TestCreateCourse_AssignsID(t *testing.T) {
	s := openTestStore(t)
	created, err := s.CreateCourse(context.Background(), store.CourseRecord{Title: "T"})
	if err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}
	if created.ID == "" {
		t.Error("Expected generated id")
	}
}

func TestChaptersAndQuestions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.CreateCourse(ctx, store.CourseRecord{ID: "c1", Title: "T"}); err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}

	full := models.FullChapter{
		Plan:     models.ChapterPlan{Caption: "Intro", ContentPoints: []string{"a", "b", "c"}, TimeMinutes: 20},
		Content:  models.ChapterContent{Code: "function Intro() { return null; }", KeyTakeaways: []string{"a", "b"}},
		ImageURL: "https://img",
	}
	for i := 1; i >= 0; i-- {
		saved, err := s.SaveChapter(ctx, store.ChapterFromFull("c1", i, full))
		if err != nil {
			t.Fatalf("SaveChapter() error = %v", err)
		}
		if saved.ID == "" {
			t.Fatal("Expected chapter id")
		}

		questions := []models.Question{
			{Type: models.QuestionMultipleChoice, Question: "Q", AnswerA: "1", AnswerB: "2", AnswerC: "3", AnswerD: "4", CorrectAnswer: "c"},
			{Type: models.QuestionOpenText, Question: "Why?", CorrectAnswer: "because", GradingCriteria: "reason"},
		}
		if err := s.SaveQuestions(ctx, saved.ID, questions); err != nil {
			t.Fatalf("SaveQuestions() error = %v", err)
		}
	}

	chapters, err := s.Chapters(ctx, "c1")
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 2 || chapters[0].Position != 0 || chapters[1].Position != 1 {
		t.Fatalf("Chapters() = %+v", chapters)
	}
	if len(chapters[0].ContentPoints) != 3 || chapters[0].KeyTakeaways[1] != "b" {
		t.Errorf("JSON columns not round-tripped: %+v", chapters[0])
	}

	questions, err := s.Questions(ctx, chapters[0].ID)
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(questions))
	}
	if questions[0].AnswerC != "3" || questions[0].CorrectAnswer != "c" {
		t.Errorf("Multiple choice answers lost: %+v", questions[0])
	}
	if questions[1].AnswerA != "" || questions[1].GradingCriteria != "reason" {
		t.Errorf("Open text question = %+v", questions[1])
	}
}

func TestSaveChapter_OverwritesPosition(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.CreateCourse(ctx, store.CourseRecord{ID: "c1", Title: "T"}); err != nil {
		t.Fatalf("CreateCourse() error = %v", err)
	}

	plan := models.ChapterPlan{Caption: "Intro", ContentPoints: []string{"a"}, TimeMinutes: 10}
	questions := []models.Question{
		{Type: models.QuestionOpenText, Question: "Why?", CorrectAnswer: "because"},
		{Type: models.QuestionOpenText, Question: "How?", CorrectAnswer: "like so"},
	}

	var ids []string
	for _, code := range []string{"first", "second"} {
		full := models.FullChapter{Plan: plan, Content: models.ChapterContent{Code: code}}
		saved, err := s.SaveChapter(ctx, store.ChapterFromFull("c1", 0, full))
		if err != nil {
			t.Fatalf("SaveChapter() error = %v", err)
		}
		if err := s.SaveQuestions(ctx, saved.ID, questions); err != nil {
			t.Fatalf("SaveQuestions() error = %v", err)
		}
		ids = append(ids, saved.ID)
	}

	if ids[0] != ids[1] {
		t.Errorf("Chapter id changed on resave: %q != %q", ids[0], ids[1])
	}
	chapters, err := s.Chapters(ctx, "c1")
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 1 || chapters[0].Code != "second" {
		t.Fatalf("Chapters() = %+v, want one overwritten chapter", chapters)
	}
	stored, err := s.Questions(ctx, ids[0])
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(stored) != len(questions) {
		t.Errorf("Expected %d questions after resave, got %d", len(questions), len(stored))
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("mysql", "", testLogger()); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}
