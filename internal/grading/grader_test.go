package grading

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubModel struct {
	object string
	err    error
	prompt string
	calls  int
}

func (m *stubModel) Generate(_ context.Context, prompt string, _ *api.Schema) (*api.Generation, error) {
	m.calls++
	m.prompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	gen := &api.Generation{Text: m.object}
	if m.object != "" {
		gen.Object = json.RawMessage(m.object)
	}
	return gen, nil
}

type courses map[string]*store.CourseRecord

func (c courses) GetCourse(_ context.Context, id string) (*store.CourseRecord, error) {
	if id == "broken" {
		return nil, errors.New("connection refused")
	}
	return c[id], nil
}

var testCourses = courses{
	"c1": {ID: "c1", Title: "Intro to Variables", Description: "Basics", Difficulty: models.DifficultyEasy, Language: models.LanguageIndonesian},
}

func request(courseID string) GradeRequest {
	return GradeRequest{
		CourseID:      courseID,
		Question:      "What is a variable?",
		CorrectAnswer: "A named storage location",
		UserAnswer:    "a box holding a value",
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name         string
		object       string
		wantPoints   int
		wantFeedback string
	}{
		{"correct", `{"points": 2, "feedback": "Bagus!"}`, 2, "Bagus!"},
		{"partial", `{"points": 1, "feedback": "Hampir"}`, 1, "Hampir"},
		{"clamped high", `{"points": 7, "feedback": "wow"}`, 2, "wow"},
		{"clamped low", `{"points": -3, "feedback": "no"}`, 0, "no"},
		{"empty response", "", 0, unableToGrade},
		{"null response", "null", 0, unableToGrade},
		{"blank feedback", `{"points": 1, "feedback": "  "}`, 1, unableToGrade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &stubModel{object: tt.object}
			got, err := New(model, testCourses, testLogger()).Grade(context.Background(), request("c1"))
			if err != nil {
				t.Fatalf("Grade() error = %v", err)
			}
			if got.Points != tt.wantPoints || got.Feedback != tt.wantFeedback {
				t.Errorf("Grade() = %+v, want {%d %q}", got, tt.wantPoints, tt.wantFeedback)
			}
		})
	}
}

func TestGrade_PromptCarriesCourseContext(t *testing.T) {
	model := &stubModel{object: `{"points": 2, "feedback": "ok"}`}
	req := request("c1")
	req.GradingCriteria = "mentions storage"

	if _, err := New(model, testCourses, testLogger()).Grade(context.Background(), req); err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	for _, want := range []string{"Intro to Variables", "Indonesian", "mentions storage", "a box holding a value"} {
		if !strings.Contains(model.prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestGrade_CourseMissing(t *testing.T) {
	model := &stubModel{object: `{"points": 2, "feedback": "ok"}`}
	_, err := New(model, testCourses, testLogger()).Grade(context.Background(), request("missing"))
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("Expected ErrCourseNotFound, got %v", err)
	}
	if model.calls != 0 {
		t.Errorf("Model should not be called, got %d calls", model.calls)
	}
}

func TestGrade_Errors(t *testing.T) {
	if _, err := New(&stubModel{}, testCourses, testLogger()).Grade(context.Background(), request("broken")); err == nil || errors.Is(err, ErrCourseNotFound) {
		t.Errorf("Expected lookup error, got %v", err)
	}

	model := &stubModel{err: errors.New("503")}
	if _, err := New(model, testCourses, testLogger()).Grade(context.Background(), request("c1")); err == nil {
		t.Error("Expected model error to propagate")
	}
}

func TestGradeRequest_Validate(t *testing.T) {
	if err := request("c1").Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	req := request("")
	if err := req.Validate(); err == nil {
		t.Error("Expected error for missing course id")
	}
}
