package models

import (
	"strings"
	"testing"
)

func TestQuestionValidate(t *testing.T) {
	mc := Question{
		Type:          QuestionMultipleChoice,
		Question:      "What is 2+2?",
		AnswerA:       "3",
		AnswerB:       "4",
		AnswerC:       "5",
		AnswerD:       "22",
		CorrectAnswer: "b",
	}

	tests := []struct {
		name    string
		q       Question
		wantErr string
	}{
		{"valid multiple choice", mc, ""},
		{"valid open text", Question{Type: QuestionOpenText, Question: "Explain goroutines", CorrectAnswer: "Lightweight threads"}, ""},
		{"empty text", Question{Type: QuestionOpenText, CorrectAnswer: "x"}, "question text is empty"},
		{"missing option", func() Question { q := mc; q.AnswerC = " "; return q }(), "answer c is empty"},
		{"bad correct answer", func() Question { q := mc; q.CorrectAnswer = "B"; return q }(), "correct answer must be one of"},
		{"open text without answer", Question{Type: QuestionOpenText, Question: "Why?"}, "no reference answer"},
		{"unknown type", Question{Type: "essay", Question: "Why?"}, "unknown question type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestChapterPlanValidate(t *testing.T) {
	ok := ChapterPlan{Caption: "Intro", ContentPoints: []string{"a"}, TimeMinutes: 10}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	for _, p := range []ChapterPlan{
		{Caption: " ", ContentPoints: []string{"a"}, TimeMinutes: 10},
		{Caption: "Intro", TimeMinutes: 10},
		{Caption: "Intro", ContentPoints: []string{"a"}},
	} {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) expected error", p)
		}
	}
}

func TestCourseRequest(t *testing.T) {
	req := CourseRequest{Query: "Go", TimeHours: 1.5, Difficulty: DifficultyEasy, Language: LanguageIndonesian}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := req.TotalMinutes(); got != 90 {
		t.Errorf("TotalMinutes() = %d, want 90", got)
	}

	bad := []CourseRequest{
		{TimeHours: 1, Difficulty: DifficultyEasy, Language: LanguageEnglish},
		{Query: "Go", Difficulty: DifficultyEasy, Language: LanguageEnglish},
		{Query: "Go", TimeHours: 1, Difficulty: "extreme", Language: LanguageEnglish},
		{Query: "Go", TimeHours: 1, Difficulty: DifficultyEasy, Language: "fr"},
	}
	for _, r := range bad {
		if err := r.Validate(); err == nil {
			t.Errorf("Validate(%+v) expected error", r)
		}
	}
}

func TestLanguageDisplayName(t *testing.T) {
	if LanguageIndonesian.DisplayName() != "Indonesian (Bahasa Indonesia)" {
		t.Errorf("id display name = %q", LanguageIndonesian.DisplayName())
	}
	if LanguageEnglish.DisplayName() != "English" {
		t.Errorf("en display name = %q", LanguageEnglish.DisplayName())
	}
}

func TestGenerationAttemptSucceeded(t *testing.T) {
	if (GenerationAttempt{}).Succeeded() {
		t.Error("zero attempt reported success")
	}
	valid := &ValidationResult{Valid: true}
	if (GenerationAttempt{Validation: valid}).Succeeded() {
		t.Error("attempt without candidate reported success")
	}
	if !(GenerationAttempt{Candidate: "() => null", Validation: valid}).Succeeded() {
		t.Error("valid attempt not reported as success")
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for status, want := range map[RunStatus]bool{
		RunPending:   false,
		RunRunning:   false,
		RunSuccess:   true,
		RunFailed:    true,
		RunSuspended: true,
	} {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}

	run := &Run{}
	if _, ok := run.LastProgress(); ok {
		t.Error("LastProgress() on empty run reported an event")
	}
	run.Progress = []ProgressEvent{{Percent: 10}, {Percent: 25}}
	if ev, ok := run.LastProgress(); !ok || ev.Percent != 25 {
		t.Errorf("LastProgress() = %+v, %v", ev, ok)
	}
}
