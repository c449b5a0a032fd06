package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/lamim/uxie/internal/util"
	"github.com/lamim/uxie/pkg/models"
)

const maxQuizMaterial = 12000

// QuestionRange returns the target question count for a chapter's minutes
func QuestionRange(minutes int) (lo, hi int) {
	switch {
	case minutes < 40:
		return 3, 5
	case minutes < 60:
		return 5, 8
	default:
		return 8, 12
	}
}

// Quiz generates the chapter quiz from the chapter's content (or its raw
// points). The bool is false on any failure; callers substitute an empty quiz.
func (g *Generator) Quiz(ctx context.Context, plan models.ChapterPlan, material string, difficulty models.Difficulty, lang models.Language) (*models.Quiz, bool) {
	lo, hi := QuestionRange(plan.TimeMinutes)
	prompt, err := util.RenderTemplate(g.templates.Quiz, map[string]interface{}{
		"ChapterCaption": plan.Caption,
		"Content":        util.TruncateString(material, maxQuizMaterial),
		"MinQuestions":   lo,
		"MaxQuestions":   hi,
		"Difficulty":     string(difficulty),
		"Language":       lang.DisplayName(),
	})
	if err != nil {
		g.logger.Error("Failed to render quiz prompt", "chapter", plan.Caption, "error", err)
		return nil, false
	}

	gen, err := g.generate(ctx, "quiz", prompt, quizSchema)
	if err != nil {
		return nil, false
	}

	quiz, err := Decode(gen, g.validateQuiz(plan.Caption))
	if err != nil {
		g.logger.Warn("Quiz response rejected", "chapter", plan.Caption, "error", err)
		return nil, false
	}
	return &quiz, true
}

// validateQuiz normalizes questions, drops the malformed ones and
// requires a usable number to remain
func (g *Generator) validateQuiz(chapter string) func(*models.Quiz) error {
	return func(q *models.Quiz) error {
		kept := q.Questions[:0]
		for i, question := range q.Questions {
			question = normalizeQuestion(question)
			if err := question.Validate(); err != nil {
				g.logger.Debug("Dropping malformed question", "chapter", chapter, "index", i, "error", err)
				continue
			}
			kept = append(kept, question)
		}
		if len(kept) < models.MinQuizQuestions {
			return fmt.Errorf("quiz has %d valid questions, need at least %d", len(kept), models.MinQuizQuestions)
		}
		if len(kept) > models.MaxQuizQuestions {
			kept = kept[:models.MaxQuizQuestions]
		}
		q.Questions = kept
		return nil
	}
}

// normalizeQuestion fills in a missing type tag and tidies the answer key
func normalizeQuestion(q models.Question) models.Question {
	if q.Type == "" {
		if q.AnswerA != "" || q.AnswerB != "" {
			q.Type = models.QuestionMultipleChoice
		} else {
			q.Type = models.QuestionOpenText
		}
	}
	if q.Type == models.QuestionMultipleChoice {
		q.CorrectAnswer = strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
		q.GradingCriteria = ""
	} else {
		q.AnswerA, q.AnswerB, q.AnswerC, q.AnswerD = "", "", "", ""
	}
	return q
}
