package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lamim/uxie/internal/util"
	"github.com/lamim/uxie/pkg/models"
)

type planResponse struct {
	Chapters []models.ChapterPlan `json:"chapters"`
}

// Plan generates the chapter outline. An empty or unusable response yields
// an empty list; the caller decides whether that aborts the course.
// Errors are returned only when the model call itself fails.
func (g *Generator) Plan(ctx context.Context, req models.CourseRequest, hasDocuments bool) ([]models.ChapterPlan, error) {
	prompt, err := util.RenderTemplate(g.templates.Plan, map[string]interface{}{
		"Query":        req.Query,
		"TotalMinutes": req.TotalMinutes(),
		"Difficulty":   string(req.Difficulty),
		"Language":     req.Language.DisplayName(),
		"HasDocuments": hasDocuments,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render plan template: %w", err)
	}

	gen, err := g.generate(ctx, "plan", prompt, planSchema)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	resp, err := Decode[planResponse](gen, nil)
	if err != nil {
		g.logger.Warn("Plan response unusable", "error", err)
		return []models.ChapterPlan{}, nil
	}

	chapters := make([]models.ChapterPlan, 0, len(resp.Chapters))
	for i, ch := range resp.Chapters {
		ch.Caption = strings.TrimSpace(ch.Caption)
		if len(ch.ContentPoints) > models.MaxContentPoints {
			ch.ContentPoints = ch.ContentPoints[:models.MaxContentPoints]
		}
		if err := ch.Validate(); err != nil {
			g.logger.Warn("Dropping invalid chapter plan", "index", i, "error", err)
			continue
		}
		chapters = append(chapters, ch)
	}

	g.logger.Info("Course plan generated", "chapters", len(chapters), "dropped", len(resp.Chapters)-len(chapters))
	return chapters, nil
}

// Info generates the course title, description and cover image query.
// Empty or unusable responses yield the default info.
func (g *Generator) Info(ctx context.Context, req models.CourseRequest) (models.CourseInfo, error) {
	prompt, err := util.RenderTemplate(g.templates.Info, map[string]interface{}{
		"Query":      req.Query,
		"Difficulty": string(req.Difficulty),
		"Language":   req.Language.DisplayName(),
	})
	if err != nil {
		return models.CourseInfo{}, fmt.Errorf("failed to render info template: %w", err)
	}

	gen, err := g.generate(ctx, "info", prompt, infoSchema)
	if err != nil {
		return models.CourseInfo{}, fmt.Errorf("info generation failed: %w", err)
	}

	info, err := Decode[models.CourseInfo](gen, nil)
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			g.logger.Info("Info generator returned nothing, using default info")
		} else {
			g.logger.Warn("Info response unusable, using default info", "error", err)
		}
		return models.DefaultCourseInfo(req.Query), nil
	}

	def := models.DefaultCourseInfo(req.Query)
	if strings.TrimSpace(info.Title) == "" {
		info.Title = def.Title
	}
	if strings.TrimSpace(info.ImageQuery) == "" {
		info.ImageQuery = def.ImageQuery
	}
	info.ImageURL = ""
	return info, nil
}
