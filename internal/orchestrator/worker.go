package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/lamim/uxie/internal/content"
	"github.com/lamim/uxie/internal/imagesearch"
	"github.com/lamim/uxie/pkg/models"
)

const passageSeparator = "\n\n---\n\n"

// chapters generates every planned chapter. The result always has one entry
// per plan entry, in plan order; only cancellation of ctx fails the phase.
func (r *run) chapters(ctx context.Context, info models.CourseInfo, plan []models.ChapterPlan) ([]models.FullChapter, error) {
	ctx, span := r.o.tracer.Start(ctx, "course.chapters")
	defer span.End()
	start := time.Now()

	chapters := make([]models.FullChapter, len(plan))
	captions := make([]string, len(plan))
	for i, p := range plan {
		captions[i] = p.Caption
	}

	r.mu.Lock()
	r.stats.TotalChapters = len(plan)
	r.mu.Unlock()

	var done int
	var doneMu sync.Mutex
	finished := func(i int) {
		doneMu.Lock()
		defer doneMu.Unlock()
		done++
		r.progress.emit(PhaseChapters, chapterPercent(done, len(plan)),
			fmt.Sprintf("Finished chapter %d of %d: %s", done, len(plan), plan[i].Caption),
			ChapterPayload{Index: i, Caption: plan[i].Caption})
	}

	pending := make([]int, 0, len(plan))
	for i := range plan {
		if r.resumed != nil {
			if ch, ok := r.resumed.CompletedChapters[i]; ok {
				chapters[i] = ch
				finished(i)
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) < len(plan) {
		r.logger.Info("Resuming chapter generation", "completed", len(plan)-len(pending), "pending", len(pending))
	}

	var g errgroup.Group
	if r.o.chapterConcurrency > 0 {
		g.SetLimit(r.o.chapterConcurrency)
	}
	for _, i := range pending {
		g.Go(func() error {
			chapters[i] = r.chapter(ctx, i, plan[i], info, captions)
			if r.o.checkpoint != nil {
				if err := r.o.checkpoint.MarkChapterComplete(i, chapters[i], r.snapshot()); err != nil {
					r.logger.Error("Failed to checkpoint chapter", "chapter_index", i, "error", err)
				}
			}
			finished(i)
			return nil
		})
	}
	_ = g.Wait() // chapter goroutines never return errors

	r.o.metrics.RecordPhase("chapters", time.Since(start))
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, fmt.Errorf("chapter generation cancelled: %w", err)
	}

	r.logger.Info("All chapters generated", "chapters", len(plan), "duration", time.Since(start))
	return chapters, nil
}

// chapter runs retrieval, then content and chapter image together, then the
// quiz. A panic in content generation yields the fallback component, one in
// the image lookup leaves the image empty, and one anywhere else yields the
// whole fallback chapter.
func (r *run) chapter(ctx context.Context, i int, plan models.ChapterPlan, info models.CourseInfo, captions []string) (ch models.FullChapter) {
	ctx, span := r.o.tracer.Start(ctx, "course.chapter", traceChapter(i, plan))
	defer span.End()

	r.o.metrics.ChapterStarted()
	defer r.o.metrics.ChapterFinished()

	logger := r.logger.With("chapter_index", i, "chapter", plan.Caption)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			logger.Error("Chapter generation panicked, using fallback", "panic", p)
			span.SetStatus(codes.Error, fmt.Sprint(p))
			r.record(content.Result{Fallback: true}, false)
			ch = models.FullChapter{
				Plan:    plan,
				Content: content.Fallback(plan, r.req.Language),
				Quiz:    models.Quiz{Questions: []models.Question{}},
			}
		}
	}()

	passages := r.retrieve(ctx, logger, plan)

	var (
		res   content.Result
		image imagesearch.Image
		wg    sync.WaitGroup
	)
	wg.Go(func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Content generation panicked, using fallback", "panic", p)
				span.SetStatus(codes.Error, fmt.Sprint(p))
				res = content.Result{Content: content.Fallback(plan, r.req.Language), Fallback: true}
			}
		}()
		res = r.o.deps.Content.Run(ctx, content.ChapterRequest{
			Plan:        plan,
			CourseTitle: info.Title,
			Chapters:    captions,
			Difficulty:  r.req.Difficulty,
			Language:    r.req.Language,
			Context:     passages,
		})
	})
	wg.Go(func() {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("Chapter image lookup panicked", "panic", p)
			}
		}()
		img, err := r.o.deps.Images.Search(ctx, plan.Caption, imagesearch.Landscape, imagesearch.SizeRegular)
		if err != nil {
			logger.Warn("Chapter image lookup failed", "error", err)
			return
		}
		image = img
	})
	wg.Wait()

	// The quiz reads the plan points when the component is only the overview fallback
	material := res.Content.Code
	if res.Fallback {
		material = strings.Join(plan.ContentPoints, "\n")
	}

	quiz := models.Quiz{Questions: []models.Question{}}
	q, ok := r.o.deps.Quiz.Quiz(ctx, plan, material, r.req.Difficulty, r.req.Language)
	if ok && q != nil {
		quiz = *q
	} else {
		ok = false
		logger.Warn("Quiz unavailable, chapter will have no questions")
	}

	r.record(res, ok)
	span.SetAttributes(
		attribute.Int("chapter.content_attempts", res.Attempts),
		attribute.Bool("chapter.fallback", res.Fallback),
		attribute.Int("chapter.questions", len(quiz.Questions)))
	logger.Info("Chapter generated",
		"attempts", res.Attempts,
		"fallback", res.Fallback,
		"questions", len(quiz.Questions),
		"duration", time.Since(start))

	return models.FullChapter{
		Plan:     plan,
		Content:  res.Content,
		Quiz:     quiz,
		ImageURL: image.URL,
	}
}

// retrieve returns the chapter's document excerpts, or "" when the course
// has no documents or the lookup fails
func (r *run) retrieve(ctx context.Context, logger *slog.Logger, plan models.ChapterPlan) string {
	if !r.hasDocs {
		return ""
	}
	query := plan.Caption
	if len(plan.ContentPoints) > 0 {
		query += ": " + strings.Join(plan.ContentPoints, "; ")
	}
	passages, err := r.o.deps.Retriever.Retrieve(ctx, r.scope, query, r.o.topK, r.o.threshold)
	if err != nil {
		logger.Warn("Context retrieval failed, continuing without documents", "error", err)
		return ""
	}
	logger.Debug("Retrieved chapter context", "passages", len(passages))
	return strings.Join(passages, passageSeparator)
}
