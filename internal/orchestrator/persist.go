package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

// persist writes the finished course. It is skipped without a course id.
// The returned error is reported in Outcome.PersistErr.
func (r *run) persist(ctx context.Context, course models.FullCourse) error {
	if r.req.CourseID == "" {
		r.logger.Debug("No course id, skipping persistence")
		return nil
	}

	ctx, span := r.o.tracer.Start(ctx, "course.persist")
	defer span.End()
	start := time.Now()

	r.progress.emit(PhasePersisting, 95, "Saving course", nil)
	err := r.save(ctx, course)
	r.o.metrics.RecordPhase("persist", time.Since(start))
	r.o.metrics.RecordPersistence(err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("Failed to persist course", "error", err, "duration", time.Since(start))
		return err
	}

	r.logger.Info("Course persisted", "chapters", len(course.Chapters), "duration", time.Since(start))
	return nil
}

func (r *run) save(ctx context.Context, course models.FullCourse) error {
	db := r.o.deps.Store
	id := r.req.CourseID

	owner, err := db.GetCourseOwner(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up course owner: %w", err)
	}
	existing, err := db.GetCourse(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up course: %w", err)
	}

	record := store.CourseFromInfo(id, owner, course.Info, r.req)
	if existing == nil {
		if _, err := db.CreateCourse(ctx, record); err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
	} else if err := db.UpdateCourse(ctx, record); err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}

	for i, ch := range course.Chapters {
		saved, err := db.SaveChapter(ctx, store.ChapterFromFull(id, i, ch))
		if err != nil {
			return fmt.Errorf("failed to save chapter %d: %w", i, err)
		}
		if len(ch.Quiz.Questions) == 0 {
			continue
		}
		if err := db.SaveQuestions(ctx, saved.ID, ch.Quiz.Questions); err != nil {
			return fmt.Errorf("failed to save questions for chapter %d: %w", i, err)
		}
	}

	if err := db.UpdateCourseStatus(ctx, id, models.CourseFinished, ""); err != nil {
		return fmt.Errorf("failed to mark course finished: %w", err)
	}
	return nil
}
