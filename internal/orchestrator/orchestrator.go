// Package orchestrator drives a course through its generation phases:
// course info, then outline and cover image, then every chapter in
// parallel, then persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/lamim/uxie/internal/content"
	"github.com/lamim/uxie/internal/imagesearch"
	"github.com/lamim/uxie/internal/metrics"
	"github.com/lamim/uxie/internal/retrieval"
	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

// ErrEmptyPlan aborts a run whose outline has no chapters
var ErrEmptyPlan = errors.New("course plan has no chapters")

const tracerName = "github.com/lamim/uxie/internal/orchestrator"

// Defaults for chapter context retrieval
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.5
)

// InfoPlanner produces the course metadata and outline
type InfoPlanner interface {
	Info(ctx context.Context, req models.CourseRequest) (models.CourseInfo, error)
	Plan(ctx context.Context, req models.CourseRequest, hasDocuments bool) ([]models.ChapterPlan, error)
}

// ContentGenerator writes one chapter's component. It never fails.
type ContentGenerator interface {
	Run(ctx context.Context, req content.ChapterRequest) content.Result
}

// QuizGenerator writes one chapter's quiz. ok is false when no usable quiz came back.
type QuizGenerator interface {
	Quiz(ctx context.Context, plan models.ChapterPlan, material string, difficulty models.Difficulty, lang models.Language) (quiz *models.Quiz, ok bool)
}

// ImageSearcher finds cover images for the course and its chapters
type ImageSearcher interface {
	Search(ctx context.Context, query string, orientation imagesearch.Orientation, size imagesearch.Size) (imagesearch.Image, error)
}

// Checkpointer records finished phases so an interrupted CLI run can resume
type Checkpointer interface {
	GetCheckpoint() *models.Checkpoint
	MarkInfoComplete(info models.CourseInfo) error
	MarkPlanComplete(plan []models.ChapterPlan, coverURL string) error
	MarkChapterComplete(index int, chapter models.FullChapter, stats models.RunStats) error
	MarkChaptersComplete(stats models.RunStats) error
	MarkComplete(stats models.RunStats) error
}

// Deps are the collaborators of an Orchestrator. Retriever and Store may be
// nil, in which case retrieval and persistence are disabled.
type Deps struct {
	Planner   InfoPlanner
	Content   ContentGenerator
	Quiz      QuizGenerator
	Images    ImageSearcher
	Retriever retrieval.ContextRetriever
	Store     store.PersistenceClient
}

// Outcome is the result of a run that reached the chapter phase's end.
// Course is always complete; PersistErr reports a failed save.
type Outcome struct {
	Course     models.FullCourse
	PersistErr error
	Stats      models.RunStats
}

// Orchestrator manages the course generation pipeline
type Orchestrator struct {
	deps               Deps
	chapterConcurrency int
	topK               int
	threshold          float64
	checkpoint         Checkpointer
	resume             bool
	metrics            *metrics.Collector
	tracer             trace.Tracer
	logger             *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithChapterConcurrency caps the chapters generated at once; n <= 0 runs all of them together
func WithChapterConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.chapterConcurrency = n
	}
}

// WithRetrieval sets how many passages are pulled per chapter and their minimum similarity
func WithRetrieval(topK int, threshold float64) Option {
	return func(o *Orchestrator) {
		if topK > 0 {
			o.topK = topK
		}
		o.threshold = threshold
	}
}

// WithCheckpoint records progress to cp. With resume set, phases already
// recorded in cp are skipped.
func WithCheckpoint(cp Checkpointer, resume bool) Option {
	return func(o *Orchestrator) {
		o.checkpoint = cp
		o.resume = resume
	}
}

// WithMetrics records phase durations and course outcomes
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer overrides the tracer obtained from the global provider
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// New creates an orchestrator
func New(deps Deps, logger *slog.Logger, opts ...Option) *Orchestrator {
	if deps.Retriever == nil {
		deps.Retriever = retrieval.NopRetriever{}
	}
	if deps.Store == nil {
		deps.Store = store.Nop{}
	}
	if deps.Images == nil {
		deps.Images = imagesearch.New("", logger)
	}
	o := &Orchestrator{
		deps:      deps,
		topK:      DefaultTopK,
		threshold: DefaultSimilarityThreshold,
		tracer:    otel.Tracer(tracerName),
		logger:    logger.With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run generates a course and, when req.CourseID is set, persists it
func (o *Orchestrator) Run(ctx context.Context, req models.CourseRequest) (Outcome, error) {
	return o.RunWithProgress(ctx, req, nil)
}

// RunWithProgress is Run with a progress callback invoked after every phase
// and every finished chapter. Percentages never decrease. The callback may
// be called from several goroutines, but never concurrently.
func (o *Orchestrator) RunWithProgress(ctx context.Context, req models.CourseRequest, onProgress func(models.ProgressEvent)) (Outcome, error) {
	ctx, span := o.tracer.Start(ctx, "course.run", trace.WithAttributes(
		attribute.String("course.id", req.CourseID),
		attribute.String("course.difficulty", string(req.Difficulty)),
		attribute.String("course.language", string(req.Language)),
		attribute.Float64("course.time_hours", req.TimeHours),
	))
	defer span.End()

	o.metrics.RunStarted()
	defer o.metrics.RunFinished()

	r := &run{
		o:        o,
		req:      req,
		scope:    retrieval.Scope{CourseID: req.CourseID, DocumentIDs: req.DocumentIDs},
		progress: newProgress(onProgress),
		logger:   o.logger.With("course_id", req.CourseID),
	}
	r.stats.StartTime = time.Now()
	if o.checkpoint != nil && o.resume {
		r.resumed = o.checkpoint.GetCheckpoint()
		r.stats.ContentAttempts = r.resumed.Stats.ContentAttempts
		r.stats.FallbackChapters = r.resumed.Stats.FallbackChapters
		r.stats.QuizFailures = r.resumed.Stats.QuizFailures
	}

	r.logger.Info("Starting course generation",
		"query", req.Query,
		"time_hours", req.TimeHours,
		"difficulty", req.Difficulty,
		"language", req.Language,
		"documents", len(req.DocumentIDs),
		"resume", r.resumed != nil)

	outcome, err := r.execute(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.abort(ctx, err)
		return Outcome{}, err
	}
	if outcome.PersistErr != nil {
		span.SetAttributes(attribute.String("course.persist_error", outcome.PersistErr.Error()))
	}
	return outcome, nil
}

// run holds the state of one pipeline execution
type run struct {
	o        *Orchestrator
	req      models.CourseRequest
	scope    retrieval.Scope
	resumed  *models.Checkpoint
	hasDocs  bool
	progress *progress
	logger   *slog.Logger

	mu    sync.Mutex
	stats models.RunStats
}

func (r *run) execute(ctx context.Context) (Outcome, error) {
	info, err := r.info(ctx)
	if err != nil {
		return Outcome{}, err
	}

	r.hasDocs = r.hasDocuments(ctx)

	plan, err := r.planAndCover(ctx, &info)
	if err != nil {
		return Outcome{}, err
	}

	chapters, err := r.chapters(ctx, info, plan)
	if err != nil {
		return Outcome{}, err
	}

	course := models.FullCourse{
		ID:       r.req.CourseID,
		Info:     info,
		Chapters: chapters,
	}

	stats := r.snapshot()
	r.checkpointed("chapters", r.o.checkpoint != nil, func() error {
		return r.o.checkpoint.MarkChaptersComplete(stats)
	})

	persistErr := r.persist(ctx, course)

	stats = r.finish()
	r.checkpointed("complete", r.o.checkpoint != nil, func() error {
		return r.o.checkpoint.MarkComplete(stats)
	})

	status := "completed"
	if persistErr != nil {
		status = "persist_failed"
	}
	r.o.metrics.RecordCourse(status)
	r.logger.Info("Course generation complete",
		"title", info.Title,
		"chapters", stats.TotalChapters,
		"fallback_chapters", stats.FallbackChapters,
		"quiz_failures", stats.QuizFailures,
		"content_attempts", stats.ContentAttempts,
		"duration", stats.TotalDuration,
		"persisted", persistErr == nil)

	r.progress.emit(PhaseCompleted, 100, "Course ready", course.ID)
	return Outcome{Course: course, PersistErr: persistErr, Stats: stats}, nil
}

// info runs the first phase
func (r *run) info(ctx context.Context) (models.CourseInfo, error) {
	if r.resumed != nil && r.resumed.InfoComplete {
		r.logger.Info("Resuming with saved course info", "title", r.resumed.Info.Title)
		r.progress.emit(PhaseInfo, 10, "Course info restored", r.resumed.Info)
		return r.resumed.Info, nil
	}

	ctx, span := r.o.tracer.Start(ctx, "course.info")
	defer span.End()
	start := time.Now()

	info, err := r.o.deps.Planner.Info(ctx, r.req)
	r.o.metrics.RecordPhase("info", time.Since(start))
	if err != nil {
		span.RecordError(err)
		return models.CourseInfo{}, fmt.Errorf("failed to generate course info: %w", err)
	}
	if strings.TrimSpace(info.Title) == "" {
		info = models.DefaultCourseInfo(r.req.Query)
	}
	if strings.TrimSpace(info.ImageQuery) == "" {
		info.ImageQuery = r.req.Query
	}

	r.logger.Info("Course info generated", "title", info.Title, "duration", time.Since(start))
	r.checkpointed("info", r.o.checkpoint != nil, func() error {
		return r.o.checkpoint.MarkInfoComplete(info)
	})
	r.progress.emit(PhaseInfo, 10, "Course info generated", info)
	return info, nil
}

// planAndCover runs the outline and the course cover lookup side by side.
// The cover URL is written into info.
func (r *run) planAndCover(ctx context.Context, info *models.CourseInfo) ([]models.ChapterPlan, error) {
	if r.resumed != nil && r.resumed.PlanComplete {
		info.ImageURL = r.resumed.Info.ImageURL
		r.logger.Info("Resuming with saved outline", "chapters", len(r.resumed.Plan))
		r.progress.emit(PhasePlan, 25, "Course outline restored", r.resumed.Plan)
		return r.resumed.Plan, nil
	}

	ctx, span := r.o.tracer.Start(ctx, "course.plan")
	defer span.End()
	start := time.Now()

	var (
		plan  []models.ChapterPlan
		cover imagesearch.Image
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		plan, err = r.o.deps.Planner.Plan(gctx, r.req, r.hasDocs)
		return err
	})
	g.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Course cover lookup panicked", "panic", p)
			}
		}()
		img, err := r.o.deps.Images.Search(gctx, info.ImageQuery, imagesearch.Landscape, imagesearch.SizeFull)
		if err != nil {
			r.logger.Warn("Course cover lookup failed", "error", err)
			return nil
		}
		cover = img
		return nil
	})
	err := g.Wait()
	r.o.metrics.RecordPhase("plan", time.Since(start))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to plan course: %w", err)
	}
	if len(plan) == 0 {
		span.RecordError(ErrEmptyPlan)
		return nil, ErrEmptyPlan
	}

	info.ImageURL = cover.URL
	span.SetAttributes(attribute.Int("course.chapters", len(plan)))
	r.logger.Info("Course outline generated", "chapters", len(plan), "duration", time.Since(start))
	r.checkpointed("plan", r.o.checkpoint != nil, func() error {
		return r.o.checkpoint.MarkPlanComplete(plan, info.ImageURL)
	})
	r.progress.emit(PhasePlan, 25, fmt.Sprintf("Planned %d chapters", len(plan)), plan)
	return plan, nil
}

// hasDocuments reports whether retrieval should run for this course.
// Lookup failures disable retrieval rather than failing the run.
func (r *run) hasDocuments(ctx context.Context) bool {
	if r.scope.Empty() {
		return false
	}
	ok, err := r.o.deps.Retriever.HasDocuments(ctx, r.scope)
	if err != nil {
		r.logger.Warn("Document lookup failed, continuing without retrieval", "error", err)
		return false
	}
	return ok
}

// abort marks a persisted course as failed. It is best effort and runs
// even when ctx is already cancelled.
func (r *run) abort(ctx context.Context, cause error) {
	r.o.metrics.RecordCourse("failed")
	r.logger.Error("Course generation aborted", "error", cause)
	if r.req.CourseID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.o.deps.Store.UpdateCourseStatus(ctx, r.req.CourseID, models.CourseFailed, cause.Error()); err != nil {
		r.logger.Error("Failed to mark course as failed", "error", err)
	}
}

// checkpointed runs mark when checkpointing is on, logging failures
func (r *run) checkpointed(phase string, enabled bool, mark func() error) {
	if !enabled {
		return
	}
	if err := mark(); err != nil {
		r.logger.Error("Failed to checkpoint", "phase", phase, "error", err)
	}
}

func (r *run) record(res content.Result, quizOK bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.ContentAttempts += res.Attempts
	if res.Fallback {
		r.stats.FallbackChapters++
	}
	if !quizOK {
		r.stats.QuizFailures++
	}
}

func (r *run) snapshot() models.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *run) finish() models.RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.EndTime = time.Now()
	r.stats.TotalDuration = r.stats.EndTime.Sub(r.stats.StartTime)
	return r.stats
}
