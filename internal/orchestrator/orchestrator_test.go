package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/checkpoint"
	"github.com/lamim/uxie/internal/content"
	"github.com/lamim/uxie/internal/extractor"
	"github.com/lamim/uxie/internal/imagesearch"
	"github.com/lamim/uxie/internal/retrieval"
	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/internal/store/sqlstore"
	"github.com/lamim/uxie/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var testRequest = models.CourseRequest{
	Query:      "Intro to Variables",
	TimeHours:  1,
	Difficulty: models.DifficultyEasy,
	Language:   models.LanguageEnglish,
}

func testPlan(n int) []models.ChapterPlan {
	plan := make([]models.ChapterPlan, n)
	for i := range plan {
		plan[i] = models.ChapterPlan{
			Caption:       fmt.Sprintf("Chapter %d", i+1),
			ContentPoints: []string{"first point", "second point", "third point"},
			TimeMinutes:   20,
		}
	}
	return plan
}

type stubPlanner struct {
	info    models.CourseInfo
	infoErr error
	plan    []models.ChapterPlan
	planErr error

	mu       sync.Mutex
	planned  int
	withDocs bool
}

func (p *stubPlanner) Info(context.Context, models.CourseRequest) (models.CourseInfo, error) {
	return p.info, p.infoErr
}

func (p *stubPlanner) Plan(_ context.Context, _ models.CourseRequest, hasDocuments bool) ([]models.ChapterPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.planned++
	p.withDocs = hasDocuments
	return p.plan, p.planErr
}

type stubContent struct {
	mu       sync.Mutex
	requests []content.ChapterRequest
	fallback map[string]bool
	block    chan struct{}
}

func (c *stubContent) Run(ctx context.Context, req content.ChapterRequest) content.Result {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
		}
	}
	if c.fallback[req.Plan.Caption] {
		return content.Result{Content: content.Fallback(req.Plan, req.Language), Attempts: content.MaxIterations, Fallback: true}
	}
	return content.Result{
		Content:  models.ChapterContent{Code: "() => { return <div>" + req.Plan.Caption + "</div>; }", KeyTakeaways: req.Plan.ContentPoints},
		Attempts: 1,
	}
}

func (c *stubContent) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type stubQuiz struct {
	fail    map[string]bool
	panicOn string

	mu        sync.Mutex
	materials map[string]string
}

func (q *stubQuiz) Quiz(_ context.Context, plan models.ChapterPlan, material string, _ models.Difficulty, _ models.Language) (*models.Quiz, bool) {
	q.mu.Lock()
	if q.materials == nil {
		q.materials = make(map[string]string)
	}
	q.materials[plan.Caption] = material
	q.mu.Unlock()

	if plan.Caption == q.panicOn {
		panic("quiz exploded")
	}
	if q.fail[plan.Caption] {
		return nil, false
	}
	return &models.Quiz{Questions: []models.Question{{
		Type:          models.QuestionOpenText,
		Question:      "What is " + plan.Caption + "?",
		CorrectAnswer: "A chapter",
	}}}, true
}

type stubImages struct{}

func (stubImages) Search(_ context.Context, query string, orientation imagesearch.Orientation, size imagesearch.Size) (imagesearch.Image, error) {
	return imagesearch.Image{URL: fmt.Sprintf("img://%s/%s/%s", query, orientation, size)}, nil
}

type stubRetriever struct {
	has      bool
	passages []string

	mu      sync.Mutex
	queries []string
}

func (r *stubRetriever) HasDocuments(context.Context, retrieval.Scope) (bool, error) {
	return r.has, nil
}

func (r *stubRetriever) Retrieve(_ context.Context, _ retrieval.Scope, query string, _ int, _ float64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	return r.passages, nil
}

// memStore is an in-memory PersistenceClient
type memStore struct {
	mu        sync.Mutex
	owner     string
	existing  *store.CourseRecord
	created   []store.CourseRecord
	updated   []store.CourseRecord
	chapters  []store.ChapterRecord
	questions map[string][]models.Question
	statuses  []models.CourseStatus
	messages  []string
	failSave  error
}

func (s *memStore) GetCourse(context.Context, string) (*store.CourseRecord, error) {
	return s.existing, nil
}

func (s *memStore) GetCourseOwner(context.Context, string) (string, error) {
	return s.owner, nil
}

func (s *memStore) CreateCourse(_ context.Context, c store.CourseRecord) (*store.CourseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, c)
	return &c, nil
}

func (s *memStore) UpdateCourse(_ context.Context, c store.CourseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, c)
	return nil
}

func (s *memStore) SaveChapter(_ context.Context, ch store.ChapterRecord) (*store.ChapterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return nil, s.failSave
	}
	ch.ID = fmt.Sprintf("ch-%d", ch.Position)
	s.chapters = append(s.chapters, ch)
	return &ch, nil
}

func (s *memStore) SaveQuestions(_ context.Context, chapterID string, qs []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questions == nil {
		s.questions = make(map[string][]models.Question)
	}
	s.questions[chapterID] = qs
	return nil
}

func (s *memStore) UpdateCourseStatus(_ context.Context, _ string, status models.CourseStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	s.messages = append(s.messages, msg)
	return nil
}

func newTestOrchestrator(planner *stubPlanner, c ContentGenerator, q *stubQuiz, opts ...Option) *Orchestrator {
	return New(Deps{
		Planner: planner,
		Content: c,
		Quiz:    q,
		Images:  stubImages{},
	}, testLogger(), opts...)
}

func TestRun_ChapterCountAndOrder(t *testing.T) {
	planner := &stubPlanner{
		info: models.CourseInfo{Title: "Variables", Description: "All about variables", ImageQuery: "code"},
		plan: testPlan(4),
	}
	quiz := &stubQuiz{fail: map[string]bool{"Chapter 2": true}}
	o := newTestOrchestrator(planner, &stubContent{}, quiz)

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	course := outcome.Course
	if len(course.Chapters) != 4 {
		t.Fatalf("Expected 4 chapters, got %d", len(course.Chapters))
	}
	for i, ch := range course.Chapters {
		want := fmt.Sprintf("Chapter %d", i+1)
		if ch.Plan.Caption != want {
			t.Errorf("Chapter %d caption = %q, want %q", i, ch.Plan.Caption, want)
		}
		if ch.ImageURL != "img://"+want+"/landscape/regular" {
			t.Errorf("Chapter %d image = %q", i, ch.ImageURL)
		}
	}
	if qs := course.Chapters[1].Quiz.Questions; qs == nil || len(qs) != 0 {
		t.Errorf("Failed quiz should be an empty question list, got %#v", qs)
	}
	if len(course.Chapters[0].Quiz.Questions) != 1 {
		t.Errorf("Chapter 1 should keep its quiz")
	}
	if course.Info.ImageURL != "img://code/landscape/full" {
		t.Errorf("Cover image = %q", course.Info.ImageURL)
	}
	if outcome.Stats.TotalChapters != 4 || outcome.Stats.QuizFailures != 1 || outcome.Stats.ContentAttempts != 4 {
		t.Errorf("Unexpected stats: %+v", outcome.Stats)
	}
	if outcome.PersistErr != nil {
		t.Errorf("PersistErr = %v, want nil without a course id", outcome.PersistErr)
	}
}

func TestRun_QuizPanicIsAbsorbed(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(3)}
	quiz := &stubQuiz{panicOn: "Chapter 2"}
	o := newTestOrchestrator(planner, &stubContent{}, quiz)

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	ch := outcome.Course.Chapters[1]
	if ch.Plan.Caption != "Chapter 2" {
		t.Fatalf("Chapter order broken: %q", ch.Plan.Caption)
	}
	if ch.Quiz.Questions == nil || len(ch.Quiz.Questions) != 0 {
		t.Errorf("Expected empty questions, got %#v", ch.Quiz.Questions)
	}
	if !strings.Contains(ch.Content.Code, "Chapter 2") {
		t.Errorf("Expected fallback content for the chapter, got %q", ch.Content.Code)
	}
}

type panicContent struct{ on string }

func (c panicContent) Run(_ context.Context, req content.ChapterRequest) content.Result {
	if req.Plan.Caption == c.on {
		panic("content exploded")
	}
	return (&stubContent{}).Run(context.Background(), req)
}

type panicImages struct{}

func (panicImages) Search(context.Context, string, imagesearch.Orientation, imagesearch.Size) (imagesearch.Image, error) {
	panic("image search exploded")
}

func TestRun_ContentPanicYieldsFallback(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(2)}
	quiz := &stubQuiz{}
	o := newTestOrchestrator(planner, panicContent{on: "Chapter 1"}, quiz)

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcome.Course.Chapters) != 2 {
		t.Fatalf("Expected 2 chapters, got %d", len(outcome.Course.Chapters))
	}
	ch := outcome.Course.Chapters[0]
	want := content.Fallback(ch.Plan, testRequest.Language)
	if ch.Content.Code != want.Code {
		t.Errorf("Expected fallback component, got %q", ch.Content.Code)
	}
	if len(ch.Quiz.Questions) != 1 {
		t.Errorf("Quiz should still run after a content panic, got %d questions", len(ch.Quiz.Questions))
	}
	if quiz.materials["Chapter 1"] != strings.Join(ch.Plan.ContentPoints, "\n") {
		t.Errorf("Quiz material = %q, want plan points", quiz.materials["Chapter 1"])
	}
	if outcome.Stats.FallbackChapters != 1 {
		t.Errorf("FallbackChapters = %d, want 1", outcome.Stats.FallbackChapters)
	}
	if !strings.Contains(outcome.Course.Chapters[1].Content.Code, "<div>Chapter 2</div>") {
		t.Errorf("Chapter 2 content = %q", outcome.Course.Chapters[1].Content.Code)
	}
}

func TestRun_ImagePanicLeavesImageEmpty(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T", ImageQuery: "code"}, plan: testPlan(2)}
	o := New(Deps{
		Planner: planner,
		Content: &stubContent{},
		Quiz:    &stubQuiz{},
		Images:  panicImages{},
	}, testLogger())

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcome.Course.Chapters) != 2 {
		t.Fatalf("Expected 2 chapters, got %d", len(outcome.Course.Chapters))
	}
	if outcome.Course.Info.ImageURL != "" {
		t.Errorf("Cover image = %q, want empty", outcome.Course.Info.ImageURL)
	}
	for i, ch := range outcome.Course.Chapters {
		if ch.ImageURL != "" {
			t.Errorf("Chapter %d image = %q, want empty", i, ch.ImageURL)
		}
		if !strings.Contains(ch.Content.Code, ch.Plan.Caption) {
			t.Errorf("Chapter %d lost its content: %q", i, ch.Content.Code)
		}
	}
}

func TestRun_RepersistKeepsOneChapterPerPosition(t *testing.T) {
	ctx := context.Background()
	db, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "uxie.db"), testLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(3)}
	o := New(Deps{
		Planner: planner,
		Content: &stubContent{},
		Quiz:    &stubQuiz{},
		Images:  stubImages{},
		Store:   db,
	}, testLogger())

	req := testRequest
	req.CourseID = "c1"
	for i := 0; i < 2; i++ {
		outcome, err := o.Run(ctx, req)
		if err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
		if outcome.PersistErr != nil {
			t.Fatalf("Run() #%d PersistErr = %v", i+1, outcome.PersistErr)
		}
	}

	chapters, err := db.Chapters(ctx, "c1")
	if err != nil {
		t.Fatalf("Chapters() error = %v", err)
	}
	if len(chapters) != 3 {
		t.Fatalf("Expected 3 stored chapters after two runs, got %d", len(chapters))
	}
	for i, ch := range chapters {
		questions, err := db.Questions(ctx, ch.ID)
		if err != nil {
			t.Fatalf("Questions() error = %v", err)
		}
		if len(questions) != 1 {
			t.Errorf("Chapter %d has %d questions, want 1", i, len(questions))
		}
	}
	course, err := db.GetCourse(ctx, "c1")
	if err != nil || course == nil || course.Status != models.CourseFinished {
		t.Errorf("GetCourse() = %+v, %v", course, err)
	}
}

func TestRun_EndToEndRetry(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"Sorry, here is some prose without a component.",
		"function Variables() { return <div>OK</div>; }",
	}}
	validator := &acceptValidator{}
	gen := content.New(model, extractor.New(), validator, testLogger())

	planner := &stubPlanner{info: models.CourseInfo{Title: "Variables"}, plan: testPlan(1)}
	o := newTestOrchestrator(planner, gen, &stubQuiz{})

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if model.calls() != 2 {
		t.Errorf("Expected exactly 2 model calls, got %d", model.calls())
	}
	if validator.calls != 1 {
		t.Errorf("Expected the validator to run once, got %d", validator.calls)
	}
	got := outcome.Course.Chapters[0].Content.Code
	if got != "function Variables() { return <div>OK</div>; }" {
		t.Errorf("Content = %q", got)
	}
	if outcome.Stats.ContentAttempts != 2 || outcome.Stats.FallbackChapters != 0 {
		t.Errorf("Unexpected stats: %+v", outcome.Stats)
	}
}

func TestRun_EmptyPlanAborts(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: []models.ChapterPlan{}}
	gen := &stubContent{}
	db := &memStore{}
	o := New(Deps{Planner: planner, Content: gen, Quiz: &stubQuiz{}, Images: stubImages{}, Store: db}, testLogger())

	req := testRequest
	req.CourseID = "course-1"
	_, err := o.Run(context.Background(), req)
	if !errors.Is(err, ErrEmptyPlan) {
		t.Fatalf("Run() error = %v, want ErrEmptyPlan", err)
	}
	if gen.calls() != 0 {
		t.Errorf("Content generator should never run, got %d calls", gen.calls())
	}
	if len(db.statuses) != 1 || db.statuses[0] != models.CourseFailed {
		t.Errorf("Expected course marked failed, got %v", db.statuses)
	}
	if len(db.created) != 0 || len(db.chapters) != 0 {
		t.Error("Nothing should be written for an aborted course")
	}
}

func TestRun_InfoErrorAborts(t *testing.T) {
	planner := &stubPlanner{infoErr: errors.New("model down")}
	o := newTestOrchestrator(planner, &stubContent{}, &stubQuiz{})

	if _, err := o.Run(context.Background(), testRequest); err == nil {
		t.Fatal("Expected an error when course info fails")
	}
	if planner.planned != 0 {
		t.Error("Planning should not run after an info failure")
	}
}

func TestRun_DefaultInfo(t *testing.T) {
	planner := &stubPlanner{plan: testPlan(1)}
	o := newTestOrchestrator(planner, &stubContent{}, &stubQuiz{})

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.Course.Info.Title != "Untitled Course" {
		t.Errorf("Title = %q, want default", outcome.Course.Info.Title)
	}
	if outcome.Course.Info.ImageQuery != testRequest.Query {
		t.Errorf("ImageQuery = %q, want the query", outcome.Course.Info.ImageQuery)
	}
}

func TestRun_Persists(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "Variables"}, plan: testPlan(2)}
	db := &memStore{owner: "user-9"}
	o := New(Deps{Planner: planner, Content: &stubContent{}, Quiz: &stubQuiz{fail: map[string]bool{"Chapter 2": true}}, Images: stubImages{}, Store: db}, testLogger())

	req := testRequest
	req.CourseID = "course-1"
	outcome, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome.PersistErr != nil {
		t.Fatalf("PersistErr = %v", outcome.PersistErr)
	}
	if outcome.Course.ID != "course-1" {
		t.Errorf("Course ID = %q", outcome.Course.ID)
	}
	if len(db.created) != 1 || db.created[0].UserID != "user-9" || db.created[0].Title != "Variables" {
		t.Errorf("Unexpected created courses: %+v", db.created)
	}
	if len(db.chapters) != 2 || db.chapters[0].Position != 0 || db.chapters[1].Position != 1 {
		t.Errorf("Unexpected chapters: %+v", db.chapters)
	}
	if len(db.questions["ch-0"]) != 1 {
		t.Errorf("Chapter 1 questions not saved")
	}
	if _, ok := db.questions["ch-1"]; ok {
		t.Errorf("Empty quiz should not be saved")
	}
	if len(db.statuses) != 1 || db.statuses[0] != models.CourseFinished {
		t.Errorf("Expected finished status, got %v", db.statuses)
	}
}

func TestRun_UpdatesExistingCourse(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "Variables"}, plan: testPlan(1)}
	db := &memStore{owner: "user-1", existing: &store.CourseRecord{ID: "course-1", Status: models.CourseGenerating}}
	o := New(Deps{Planner: planner, Content: &stubContent{}, Quiz: &stubQuiz{}, Images: stubImages{}, Store: db}, testLogger())

	req := testRequest
	req.CourseID = "course-1"
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(db.created) != 0 || len(db.updated) != 1 {
		t.Errorf("Expected one update and no create, got %d/%d", len(db.updated), len(db.created))
	}
}

func TestRun_PersistFailureIsReported(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(2)}
	db := &memStore{failSave: errors.New("connection reset")}
	o := New(Deps{Planner: planner, Content: &stubContent{}, Quiz: &stubQuiz{}, Images: stubImages{}, Store: db}, testLogger())

	req := testRequest
	req.CourseID = "course-1"
	outcome, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v, persistence failures must not fail the run", err)
	}
	if outcome.PersistErr == nil || !strings.Contains(outcome.PersistErr.Error(), "connection reset") {
		t.Errorf("PersistErr = %v", outcome.PersistErr)
	}
	if len(outcome.Course.Chapters) != 2 {
		t.Errorf("Generated course should still be returned")
	}
	for _, s := range db.statuses {
		if s == models.CourseFailed {
			t.Error("A persistence failure should not mark the course failed")
		}
	}
}

func TestRunWithProgress(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(5)}
	o := newTestOrchestrator(planner, &stubContent{}, &stubQuiz{}, WithChapterConcurrency(2))

	var events []models.ProgressEvent
	req := testRequest
	req.CourseID = "course-1"
	_, err := o.RunWithProgress(context.Background(), req, func(ev models.ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("RunWithProgress() error = %v", err)
	}

	// info, plan, 5 chapters, persisting, completed
	if len(events) != 9 {
		t.Fatalf("Expected 9 events, got %d: %+v", len(events), events)
	}
	if events[0].Phase != PhaseInfo || events[0].Percent != 10 {
		t.Errorf("First event = %+v", events[0])
	}
	if events[1].Phase != PhasePlan || events[1].Percent != 25 {
		t.Errorf("Second event = %+v", events[1])
	}
	if events[6].Phase != PhaseChapters || events[6].Percent != 90 {
		t.Errorf("Last chapter event = %+v", events[6])
	}
	if events[7].Phase != PhasePersisting || events[7].Percent != 95 {
		t.Errorf("Persist event = %+v", events[7])
	}
	last := events[len(events)-1]
	if last.Phase != PhaseCompleted || last.Percent != 100 {
		t.Errorf("Last event = %+v", last)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Errorf("Progress went backwards at %d: %d -> %d", i, events[i-1].Percent, events[i].Percent)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(3)}
	gen := &stubContent{block: make(chan struct{})}
	db := &memStore{}
	o := New(Deps{Planner: planner, Content: gen, Quiz: &stubQuiz{}, Images: stubImages{}, Store: db}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := testRequest
	req.CourseID = "course-1"
	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, req)
		done <- err
	}()

	for gen.calls() < 3 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if len(db.chapters) != 0 {
		t.Error("Cancelled run should not persist chapters")
	}
	if len(db.statuses) != 1 || db.statuses[0] != models.CourseFailed {
		t.Errorf("Cancelled run should mark the course failed, got %v", db.statuses)
	}
}

func TestRun_RetrievalContext(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(2)}
	gen := &stubContent{}
	ret := &stubRetriever{has: true, passages: []string{"excerpt one", "excerpt two"}}
	o := New(Deps{Planner: planner, Content: gen, Quiz: &stubQuiz{}, Images: stubImages{}, Retriever: ret}, testLogger())

	req := testRequest
	req.DocumentIDs = []string{"doc-1"}
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !planner.withDocs {
		t.Error("Planner should be told documents exist")
	}
	if len(ret.queries) != 2 {
		t.Fatalf("Expected 2 retrievals, got %d", len(ret.queries))
	}
	for _, r := range gen.requests {
		if r.Context != "excerpt one"+passageSeparator+"excerpt two" {
			t.Errorf("Context = %q", r.Context)
		}
		if !strings.HasPrefix(r.Plan.Caption, "Chapter") || len(r.Chapters) != 2 {
			t.Errorf("Unexpected chapter request: %+v", r)
		}
	}
}

func TestRun_NoRetrievalWithoutScope(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(1)}
	ret := &stubRetriever{has: true, passages: []string{"excerpt"}}
	gen := &stubContent{}
	o := New(Deps{Planner: planner, Content: gen, Quiz: &stubQuiz{}, Images: stubImages{}, Retriever: ret}, testLogger())

	if _, err := o.Run(context.Background(), testRequest); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(ret.queries) != 0 || gen.requests[0].Context != "" {
		t.Error("Retrieval should not run without documents or a course id")
	}
}

func TestRun_FallbackQuizMaterial(t *testing.T) {
	planner := &stubPlanner{info: models.CourseInfo{Title: "T"}, plan: testPlan(1)}
	gen := &stubContent{fallback: map[string]bool{"Chapter 1": true}}
	quiz := &stubQuiz{}
	o := newTestOrchestrator(planner, gen, quiz)

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := quiz.materials["Chapter 1"]; got != "first point\nsecond point\nthird point" {
		t.Errorf("Quiz material = %q, want the plan points", got)
	}
	if outcome.Stats.FallbackChapters != 1 {
		t.Errorf("FallbackChapters = %d", outcome.Stats.FallbackChapters)
	}
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	plan := testPlan(3)
	done := models.FullChapter{
		Plan:    plan[0],
		Content: models.ChapterContent{Code: "() => { return <p>saved</p>; }"},
		Quiz:    models.Quiz{Questions: []models.Question{}},
	}
	cp := &models.Checkpoint{
		CurrentPhase:      models.PhaseChapters,
		InfoComplete:      true,
		Info:              models.CourseInfo{Title: "Saved", ImageURL: "img://saved"},
		PlanComplete:      true,
		Plan:              plan,
		CompletedChapters: map[int]models.FullChapter{0: done},
		RequestHash:       checkpoint.RequestHash(testRequest),
	}
	mgr := checkpoint.NewManagerFromCheckpoint(t.TempDir(), cp, false, testLogger())

	planner := &stubPlanner{infoErr: errors.New("should not be called")}
	gen := &stubContent{}
	o := newTestOrchestrator(planner, gen, &stubQuiz{}, WithCheckpoint(mgr, true))

	outcome, err := o.Run(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if planner.planned != 0 {
		t.Error("Planner should not run on resume")
	}
	if gen.calls() != 2 {
		t.Errorf("Expected 2 chapters generated, got %d", gen.calls())
	}
	if outcome.Course.Info.Title != "Saved" || outcome.Course.Info.ImageURL != "img://saved" {
		t.Errorf("Unexpected info: %+v", outcome.Course.Info)
	}
	if outcome.Course.Chapters[0].Content.Code != done.Content.Code {
		t.Error("Saved chapter should be reused")
	}
	if len(outcome.Course.Chapters) != 3 {
		t.Errorf("Expected 3 chapters, got %d", len(outcome.Course.Chapters))
	}
}

func TestChapterPercent(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 4, 25},
		{1, 4, 41},
		{2, 4, 57},
		{4, 4, 90},
		{0, 0, 90},
	}
	for _, tt := range tests {
		if got := chapterPercent(tt.done, tt.total); got != tt.want {
			t.Errorf("chapterPercent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

// scriptedModel replies from a fixed script, repeating the last entry
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	n       int
}

func (m *scriptedModel) Generate(context.Context, string, *api.Schema) (*api.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := min(m.n, len(m.replies)-1)
	m.n++
	return &api.Generation{Text: m.replies[i]}, nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n
}

type acceptValidator struct {
	calls int
}

func (v *acceptValidator) Validate(string) models.ValidationResult {
	v.calls++
	return models.ValidationResult{Valid: true, Errors: []models.Diagnostic{}, Warnings: []models.Diagnostic{}}
}
