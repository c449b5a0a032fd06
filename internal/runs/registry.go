package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/uxie/pkg/models"
)

// ErrNotPending is returned when starting a run that already started
var ErrNotPending = errors.New("run is not pending")

// ErrShuttingDown is returned when starting a run during shutdown
var ErrShuttingDown = errors.New("registry is shutting down")

const storeWriteTimeout = 10 * time.Second

// Result is what a finished job reports
type Result struct {
	Course     *models.FullCourse
	PersistErr error
}

// Job is the work behind a run. report records a progress event.
type Job func(ctx context.Context, report func(models.ProgressEvent)) (Result, error)

// Registry starts runs in the background and tracks the in-flight ones so
// that shutdown can suspend them
type Registry struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	active   map[string]context.CancelFunc
	stopping bool
	wg       sync.WaitGroup
}

// NewRegistry creates a registry over store
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.With("component", "runs"),
		active: make(map[string]context.CancelFunc),
	}
}

// Store returns the underlying run store
func (r *Registry) Store() Store {
	return r.store
}

// Create registers a new pending run
func (r *Registry) Create(ctx context.Context) (*models.Run, error) {
	now := time.Now()
	run := &models.Run{
		ID:        uuid.NewString(),
		Status:    models.RunPending,
		Progress:  []models.ProgressEvent{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Create(ctx, run); err != nil {
		return nil, err
	}
	r.logger.Debug("Run created", "run_id", run.ID)
	return run, nil
}

// Start moves a pending run to running and executes job in the background.
// The job outlives ctx; it is cancelled only by Shutdown.
func (r *Registry) Start(ctx context.Context, id string, req models.CourseRequest, job Job) error {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return ErrShuttingDown
	}
	if _, ok := r.active[id]; ok {
		r.mu.Unlock()
		return ErrNotPending
	}
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.active[id] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	var notPending bool
	_, err := r.store.Update(ctx, id, func(run *models.Run) {
		if run.Status != models.RunPending {
			notPending = true
			return
		}
		run.Status = models.RunRunning
		run.Request = &req
	})
	if err == nil && notPending {
		err = ErrNotPending
	}
	if err != nil {
		r.release(id)
		cancel()
		return err
	}

	r.logger.Info("Run started", "run_id", id, "query", req.Query, "course_id", req.CourseID)
	go r.execute(jobCtx, id, job)
	return nil
}

func (r *Registry) execute(ctx context.Context, id string, job Job) {
	defer r.release(id)
	logger := r.logger.With("run_id", id)
	start := time.Now()

	report := func(ev models.ProgressEvent) {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
		defer cancel()
		if err := r.store.AppendProgress(wctx, id, ev); err != nil {
			logger.Warn("Failed to record progress", "phase", ev.Phase, "error", err)
		}
	}

	res, err := job(ctx, report)

	status := models.RunSuccess
	switch {
	case err != nil && r.isStopping():
		status = models.RunSuspended
	case err != nil:
		status = models.RunFailed
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()
	_, uerr := r.store.Update(wctx, id, func(run *models.Run) {
		run.Status = status
		if err != nil {
			run.Error = err.Error()
			return
		}
		run.Result = res.Course
		if res.PersistErr != nil {
			run.PersistError = res.PersistErr.Error()
		}
	})
	if uerr != nil {
		logger.Error("Failed to record run result", "status", status, "error", uerr)
	}

	if err != nil {
		logger.Error("Run finished", "status", status, "duration", time.Since(start), "error", err)
		return
	}
	logger.Info("Run finished", "status", status, "duration", time.Since(start), "persisted", res.PersistErr == nil)
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.active[id]; ok {
		cancel()
		delete(r.active, id)
	}
	r.wg.Done()
}

func (r *Registry) isStopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// Active returns the number of runs in flight
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Shutdown cancels every in-flight run, which then ends as suspended, and
// waits for them to record their state or for ctx to expire
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.stopping = true
	n := len(r.active)
	for _, cancel := range r.active {
		cancel()
	}
	r.mu.Unlock()

	if n > 0 {
		r.logger.Info("Suspending in-flight runs", "count", n)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for %d runs: %w", r.Active(), ctx.Err())
	}
}
