package runs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamim/uxie/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, time.Hour), mr
}

func stores(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  rs,
	}
}

func TestStore_Lifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := &models.Run{ID: "run-1", Status: models.RunPending, CreatedAt: time.Now()}
			require.NoError(t, s.Create(ctx, run))
			assert.ErrorIs(t, s.Create(ctx, run), ErrExists)

			got, err := s.Get(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, models.RunPending, got.Status)
			assert.NotNil(t, got.Progress)

			updated, err := s.Update(ctx, "run-1", func(r *models.Run) {
				r.Status = models.RunRunning
			})
			require.NoError(t, err)
			assert.Equal(t, models.RunRunning, updated.Status)
			assert.False(t, updated.UpdatedAt.IsZero())

			require.NoError(t, s.AppendProgress(ctx, "run-1", models.ProgressEvent{Phase: "generating-info", Percent: 10}))
			require.NoError(t, s.AppendProgress(ctx, "run-1", models.ProgressEvent{Phase: "planning", Percent: 25}))

			got, err = s.Get(ctx, "run-1")
			require.NoError(t, err)
			require.Len(t, got.Progress, 2)
			assert.Equal(t, 25, got.Progress[1].Percent)
			last, ok := got.LastProgress()
			assert.True(t, ok)
			assert.Equal(t, "planning", last.Phase)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Update(ctx, "missing", func(*models.Run) {})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, &models.Run{ID: "r"}))
	require.NoError(t, s.AppendProgress(ctx, "r", models.ProgressEvent{Percent: 10}))

	got, err := s.Get(ctx, "r")
	require.NoError(t, err)
	got.Status = models.RunFailed
	got.Progress[0].Percent = 99

	again, err := s.Get(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatus(""), again.Status)
	assert.Equal(t, 10, again.Progress[0].Percent)
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &models.Run{ID: "r"}))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"r"))

	_, err := s.Update(ctx, "r", func(r *models.Run) { r.Status = models.RunRunning })
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"r"), "update should refresh the TTL")

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, "r")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_ConcurrentAppends(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &models.Run{ID: "r"}))

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Go(func() {
			assert.NoError(t, s.AppendProgress(ctx, "r", models.ProgressEvent{Percent: i}))
		})
	}
	wg.Wait()

	got, err := s.Get(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, got.Progress, 5)
}

func waitForStatus(t *testing.T, s Store, id string, want models.RunStatus) *models.Run {
	t.Helper()
	var run *models.Run
	require.Eventually(t, func() bool {
		r, err := s.Get(context.Background(), id)
		if err != nil {
			return false
		}
		run = r
		return r.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestRegistry_Success(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), testLogger())
	ctx := context.Background()

	run, err := reg.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, run.Status)

	req := models.CourseRequest{Query: "Go basics", TimeHours: 1, Difficulty: models.DifficultyEasy, Language: models.LanguageEnglish}
	err = reg.Start(ctx, run.ID, req, func(_ context.Context, report func(models.ProgressEvent)) (Result, error) {
		report(models.ProgressEvent{Phase: "generating-info", Percent: 10})
		report(models.ProgressEvent{Phase: "completed", Percent: 100})
		return Result{Course: &models.FullCourse{Info: models.CourseInfo{Title: "Go"}}, PersistErr: errors.New("db down")}, nil
	})
	require.NoError(t, err)

	got := waitForStatus(t, reg.Store(), run.ID, models.RunSuccess)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Go", got.Result.Info.Title)
	assert.Equal(t, "db down", got.PersistError)
	assert.Len(t, got.Progress, 2)
	require.NotNil(t, got.Request)
	assert.Equal(t, "Go basics", got.Request.Query)

	assert.ErrorIs(t, reg.Start(ctx, run.ID, req, nil), ErrNotPending)
}

func TestRegistry_Failure(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), testLogger())
	ctx := context.Background()
	run, err := reg.Create(ctx)
	require.NoError(t, err)

	err = reg.Start(ctx, run.ID, models.CourseRequest{}, func(context.Context, func(models.ProgressEvent)) (Result, error) {
		return Result{}, errors.New("course plan has no chapters")
	})
	require.NoError(t, err)

	got := waitForStatus(t, reg.Store(), run.ID, models.RunFailed)
	assert.Equal(t, "course plan has no chapters", got.Error)
	assert.Nil(t, got.Result)
}

func TestRegistry_UnknownRun(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), testLogger())
	err := reg.Start(context.Background(), "nope", models.CourseRequest{}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, reg.Active())
}

func TestRegistry_RequestContextDoesNotCancelJob(t *testing.T) {
	reg := NewRegistry(NewMemoryStore(), testLogger())
	run, err := reg.Create(context.Background())
	require.NoError(t, err)

	reqCtx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	err = reg.Start(reqCtx, run.ID, models.CourseRequest{}, func(ctx context.Context, _ func(models.ProgressEvent)) (Result, error) {
		<-release
		return Result{}, ctx.Err()
	})
	require.NoError(t, err)
	cancel()
	close(release)

	waitForStatus(t, reg.Store(), run.ID, models.RunSuccess)
}

func TestRegistry_ShutdownSuspends(t *testing.T) {
	s, _ := newRedisStore(t)
	reg := NewRegistry(s, testLogger())
	ctx := context.Background()
	run, err := reg.Create(ctx)
	require.NoError(t, err)

	started := make(chan struct{})
	err = reg.Start(ctx, run.ID, models.CourseRequest{}, func(ctx context.Context, _ func(models.ProgressEvent)) (Result, error) {
		close(started)
		<-ctx.Done()
		return Result{}, ctx.Err()
	})
	require.NoError(t, err)
	<-started
	assert.Equal(t, 1, reg.Active())

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(shutdownCtx))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunSuspended, got.Status)
	assert.Equal(t, 0, reg.Active())

	next, err := reg.Create(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, reg.Start(ctx, next.ID, models.CourseRequest{}, nil), ErrShuttingDown)
}
