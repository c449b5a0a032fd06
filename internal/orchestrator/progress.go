package orchestrator

import (
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lamim/uxie/pkg/models"
)

// Progress phase names
const (
	PhaseInfo       = "generating-info"
	PhasePlan       = "planning"
	PhaseChapters   = "generating-chapters"
	PhasePersisting = "persisting"
	PhaseCompleted  = "completed"
)

// ChapterPayload accompanies each finished-chapter progress event
type ChapterPayload struct {
	Index   int    `json:"index"`
	Caption string `json:"caption"`
}

// progress serializes progress callbacks and keeps percentages monotonic
type progress struct {
	mu   sync.Mutex
	fn   func(models.ProgressEvent)
	last int
}

func newProgress(fn func(models.ProgressEvent)) *progress {
	return &progress{fn: fn}
}

func (p *progress) emit(phase string, percent int, message string, payload any) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	percent = max(p.last, min(percent, 100))
	p.last = percent
	p.fn(models.ProgressEvent{
		Phase:   phase,
		Percent: percent,
		Message: message,
		Payload: payload,
	})
}

// chapterPercent maps finished chapters onto 25..90
func chapterPercent(done, total int) int {
	if total == 0 {
		return 90
	}
	return 25 + 65*done/total
}

func traceChapter(i int, plan models.ChapterPlan) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.Int("chapter.index", i),
		attribute.String("chapter.caption", plan.Caption),
		attribute.Int("chapter.minutes", plan.TimeMinutes),
	)
}
