package checkpoint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/uxie/pkg/models"
)

const CheckpointFilename = "checkpoint.json"

// Manager handles checkpoint operations with async write support
type Manager struct {
	sessionDir string
	checkpoint *models.Checkpoint
	mu         sync.RWMutex
	logger     *slog.Logger
	enabled    bool

	// Async write support
	writeChan   chan *models.Checkpoint
	writeWg     sync.WaitGroup
	stopWriter  chan struct{}
	closeOnce   sync.Once
	writerError error
	errorMu     sync.Mutex
	writeMu     sync.Mutex // Protects concurrent disk writes
}

// NewManager creates a new checkpoint manager for a fresh course run
func NewManager(sessionDir string, req models.CourseRequest, enabled bool, logger *slog.Logger) *Manager {
	return newManager(sessionDir, &models.Checkpoint{
		SessionID:         uuid.New().String(),
		CreatedAt:         time.Now(),
		CurrentPhase:      models.PhaseInfo,
		CompletedChapters: make(map[int]models.FullChapter),
		RequestHash:       RequestHash(req),
	}, enabled, logger)
}

// NewManagerFromCheckpoint creates a manager from existing checkpoint
func NewManagerFromCheckpoint(sessionDir string, cp *models.Checkpoint, enabled bool, logger *slog.Logger) *Manager {
	if cp.CompletedChapters == nil {
		cp.CompletedChapters = make(map[int]models.FullChapter)
	}
	return newManager(sessionDir, cp, enabled, logger)
}

func newManager(sessionDir string, cp *models.Checkpoint, enabled bool, logger *slog.Logger) *Manager {
	m := &Manager{
		sessionDir: sessionDir,
		checkpoint: cp,
		logger:     logger.With("component", "checkpoint"),
		enabled:    enabled,
		writeChan:  make(chan *models.Checkpoint, 10), // Buffer up to 10 pending writes
		stopWriter: make(chan struct{}),
	}

	if m.enabled {
		m.startAsyncWriter()
	}

	return m
}

// startAsyncWriter starts the background writer goroutine
func (m *Manager) startAsyncWriter() {
	m.writeWg.Add(1)
	go func() {
		defer m.writeWg.Done()
		for {
			select {
			case cp := <-m.writeChan:
				if err := m.writeCheckpointToDisk(cp); err != nil {
					m.errorMu.Lock()
					m.writerError = err
					m.errorMu.Unlock()
					m.logger.Error("Failed to write checkpoint", "error", err)
				}
			case <-m.stopWriter:
				// Drain remaining writes before stopping
				for len(m.writeChan) > 0 {
					cp := <-m.writeChan
					if err := m.writeCheckpointToDisk(cp); err != nil {
						m.logger.Error("Failed to write checkpoint during shutdown", "error", err)
					}
				}
				return
			}
		}
	}()
}

// writeCheckpointToDisk performs the actual disk write (called by async writer)
func (m *Manager) writeCheckpointToDisk(cp *models.Checkpoint) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Atomic write: write to temp file, then rename
	checkpointPath := filepath.Join(m.sessionDir, CheckpointFilename)
	tempPath := checkpointPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint saved", "path", checkpointPath, "phase", cp.CurrentPhase)
	return nil
}

// Save queues checkpoint for async write
func (m *Manager) Save() error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	select {
	case m.writeChan <- cpCopy:
		return nil
	default:
		m.logger.Warn("Checkpoint write buffer full, writing synchronously")
		return m.writeCheckpointToDisk(cpCopy)
	}
}

// SaveSync performs synchronous checkpoint write
func (m *Manager) SaveSync() error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	return m.writeCheckpointToDisk(cpCopy)
}

// copyCheckpoint creates a deep copy of the checkpoint. Chapter values are
// shared; they are never mutated after being recorded.
func (m *Manager) copyCheckpoint() *models.Checkpoint {
	cp := *m.checkpoint
	cp.Plan = slices.Clone(m.checkpoint.Plan)
	cp.CompletedChapters = maps.Clone(m.checkpoint.CompletedChapters)
	if cp.CompletedChapters == nil {
		cp.CompletedChapters = make(map[int]models.FullChapter)
	}
	return &cp
}

// Load reads checkpoint from disk
func Load(sessionDir string, logger *slog.Logger) (*models.Checkpoint, error) {
	checkpointPath := filepath.Join(sessionDir, CheckpointFilename)

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	logger.Info("Checkpoint loaded",
		"session_id", cp.SessionID,
		"phase", cp.CurrentPhase,
		"completed_chapters", len(cp.CompletedChapters))

	return &cp, nil
}

// MarkInfoComplete saves the course info phase
func (m *Manager) MarkInfoComplete(info models.CourseInfo) error {
	m.mu.Lock()
	m.checkpoint.InfoComplete = true
	m.checkpoint.Info = info
	m.checkpoint.CurrentPhase = models.PhasePlan
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkPlanComplete saves the outline and the cover image
func (m *Manager) MarkPlanComplete(plan []models.ChapterPlan, coverURL string) error {
	m.mu.Lock()
	m.checkpoint.PlanComplete = true
	m.checkpoint.Plan = plan
	m.checkpoint.Info.ImageURL = coverURL
	m.checkpoint.CurrentPhase = models.PhaseChapters
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkChapterComplete records one finished chapter
func (m *Manager) MarkChapterComplete(index int, chapter models.FullChapter, stats models.RunStats) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.CompletedChapters[index] = chapter
	m.checkpoint.Stats = stats
	m.mu.Unlock()

	return m.Save()
}

// MarkChaptersComplete moves the session to the persistence phase
func (m *Manager) MarkChaptersComplete(stats models.RunStats) error {
	m.mu.Lock()
	m.checkpoint.CurrentPhase = models.PhasePersist
	m.checkpoint.Stats = stats
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkComplete marks entire generation as complete
func (m *Manager) MarkComplete(stats models.RunStats) error {
	m.mu.Lock()
	m.checkpoint.CurrentPhase = models.PhaseComplete
	m.checkpoint.Stats = stats
	m.mu.Unlock()

	return m.SaveSync()
}

// GetCheckpoint returns a read-only copy of the current checkpoint
func (m *Manager) GetCheckpoint() *models.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyCheckpoint()
}

// Close stops the async writer and waits for pending writes
func (m *Manager) Close() error {
	if !m.enabled {
		return nil
	}

	m.closeOnce.Do(func() {
		close(m.stopWriter)
		m.writeWg.Wait()
	})

	m.errorMu.Lock()
	defer m.errorMu.Unlock()
	return m.writerError
}

// RequestHash fingerprints the request fields that shape the generated course
func RequestHash(req models.CourseRequest) string {
	docs := slices.Clone(req.DocumentIDs)
	slices.Sort(docs)
	data := fmt.Sprintf("%s:%g:%s:%s:%s",
		strings.TrimSpace(req.Query),
		req.TimeHours,
		req.Difficulty,
		req.Language,
		strings.Join(docs, ","))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8]) // First 8 bytes
}
