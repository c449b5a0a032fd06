package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/lamim/uxie/pkg/models"
)

const (
	requestFilename = "request.json"
	maxSlugLength   = 48
)

// CourseDocument is the on-disk form of a finished CLI run
type CourseDocument struct {
	Course      models.FullCourse    `json:"course"`
	Request     models.CourseRequest `json:"request"`
	Stats       models.RunStats      `json:"stats"`
	PersistErr  string               `json:"persist_error,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// CourseWriter writes generated courses into a session directory
type CourseWriter struct {
	session *SessionManager
	logger  *slog.Logger
}

// NewCourseWriter creates a writer bound to one session
func NewCourseWriter(session *SessionManager, logger *slog.Logger) *CourseWriter {
	return &CourseWriter{
		session: session,
		logger:  logger.With("component", "course_writer"),
	}
}

// SaveRequest records the request that started the session so a resume
// can replay it
func (w *CourseWriter) SaveRequest(req models.CourseRequest) error {
	return writeJSONAtomic(filepath.Join(w.session.GetSessionDir(), requestFilename), req)
}

// LoadRequest reads the request saved in sessionDir
func LoadRequest(sessionDir string) (models.CourseRequest, error) {
	var req models.CourseRequest
	data, err := os.ReadFile(filepath.Join(sessionDir, requestFilename))
	if err != nil {
		return req, fmt.Errorf("failed to read request: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}

// WriteCourse writes course.json and one .jsx file per chapter. The
// returned paths are the chapter files in plan order.
func (w *CourseWriter) WriteCourse(doc CourseDocument) ([]string, error) {
	if doc.GeneratedAt.IsZero() {
		doc.GeneratedAt = time.Now()
	}

	chaptersDir := w.session.GetChaptersDir()
	if err := os.MkdirAll(chaptersDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chapters directory: %w", err)
	}

	paths := make([]string, 0, len(doc.Course.Chapters))
	for i, ch := range doc.Course.Chapters {
		path := filepath.Join(chaptersDir, ChapterFilename(i, ch.Plan.Caption))
		if err := os.WriteFile(path, []byte(ch.Content.Code), 0644); err != nil {
			return nil, fmt.Errorf("failed to write chapter %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}

	if err := writeJSONAtomic(w.session.GetCoursePath(), doc); err != nil {
		return nil, err
	}

	w.logger.Info("Course written",
		"path", w.session.GetCoursePath(),
		"chapters", len(paths))
	return paths, nil
}

// ChapterFilename names the component file of chapter i, e.g. "01-intro.jsx"
func ChapterFilename(i int, caption string) string {
	slug := Slugify(caption)
	if slug == "" {
		return fmt.Sprintf("%02d.jsx", i+1)
	}
	return fmt.Sprintf("%02d-%s.jsx", i+1, slug)
}

// Slugify lowercases s and keeps ASCII letters and digits, joining the
// words with single hyphens
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			if b.Len() >= maxSlugLength {
				break
			}
			continue
		}
		pendingHyphen = true
	}
	return b.String()
}

// writeJSONAtomic writes v to a temp file and renames it into place
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(tempPath), err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
