// Package supabase persists courses through the Supabase PostgREST API
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

const (
	// DefaultTimeout is the default timeout for a single REST call
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries for retryable failures
	DefaultMaxRetries = 3
	// LogPreviewLength bounds response bodies kept in errors
	LogPreviewLength = 500

	tableCourses   = "courses"
	tableChapters  = "chapters"
	tableQuestions = "questions"

	preferRepresentation = "return=representation"
	preferUpsert         = "resolution=merge-duplicates,return=representation"
)

// RequestError is a non-2xx PostgREST response
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated
func (e *RequestError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a store.PersistenceClient backed by PostgREST
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the retry budget for retryable failures
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackoff sets the initial retry backoff
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// New creates a client for the project at baseURL using the service-role key
func New(baseURL, serviceKey string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		key:        serviceKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		backoff:    time.Second,
		logger:     logger.With("component", "supabase"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ store.PersistenceClient = (*Client)(nil)

// questionRow is the questions table shape
type questionRow struct {
	ChapterID       string `json:"chapter_id"`
	Position        int    `json:"position"`
	Type            string `json:"type"`
	Question        string `json:"question"`
	AnswerA         string `json:"answer_a,omitempty"`
	AnswerB         string `json:"answer_b,omitempty"`
	AnswerC         string `json:"answer_c,omitempty"`
	AnswerD         string `json:"answer_d,omitempty"`
	CorrectAnswer   string `json:"correct_answer"`
	Explanation     string `json:"explanation,omitempty"`
	GradingCriteria string `json:"grading_criteria,omitempty"`
}

// GetCourse implements store.PersistenceClient
func (c *Client) GetCourse(ctx context.Context, courseID string) (*store.CourseRecord, error) {
	var rows []store.CourseRecord
	query := url.Values{"id": {"eq." + courseID}, "select": {"*"}}
	if err := c.do(ctx, http.MethodGet, tableCourses, query, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetCourseOwner implements store.PersistenceClient
func (c *Client) GetCourseOwner(ctx context.Context, courseID string) (string, error) {
	var rows []struct {
		UserID string `json:"user_id"`
	}
	query := url.Values{"id": {"eq." + courseID}, "select": {"user_id"}}
	if err := c.do(ctx, http.MethodGet, tableCourses, query, nil, "", &rows); err != nil {
		return "", fmt.Errorf("failed to get course owner: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].UserID, nil
}

// CreateCourse implements store.PersistenceClient
func (c *Client) CreateCourse(ctx context.Context, course store.CourseRecord) (*store.CourseRecord, error) {
	var rows []store.CourseRecord
	if err := c.do(ctx, http.MethodPost, tableCourses, nil, course, preferRepresentation, &rows); err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create course: empty representation")
	}
	return &rows[0], nil
}

// UpdateCourse implements store.PersistenceClient
func (c *Client) UpdateCourse(ctx context.Context, course store.CourseRecord) error {
	query := url.Values{"id": {"eq." + course.ID}}
	if err := c.do(ctx, http.MethodPatch, tableCourses, query, course, "", nil); err != nil {
		return fmt.Errorf("failed to update course: %w", err)
	}
	return nil
}

// SaveChapter implements store.PersistenceClient. It upserts on the
// (course_id, position) unique constraint.
func (c *Client) SaveChapter(ctx context.Context, chapter store.ChapterRecord) (*store.ChapterRecord, error) {
	var rows []store.ChapterRecord
	query := url.Values{"on_conflict": {"course_id,position"}}
	if err := c.do(ctx, http.MethodPost, tableChapters, query, chapter, preferUpsert, &rows); err != nil {
		return nil, fmt.Errorf("failed to save chapter %d: %w", chapter.Position, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to save chapter %d: empty representation", chapter.Position)
	}
	return &rows[0], nil
}

// SaveQuestions implements store.PersistenceClient. Existing questions of the
// chapter are deleted first.
func (c *Client) SaveQuestions(ctx context.Context, chapterID string, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]questionRow, len(questions))
	for i, q := range questions {
		rows[i] = questionRow{
			ChapterID:       chapterID,
			Position:        i,
			Type:            string(q.Type),
			Question:        q.Question,
			AnswerA:         q.AnswerA,
			AnswerB:         q.AnswerB,
			AnswerC:         q.AnswerC,
			AnswerD:         q.AnswerD,
			CorrectAnswer:   q.CorrectAnswer,
			Explanation:     q.Explanation,
			GradingCriteria: q.GradingCriteria,
		}
	}
	existing := url.Values{"chapter_id": {"eq." + chapterID}}
	if err := c.do(ctx, http.MethodDelete, tableQuestions, existing, nil, "", nil); err != nil {
		return fmt.Errorf("failed to clear questions for chapter %s: %w", chapterID, err)
	}
	if err := c.do(ctx, http.MethodPost, tableQuestions, nil, rows, "", nil); err != nil {
		return fmt.Errorf("failed to save questions for chapter %s: %w", chapterID, err)
	}
	return nil
}

// UpdateCourseStatus implements store.PersistenceClient
func (c *Client) UpdateCourseStatus(ctx context.Context, courseID string, status models.CourseStatus, errorMessage string) error {
	body := map[string]any{"status": status, "error_message": nil}
	if errorMessage != "" {
		body["error_message"] = errorMessage
	}
	query := url.Values{"id": {"eq." + courseID}}
	if err := c.do(ctx, http.MethodPatch, tableCourses, query, body, "", nil); err != nil {
		return fmt.Errorf("failed to update course status: %w", err)
	}
	return nil
}

// do sends one request with retry on retryable failures. An empty prefer
// asks for a minimal response on writes. out may be nil.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, prefer string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	var lastErr error
	backoff := c.backoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying PostgREST request",
				"method", method,
				"table", table,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := c.send(ctx, method, table, query, payload, prefer, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var reqErr *RequestError
		if errors.As(err, &reqErr) && !reqErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) send(ctx context.Context, method, table string, query url.Values, payload []byte, prefer string, out any) error {
	endpoint := c.baseURL + "/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	} else if method != http.MethodGet {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := string(respBody)
		if len(preview) > LogPreviewLength {
			preview = preview[:LogPreviewLength]
		}
		return &RequestError{Method: method, Path: "/" + table, StatusCode: resp.StatusCode, Body: preview}
	}

	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
