// Package store defines the persistence contract for generated courses.
// Implementations live in the supabase and sqlstore subpackages.
package store

import (
	"context"
	"time"

	"github.com/lamim/uxie/pkg/models"
)

// CourseRecord is the persisted course row
type CourseRecord struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id,omitempty"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	ImageURL     string              `json:"image_url,omitempty"`
	Query        string              `json:"query,omitempty"`
	TimeHours    float64             `json:"time_hours,omitempty"`
	Difficulty   models.Difficulty   `json:"difficulty,omitempty"`
	Language     models.Language     `json:"language,omitempty"`
	Status       models.CourseStatus `json:"status,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	CreatedAt    time.Time           `json:"created_at,omitzero"`
	UpdatedAt    time.Time           `json:"updated_at,omitzero"`
}

// ChapterRecord is one persisted chapter
type ChapterRecord struct {
	ID            string   `json:"id,omitempty"`
	CourseID      string   `json:"course_id"`
	Position      int      `json:"position"`
	Caption       string   `json:"caption"`
	ContentPoints []string `json:"content_points"`
	TimeMinutes   int      `json:"time_minutes"`
	Code          string   `json:"code"`
	KeyTakeaways  []string `json:"key_takeaways"`
	ImageURL      string   `json:"image_url,omitempty"`
}

// PersistenceClient stores and loads generated courses. No transactionality
// is assumed across calls.
type PersistenceClient interface {
	// GetCourse returns nil, nil when the course does not exist
	GetCourse(ctx context.Context, courseID string) (*CourseRecord, error)
	// GetCourseOwner returns "" when the course does not exist
	GetCourseOwner(ctx context.Context, courseID string) (string, error)
	CreateCourse(ctx context.Context, course CourseRecord) (*CourseRecord, error)
	UpdateCourse(ctx context.Context, course CourseRecord) error
	// SaveChapter upserts on (course id, position) so a course can be saved again
	SaveChapter(ctx context.Context, chapter ChapterRecord) (*ChapterRecord, error)
	// SaveQuestions replaces the chapter's stored questions
	SaveQuestions(ctx context.Context, chapterID string, questions []models.Question) error
	UpdateCourseStatus(ctx context.Context, courseID string, status models.CourseStatus, errorMessage string) error
}

// CourseFromInfo builds the course row written after generation
func CourseFromInfo(courseID, userID string, info models.CourseInfo, req models.CourseRequest) CourseRecord {
	return CourseRecord{
		ID:          courseID,
		UserID:      userID,
		Title:       info.Title,
		Description: info.Description,
		ImageURL:    info.ImageURL,
		Query:       req.Query,
		TimeHours:   req.TimeHours,
		Difficulty:  req.Difficulty,
		Language:    req.Language,
		Status:      models.CourseGenerating,
	}
}

// ChapterFromFull builds the chapter row for position i
func ChapterFromFull(courseID string, i int, ch models.FullChapter) ChapterRecord {
	return ChapterRecord{
		CourseID:      courseID,
		Position:      i,
		Caption:       ch.Plan.Caption,
		ContentPoints: ch.Plan.ContentPoints,
		TimeMinutes:   ch.Plan.TimeMinutes,
		Code:          ch.Content.Code,
		KeyTakeaways:  ch.Content.KeyTakeaways,
		ImageURL:      ch.ImageURL,
	}
}

// Nop is the PersistenceClient used when persistence is disabled.
// Writes succeed and every course is absent.
type Nop struct{}

func (Nop) GetCourse(context.Context, string) (*CourseRecord, error) { return nil, nil }

func (Nop) GetCourseOwner(context.Context, string) (string, error) { return "", nil }

func (Nop) CreateCourse(_ context.Context, course CourseRecord) (*CourseRecord, error) {
	return &course, nil
}

func (Nop) UpdateCourse(context.Context, CourseRecord) error { return nil }

func (Nop) SaveChapter(_ context.Context, chapter ChapterRecord) (*ChapterRecord, error) {
	return &chapter, nil
}

func (Nop) SaveQuestions(context.Context, string, []models.Question) error { return nil }

func (Nop) UpdateCourseStatus(context.Context, string, models.CourseStatus, string) error {
	return nil
}
