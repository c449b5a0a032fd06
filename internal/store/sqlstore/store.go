// Package sqlstore persists courses in Postgres or SQLite through gorm
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

// Store is a store.PersistenceClient backed by a SQL database
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.PersistenceClient = (*Store)(nil)

// Open connects to backend ("postgres" or "sqlite") at dsn
func Open(backend, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch backend {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql backend %q", backend)
	}

	gormLog := gormLogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", backend, err)
	}
	return New(db, logger), nil
}

// New wraps an existing gorm connection
func New(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger.With("component", "sqlstore")}
}

// Migrate creates or updates the course tables
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Course{}, &Chapter{}, &Question{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetCourse implements store.PersistenceClient
func (s *Store) GetCourse(ctx context.Context, courseID string) (*store.CourseRecord, error) {
	var row Course
	err := s.db.WithContext(ctx).Where("id = ?", courseID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

// GetCourseOwner implements store.PersistenceClient
func (s *Store) GetCourseOwner(ctx context.Context, courseID string) (string, error) {
	course, err := s.GetCourse(ctx, courseID)
	if err != nil || course == nil {
		return "", err
	}
	return course.UserID, nil
}

// CreateCourse implements store.PersistenceClient. An empty ID is assigned.
func (s *Store) CreateCourse(ctx context.Context, course store.CourseRecord) (*store.CourseRecord, error) {
	row := courseRow(course)
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create course: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

// UpdateCourse implements store.PersistenceClient. An empty status or owner
// leaves the stored value unchanged.
func (s *Store) UpdateCourse(ctx context.Context, course store.CourseRecord) error {
	updates := map[string]any{
		"title":       course.Title,
		"description": course.Description,
		"image_url":   course.ImageURL,
		"query":       course.Query,
		"time_hours":  course.TimeHours,
		"difficulty":  string(course.Difficulty),
		"language":    string(course.Language),
	}
	if course.Status != "" {
		updates["status"] = string(course.Status)
	}
	if course.UserID != "" {
		updates["user_id"] = course.UserID
	}
	return s.updateCourse(ctx, course.ID, updates)
}

// SaveChapter implements store.PersistenceClient. A chapter already stored at
// the same course position is overwritten in place and keeps its id.
func (s *Store) SaveChapter(ctx context.Context, chapter store.ChapterRecord) (*store.ChapterRecord, error) {
	row, err := chapterRow(chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chapter: %w", err)
	}
	var stored Chapter
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "course_id"}, {Name: "position"}},
			DoUpdates: clause.AssignmentColumns(chapterUpsertColumns),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Select("id").Where("course_id = ? AND position = ?", row.CourseID, row.Position).First(&stored).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save chapter %d: %w", chapter.Position, err)
	}
	chapter.ID = stored.ID
	return &chapter, nil
}

var chapterUpsertColumns = []string{"caption", "content_points", "time_minutes", "code", "key_takeaways", "image_url"}

// SaveQuestions implements store.PersistenceClient. It replaces any questions
// already stored for the chapter.
func (s *Store) SaveQuestions(ctx context.Context, chapterID string, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	rows := make([]Question, 0, len(questions))
	for i, q := range questions {
		row, err := questionRow(chapterID, i, q)
		if err != nil {
			return fmt.Errorf("failed to encode question %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&Question{}).Error; err != nil {
			return err
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save questions for chapter %s: %w", chapterID, err)
	}
	return nil
}

// UpdateCourseStatus implements store.PersistenceClient
func (s *Store) UpdateCourseStatus(ctx context.Context, courseID string, status models.CourseStatus, errorMessage string) error {
	return s.updateCourse(ctx, courseID, map[string]any{
		"status":        string(status),
		"error_message": errorMessage,
	})
}

// Chapters loads a course's chapters in order
func (s *Store) Chapters(ctx context.Context, courseID string) ([]store.ChapterRecord, error) {
	var rows []Chapter
	if err := s.db.WithContext(ctx).Where("course_id = ?", courseID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	out := make([]store.ChapterRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("failed to decode chapter %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Questions loads a chapter's questions in order
func (s *Store) Questions(ctx context.Context, chapterID string) ([]models.Question, error) {
	var rows []Question
	if err := s.db.WithContext(ctx).Where("chapter_id = ?", chapterID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	out := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		q, err := row.model()
		if err != nil {
			return nil, fmt.Errorf("failed to decode question %s: %w", row.ID, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (s *Store) updateCourse(ctx context.Context, courseID string, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&Course{}).Where("id = ?", courseID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update course: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update course: %s does not exist", courseID)
	}
	return nil
}
