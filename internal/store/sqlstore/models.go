package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lamim/uxie/internal/store"
	"github.com/lamim/uxie/pkg/models"
)

// Course is the courses table
type Course struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	UserID       string `gorm:"type:varchar(64);index"`
	Title        string `gorm:"not null"`
	Description  string `gorm:"type:text"`
	ImageURL     string
	Query        string `gorm:"type:text"`
	TimeHours    float64
	Difficulty   string `gorm:"type:varchar(16)"`
	Language     string `gorm:"type:varchar(8)"`
	Status       string `gorm:"type:varchar(16);index"`
	ErrorMessage string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Course) TableName() string { return "courses" }

// Chapter is the chapters table. A course has at most one chapter per position.
type Chapter struct {
	ID            string `gorm:"type:varchar(64);primaryKey"`
	CourseID      string `gorm:"type:varchar(64);not null;uniqueIndex:idx_chapters_course_position"`
	Position      int    `gorm:"not null;uniqueIndex:idx_chapters_course_position"`
	Caption       string `gorm:"not null"`
	ContentPoints datatypes.JSON
	TimeMinutes   int
	Code          string `gorm:"type:text"`
	KeyTakeaways  datatypes.JSON
	ImageURL      string
	CreatedAt     time.Time
}

func (Chapter) TableName() string { return "chapters" }

func (c *Chapter) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Question is the questions table. Answers holds the a-d options of a
// multiple-choice question as a JSON object.
type Question struct {
	ID              string `gorm:"type:varchar(64);primaryKey"`
	ChapterID       string `gorm:"type:varchar(64);not null;index"`
	Position        int    `gorm:"not null"`
	Type            string `gorm:"type:varchar(32);not null"`
	Question        string `gorm:"type:text;not null"`
	Answers         datatypes.JSON
	CorrectAnswer   string `gorm:"type:text"`
	Explanation     string `gorm:"type:text"`
	GradingCriteria string `gorm:"type:text"`
	CreatedAt       time.Time
}

func (Question) TableName() string { return "questions" }

func (q *Question) BeforeCreate(*gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

func courseRow(r store.CourseRecord) Course {
	return Course{
		ID:           r.ID,
		UserID:       r.UserID,
		Title:        r.Title,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		Query:        r.Query,
		TimeHours:    r.TimeHours,
		Difficulty:   string(r.Difficulty),
		Language:     string(r.Language),
		Status:       string(r.Status),
		ErrorMessage: r.ErrorMessage,
	}
}

func (c Course) record() store.CourseRecord {
	return store.CourseRecord{
		ID:           c.ID,
		UserID:       c.UserID,
		Title:        c.Title,
		Description:  c.Description,
		ImageURL:     c.ImageURL,
		Query:        c.Query,
		TimeHours:    c.TimeHours,
		Difficulty:   models.Difficulty(c.Difficulty),
		Language:     models.Language(c.Language),
		Status:       models.CourseStatus(c.Status),
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func chapterRow(r store.ChapterRecord) (Chapter, error) {
	points, err := json.Marshal(nonNil(r.ContentPoints))
	if err != nil {
		return Chapter{}, err
	}
	takeaways, err := json.Marshal(nonNil(r.KeyTakeaways))
	if err != nil {
		return Chapter{}, err
	}
	return Chapter{
		ID:            r.ID,
		CourseID:      r.CourseID,
		Position:      r.Position,
		Caption:       r.Caption,
		ContentPoints: datatypes.JSON(points),
		TimeMinutes:   r.TimeMinutes,
		Code:          r.Code,
		KeyTakeaways:  datatypes.JSON(takeaways),
		ImageURL:      r.ImageURL,
	}, nil
}

func (c Chapter) record() (store.ChapterRecord, error) {
	r := store.ChapterRecord{
		ID:          c.ID,
		CourseID:    c.CourseID,
		Position:    c.Position,
		Caption:     c.Caption,
		TimeMinutes: c.TimeMinutes,
		Code:        c.Code,
		ImageURL:    c.ImageURL,
	}
	if len(c.ContentPoints) > 0 {
		if err := json.Unmarshal(c.ContentPoints, &r.ContentPoints); err != nil {
			return r, err
		}
	}
	if len(c.KeyTakeaways) > 0 {
		if err := json.Unmarshal(c.KeyTakeaways, &r.KeyTakeaways); err != nil {
			return r, err
		}
	}
	return r, nil
}

func questionRow(chapterID string, i int, q models.Question) (Question, error) {
	row := Question{
		ChapterID:       chapterID,
		Position:        i,
		Type:            string(q.Type),
		Question:        q.Question,
		CorrectAnswer:   q.CorrectAnswer,
		Explanation:     q.Explanation,
		GradingCriteria: q.GradingCriteria,
	}
	if q.Type == models.QuestionMultipleChoice {
		answers, err := json.Marshal(map[string]string{"a": q.AnswerA, "b": q.AnswerB, "c": q.AnswerC, "d": q.AnswerD})
		if err != nil {
			return row, err
		}
		row.Answers = datatypes.JSON(answers)
	}
	return row, nil
}

func (q Question) model() (models.Question, error) {
	out := models.Question{
		Type:            models.QuestionType(q.Type),
		Question:        q.Question,
		CorrectAnswer:   q.CorrectAnswer,
		Explanation:     q.Explanation,
		GradingCriteria: q.GradingCriteria,
	}
	if len(q.Answers) > 0 {
		var answers map[string]string
		if err := json.Unmarshal(q.Answers, &answers); err != nil {
			return out, err
		}
		out.AnswerA, out.AnswerB, out.AnswerC, out.AnswerD = answers["a"], answers["b"], answers["c"], answers["d"]
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
