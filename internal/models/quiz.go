// backend/internal/models/quiz.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// QuizKind distinguishes graded exams from low-stakes practice runs. It has
// no effect on scoring; clients use it for presentation and weighting.
type QuizKind string

const (
	KindQuiz     QuizKind = "quiz"
	KindExam     QuizKind = "exam"
	KindPractice QuizKind = "practice"
)

type Quiz struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ModuleID         uint       `json:"module_id" gorm:"not null;index"`
	Title            string     `json:"title" gorm:"not null"`
	Description      string     `json:"description"`
	QuizKind         QuizKind   `json:"quiz_kind" gorm:"default:quiz"`
	TimeLimitMinutes *int       `json:"time_limit_minutes"`
	MaxAttempts      int        `json:"max_attempts" gorm:"default:1"`
	PassingScore     float64    `json:"passing_score" gorm:"default:60"`
	ShuffleQuestions bool       `json:"shuffle_questions" gorm:"default:true"`
	ShowResults      bool       `json:"show_results" gorm:"default:true"`
	IsPublished      bool       `json:"is_published" gorm:"default:false"`
	AvailableFrom    *time.Time `json:"available_from"`
	AvailableUntil   *time.Time `json:"available_until"`
	Questions        []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

type Question struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at"`
	QuizID       uint      `json:"quiz_id" gorm:"not null;index"`
	QuestionType string    `json:"question_type" gorm:"not null"`
	Text         string    `json:"question_text" gorm:"not null"`
	Explanation  string    `json:"explanation"`
	Points       float64   `json:"points" gorm:"default:1"`
	Order        int       `json:"order" gorm:"column:question_order;default:0"`
	IsRequired   bool      `json:"is_required" gorm:"default:true"`
	Options      []Option  `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
}

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"option_text" gorm:"not null"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
	Order      int    `json:"order" gorm:"column:option_order;default:0"`
}

// Attempt is one student's run at a quiz. The composite unique index on
// (quiz_id, student_id, attempt_number) backs the concurrency guarantee in
// the ledger: two racing starts cannot both claim the same number.
type Attempt struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	QuizID           uint       `json:"quiz_id" gorm:"not null;uniqueIndex:idx_attempt_seq"`
	StudentID        uint       `json:"student_id" gorm:"not null;uniqueIndex:idx_attempt_seq"`
	AttemptNumber    int        `json:"attempt_number" gorm:"not null;uniqueIndex:idx_attempt_seq"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	Score            *float64   `json:"score"`
	MaxScore         *float64   `json:"max_score"`
	Percentage       *float64   `json:"percentage"`
	Passed           *bool      `json:"passed"`
	TimeSpentSeconds *int       `json:"time_spent_seconds"`
	Answers          []Answer   `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

// Answer rows are written exactly once, during submission. IsCorrect stays
// nil for short-answer questions: "ungraded" is distinct from "graded zero".
type Answer struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	AttemptID       uint      `json:"attempt_id" gorm:"not null;index"`
	QuestionID      uint      `json:"question_id" gorm:"not null"`
	AnswerText      string    `json:"answer_text"`
	SelectedOptions OptionIDs `json:"selected_options" gorm:"type:text"`
	IsCorrect       *bool     `json:"is_correct"`
	PointsEarned    float64   `json:"points_earned" gorm:"default:0"`
	AnsweredAt      time.Time `json:"answered_at"`
}

// OptionIDs is the typed replacement for the legacy free-form selected
// options blob. Stored as a JSON array in a text column.
type OptionIDs []uint

func (o OptionIDs) Value() (driver.Value, error) {
	if o == nil {
		o = OptionIDs{}
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (o *OptionIDs) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("cannot scan %T into OptionIDs", src)
	}
}

// AuditLog mirrors the platform-wide audit trail; the engine records
// quiz_created and attempt_submitted actions into it.
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at"`
	ActorID    uint      `json:"actor_id" gorm:"index"`
	Action     string    `json:"action" gorm:"not null"`
	EntityType string    `json:"entity_type"`
	EntityID   uint      `json:"entity_id"`
	Detail     string    `json:"detail" gorm:"type:text"`
}
