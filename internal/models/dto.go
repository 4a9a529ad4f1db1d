// backend/internal/models/dto.go
package models

import "time"

type OptionDTO struct {
	ID    uint   `json:"id"`
	Text  string `json:"option_text"`
	Order int    `json:"order"`
	// Only present for instructor/admin callers.
	IsCorrect *bool `json:"is_correct,omitempty"`
}

type QuestionDTO struct {
	ID           uint        `json:"id"`
	QuestionType string      `json:"question_type"`
	Text         string      `json:"question_text"`
	Points       float64     `json:"points"`
	Order        int         `json:"order"`
	IsRequired   bool        `json:"is_required"`
	Options      []OptionDTO `json:"options"`
	Explanation  string      `json:"explanation,omitempty"` // Only for instructors
}

// ToDTO renders a question for the wire. When includeKey is false the
// correctness flags and the explanation are stripped so the payload can be
// shown to a student without leaking the answer key.
func (q Question) ToDTO(includeKey bool) QuestionDTO {
	options := make([]OptionDTO, len(q.Options))
	for i, opt := range q.Options {
		options[i] = OptionDTO{
			ID:    opt.ID,
			Text:  opt.Text,
			Order: opt.Order,
		}
		if includeKey {
			correct := opt.IsCorrect
			options[i].IsCorrect = &correct
		}
	}

	dto := QuestionDTO{
		ID:           q.ID,
		QuestionType: q.QuestionType,
		Text:         q.Text,
		Points:       q.Points,
		Order:        q.Order,
		IsRequired:   q.IsRequired,
		Options:      options,
	}
	if includeKey {
		dto.Explanation = q.Explanation
	}
	return dto
}

type QuizSummaryDTO struct {
	ID               uint       `json:"id"`
	ModuleID         uint       `json:"module_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	QuizKind         QuizKind   `json:"quiz_kind"`
	TimeLimitMinutes *int       `json:"time_limit_minutes"`
	MaxAttempts      int        `json:"max_attempts"`
	PassingScore     float64    `json:"passing_score"`
	QuestionCount    int        `json:"question_count"`
	IsPublished      bool       `json:"is_published"`
	AvailableFrom    *time.Time `json:"available_from"`
	AvailableUntil   *time.Time `json:"available_until"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (q Quiz) ToSummaryDTO() QuizSummaryDTO {
	return QuizSummaryDTO{
		ID:               q.ID,
		ModuleID:         q.ModuleID,
		Title:            q.Title,
		Description:      q.Description,
		QuizKind:         q.QuizKind,
		TimeLimitMinutes: q.TimeLimitMinutes,
		MaxAttempts:      q.MaxAttempts,
		PassingScore:     q.PassingScore,
		QuestionCount:    len(q.Questions),
		IsPublished:      q.IsPublished,
		AvailableFrom:    q.AvailableFrom,
		AvailableUntil:   q.AvailableUntil,
		CreatedAt:        q.CreatedAt,
	}
}

type QuizDetailDTO struct {
	QuizSummaryDTO
	ShuffleQuestions bool          `json:"shuffle_questions"`
	ShowResults      bool          `json:"show_results"`
	Questions        []QuestionDTO `json:"questions"`
}

type AttemptDTO struct {
	ID               uint       `json:"id"`
	AttemptNumber    int        `json:"attempt_number"`
	Score            *float64   `json:"score"`
	MaxScore         *float64   `json:"max_score"`
	Percentage       *float64   `json:"percentage"`
	Passed           *bool      `json:"passed"`
	StartedAt        time.Time  `json:"started_at"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	TimeSpentSeconds *int       `json:"time_spent_seconds"`
}

func (a Attempt) ToDTO() AttemptDTO {
	return AttemptDTO{
		ID:               a.ID,
		AttemptNumber:    a.AttemptNumber,
		Score:            a.Score,
		MaxScore:         a.MaxScore,
		Percentage:       a.Percentage,
		Passed:           a.Passed,
		StartedAt:        a.StartedAt,
		SubmittedAt:      a.SubmittedAt,
		TimeSpentSeconds: a.TimeSpentSeconds,
	}
}

type SubmitResultDTO struct {
	Score            float64 `json:"score"`
	MaxScore         float64 `json:"max_score"`
	Percentage       float64 `json:"percentage"`
	Passed           bool    `json:"passed"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
}
