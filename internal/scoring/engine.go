// backend/internal/scoring/engine.go
package scoring

import (
	"fmt"
	"log"

	"assessment-system/internal/models"
)

// Kind is the closed set of question kinds the engine can grade. Parsing
// happens once at the catalog boundary; everything past it switches over
// these values exhaustively, so a new kind cannot silently fall through.
type Kind string

const (
	MultipleChoice Kind = "multiple_choice"
	TrueFalse      Kind = "true_false"
	ShortAnswer    Kind = "short_answer"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown question type %q", s)
	}
}

// GradedQuestion carries only what grading needs from a question definition.
type GradedQuestion struct {
	ID        uint
	Kind      Kind
	Points    float64
	CorrectID OptionSet
}

type SubmittedAnswer struct {
	QuestionID      uint             `json:"question_id"`
	AnswerText      string           `json:"answer_text"`
	SelectedOptions models.OptionIDs `json:"selected_options"`
}

type AnswerResult struct {
	QuestionID      uint
	AnswerText      string
	SelectedOptions models.OptionIDs
	// nil means "cannot be auto-graded", not "graded zero".
	IsCorrect    *bool
	PointsEarned float64
}

type Result struct {
	Answers    []AnswerResult
	Score      float64
	MaxScore   float64
	Percentage float64
}

// OptionSet supports the exact-match comparison that replaced the legacy
// substring check on serialized option ids.
type OptionSet map[uint]struct{}

func NewOptionSet(ids ...uint) OptionSet {
	set := make(OptionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s OptionSet) Equals(ids models.OptionIDs) bool {
	if len(ids) != len(s) {
		return false
	}
	for _, id := range ids {
		if _, ok := s[id]; !ok {
			return false
		}
	}
	return true
}

// FromQuestion projects a stored question into its grading view.
func FromQuestion(q models.Question) (GradedQuestion, error) {
	kind, err := ParseKind(q.QuestionType)
	if err != nil {
		return GradedQuestion{}, err
	}

	correct := OptionSet{}
	for _, opt := range q.Options {
		if opt.IsCorrect {
			correct[opt.ID] = struct{}{}
		}
	}

	return GradedQuestion{
		ID:        q.ID,
		Kind:      kind,
		Points:    q.Points,
		CorrectID: correct,
	}, nil
}

// Grade computes the deterministic result for one submission. MaxScore spans
// every question in the quiz, answered or not, so the percentage reflects
// skipped questions and ungraded short answers alike.
func Grade(questions []GradedQuestion, answers []SubmittedAnswer) Result {
	byID := make(map[uint]GradedQuestion, len(questions))
	var maxScore float64
	for _, q := range questions {
		byID[q.ID] = q
		maxScore += q.Points
	}

	result := Result{MaxScore: maxScore}

	seen := make(map[uint]bool, len(answers))
	for _, ans := range answers {
		question, ok := byID[ans.QuestionID]
		if !ok {
			// Data-quality anomaly: the client referenced a question that is
			// not part of this quiz. Skip rather than fail the submission.
			log.Printf("scoring: answer references unknown question %d, skipping", ans.QuestionID)
			continue
		}
		if seen[ans.QuestionID] {
			// Each question earns points at most once; a repeated answer
			// would inflate the score past MaxScore. First occurrence wins.
			log.Printf("scoring: duplicate answer for question %d, keeping the first", ans.QuestionID)
			continue
		}
		seen[ans.QuestionID] = true

		graded := gradeOne(question, ans)
		result.Answers = append(result.Answers, graded)
		result.Score += graded.PointsEarned
	}

	if result.MaxScore > 0 {
		result.Percentage = result.Score / result.MaxScore * 100
	}
	return result
}

func gradeOne(q GradedQuestion, ans SubmittedAnswer) AnswerResult {
	res := AnswerResult{
		QuestionID:      ans.QuestionID,
		AnswerText:      ans.AnswerText,
		SelectedOptions: ans.SelectedOptions,
	}

	switch q.Kind {
	case MultipleChoice:
		correct := q.CorrectID.Equals(ans.SelectedOptions)
		res.IsCorrect = &correct
		if correct {
			res.PointsEarned = q.Points
		}
	case TrueFalse:
		correct := len(ans.SelectedOptions) == 1 && q.CorrectID.Equals(ans.SelectedOptions)
		res.IsCorrect = &correct
		if correct {
			res.PointsEarned = q.Points
		}
	case ShortAnswer:
		// Awaiting manual grading; IsCorrect stays nil and no points are
		// awarded here.
	}

	return res
}

// Passed applies the quiz's passing threshold to a graded result.
func Passed(r Result, passingScorePercent float64) bool {
	return r.Percentage >= passingScorePercent
}
