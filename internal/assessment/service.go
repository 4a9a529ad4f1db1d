// backend/internal/assessment/service.go
package assessment

import (
	"log"
	"time"

	"assessment-system/internal/auth"
	"assessment-system/internal/catalog"
	"assessment-system/internal/ledger"
	"assessment-system/internal/models"
	"assessment-system/internal/scoring"
	"assessment-system/pkg/apperr"
	"assessment-system/pkg/events"
)

// Catalog is the quiz-definition side the orchestrator depends on;
// satisfied by *catalog.Service.
type Catalog interface {
	List(moduleID *uint, principal auth.Principal) ([]models.QuizSummaryDTO, error)
	Get(quizID uint, principal auth.Principal) (*models.QuizDetailDTO, error)
	GetDefinition(quizID uint) (*models.Quiz, error)
	GetForGrading(quizID uint) (*models.Quiz, []scoring.GradedQuestion, error)
	Create(req catalog.CreateQuizRequest) (*models.Quiz, error)
}

// Ledger is the attempt lifecycle store; satisfied by *ledger.Repository.
type Ledger interface {
	Start(quizID, studentID uint, maxAttempts int) (*models.Attempt, error)
	GetAttempt(attemptID uint) (*models.Attempt, error)
	Submit(attemptID uint, answers []models.Answer, result models.Attempt) (*models.Attempt, error)
	ListAttempts(quizID, studentID uint) ([]models.Attempt, error)
}

type Auditor interface {
	Record(actorID uint, action, entityType string, entityID uint, detail interface{})
}

type Publisher interface {
	Publish(event events.Event)
}

type Service struct {
	catalog    Catalog
	ledger     Ledger
	authorizer auth.Authorizer
	auditor    Auditor
	publisher  Publisher
}

func NewService(catalog Catalog, ledger Ledger, authorizer auth.Authorizer, auditor Auditor, publisher Publisher) *Service {
	return &Service{
		catalog:    catalog,
		ledger:     ledger,
		authorizer: authorizer,
		auditor:    auditor,
		publisher:  publisher,
	}
}

func (s *Service) ListQuizzes(moduleID *uint, principal auth.Principal) ([]models.QuizSummaryDTO, error) {
	return s.catalog.List(moduleID, principal)
}

func (s *Service) GetQuiz(quizID uint, principal auth.Principal) (*models.QuizDetailDTO, error) {
	return s.catalog.Get(quizID, principal)
}

// CreateQuiz persists a new quiz definition. Only principals the authorizer
// accepts for instructor actions may create.
func (s *Service) CreateQuiz(req catalog.CreateQuizRequest, principal auth.Principal) (*models.Quiz, error) {
	if !s.authorizer.AuthorizeInstructorAction(principal) {
		return nil, apperr.New(apperr.Forbidden, "instructor role required")
	}

	quiz, err := s.catalog.Create(req)
	if err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Record(principal.ID, "quiz_created", "quiz", quiz.ID,
			map[string]interface{}{"title": quiz.Title})
	}
	if s.publisher != nil {
		s.publisher.Publish(events.Event{
			Type:     events.TypeQuizCreated,
			ModuleID: quiz.ModuleID,
			Data:     map[string]interface{}{"quiz_id": quiz.ID, "title": quiz.Title},
		})
	}
	return quiz, nil
}

// StartAttempt opens a new attempt for the caller. The ledger serializes the
// count check against concurrent starts for the same pair.
func (s *Service) StartAttempt(quizID uint, principal auth.Principal) (*models.Attempt, error) {
	quiz, err := s.catalog.GetDefinition(quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, apperr.New(apperr.Forbidden, "quiz is not available")
	}

	attempt, err := s.ledger.Start(quizID, principal.ID, quiz.MaxAttempts)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish(events.Event{
			Type:     events.TypeAttemptStarted,
			ModuleID: quiz.ModuleID,
			Data: map[string]interface{}{
				"quiz_id":        quizID,
				"student_id":     principal.ID,
				"attempt_number": attempt.AttemptNumber,
			},
		})
	}
	return attempt, nil
}

// SubmitAttempt grades the submitted answers and finalizes the attempt. The
// scoring engine runs exactly once, here; the ledger guards against a second
// submission racing this one.
func (s *Service) SubmitAttempt(quizID, attemptID uint, answers []scoring.SubmittedAnswer, principal auth.Principal) (*models.SubmitResultDTO, error) {
	attempt, err := s.ledger.GetAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.QuizID != quizID {
		// The attempt exists, just not under the addressed quiz.
		return nil, apperr.Newf(apperr.NotFound, "attempt %d not found for quiz %d", attemptID, quizID)
	}
	if attempt.StudentID != principal.ID {
		return nil, apperr.New(apperr.Forbidden, "attempt belongs to another student")
	}
	if attempt.SubmittedAt != nil {
		return nil, apperr.Newf(apperr.Conflict, "attempt %d already submitted", attemptID)
	}

	quiz, graded, err := s.catalog.GetForGrading(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	result := scoring.Grade(graded, answers)
	passed := scoring.Passed(result, quiz.PassingScore)

	now := time.Now().UTC()
	timeSpent := int(now.Sub(attempt.StartedAt).Seconds())

	answerRows := make([]models.Answer, len(result.Answers))
	for i, ar := range result.Answers {
		answerRows[i] = models.Answer{
			QuestionID:      ar.QuestionID,
			AnswerText:      ar.AnswerText,
			SelectedOptions: ar.SelectedOptions,
			IsCorrect:       ar.IsCorrect,
			PointsEarned:    ar.PointsEarned,
			AnsweredAt:      now,
		}
	}

	final := models.Attempt{
		SubmittedAt:      &now,
		Score:            &result.Score,
		MaxScore:         &result.MaxScore,
		Percentage:       &result.Percentage,
		Passed:           &passed,
		TimeSpentSeconds: &timeSpent,
	}

	if _, err := s.ledger.Submit(attemptID, answerRows, final); err != nil {
		return nil, err
	}

	log.Printf("Attempt %d submitted: %.1f/%.1f (%.1f%%), passed=%t",
		attemptID, result.Score, result.MaxScore, result.Percentage, passed)

	if s.auditor != nil {
		s.auditor.Record(principal.ID, "attempt_submitted", "attempt", attemptID,
			map[string]interface{}{
				"score":      result.Score,
				"percentage": result.Percentage,
				"passed":     passed,
			})
	}
	if s.publisher != nil {
		s.publisher.Publish(events.Event{
			Type:     events.TypeAttemptSubmitted,
			ModuleID: quiz.ModuleID,
			Data: map[string]interface{}{
				"quiz_id":        quiz.ID,
				"student_id":     principal.ID,
				"attempt_number": attempt.AttemptNumber,
				"percentage":     result.Percentage,
				"passed":         passed,
			},
		})
	}

	return &models.SubmitResultDTO{
		Score:            result.Score,
		MaxScore:         result.MaxScore,
		Percentage:       result.Percentage,
		Passed:           passed,
		TimeSpentSeconds: timeSpent,
	}, nil
}

// ListAttempts returns the caller's own attempts for a quiz.
func (s *Service) ListAttempts(quizID uint, principal auth.Principal) ([]models.AttemptDTO, error) {
	attempts, err := s.ledger.ListAttempts(quizID, principal.ID)
	if err != nil {
		return nil, err
	}

	dtos := make([]models.AttemptDTO, len(attempts))
	for i, attempt := range attempts {
		dtos[i] = attempt.ToDTO()
	}
	return dtos, nil
}

var (
	_ Catalog = (*catalog.Service)(nil)
	_ Ledger  = (*ledger.Repository)(nil)
)
