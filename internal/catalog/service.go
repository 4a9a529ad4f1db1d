// backend/internal/catalog/service.go
package catalog

import (
	"log"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"

	"assessment-system/internal/auth"
	"assessment-system/internal/models"
	"assessment-system/internal/scoring"
	"assessment-system/pkg/apperr"
)

// Store is the persistence surface the catalog needs; satisfied by
// *Repository and by in-memory fakes in tests.
type Store interface {
	ListQuizzes(moduleID *uint, publishedOnly bool) ([]models.Quiz, error)
	GetQuizWithQuestions(quizID uint) (*models.Quiz, error)
	GetQuizByID(quizID uint) (*models.Quiz, error)
	CreateQuiz(quiz *models.Quiz) error
}

// QuizCache is the read-through cache in front of quiz detail loads.
type QuizCache interface {
	GetQuiz(quizID uint) (*models.Quiz, error)
	SetQuiz(quiz *models.Quiz) error
	InvalidateQuizzes() error
}

type Service struct {
	store    Store
	cache    QuizCache
	validate *validator.Validate
}

func NewService(store Store, cache QuizCache) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		validate: validator.New(),
	}
}

type CreateOptionRequest struct {
	Text      string `json:"option_text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

type CreateQuestionRequest struct {
	QuestionType string                `json:"question_type" validate:"required"`
	Text         string                `json:"question_text" validate:"required"`
	Explanation  string                `json:"explanation"`
	Points       float64               `json:"points"`
	IsRequired   *bool                 `json:"is_required"`
	Options      []CreateOptionRequest `json:"options" validate:"dive"`
}

type CreateQuizRequest struct {
	ModuleID         uint                    `json:"module_id" validate:"required"`
	Title            string                  `json:"title" validate:"required"`
	Description      string                  `json:"description"`
	QuizKind         string                  `json:"quiz_kind"`
	TimeLimitMinutes *int                    `json:"time_limit_minutes" validate:"omitempty,min=1"`
	MaxAttempts      int                     `json:"max_attempts" validate:"omitempty,min=1"`
	PassingScore     *float64                `json:"passing_score" validate:"omitempty,min=0,max=100"`
	ShuffleQuestions *bool                   `json:"shuffle_questions"`
	ShowResults      *bool                   `json:"show_results"`
	IsPublished      bool                    `json:"is_published"`
	AvailableFrom    string                  `json:"available_from"`
	AvailableUntil   string                  `json:"available_until"`
	Questions        []CreateQuestionRequest `json:"questions" validate:"dive"`
}

// List returns quiz summaries visible to the principal. Students never see
// unpublished quizzes.
func (s *Service) List(moduleID *uint, principal auth.Principal) ([]models.QuizSummaryDTO, error) {
	publishedOnly := !principal.IsInstructorOrAdmin()

	quizzes, err := s.store.ListQuizzes(moduleID, publishedOnly)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.QuizSummaryDTO, len(quizzes))
	for i, quiz := range quizzes {
		summaries[i] = quiz.ToSummaryDTO()
	}
	return summaries, nil
}

// Get returns the quiz detail for the principal. For students the answer key
// and explanations are elided, and questions are shuffled when the quiz asks
// for it; instructors always see the authored order.
func (s *Service) Get(quizID uint, principal auth.Principal) (*models.QuizDetailDTO, error) {
	quiz, err := s.getCached(quizID)
	if err != nil {
		return nil, err
	}

	includeKey := principal.IsInstructorOrAdmin()
	if !quiz.IsPublished && !includeKey {
		return nil, apperr.Newf(apperr.NotFound, "quiz %d not found", quizID)
	}

	questions := make([]models.QuestionDTO, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = q.ToDTO(includeKey)
	}
	if !includeKey && quiz.ShuffleQuestions {
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	return &models.QuizDetailDTO{
		QuizSummaryDTO:   quiz.ToSummaryDTO(),
		ShuffleQuestions: quiz.ShuffleQuestions,
		ShowResults:      quiz.ShowResults,
		Questions:        questions,
	}, nil
}

// GetDefinition returns the raw quiz definition for internal collaborators
// (attempt policy checks); no role-based elision is applied.
func (s *Service) GetDefinition(quizID uint) (*models.Quiz, error) {
	return s.getCached(quizID)
}

// GetForGrading loads a quiz with its questions projected into the scoring
// engine's view. Used once per submission.
func (s *Service) GetForGrading(quizID uint) (*models.Quiz, []scoring.GradedQuestion, error) {
	quiz, err := s.getCached(quizID)
	if err != nil {
		return nil, nil, err
	}

	graded := make([]scoring.GradedQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		gq, err := scoring.FromQuestion(q)
		if err != nil {
			// A stored question with an unknown type means the creation-time
			// validation was bypassed; surface it rather than mis-grade.
			return nil, nil, apperr.Wrap(apperr.Invalid, "quiz has an ungradeable question", err)
		}
		graded = append(graded, gq)
	}
	return quiz, graded, nil
}

// Create validates and persists a quiz definition with its questions.
// Multiple-choice and true/false questions must carry exactly one correct
// option; the legacy system accepted zero or many, which broke grading.
func (s *Service) Create(req CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Wrap(apperr.Invalid, "invalid quiz definition", err)
	}

	quiz := &models.Quiz{
		ModuleID:         req.ModuleID,
		Title:            req.Title,
		Description:      req.Description,
		QuizKind:         models.KindQuiz,
		TimeLimitMinutes: req.TimeLimitMinutes,
		MaxAttempts:      1,
		PassingScore:     60,
		ShuffleQuestions: true,
		ShowResults:      true,
		IsPublished:      req.IsPublished,
	}

	if req.QuizKind != "" {
		switch models.QuizKind(req.QuizKind) {
		case models.KindQuiz, models.KindExam, models.KindPractice:
			quiz.QuizKind = models.QuizKind(req.QuizKind)
		default:
			return nil, apperr.Newf(apperr.Invalid, "unknown quiz kind %q", req.QuizKind)
		}
	}
	if req.MaxAttempts > 0 {
		quiz.MaxAttempts = req.MaxAttempts
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.ShuffleQuestions != nil {
		quiz.ShuffleQuestions = *req.ShuffleQuestions
	}
	if req.ShowResults != nil {
		quiz.ShowResults = *req.ShowResults
	}

	if err := s.parseAvailability(req, quiz); err != nil {
		return nil, err
	}

	for i, qReq := range req.Questions {
		question, err := buildQuestion(qReq, i)
		if err != nil {
			return nil, err
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := s.store.CreateQuiz(quiz); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateQuizzes(); err != nil {
			log.Printf("Error invalidating quiz cache: %v", err)
		}
	}
	return quiz, nil
}

func (s *Service) parseAvailability(req CreateQuizRequest, quiz *models.Quiz) error {
	if req.AvailableFrom != "" {
		from, err := time.Parse(time.RFC3339, req.AvailableFrom)
		if err != nil {
			return apperr.Wrap(apperr.Invalid, "invalid available_from", err)
		}
		quiz.AvailableFrom = &from
	}
	if req.AvailableUntil != "" {
		until, err := time.Parse(time.RFC3339, req.AvailableUntil)
		if err != nil {
			return apperr.Wrap(apperr.Invalid, "invalid available_until", err)
		}
		quiz.AvailableUntil = &until
	}
	if quiz.AvailableFrom != nil && quiz.AvailableUntil != nil &&
		quiz.AvailableUntil.Before(*quiz.AvailableFrom) {
		return apperr.New(apperr.Invalid, "available_until precedes available_from")
	}
	return nil
}

func buildQuestion(req CreateQuestionRequest, order int) (models.Question, error) {
	kind, err := scoring.ParseKind(req.QuestionType)
	if err != nil {
		return models.Question{}, apperr.Wrap(apperr.Invalid, "invalid question", err)
	}

	points := req.Points
	if points == 0 {
		points = 1
	}
	if points <= 0 {
		return models.Question{}, apperr.Newf(apperr.Invalid, "question %d: points must be positive", order+1)
	}

	question := models.Question{
		QuestionType: string(kind),
		Text:         req.Text,
		Explanation:  req.Explanation,
		Points:       points,
		Order:        order,
		IsRequired:   true,
	}
	if req.IsRequired != nil {
		question.IsRequired = *req.IsRequired
	}

	switch kind {
	case scoring.MultipleChoice, scoring.TrueFalse:
		correctCount := 0
		for j, oReq := range req.Options {
			question.Options = append(question.Options, models.Option{
				Text:      oReq.Text,
				IsCorrect: oReq.IsCorrect,
				Order:     j,
			})
			if oReq.IsCorrect {
				correctCount++
			}
		}
		if correctCount != 1 {
			return models.Question{}, apperr.Newf(apperr.Invalid,
				"question %d: %s questions need exactly one correct option, got %d",
				order+1, kind, correctCount)
		}
	case scoring.ShortAnswer:
		if len(req.Options) > 0 {
			return models.Question{}, apperr.Newf(apperr.Invalid,
				"question %d: short_answer questions cannot have options", order+1)
		}
	}

	return question, nil
}

func (s *Service) getCached(quizID uint) (*models.Quiz, error) {
	if s.cache != nil {
		if quiz, err := s.cache.GetQuiz(quizID); err == nil {
			return quiz, nil
		}
	}

	quiz, err := s.store.GetQuizWithQuestions(quizID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetQuiz(quiz); err != nil {
			log.Printf("Error caching quiz %d: %v", quizID, err)
		}
	}
	return quiz, nil
}
