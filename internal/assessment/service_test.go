// backend/internal/assessment/service_test.go
package assessment

import (
	"sync"
	"testing"
	"time"

	"assessment-system/internal/auth"
	"assessment-system/internal/catalog"
	"assessment-system/internal/models"
	"assessment-system/internal/scoring"
	"assessment-system/pkg/apperr"
	"assessment-system/pkg/events"
)

/* ---------------- in-memory fakes satisfying Catalog, Ledger, Auditor, Publisher ---------------- */

type fakeCatalog struct {
	quizzes map[uint]*models.Quiz
	created []*models.Quiz
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{quizzes: map[uint]*models.Quiz{}}
}

func (c *fakeCatalog) List(moduleID *uint, principal auth.Principal) ([]models.QuizSummaryDTO, error) {
	var out []models.QuizSummaryDTO
	for _, q := range c.quizzes {
		out = append(out, q.ToSummaryDTO())
	}
	return out, nil
}

func (c *fakeCatalog) Get(quizID uint, principal auth.Principal) (*models.QuizDetailDTO, error) {
	quiz, err := c.GetDefinition(quizID)
	if err != nil {
		return nil, err
	}
	detail := &models.QuizDetailDTO{QuizSummaryDTO: quiz.ToSummaryDTO()}
	return detail, nil
}

func (c *fakeCatalog) GetDefinition(quizID uint) (*models.Quiz, error) {
	quiz, ok := c.quizzes[quizID]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "quiz %d not found", quizID)
	}
	return quiz, nil
}

func (c *fakeCatalog) GetForGrading(quizID uint) (*models.Quiz, []scoring.GradedQuestion, error) {
	quiz, err := c.GetDefinition(quizID)
	if err != nil {
		return nil, nil, err
	}
	var graded []scoring.GradedQuestion
	for _, q := range quiz.Questions {
		gq, err := scoring.FromQuestion(q)
		if err != nil {
			return nil, nil, err
		}
		graded = append(graded, gq)
	}
	return quiz, graded, nil
}

func (c *fakeCatalog) Create(req catalog.CreateQuizRequest) (*models.Quiz, error) {
	quiz := &models.Quiz{ID: uint(len(c.quizzes) + 1), ModuleID: req.ModuleID, Title: req.Title}
	c.quizzes[quiz.ID] = quiz
	c.created = append(c.created, quiz)
	return quiz, nil
}

// fakeLedger reproduces the ledger's transactional semantics behind a mutex:
// count-check-insert is atomic and submission is guarded by submitted_at.
type fakeLedger struct {
	mu       sync.Mutex
	attempts map[uint]*models.Attempt
	answers  map[uint][]models.Answer
	nextID   uint
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{attempts: map[uint]*models.Attempt{}, answers: map[uint][]models.Answer{}, nextID: 1}
}

func (l *fakeLedger) Start(quizID, studentID uint, maxAttempts int) (*models.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, a := range l.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			count++
		}
	}
	if count >= maxAttempts {
		return nil, apperr.Newf(apperr.LimitExceeded, "maximum of %d attempts reached", maxAttempts)
	}

	attempt := &models.Attempt{
		ID:            l.nextID,
		QuizID:        quizID,
		StudentID:     studentID,
		AttemptNumber: count + 1,
		StartedAt:     time.Now().UTC(),
	}
	l.nextID++
	l.attempts[attempt.ID] = attempt
	return attempt, nil
}

func (l *fakeLedger) GetAttempt(attemptID uint) (*models.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, ok := l.attempts[attemptID]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "attempt %d not found", attemptID)
	}
	copied := *attempt
	return &copied, nil
}

func (l *fakeLedger) Submit(attemptID uint, answers []models.Answer, result models.Attempt) (*models.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, ok := l.attempts[attemptID]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "attempt %d not found", attemptID)
	}
	if attempt.SubmittedAt != nil {
		return nil, apperr.Newf(apperr.Conflict, "attempt %d already submitted", attemptID)
	}

	attempt.SubmittedAt = result.SubmittedAt
	attempt.Score = result.Score
	attempt.MaxScore = result.MaxScore
	attempt.Percentage = result.Percentage
	attempt.Passed = result.Passed
	attempt.TimeSpentSeconds = result.TimeSpentSeconds
	l.answers[attemptID] = append(l.answers[attemptID], answers...)

	copied := *attempt
	return &copied, nil
}

func (l *fakeLedger) ListAttempts(quizID, studentID uint) ([]models.Attempt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Attempt
	for _, a := range l.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			out = append(out, *a)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].AttemptNumber < out[i].AttemptNumber {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

type fakeAuditor struct {
	actions []string
}

func (a *fakeAuditor) Record(actorID uint, action, entityType string, entityID uint, detail interface{}) {
	a.actions = append(a.actions, action)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

/* ---------------- fixtures ---------------- */

var (
	studentP    = auth.Principal{ID: 7, Role: auth.RoleStudent}
	otherP      = auth.Principal{ID: 8, Role: auth.RoleStudent}
	instructorP = auth.Principal{ID: 9, Role: auth.RoleInstructor}
)

func twoQuestionQuiz() *models.Quiz {
	return &models.Quiz{
		ID:           1,
		ModuleID:     3,
		Title:        "checkpoint",
		MaxAttempts:  3,
		PassingScore: 60,
		IsPublished:  true,
		Questions: []models.Question{
			{
				ID: 1, QuestionType: "multiple_choice", Points: 1,
				Options: []models.Option{{ID: 10, IsCorrect: true}, {ID: 11}},
			},
			{
				ID: 2, QuestionType: "multiple_choice", Points: 1,
				Options: []models.Option{{ID: 20, IsCorrect: true}, {ID: 21}},
			},
		},
	}
}

func newTestService(quiz *models.Quiz) (*Service, *fakeCatalog, *fakeLedger, *fakeAuditor, *fakePublisher) {
	cat := newFakeCatalog()
	if quiz != nil {
		cat.quizzes[quiz.ID] = quiz
	}
	led := newFakeLedger()
	aud := &fakeAuditor{}
	pub := &fakePublisher{}
	return NewService(cat, led, auth.RoleAuthorizer{}, aud, pub), cat, led, aud, pub
}

/* ---------------- tests ---------------- */

func TestCreateQuizRequiresInstructor(t *testing.T) {
	svc, _, _, aud, _ := newTestService(nil)

	req := catalog.CreateQuizRequest{ModuleID: 1, Title: "t"}
	if _, err := svc.CreateQuiz(req, studentP); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("student create should be Forbidden, got %v", err)
	}
	if len(aud.actions) != 0 {
		t.Error("rejected create must not be audited")
	}

	if _, err := svc.CreateQuiz(req, instructorP); err != nil {
		t.Fatalf("instructor create: %v", err)
	}
	if len(aud.actions) != 1 || aud.actions[0] != "quiz_created" {
		t.Errorf("expected quiz_created audit entry, got %v", aud.actions)
	}
}

func TestStartAttemptUnpublished(t *testing.T) {
	quiz := twoQuestionQuiz()
	quiz.IsPublished = false
	svc, _, _, _, _ := newTestService(quiz)

	if _, err := svc.StartAttempt(quiz.ID, studentP); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("starting an unpublished quiz should be Forbidden, got %v", err)
	}
}

func TestStartAttemptSequenceAndLimit(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, led, _, _ := newTestService(quiz)

	for want := 1; want <= quiz.MaxAttempts; want++ {
		attempt, err := svc.StartAttempt(quiz.ID, studentP)
		if err != nil {
			t.Fatalf("start %d: %v", want, err)
		}
		if attempt.AttemptNumber != want {
			t.Errorf("attempt number %d, want %d", attempt.AttemptNumber, want)
		}
	}

	if _, err := svc.StartAttempt(quiz.ID, studentP); !apperr.IsKind(err, apperr.LimitExceeded) {
		t.Errorf("start beyond max should be LimitExceeded, got %v", err)
	}

	attempts, _ := led.ListAttempts(quiz.ID, studentP.ID)
	if len(attempts) != quiz.MaxAttempts {
		t.Errorf("got %d attempts, want exactly %d", len(attempts), quiz.MaxAttempts)
	}
}

func TestStartAttemptSingleAttemptQuiz(t *testing.T) {
	quiz := twoQuestionQuiz()
	quiz.MaxAttempts = 1
	svc, _, led, _, _ := newTestService(quiz)

	first, err := svc.StartAttempt(quiz.ID, studentP)
	if err != nil {
		t.Fatalf("first start: %v", err)
	}
	if first.AttemptNumber != 1 {
		t.Errorf("attempt number %d, want 1", first.AttemptNumber)
	}

	if _, err := svc.StartAttempt(quiz.ID, studentP); !apperr.IsKind(err, apperr.LimitExceeded) {
		t.Errorf("second start should be LimitExceeded, got %v", err)
	}
	attempts, _ := led.ListAttempts(quiz.ID, studentP.ID)
	if len(attempts) != 1 {
		t.Errorf("no second attempt row may exist, got %d", len(attempts))
	}
}

func TestStartAttemptConcurrent(t *testing.T) {
	quiz := twoQuestionQuiz()
	quiz.MaxAttempts = 3
	svc, _, led, _, _ := newTestService(quiz)

	const racers = 20
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			svc.StartAttempt(quiz.ID, studentP)
		}()
	}
	wg.Wait()

	attempts, _ := led.ListAttempts(quiz.ID, studentP.ID)
	if len(attempts) != quiz.MaxAttempts {
		t.Fatalf("racing starts issued %d attempts, want exactly %d", len(attempts), quiz.MaxAttempts)
	}
	seen := map[int]bool{}
	for _, a := range attempts {
		if seen[a.AttemptNumber] {
			t.Errorf("duplicate attempt number %d", a.AttemptNumber)
		}
		seen[a.AttemptNumber] = true
	}
	for n := 1; n <= quiz.MaxAttempts; n++ {
		if !seen[n] {
			t.Errorf("attempt number sequence has a gap at %d", n)
		}
	}
}

func TestSubmitAttempt(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, led, aud, pub := newTestService(quiz)

	attempt, err := svc.StartAttempt(quiz.ID, studentP)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := []scoring.SubmittedAnswer{
		{QuestionID: 1, SelectedOptions: models.OptionIDs{10}},
		{QuestionID: 2, SelectedOptions: models.OptionIDs{99}},
	}
	result, err := svc.SubmitAttempt(quiz.ID, attempt.ID, answers, studentP)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Score != 1 || result.MaxScore != 2 || result.Percentage != 50 {
		t.Errorf("got %.1f/%.1f (%.1f%%), want 1/2 (50%%)", result.Score, result.MaxScore, result.Percentage)
	}
	if result.Passed {
		t.Error("50 percent must not pass a 60 percent threshold")
	}
	if result.TimeSpentSeconds < 0 {
		t.Errorf("negative time spent: %d", result.TimeSpentSeconds)
	}

	if len(led.answers[attempt.ID]) != 2 {
		t.Errorf("got %d persisted answers, want 2", len(led.answers[attempt.ID]))
	}

	found := false
	for _, action := range aud.actions {
		if action == "attempt_submitted" {
			found = true
		}
	}
	if !found {
		t.Error("submission should be audited")
	}

	var submittedEvents int
	for _, e := range pub.events {
		if e.Type == events.TypeAttemptSubmitted {
			submittedEvents++
			if e.ModuleID != quiz.ModuleID {
				t.Errorf("event module %d, want %d", e.ModuleID, quiz.ModuleID)
			}
		}
	}
	if submittedEvents != 1 {
		t.Errorf("got %d attempt_submitted events, want 1", submittedEvents)
	}
}

func TestSubmitAttemptDuplicateAnswersPersistOnce(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, led, _, _ := newTestService(quiz)

	attempt, err := svc.StartAttempt(quiz.ID, studentP)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := []scoring.SubmittedAnswer{
		{QuestionID: 1, SelectedOptions: models.OptionIDs{10}},
		{QuestionID: 1, SelectedOptions: models.OptionIDs{10}},
		{QuestionID: 2, SelectedOptions: models.OptionIDs{20}},
	}
	result, err := svc.SubmitAttempt(quiz.ID, attempt.ID, answers, studentP)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Score != 2 || result.MaxScore != 2 {
		t.Errorf("got %.1f/%.1f, want 2.0/2.0", result.Score, result.MaxScore)
	}
	if result.Percentage < 0 || result.Percentage > 100 {
		t.Errorf("percentage out of bounds: %.1f", result.Percentage)
	}
	if len(led.answers[attempt.ID]) != 2 {
		t.Errorf("each question gets one answer row, got %d", len(led.answers[attempt.ID]))
	}
}

func TestSubmitAttemptWrongQuiz(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, led, _, _ := newTestService(quiz)

	attempt, err := svc.StartAttempt(quiz.ID, studentP)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	answers := []scoring.SubmittedAnswer{{QuestionID: 1, SelectedOptions: models.OptionIDs{10}}}
	if _, err := svc.SubmitAttempt(quiz.ID+1, attempt.ID, answers, studentP); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("submit under the wrong quiz should be NotFound, got %v", err)
	}

	// The attempt must stay open and submittable under its own quiz.
	stored, _ := led.GetAttempt(attempt.ID)
	if stored.SubmittedAt != nil {
		t.Fatal("misaddressed submit must not finalize the attempt")
	}
	if _, err := svc.SubmitAttempt(quiz.ID, attempt.ID, answers, studentP); err != nil {
		t.Errorf("submit under the right quiz: %v", err)
	}
}

func TestSubmitAttemptTwiceConflicts(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, led, _, _ := newTestService(quiz)

	attempt, _ := svc.StartAttempt(quiz.ID, studentP)
	answers := []scoring.SubmittedAnswer{{QuestionID: 1, SelectedOptions: models.OptionIDs{10}}}

	if _, err := svc.SubmitAttempt(quiz.ID, attempt.ID, answers, studentP); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.SubmitAttempt(quiz.ID, attempt.ID, answers, studentP); !apperr.IsKind(err, apperr.Conflict) {
		t.Errorf("second submit should be Conflict, got %v", err)
	}
	if len(led.answers[attempt.ID]) != 1 {
		t.Errorf("answers must be written exactly once, got %d rows", len(led.answers[attempt.ID]))
	}
}

func TestSubmitAttemptOwnership(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, _, _, _ := newTestService(quiz)

	attempt, _ := svc.StartAttempt(quiz.ID, studentP)

	if _, err := svc.SubmitAttempt(quiz.ID, attempt.ID, nil, otherP); !apperr.IsKind(err, apperr.Forbidden) {
		t.Errorf("foreign submit should be Forbidden, got %v", err)
	}
}

func TestSubmitUnknownAttempt(t *testing.T) {
	svc, _, _, _, _ := newTestService(twoQuestionQuiz())

	if _, err := svc.SubmitAttempt(1, 42, nil, studentP); !apperr.IsKind(err, apperr.NotFound) {
		t.Errorf("unknown attempt should be NotFound, got %v", err)
	}
}

func TestListAttemptsOrdered(t *testing.T) {
	quiz := twoQuestionQuiz()
	svc, _, _, _, _ := newTestService(quiz)

	for i := 0; i < 3; i++ {
		if _, err := svc.StartAttempt(quiz.ID, studentP); err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
	}

	attempts, err := svc.ListAttempts(quiz.ID, studentP)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attempts) != 3 {
		t.Fatalf("got %d attempts, want 3", len(attempts))
	}
	for i, a := range attempts {
		if a.AttemptNumber != i+1 {
			t.Errorf("position %d has attempt number %d", i, a.AttemptNumber)
		}
	}
}
