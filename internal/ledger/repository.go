// backend/internal/ledger/repository.go
package ledger

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"assessment-system/internal/models"
	"assessment-system/pkg/apperr"
	"assessment-system/pkg/database"
)

// startRetries bounds the retry loop on the (quiz, student, attempt_number)
// unique index. A retry only happens when a concurrent start claimed the
// same number first.
const startRetries = 3

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Start opens a new attempt for the (quiz, student) pair. The count check
// and the insert run in one transaction, and the composite unique index
// turns any remaining race into a duplicate-key error that re-enters the
// loop, so the pair can never exceed maxAttempts.
func (r *Repository) Start(quizID, studentID uint, maxAttempts int) (*models.Attempt, error) {
	for i := 0; i < startRetries; i++ {
		attempt, err := r.tryStart(quizID, studentID, maxAttempts)
		if err == nil {
			return attempt, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Printf("Attempt start race for quiz %d student %d, retrying", quizID, studentID)
			continue
		}
		return nil, err
	}
	return nil, apperr.New(apperr.Conflict, "could not start attempt, please retry")
}

func (r *Repository) tryStart(quizID, studentID uint, maxAttempts int) (*models.Attempt, error) {
	var attempt *models.Attempt

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Attempt{}).
			Where("quiz_id = ? AND student_id = ?", quizID, studentID).
			Count(&count).Error; err != nil {
			return err
		}

		if count >= int64(maxAttempts) {
			return apperr.Newf(apperr.LimitExceeded,
				"maximum of %d attempts reached", maxAttempts)
		}

		attempt = &models.Attempt{
			QuizID:        quizID,
			StudentID:     studentID,
			AttemptNumber: int(count) + 1,
			StartedAt:     time.Now().UTC(),
		}
		return tx.Create(attempt).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Started attempt %d (number %d) for quiz %d student %d",
		attempt.ID, attempt.AttemptNumber, quizID, studentID)
	return attempt, nil
}

func (r *Repository) GetAttempt(attemptID uint) (*models.Attempt, error) {
	var attempt models.Attempt

	err := database.RetryRead(func() error {
		return r.db.First(&attempt, attemptID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "attempt %d not found", attemptID)
		}
		log.Printf("Error getting attempt %d: %v", attemptID, err)
		return nil, err
	}
	return &attempt, nil
}

// Submit finalizes an attempt: answers are inserted and the result columns
// set in one transaction, guarded by submitted_at IS NULL. A second submit,
// concurrent or not, updates zero rows and rolls back with Conflict, so
// answers are written exactly once.
func (r *Repository) Submit(attemptID uint, answers []models.Answer, result models.Attempt) (*models.Attempt, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		guarded := tx.Model(&models.Attempt{}).
			Where("id = ? AND submitted_at IS NULL", attemptID).
			Updates(map[string]interface{}{
				"submitted_at":       result.SubmittedAt,
				"score":              result.Score,
				"max_score":          result.MaxScore,
				"percentage":         result.Percentage,
				"passed":             result.Passed,
				"time_spent_seconds": result.TimeSpentSeconds,
			})
		if guarded.Error != nil {
			return guarded.Error
		}
		if guarded.RowsAffected == 0 {
			return apperr.Newf(apperr.Conflict, "attempt %d already submitted", attemptID)
		}

		for i := range answers {
			answers[i].AttemptID = attemptID
		}
		if len(answers) == 0 {
			return nil
		}
		return tx.Create(&answers).Error
	})
	if err != nil {
		return nil, err
	}

	return r.GetAttempt(attemptID)
}

// ListAttempts returns the student's attempts for a quiz in attempt order.
func (r *Repository) ListAttempts(quizID, studentID uint) ([]models.Attempt, error) {
	var attempts []models.Attempt

	err := database.RetryRead(func() error {
		return r.db.
			Where("quiz_id = ? AND student_id = ?", quizID, studentID).
			Order("attempt_number ASC").
			Find(&attempts).Error
	})
	if err != nil {
		log.Printf("Error listing attempts for quiz %d student %d: %v", quizID, studentID, err)
		return nil, err
	}
	return attempts, nil
}
