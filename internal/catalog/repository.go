// backend/internal/catalog/repository.go
package catalog

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"assessment-system/internal/models"
	"assessment-system/pkg/apperr"
	"assessment-system/pkg/database"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListQuizzes returns quizzes newest-first, optionally filtered to one
// module. When publishedOnly is set, drafts are excluded.
func (r *Repository) ListQuizzes(moduleID *uint, publishedOnly bool) ([]models.Quiz, error) {
	var quizzes []models.Quiz

	err := database.RetryRead(func() error {
		query := r.db.Preload("Questions")
		if moduleID != nil {
			query = query.Where("module_id = ?", *moduleID)
		}
		if publishedOnly {
			query = query.Where("is_published = ?", true)
		}
		return query.Order("created_at DESC").Find(&quizzes).Error
	})
	if err != nil {
		log.Printf("Error listing quizzes: %v", err)
		return nil, err
	}
	return quizzes, nil
}

// GetQuizWithQuestions loads a quiz with its questions in authored order and
// each question's options.
func (r *Repository) GetQuizWithQuestions(quizID uint) (*models.Quiz, error) {
	var quiz models.Quiz

	err := database.RetryRead(func() error {
		return r.db.
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("question_order ASC")
			}).
			Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
				return db.Order("option_order ASC")
			}).
			First(&quiz, quizID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "quiz %d not found", quizID)
		}
		log.Printf("Error getting quiz %d: %v", quizID, err)
		return nil, err
	}
	return &quiz, nil
}

func (r *Repository) GetQuizByID(quizID uint) (*models.Quiz, error) {
	var quiz models.Quiz

	err := database.RetryRead(func() error {
		return r.db.First(&quiz, quizID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "quiz %d not found", quizID)
		}
		log.Printf("Error getting quiz %d: %v", quizID, err)
		return nil, err
	}
	return &quiz, nil
}

// CreateQuiz persists a quiz and any nested questions and options in one
// transaction via gorm's association writes.
func (r *Repository) CreateQuiz(quiz *models.Quiz) error {
	if err := r.db.Create(quiz).Error; err != nil {
		log.Printf("Error creating quiz: %v", err)
		return err
	}
	log.Printf("Created quiz %d with %d questions", quiz.ID, len(quiz.Questions))
	return nil
}
