// backend/pkg/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"assessment-system/internal/models"
)

const quizTTL = 24 * time.Hour

type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
	}
}

func quizKey(quizID uint) string {
	return fmt.Sprintf("quizzes:id:%d", quizID)
}

// SetQuiz caches a quiz together with its preloaded questions and options.
// The cached copy is the instructor view; the catalog re-applies answer-key
// elision per request.
func (c *RedisCache) SetQuiz(quiz *models.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, quizKey(quiz.ID), data, quizTTL).Err()
}

func (c *RedisCache) GetQuiz(quizID uint) (*models.Quiz, error) {
	data, err := c.client.Get(c.ctx, quizKey(quizID)).Bytes()
	if err != nil {
		return nil, err
	}

	var quiz models.Quiz
	err = json.Unmarshal(data, &quiz)
	return &quiz, err
}

func (c *RedisCache) DeleteQuiz(quizID uint) error {
	return c.client.Del(c.ctx, quizKey(quizID)).Err()
}

// InvalidateQuizzes drops every cached quiz entry. Called after a create so
// list and detail reads see the new definition.
func (c *RedisCache) InvalidateQuizzes() error {
	keys, err := c.client.Keys(c.ctx, "quizzes:*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(c.ctx, keys...).Err()
}
