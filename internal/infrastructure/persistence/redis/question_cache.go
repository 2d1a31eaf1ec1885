package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// Store is the subset of *Cache the decorators depend on.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

var _ Store = (*Cache)(nil)

// QuestionBankCache is a cache-aside decorator over a catalog.QuestionBank.
// Cache failures fall through to the underlying bank.
type QuestionBankCache struct {
	next   catalog.QuestionBank
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

var _ catalog.QuestionBank = (*QuestionBankCache)(nil)

// NewQuestionBankCache creates a new QuestionBankCache.
func NewQuestionBankCache(next catalog.QuestionBank, store Store, ttl time.Duration, logger *slog.Logger) *QuestionBankCache {
	if ttl <= 0 {
		ttl = TTLQuestionBank
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionBankCache{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "question_bank_cache"),
	}
}

// QuestionsForCourse returns the cached bank or loads and caches it.
func (c *QuestionBankCache) QuestionsForCourse(ctx context.Context, courseID string) ([]catalog.BankQuestion, error) {
	key := QuestionBankKey(courseID)

	var cached []catalog.BankQuestion
	err := c.store.Get(ctx, key, &cached)
	switch {
	case err == nil:
		metrics.RecordCacheLookup("question_bank", true)
		return cached, nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("question bank cache read failed", "course_id", courseID, "error", err)
	}
	metrics.RecordCacheLookup("question_bank", false)

	questions, err := c.next.QuestionsForCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	// an empty bank is not cached so newly added questions show up immediately
	if len(questions) > 0 {
		if err := c.store.Set(ctx, key, questions, c.ttl); err != nil {
			c.logger.Warn("question bank cache write failed", "course_id", courseID, "error", err)
		}
	}
	return questions, nil
}

// Invalidate drops the cached bank for a course.
func (c *QuestionBankCache) Invalidate(ctx context.Context, courseID string) error {
	return c.store.Delete(ctx, QuestionBankKey(courseID))
}
