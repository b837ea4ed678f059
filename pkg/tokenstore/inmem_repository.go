package tokenstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/resumeworks/resume-verify/pkg/tokencodec"
)

// InMemoryRepository implements Repository with an in-process map. All data
// is lost when the process stops; it backs the dev binary and the test suite.
type InMemoryRepository struct {
	tokens map[uuid.UUID]*Token
	byHash map[string]uuid.UUID
	mutex  sync.RWMutex
}

// NewInMemoryRepository creates a new in-memory token repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tokens: make(map[uuid.UUID]*Token),
		byHash: make(map[string]uuid.UUID),
	}
}

func (r *InMemoryRepository) Insert(ctx context.Context, token *Token) (uuid.UUID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored := *token
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}

	r.tokens[stored.ID] = &stored
	r.byHash[stored.TokenHash] = stored.ID

	return stored.ID, nil
}

func (r *InMemoryRepository) FindByHash(ctx context.Context, tokenHash string) (*Token, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}

	tokenCopy := *r.tokens[id]
	return &tokenCopy, nil
}

func (r *InMemoryRepository) InvalidatePriorUnused(ctx context.Context, subjectID uuid.UUID, purpose tokencodec.Purpose, now time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var count int64
	reason := UsedReasonSuperseded
	for _, t := range r.tokens {
		if t.SubjectID == subjectID && t.Purpose == purpose && t.UsedAt == nil && t.ExpiresAt.After(now) {
			usedAt := now
			t.UsedAt = &usedAt
			t.UsedReason = &reason
			count++
		}
	}

	return count, nil
}

func (r *InMemoryRepository) MarkUsedAtomically(ctx context.Context, tokenID uuid.UUID, usedAt time.Time, reason string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return false, ErrNotFound
	}

	if t.UsedAt != nil {
		return false, nil
	}

	at := usedAt
	t.UsedAt = &at
	t.UsedReason = &reason

	return true, nil
}

func (r *InMemoryRepository) IncrementAttempts(ctx context.Context, tokenID uuid.UUID) (int32, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.tokens[tokenID]
	if !ok {
		return 0, ErrNotFound
	}

	t.Attempts++
	return t.Attempts, nil
}

func (r *InMemoryRepository) LatestPending(ctx context.Context, subjectID uuid.UUID, purpose tokencodec.Purpose, now time.Time) (*Token, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var latest *Token
	for _, t := range r.tokens {
		if t.SubjectID != subjectID || t.Purpose != purpose || t.UsedAt != nil || !t.ExpiresAt.After(now) {
			continue
		}
		if latest == nil || t.IssuedAt.After(latest.IssuedAt) {
			latest = t
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}

	tokenCopy := *latest
	return &tokenCopy, nil
}

func (r *InMemoryRepository) SweepExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var count int64
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(olderThan) && t.UsedAt == nil {
			delete(r.byHash, t.TokenHash)
			delete(r.tokens, id)
			count++
		}
	}

	return count, nil
}
