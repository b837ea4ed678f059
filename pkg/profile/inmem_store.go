package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore implements Store with an in-process map.
type InMemoryStore struct {
	profiles map[uuid.UUID]*VerificationStatus
	mutex    sync.RWMutex
}

// NewInMemoryStore creates a new in-memory profile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[uuid.UUID]*VerificationStatus),
	}
}

func (s *InMemoryStore) GetStatus(ctx context.Context, subjectID uuid.UUID) (*VerificationStatus, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	status, ok := s.profiles[subjectID]
	if !ok {
		return nil, ErrNotFound
	}

	statusCopy := *status
	return &statusCopy, nil
}

func (s *InMemoryStore) MarkVerified(ctx context.Context, subjectID uuid.UUID, verifiedAt time.Time, method string, tokenID uuid.UUID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	at := verifiedAt
	m := method
	tid := tokenID
	s.profiles[subjectID] = &VerificationStatus{
		SubjectID:          subjectID,
		Verified:           true,
		VerifiedAt:         &at,
		VerificationMethod: &m,
		LastTokenID:        &tid,
	}

	return nil
}
