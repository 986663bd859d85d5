package session

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/lifecover-bfa-go/internal/domain"
	"github.com/boddenberg/lifecover-bfa-go/internal/infra/cache"
)

// MemoryStore keeps sessions in process. Used when REDIS_URL is empty;
// sessions do not survive a restart and are not shared across replicas.
type MemoryStore struct {
	items *cache.InMemory[domain.Session]
	now   func() time.Time
}

// NewMemoryStore creates an in-memory store. janitorEvery controls how often
// expired sessions are purged.
func NewMemoryStore(janitorEvery time.Duration) *MemoryStore {
	return &MemoryStore{
		items: cache.New[domain.Session](janitorEvery),
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *domain.Session) error {
	if s.ID == "" || s.Identity.Email == "" {
		return errors.New("session: missing id or identity")
	}
	ttl := s.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return errors.New("session: expires_at must be in the future")
	}
	if _, exists := m.items.Get(s.ID); exists {
		return &domain.ErrConflict{Message: "session already exists"}
	}
	m.items.SetWithTTL(s.ID, *s, ttl)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s, ok := m.items.Get(sessionID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	return &s, nil
}

func (m *MemoryStore) Update(_ context.Context, s *domain.Session) error {
	if s.ID == "" {
		return errors.New("session: missing id")
	}
	ttl := s.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		m.items.Delete(s.ID)
		return nil
	}
	m.items.SetWithTTL(s.ID, *s, ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.items.Delete(sessionID)
	return nil
}

// Close stops the janitor.
func (m *MemoryStore) Close() {
	m.items.Close()
}
