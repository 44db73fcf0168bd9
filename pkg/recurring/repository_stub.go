package recurring

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RepositoryStub is an in-memory Repository honoring the same version checks as the database.
// Like TIMESTAMPTZ columns read through pgx, it hands every time back in UTC.
type RepositoryStub struct {
	mu          sync.Mutex
	obligations map[uuid.UUID]Obligation
	now         func() time.Time
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		obligations: make(map[uuid.UUID]Obligation),
		now:         time.Now,
	}
}

func (s *RepositoryStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.obligations = make(map[uuid.UUID]Obligation)
}

func (s *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	return fn(s)
}

func (s *RepositoryStub) Create(ctx context.Context, userId int, obligation Obligation) (Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obligation = obligation.In(time.UTC)
	if obligation.Id == uuid.Nil {
		obligation.Id = uuid.New()
	}
	obligation.OwnerId = userId
	obligation.Version = 1
	obligation.Tags = tagsOrEmpty(obligation.Tags)
	obligation.CreatedAt = s.now().UTC()
	obligation.UpdatedAt = obligation.CreatedAt
	s.obligations[obligation.Id] = obligation.clone()
	return obligation.clone(), nil
}

func (s *RepositoryStub) Get(ctx context.Context, id uuid.UUID) (Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obligation, ok := s.obligations[id]
	if !ok {
		return Obligation{}, ErrObligationNotFound
	}
	return obligation.clone(), nil
}

func (s *RepositoryStub) FindActiveObligations(ctx context.Context, userId int) ([]Obligation, error) {
	return s.FindObligations(ctx, userId, false)
}

func (s *RepositoryStub) FindObligations(ctx context.Context, userId int, includeInactive bool) ([]Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Obligation, 0)
	for _, obligation := range s.obligations {
		if obligation.OwnerId != userId {
			continue
		}
		if !obligation.IsActive && !includeInactive {
			continue
		}
		result = append(result, obligation.clone())
	}
	SortByNextDueDate(result)
	return result, nil
}

func (s *RepositoryStub) Update(ctx context.Context, userId int, obligation Obligation, expectedVersion int) (Obligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.obligations[obligation.Id]
	if !ok || stored.OwnerId != userId {
		return Obligation{}, ErrObligationNotFound
	}
	if stored.Version != expectedVersion {
		return Obligation{}, ErrConcurrencyConflict
	}
	obligation = obligation.In(time.UTC)
	obligation.OwnerId = userId
	obligation.Version = stored.Version + 1
	obligation.Tags = tagsOrEmpty(obligation.Tags)
	obligation.CreatedAt = stored.CreatedAt
	obligation.UpdatedAt = s.now().UTC()
	s.obligations[obligation.Id] = obligation.clone()
	return obligation.clone(), nil
}

func (s *RepositoryStub) Delete(ctx context.Context, userId int, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.obligations[id]
	if !ok || stored.OwnerId != userId {
		return false, nil
	}
	delete(s.obligations, id)
	return true, nil
}
