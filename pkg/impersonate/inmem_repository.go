package impersonate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements SessionRepository with an in-memory map for
// testing. It enforces the same one-active-session-per-impersonator rule
// and active-only status transitions as the Postgres implementation.
type InMemRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (r *InMemRepository) Insert(ctx context.Context, session Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.sessions {
		if existing.ImpersonatorID == session.ImpersonatorID && existing.Status == StatusActive {
			return ErrAlreadyImpersonating
		}
	}
	stored := session
	r.sessions[stored.ID] = &stored
	return nil
}

func (r *InMemRepository) FindByID(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copy := *session
	return &copy, nil
}

func (r *InMemRepository) FindActiveByImpersonator(ctx context.Context, impersonatorID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, session := range r.sessions {
		if session.ImpersonatorID == impersonatorID && session.Status == StatusActive {
			copy := *session
			return &copy, nil
		}
	}
	return nil, nil
}

func (r *InMemRepository) UpdateStatus(ctx context.Context, sessionID uuid.UUID, status string, endedAt time.Time, endedBy *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[sessionID]
	if !ok || session.Status != StatusActive {
		return false, nil
	}
	session.Status = status
	t := endedAt
	session.EndedAt = &t
	session.EndedBy = endedBy
	return true, nil
}

func (r *InMemRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, session := range r.sessions {
		if session.Status == StatusActive && !now.Before(session.ExpiresAt) {
			session.Status = StatusExpired
			t := now
			session.EndedAt = &t
			count++
		}
	}
	return count, nil
}

func (r *InMemRepository) List(ctx context.Context, params ListParams) (SessionPage, error) {
	params.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Session
	for _, session := range r.sessions {
		if params.ImpersonatorID != nil && session.ImpersonatorID != *params.ImpersonatorID {
			continue
		}
		if params.TargetID != nil && session.TargetID != *params.TargetID {
			continue
		}
		if params.Status != "" && session.Status != params.Status {
			continue
		}
		matched = append(matched, *session)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	page := SessionPage{
		Sessions: []Session{},
		Total:    int64(len(matched)),
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	for i := params.Offset; i < len(matched) && len(page.Sessions) < params.Limit; i++ {
		page.Sessions = append(page.Sessions, matched[i])
	}
	return page, nil
}
