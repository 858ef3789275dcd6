package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/draftmill/internal/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*domain.User{}, byEmail: map[string]*domain.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(u.Email)
	if _, exists := m.byEmail[u.Email]; exists {
		return domain.ErrValidation
	}
	u.CreatedAt = time.Now().UTC()
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return domain.ErrNotFound
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	return nil
}

func (m *memUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	return nil
}

func (m *memUserRepo) List(_ context.Context) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) SetPermissions(_ context.Context, id string, permissions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Permissions = permissions
	return nil
}

func (m *memUserRepo) SetTwoFactor(_ context.Context, id string, enabled bool, encryptedSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.TwoFactorEnabled = enabled
	u.TwoFactorSecret = encryptedSecret
	return nil
}

func (m *memUserRepo) RecordLoginFailure(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.FailedLoginAttempts++
	u.LastFailedLogin = &at
	return nil
}

func (m *memUserRepo) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LastLogin = &at
	return nil
}

func (m *memUserRepo) CountActiveAdmins(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, u := range m.byID {
		if u.Role == domain.RoleAdmin && u.Status == domain.StatusActive {
			count++
		}
	}
	return count, nil
}

type memSessionRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{byID: map[string]*domain.Session{}}
}

func (m *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Active = true
	s.CreatedAt = time.Now().UTC()
	s.LastAccessed = s.CreatedAt
	m.byID[s.ID] = s
	return nil
}

func (m *memSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSessionRepo) ListActiveByEmail(_ context.Context, email string) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Session{}
	for _, s := range m.byID {
		if s.UserEmail == email && s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok && s.Active {
		s.LastAccessed = at
	}
	return nil
}

func (m *memSessionRepo) End(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok && s.Active {
		s.Active = false
		s.EndedAt = &at
		return true, nil
	}
	return false, nil
}

func (m *memSessionRepo) CountActive(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.byID {
		if s.Active {
			count++
		}
	}
	return count, nil
}

func (m *memSessionRepo) DeactivateIdle(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	swept := 0
	now := time.Now().UTC()
	for _, s := range m.byID {
		if s.Active && s.LastAccessed.Before(cutoff) {
			s.Active = false
			s.EndedAt = &now
			swept++
		}
	}
	return swept, nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
}

func (m *memAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditRepo) ListRecent(_ context.Context, limit int) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*domain.AuditEntry{}, m.entries...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memAuditRepo) ListByEmail(_ context.Context, email string, limit int) ([]*domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.AuditEntry{}
	for _, e := range m.entries {
		if e.UserEmail == email {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type memRateLimitRepo struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newMemRateLimitRepo() *memRateLimitRepo {
	return &memRateLimitRepo{attempts: map[string][]time.Time{}}
}

func (m *memRateLimitRepo) CountSince(_ context.Context, key string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, at := range m.attempts[key] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memRateLimitRepo) Record(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[key] = append(m.attempts[key], at)
	return nil
}

func (m *memRateLimitRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, times := range m.attempts {
		kept := times[:0]
		for _, at := range times {
			if at.Before(cutoff) {
				deleted++
			} else {
				kept = append(kept, at)
			}
		}
		m.attempts[key] = kept
	}
	return deleted, nil
}

type memArticleRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Article
}

func newMemArticleRepo() *memArticleRepo {
	return &memArticleRepo{byID: map[string]*domain.Article{}}
}

func (m *memArticleRepo) Create(_ context.Context, a *domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = a
	return nil
}

func (m *memArticleRepo) GetByID(_ context.Context, id string) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.byID[id]; ok {
		return a, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memArticleRepo) ListByEmail(_ context.Context, email string) ([]*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Article{}
	for _, a := range m.byID {
		if a.UserEmail == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memArticleRepo) Update(_ context.Context, a *domain.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[a.ID]; !ok {
		return domain.ErrNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	m.byID[a.ID] = a
	return nil
}

func (m *memArticleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}
