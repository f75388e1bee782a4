// Package memory is the in-process Repository used for development and
// tests. It mirrors the transactional guarantees of the postgres store: the
// write lock spans the whole delete+insert of a replace, so readers observe
// either the prior or the complete new record set.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"salescope/backend/internal/domain"
	"salescope/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	recordsByOwner  map[string][]domain.SaleRecord
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		recordsByOwner:  make(map[string][]domain.SaleRecord),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func (s *Store) ReplaceSaleRecords(_ context.Context, ownerID string, records []domain.SaleRecord) error {
	if ownerID == "" {
		return store.ErrInvalidRecord
	}

	copied := make([]domain.SaleRecord, len(records))
	copy(copied, records)
	sortRecords(copied)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(copied) == 0 {
		delete(s.recordsByOwner, ownerID)
		return nil
	}
	s.recordsByOwner[ownerID] = copied
	return nil
}

func (s *Store) ListSaleRecords(_ context.Context, ownerID string) ([]domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.recordsByOwner[ownerID]
	out := make([]domain.SaleRecord, len(records))
	copy(out, records)
	return out, nil
}

func (s *Store) DeleteSaleRecords(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recordsByOwner, ownerID)
	return nil
}

// sortRecords fixes the stable read order: date ascending, then insertion
// order via the timestamped id.
func sortRecords(records []domain.SaleRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date) {
			return records[i].Date.Before(records[j].Date)
		}
		return records[i].ID < records[j].ID
	})
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidRecord
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
