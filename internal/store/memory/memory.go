package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/store"
)

// Store is an in-process implementation of every store port.
type Store struct {
	mu       sync.Mutex
	rows     map[string]store.Row
	users    map[string]store.User // keyed by lower-cased email
	profiles map[string]string
	now      func() time.Time

	// Fail, when set, is consulted before every operation; a non-nil
	// result is returned instead of touching the data.
	Fail func(op string) error
}

var (
	_ store.Remote   = (*Store)(nil)
	_ store.Profiles = (*Store)(nil)
	_ store.Users    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		rows:     map[string]store.Row{},
		users:    map[string]store.User{},
		profiles: map[string]string{},
		now:      time.Now,
	}
}

// Seed inserts rows as-is, keeping their ids. Rows without an id get one.
func (s *Store) Seed(rows ...store.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.rows[r.ID] = r
	}
}

func (s *Store) fail(op string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op)
}

// List returns the owner's rows, newest date first.
func (s *Store) List(_ context.Context, ownerID string) ([]store.Row, error) {
	if err := s.fail("list"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Row, 0, len(s.rows))
	for _, r := range s.rows {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Insert stores the row under a fresh id.
func (s *Store) Insert(_ context.Context, row store.Row) (store.Row, error) {
	if err := s.fail("insert"); err != nil {
		return store.Row{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	row.ID = uuid.NewString()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.rows[row.ID] = row
	return row, nil
}

// Update replaces an owned row, keeping its creation time.
func (s *Store) Update(_ context.Context, ownerID, id string, row store.Row) (store.Row, error) {
	if err := s.fail("update"); err != nil {
		return store.Row{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok || cur.OwnerID != ownerID {
		return store.Row{}, core.ErrNotFound
	}
	row.ID = id
	row.OwnerID = ownerID
	row.CreatedAt = cur.CreatedAt
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = s.now().UTC()
	}
	s.rows[id] = row
	return row, nil
}

// Delete removes an owned row.
func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	if err := s.fail("delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[id]
	if !ok || cur.OwnerID != ownerID {
		return core.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

// Remove drops a row regardless of owner, simulating a delete made from
// another session.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

// Len returns the number of stored rows across all owners.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *Store) EnsureProfile(_ context.Context, userID, displayName string) (bool, error) {
	if err := s.fail("profile"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; ok {
		return false, nil
	}
	s.profiles[userID] = displayName
	return true, nil
}

// Profile returns the stored display name for userID.
func (s *Store) Profile(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.profiles[userID]
	return name, ok
}

func (s *Store) CreateUser(_ context.Context, u store.User) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := s.users[key]; ok {
		return store.User{}, store.ErrEmailTaken
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now().UTC()
	s.users[key] = u
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return store.User{}, core.ErrNotFound
	}
	return u, nil
}
