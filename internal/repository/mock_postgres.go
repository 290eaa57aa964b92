package repository

import (
	"context"
	"sync"

	"github.com/nadmax/fieldops/internal/repository/models"
	"github.com/nadmax/fieldops/internal/task"
)

// MockRepository is an in-memory Repository that records its calls.
type MockRepository struct {
	mu                      sync.Mutex
	ListTasksCalls          []TaskFilter
	ListWorkersCalls        int
	GetUserCalls            []int64
	UpdateProfileCalls      []UpdateProfileCall
	GetPasswordHashCalls    []int64
	UpdatePasswordHashCalls []UpdatePasswordHashCall
	Tasks                   []task.Record
	Workers                 map[int64]string
	Users                   map[int64]*models.User
	PasswordHashes          map[int64]string
	ListTasksError          error
	ListWorkersError        error
	GetUserError            error
	UpdateProfileError      error
	GetPasswordHashError    error
	UpdatePasswordHashError error
	Closed                  bool
}

type UpdateProfileCall struct {
	ID     int64
	Update models.ProfileUpdate
}

type UpdatePasswordHashCall struct {
	ID   int64
	Hash string
}

var _ Repository = (*MockRepository)(nil)

func NewMockRepository() *MockRepository {
	return &MockRepository{
		Tasks:          make([]task.Record, 0),
		Workers:        make(map[int64]string),
		Users:          make(map[int64]*models.User),
		PasswordHashes: make(map[int64]string),
	}
}

func (m *MockRepository) ListTasks(ctx context.Context, filter TaskFilter) ([]task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListTasksCalls = append(m.ListTasksCalls, filter)

	if m.ListTasksError != nil {
		return nil, m.ListTasksError
	}

	var records []task.Record
	for _, r := range m.Tasks {
		if !r.CreatedAt.Before(filter.To) {
			continue
		}
		if filter.From != nil && r.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.AssigneeID != nil && (r.AssigneeID == nil || *r.AssigneeID != *filter.AssigneeID) {
			continue
		}
		records = append(records, r)
	}

	return records, nil
}

func (m *MockRepository) ListWorkers(ctx context.Context) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListWorkersCalls++

	if m.ListWorkersError != nil {
		return nil, m.ListWorkersError
	}

	workers := make(map[int64]string, len(m.Workers))
	for id, name := range m.Workers {
		workers[id] = name
	}
	return workers, nil
}

func (m *MockRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetUserCalls = append(m.GetUserCalls, id)

	if m.GetUserError != nil {
		return nil, m.GetUserError
	}

	u, exists := m.Users[id]
	if !exists {
		return nil, ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}

func (m *MockRepository) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateProfileCalls = append(m.UpdateProfileCalls, UpdateProfileCall{ID: id, Update: update})

	if m.UpdateProfileError != nil {
		return nil, m.UpdateProfileError
	}

	u, exists := m.Users[id]
	if !exists {
		return nil, ErrUserNotFound
	}

	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.Email != nil {
		email := *update.Email
		u.Email = &email
	}
	if update.Phone != nil {
		phone := *update.Phone
		u.Phone = &phone
	}

	userCopy := *u
	return &userCopy, nil
}

func (m *MockRepository) GetPasswordHash(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetPasswordHashCalls = append(m.GetPasswordHashCalls, id)

	if m.GetPasswordHashError != nil {
		return "", m.GetPasswordHashError
	}

	hash, exists := m.PasswordHashes[id]
	if !exists {
		return "", ErrUserNotFound
	}
	return hash, nil
}

func (m *MockRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdatePasswordHashCalls = append(m.UpdatePasswordHashCalls, UpdatePasswordHashCall{ID: id, Hash: hash})

	if m.UpdatePasswordHashError != nil {
		return m.UpdatePasswordHashError
	}

	if _, exists := m.PasswordHashes[id]; !exists {
		return ErrUserNotFound
	}
	m.PasswordHashes[id] = hash
	return nil
}

func (m *MockRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

// Calls reports how many repository calls have been made. Tests use it to
// assert that rejected requests never reached the store.
func (m *MockRepository) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.ListTasksCalls) + m.ListWorkersCalls + len(m.GetUserCalls) +
		len(m.UpdateProfileCalls) + len(m.GetPasswordHashCalls) + len(m.UpdatePasswordHashCalls)
}
