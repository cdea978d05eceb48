// Package employee reads the HR employee directory.
package employee

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"peoplehub/internal/profile/models"
	id "peoplehub/pkg/domain"
	"peoplehub/pkg/email"
	"peoplehub/pkg/platform/sentinel"
)

// InMemoryStore keeps employees keyed by id.
type InMemoryStore struct {
	mu        sync.RWMutex
	employees map[id.EmployeeID]*models.Employee
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{employees: make(map[id.EmployeeID]*models.Employee)}
}

func (s *InMemoryStore) Save(_ context.Context, e *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.employees[e.ID] = &c
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, employeeID id.EmployeeID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[employeeID]
	if !ok {
		return nil, fmt.Errorf("employee %s: %w", employeeID, sentinel.ErrNotFound)
	}
	c := *e
	return &c, nil
}

// FindByEmail matches a single address exactly, ignoring case.
func (s *InMemoryStore) FindByEmail(ctx context.Context, address string) (*models.Employee, error) {
	return s.FindByAnyEmail(ctx, []string{address})
}

// FindByAnyEmail returns the employee whose email matches any of the given
// addresses. Ties resolve to the lowest employee id.
func (s *InMemoryStore) FindByAnyEmail(_ context.Context, addresses []string) (*models.Employee, error) {
	want := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		if a = email.Normalize(a); a != "" {
			want[a] = struct{}{}
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []*models.Employee
	for _, e := range s.employees {
		if _, ok := want[email.Normalize(e.Email)]; ok {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("employee with email in [%s]: %w", strings.Join(addresses, ", "), sentinel.ErrNotFound)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	c := *matches[0]
	return &c, nil
}
