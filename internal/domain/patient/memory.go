package patient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// MemoryRepo is an in-memory Repository used by tests and the seeder's dry
// run.
type MemoryRepo struct {
	mu       sync.Mutex
	patients map[int64]Patient
	nextID   int64
	failOn   string
	cascade  []func(patientID int64)
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{patients: make(map[int64]Patient)}
}

// FailOn makes the named operation return record.ErrInjected.
func (m *MemoryRepo) FailOn(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = op
}

// OnDelete registers fn to run after a patient is deleted, the way the
// record tables cascade from patients in PostgreSQL.
func (m *MemoryRepo) OnDelete(fn func(patientID int64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cascade = append(m.cascade, fn)
}

func (m *MemoryRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return record.ErrInjected
	}
	m.nextID++
	now := time.Now().UTC()
	p.ID, p.CreatedAt, p.UpdatedAt = m.nextID, now, now
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id int64) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "get" {
		return nil, record.ErrInjected
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, record.ErrNotFound
	}
	return &p, nil
}

func (m *MemoryRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "update" {
		return record.ErrInjected
	}
	old, ok := m.patients[p.ID]
	if !ok {
		return record.ErrNotFound
	}
	p.CreatedAt, p.UpdatedAt = old.CreatedAt, time.Now().UTC()
	m.patients[p.ID] = *p
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "delete" {
		return record.ErrInjected
	}
	if _, ok := m.patients[id]; !ok {
		return record.ErrNotFound
	}
	delete(m.patients, id)
	for _, fn := range m.cascade {
		fn(id)
	}
	return nil
}

// Search interprets pattern the way LIKE ... ESCAPE '\' does for the
// "%term%" patterns the service builds.
func (m *MemoryRepo) Search(_ context.Context, pattern string) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "search" {
		return nil, record.ErrInjected
	}
	term := unescapeLike(strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%"))

	var matched []Patient
	for _, p := range m.patients {
		if strings.Contains(strings.ToLower(p.FirstName), term) || strings.Contains(strings.ToLower(p.LastName), term) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})

	results := make([]SearchResult, 0, len(matched))
	for _, p := range matched {
		results = append(results, SearchResult{ID: p.ID, Name: p.Name(), DOB: p.DateOfBirth, Gender: p.Gender})
	}
	return results, nil
}

func unescapeLike(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
