package record

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInjected is returned by MemoryRepo for the operation named by FailOn.
var ErrInjected = errors.New("injected storage failure")

// MemoryRepo is an in-memory Repository for tests and dry runs. Rows keep the
// same shape the PostgreSQL repository returns.
type MemoryRepo struct {
	mu     sync.Mutex
	rows   map[int64]Row
	nextID int64
	failOn string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[int64]Row)}
}

// FailOn makes the named operation ("list", "get", "create", "update",
// "delete") return ErrInjected. An empty op clears it.
func (m *MemoryRepo) FailOn(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn = op
}

// Len returns the number of stored rows.
func (m *MemoryRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// DeletePatient drops every row of patientID, mirroring ON DELETE CASCADE.
func (m *MemoryRepo) DeletePatient(patientID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if r["patient_id"] == patientID {
			delete(m.rows, id)
		}
	}
}

func toRow(id, patientID int64, vals Values, created time.Time) Row {
	row := Row{"id": id, "patient_id": patientID, "created_at": created, "updated_at": time.Now().UTC()}
	for k, v := range vals {
		if v == nil {
			row[k] = nil
		} else {
			row[k] = *v
		}
	}
	return row
}

func (r Row) clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (m *MemoryRepo) List(_ context.Context, patientID int64) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "list" {
		return nil, ErrInjected
	}
	out := []Row{}
	for id := m.nextID; id > 0; id-- {
		if r, ok := m.rows[id]; ok && r["patient_id"] == patientID {
			out = append(out, r.clone())
		}
	}
	return out, nil
}

func (m *MemoryRepo) Get(_ context.Context, id int64) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "get" {
		return nil, ErrInjected
	}
	r, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (m *MemoryRepo) Create(_ context.Context, patientID int64, vals Values) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return 0, ErrInjected
	}
	m.nextID++
	m.rows[m.nextID] = toRow(m.nextID, patientID, vals, time.Now().UTC())
	return m.nextID, nil
}

func (m *MemoryRepo) Update(_ context.Context, id int64, vals Values) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "update" {
		return ErrInjected
	}
	r, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	created, _ := r["created_at"].(time.Time)
	m.rows[id] = toRow(id, r["patient_id"].(int64), vals, created)
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "delete" {
		return ErrInjected
	}
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
