// Package voice runs dictation sessions: each session owns one clinical note
// and appends transcribed text to it until the session is stopped.
package voice

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrSessionNotFound = errors.New("no active voice session for note")
	ErrDuplicateNote   = errors.New("note already has an active voice session")
)

// Session is the in-memory state of one dictation. Text holds the full note
// body; mu serializes appends and stop for the note.
type Session struct {
	ID        string
	PatientID int64
	NoteID    int64
	Provider  string
	Date      string
	StartedAt time.Time

	mu   sync.Mutex
	text string
}

// SessionInfo is a point-in-time copy of a session.
type SessionInfo struct {
	ID         string    `json:"session_id"`
	PatientID  int64     `json:"patient_id"`
	NoteID     int64     `json:"note_id"`
	Provider   string    `json:"provider"`
	StartedAt  time.Time `json:"started_at"`
	TextLength int       `json:"text_length"`
}

// Registry is the single owner of active sessions, indexed by session id
// and by note id.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byNote   map[int64]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byNote:   make(map[int64]string),
	}
}

func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNote[s.NoteID]; ok {
		return ErrDuplicateNote
	}
	r.sessions[s.ID] = s
	r.byNote[s.NoteID] = s.ID
	return nil
}

func (r *Registry) ByNote(noteID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[r.byNote[noteID]]
	return s, ok
}

// Remove drops s if it is still registered and reports whether it was.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[s.ID] != s {
		return false
	}
	delete(r.sessions, s.ID)
	delete(r.byNote, s.NoteID)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot lists the active sessions, oldest first.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		s.mu.Lock()
		out = append(out, SessionInfo{
			ID:         s.ID,
			PatientID:  s.PatientID,
			NoteID:     s.NoteID,
			Provider:   s.Provider,
			StartedAt:  s.StartedAt,
			TextLength: len(s.text),
		})
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].NoteID < out[j].NoteID
	})
	return out
}

// Expired removes and returns the sessions started before cutoff.
func (r *Registry) Expired(cutoff time.Time) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for id, s := range r.sessions {
		if s.StartedAt.Before(cutoff) {
			delete(r.sessions, id)
			delete(r.byNote, s.NoteID)
			out = append(out, s)
		}
	}
	return out
}
