package voice

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/domain/notes"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/blobstore"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/events"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/middleware"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/speech"
)

const (
	// DefaultProvider is used when a session is started without one.
	DefaultProvider = "Voice Transcription"

	startedText = "Voice transcription started - content will be updated in real-time...\n\n"
)

// SessionGauge is told the number of active sessions after every change.
type SessionGauge interface {
	SetVoiceSessions(n int)
}

// Topic is the event topic of a note.
func Topic(noteID int64) string {
	return "note:" + strconv.FormatInt(noteID, 10)
}

type Deps struct {
	Notes       *record.Service
	Registry    *Registry
	Events      events.Publisher
	Transcriber speech.Transcriber
	Blobs       blobstore.BlobStore
	Gauge       SessionGauge
}

type Service struct {
	notes       *record.Service
	registry    *Registry
	events      events.Publisher
	transcriber speech.Transcriber
	blobs       blobstore.BlobStore
	gauge       SessionGauge
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(d Deps, logger zerolog.Logger) *Service {
	if d.Registry == nil {
		d.Registry = NewRegistry()
	}
	return &Service{
		notes:       d.Notes,
		registry:    d.Registry,
		events:      d.Events,
		transcriber: d.Transcriber,
		blobs:       d.Blobs,
		gauge:       d.Gauge,
		log:         logger.With().Str("component", "voice").Logger(),
		now:         time.Now,
	}
}

// Start creates the placeholder note and registers a session for it.
func (s *Service) Start(ctx context.Context, patientID int64, provider string) (*Session, error) {
	if patientID <= 0 {
		return nil, &record.ValidationError{Field: "patient_id"}
	}
	provider = strings.TrimSpace(provider)
	if provider == "" {
		provider = DefaultProvider
	}
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Provider:  provider,
		Date:      now.Format("2006-01-02"),
		StartedAt: now,
		text:      startedText,
	}

	noteID, err := s.notes.Create(ctx, patientID, sess.fields())
	if err != nil {
		return nil, err
	}
	sess.NoteID = noteID
	if err := s.registry.Add(sess); err != nil {
		return nil, err
	}
	s.updateGauge()
	s.log.Info().Str("session_id", sess.ID).Int64("note_id", noteID).Int64("patient_id", patientID).
		Msg("voice session started")
	return sess, nil
}

// AddTranscription appends "[HH:MM:SS] text" to the note.
func (s *Service) AddTranscription(ctx context.Context, noteID int64, text string) error {
	text = middleware.SanitizeString(text)
	if text == "" {
		return &record.ValidationError{Field: "transcription"}
	}
	sess, ok := s.registry.ByNote(noteID)
	if !ok {
		return sessionNotFound(noteID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !s.live(sess) {
		return sessionNotFound(noteID)
	}

	line := fmt.Sprintf("[%s] %s\n", s.now().Format("15:04:05"), text)
	if err := s.write(ctx, sess, sess.text+line); err != nil {
		return err
	}
	s.publish(ctx, noteID, events.TypeTranscription, map[string]any{"note_id": noteID, "text": line})
	return nil
}

// TranscribeChunk stores an audio clip, transcribes it, discards the clip and
// appends the text, if any, to the note.
func (s *Service) TranscribeChunk(ctx context.Context, noteID int64, fileName string, audio []byte) (string, error) {
	if _, ok := s.registry.ByNote(noteID); !ok {
		return "", sessionNotFound(noteID)
	}
	if len(audio) == 0 {
		return "", &record.ValidationError{Field: "audio", Reason: "file is empty"}
	}
	if fileName == "" {
		fileName = "chunk.webm"
	}

	meta, err := s.blobs.Save(ctx, blobstore.CategoryAudio, fileName, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("store audio chunk: %w", err)
	}
	defer func() {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), blobstore.CategoryAudio, meta.ID); err != nil {
			s.log.Warn().Err(err).Str("blob_id", meta.ID).Msg("failed to remove audio chunk")
		}
	}()

	text, err := s.transcriber.Transcribe(ctx, meta.ID, audio)
	if err != nil {
		s.log.Error().Err(err).Int64("note_id", noteID).Msg("transcription failed")
		return "", &TranscriptionError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if err := s.AddTranscription(ctx, noteID, text); err != nil {
		return "", err
	}
	return text, nil
}

// Stop appends the completion marker, writes the final note and ends the
// session.
func (s *Service) Stop(ctx context.Context, noteID int64) error {
	sess, ok := s.registry.ByNote(noteID)
	if !ok {
		return sessionNotFound(noteID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !s.live(sess) {
		return sessionNotFound(noteID)
	}

	final := sess.text + "\nVoice transcription completed at " + s.now().Format("2006-01-02 15:04:05")
	if err := s.write(ctx, sess, final); err != nil {
		return err
	}
	s.end(ctx, sess, "stopped")
	return nil
}

// Sessions lists the active sessions.
func (s *Service) Sessions() []SessionInfo {
	return s.registry.Snapshot()
}

// Active reports whether noteID has a running session.
func (s *Service) Active(noteID int64) bool {
	_, ok := s.registry.ByNote(noteID)
	return ok
}

// Sweep ends sessions older than maxAge without writing to their notes.
func (s *Service) Sweep(ctx context.Context, maxAge time.Duration) int {
	expired := s.registry.Expired(s.now().Add(-maxAge))
	for _, sess := range expired {
		s.log.Warn().Str("session_id", sess.ID).Int64("note_id", sess.NoteID).
			Dur("age", s.now().Sub(sess.StartedAt)).Msg("voice session expired")
		s.publish(ctx, sess.NoteID, events.TypeEnded, map[string]any{"note_id": sess.NoteID, "reason": "expired"})
	}
	if len(expired) > 0 {
		s.updateGauge()
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx, maxAge)
		}
	}
}

func (s *Service) live(sess *Session) bool {
	cur, ok := s.registry.ByNote(sess.NoteID)
	return ok && cur == sess
}

// write overwrites the note with text and keeps it on the session once stored.
func (s *Service) write(ctx context.Context, sess *Session, text string) error {
	f := sess.fields()
	f["note"] = text
	if err := s.notes.Update(ctx, sess.NoteID, f); err != nil {
		return err
	}
	sess.text = text
	return nil
}

func (s *Service) end(ctx context.Context, sess *Session, reason string) {
	if !s.registry.Remove(sess) {
		return
	}
	s.updateGauge()
	s.publish(ctx, sess.NoteID, events.TypeEnded, map[string]any{"note_id": sess.NoteID, "reason": reason})
	s.log.Info().Str("session_id", sess.ID).Int64("note_id", sess.NoteID).Str("reason", reason).
		Msg("voice session ended")
}

func (s *Service) publish(ctx context.Context, noteID int64, eventType string, data any) {
	if s.events == nil {
		return
	}
	ev, err := events.NewEvent(Topic(noteID), eventType, data)
	if err == nil {
		err = s.events.Publish(ctx, ev)
	}
	if err != nil {
		s.log.Warn().Err(err).Int64("note_id", noteID).Str("event", eventType).Msg("failed to publish voice event")
	}
}

func (s *Service) updateGauge() {
	if s.gauge != nil {
		s.gauge.SetVoiceSessions(s.registry.Len())
	}
}

func (sess *Session) fields() record.Fields {
	return record.Fields{
		"date":     sess.Date,
		"provider": sess.Provider,
		"type":     notes.TypeVoiceTranscription,
		"note":     sess.text,
	}
}

// NotFoundError reports a note without an active session.
type NotFoundError struct {
	NoteID int64
}

func sessionNotFound(noteID int64) error {
	return &NotFoundError{NoteID: noteID}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No active voice session for note %d", e.NoteID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrSessionNotFound || target == record.ErrNotFound
}

func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// TranscriptionError reports a speech-to-text failure to the client.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return "Transcription failed: " + e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

func (e *TranscriptionError) StatusCode() int {
	return http.StatusInternalServerError
}
