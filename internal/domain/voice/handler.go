package voice

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/events"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

type Handler struct {
	svc       *Service
	hub       *events.Hub
	heartbeat time.Duration
}

func NewHandler(svc *Service, hub *events.Hub, heartbeat time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Handler{svc: svc, hub: hub, heartbeat: heartbeat}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/voice")
	g.POST("/start-recording", h.Start)
	g.POST("/add-transcription", h.AddTranscription)
	g.POST("/transcribe-chunk", h.TranscribeChunk)
	g.POST("/stop-recording", h.Stop)
	g.GET("/sessions", h.Sessions)
	g.GET("/events/:note_id", h.Events)
	g.GET("/ws/:note_id", h.WebSocket)
}

func (h *Handler) Start(c echo.Context) error {
	f, err := record.BindFields(c)
	if err != nil {
		return err
	}
	patientID, err := intField(f, "patient_id")
	if err != nil {
		return err
	}
	provider, _ := f["provider"].(string)

	sess, err := h.svc.Start(c.Request().Context(), patientID, provider)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"success":    true,
		"session_id": sess.ID,
		"note_id":    sess.NoteID,
	})
}

func (h *Handler) AddTranscription(c echo.Context) error {
	f, err := record.BindFields(c)
	if err != nil {
		return err
	}
	noteID, err := intField(f, "note_id")
	if err != nil {
		return err
	}
	text, _ := f["transcription"].(string)
	if err := h.svc.AddTranscription(c.Request().Context(), noteID, text); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// TranscribeChunk accepts multipart "audio" plus a "note_id" form field.
func (h *Handler) TranscribeChunk(c echo.Context) error {
	noteID, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("note_id")), 10, 64)
	if err != nil || noteID <= 0 {
		return &record.ValidationError{Field: "note_id"}
	}
	fh, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No audio file provided")
	}
	file, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded audio")
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	text, err := h.svc.TranscribeChunk(c.Request().Context(), noteID, fh.Filename, audio)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "transcription": text})
}

func (h *Handler) Stop(c echo.Context) error {
	f, err := record.BindFields(c)
	if err != nil {
		return err
	}
	noteID, err := intField(f, "note_id")
	if err != nil {
		return err
	}
	if err := h.svc.Stop(c.Request().Context(), noteID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Sessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"success": true, "sessions": h.svc.Sessions()})
}

// Events streams the note's events as Server-Sent Events.
func (h *Handler) Events(c echo.Context) error {
	noteID, err := record.ParamID(c, "note_id")
	if err != nil {
		return err
	}
	return events.ServeSSE(c, h.hub, Topic(noteID), h.heartbeat, h.beat(noteID))
}

// WebSocket streams the same events over a WebSocket connection.
func (h *Handler) WebSocket(c echo.Context) error {
	noteID, err := record.ParamID(c, "note_id")
	if err != nil {
		return err
	}
	return events.ServeWS(c, h.hub, Topic(noteID), h.heartbeat, h.beat(noteID))
}

func (h *Handler) beat(noteID int64) events.Beat {
	topic := Topic(noteID)
	return func() (events.Event, bool) {
		if h.svc.Active(noteID) {
			ev, _ := events.NewEvent(topic, events.TypeHeartbeat, map[string]any{"note_id": noteID, "active": true})
			return ev, true
		}
		ev, _ := events.NewEvent(topic, events.TypeEnded, map[string]any{"note_id": noteID, "reason": "inactive"})
		return ev, false
	}
}

// intField reads a positive integer sent either as a JSON number or a string.
func intField(f record.Fields, name string) (int64, error) {
	var id int64
	switch v := f[name].(type) {
	case nil:
		return 0, &record.ValidationError{Field: name}
	case float64:
		if v != float64(int64(v)) {
			return 0, &record.ValidationError{Field: name, Reason: "expected an integer"}
		}
		id = int64(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, &record.ValidationError{Field: name, Reason: "expected an integer"}
		}
		id = n
	default:
		return 0, &record.ValidationError{Field: name, Reason: "expected an integer"}
	}
	if id <= 0 {
		return 0, &record.ValidationError{Field: name, Reason: "expected a positive integer"}
	}
	return id, nil
}
