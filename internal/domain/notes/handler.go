package notes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// PollHandler serves the note list in the envelope the voice page polls.
type PollHandler struct {
	svc *record.Service
}

func NewPollHandler(svc *record.Service) *PollHandler {
	return &PollHandler{svc: svc}
}

func (h *PollHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/patient/:patient_id/clinical_notes", h.List)
}

// List returns {"success": true, "data": [...]}.
func (h *PollHandler) List(c echo.Context) error {
	patientID, err := record.ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	rows, err := h.svc.List(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "data": rows})
}
