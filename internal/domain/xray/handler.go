package xray

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:patient_id/xray", h.Analyze)
}

// Analyze accepts a multipart upload with the image in the "image" field.
func (h *Handler) Analyze(c echo.Context) error {
	patientID, err := record.ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image file provided")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not read uploaded image")
	}
	defer f.Close()
	image, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	res, err := h.svc.Analyze(c.Request().Context(), Request{
		PatientID:   patientID,
		FileName:    fh.Filename,
		Image:       image,
		Provider:    c.FormValue("provider"),
		PatientInfo: c.FormValue("patient_info"),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"success":       true,
		"note_id":       res.NoteID,
		"condition_ids": res.ConditionIDs,
		"findings":      res.Findings,
		"scores":        res.Scores,
	})
}
