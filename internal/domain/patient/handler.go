package patient

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/search", h.Search)
	api.POST("/patients", h.Create)
	api.GET("/patients/:patient_id", h.Chart)
	api.PUT("/patients/:patient_id/demographics", h.UpdateDemographics)
	api.DELETE("/patients/:patient_id", h.Delete)
	api.GET("/patients/:patient_id/export.xlsx", h.Export)
}

func (h *Handler) Search(c echo.Context) error {
	results, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) Create(c echo.Context) error {
	fields, err := record.BindFields(c)
	if err != nil {
		return err
	}
	id, err := h.svc.Create(c.Request().Context(), fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"success": true, "patient_id": id})
}

func (h *Handler) Chart(c echo.Context) error {
	id, err := record.ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	chart, err := h.svc.Chart(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chart)
}

func (h *Handler) UpdateDemographics(c echo.Context) error {
	id, err := record.ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	fields, err := record.BindFields(c)
	if err != nil {
		return err
	}
	if err := h.svc.UpdateDemographics(c.Request().Context(), id, fields); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := record.ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Export(c echo.Context) error {
	id, err := record.ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	data, err := h.svc.Export(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=patient-%d-chart.xlsx", id))
	return c.Blob(http.StatusOK, xlsxMIME, data)
}
