package record

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	route := h.svc.schema.Route
	api.GET("/patients/:patient_id/"+route, h.List)
	api.POST("/patients/:patient_id/"+route, h.Create)
	api.GET("/"+route+"/:id", h.Get)
	api.PUT("/"+route+"/:id", h.Update)
	api.DELETE("/"+route+"/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	patientID, err := ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	rows, err := h.svc.List(c.Request().Context(), patientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) Create(c echo.Context) error {
	patientID, err := ParamID(c, "patient_id")
	if err != nil {
		return err
	}
	fields, err := BindFields(c)
	if err != nil {
		return err
	}
	id, err := h.svc.Create(c.Request().Context(), patientID, fields)
	if err != nil {
		return err
	}
	resp := map[string]interface{}{"success": true}
	resp[h.svc.schema.IDKey] = id
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return err
	}
	row, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return err
	}
	fields, err := BindFields(c)
	if err != nil {
		return err
	}
	if err := h.svc.Update(c.Request().Context(), id, fields); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// ParamID parses a positive integer path parameter.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// BindFields decodes a JSON object body. An absent, empty or non-object body
// is rejected with 400 "No data provided".
func BindFields(c echo.Context) (Fields, error) {
	noData := echo.NewHTTPError(http.StatusBadRequest, "No data provided")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil || len(body) == 0 {
		return nil, noData
	}
	var f Fields
	if err := json.Unmarshal(body, &f); err != nil || len(f) == 0 {
		return nil, noData
	}
	return f, nil
}
