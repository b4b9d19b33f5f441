package record

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	repo := newMockRepo()
	h := NewHandler(NewService(testSchema, repo, zerolog.Nop()))
	return h, repo, echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_Create(t *testing.T) {
	h, _, e := newTestHandler()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Lisinopril","dosage":"10mg","start_date":"2024-01-15"}`), rec)
	c.SetParamNames("patient_id")
	c.SetParamValues("1")

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	if body["medication_id"] != float64(1) {
		t.Errorf("expected medication_id 1, got %v", body["medication_id"])
	}
}

func TestHandler_Create_NoData(t *testing.T) {
	for _, body := range []string{"", "{}", "not json", "[1,2]"} {
		h, _, e := newTestHandler()
		c := e.NewContext(jsonRequest(http.MethodPost, body), httptest.NewRecorder())
		c.SetParamNames("patient_id")
		c.SetParamValues("1")

		err := h.Create(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest || he.Message != "No data provided" {
			t.Errorf("body %q: expected 400 No data provided, got %v", body, err)
		}
	}
}

func TestHandler_Create_MissingField(t *testing.T) {
	h, repo, e := newTestHandler()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"name":"Lisinopril"}`), httptest.NewRecorder())
	c.SetParamNames("patient_id")
	c.SetParamValues("1")

	err := h.Create(c)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "dosage" {
		t.Fatalf("expected missing dosage, got %v", err)
	}
	if len(repo.rows) != 0 {
		t.Error("expected nothing inserted")
	}
}

func TestHandler_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	for _, id := range []string{"abc", "0", "-3"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(id)

		err := h.Get(c)
		var he *echo.HTTPError
		if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
			t.Errorf("id %q: expected 400, got %v", id, err)
		}
	}
}

func TestHandler_GetUpdateDelete(t *testing.T) {
	h, repo, e := newTestHandler()
	id, _ := h.svc.Create(context.Background(), 1, validMedication)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Get(c); err != nil {
		t.Fatalf("Get: %v", err)
	}
	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["name"] != "Lisinopril" {
		t.Errorf("expected name Lisinopril, got %v", got["name"])
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPut, `{"name":"Lisinopril","dosage":"40mg","start_date":"2024-01-15"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if repo.rows[id]["dosage"] != "40mg" {
		t.Errorf("expected dosage 40mg, got %v", repo.rows[id]["dosage"])
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec.Code != http.StatusOK || len(repo.rows) != 0 {
		t.Errorf("expected row deleted with 200, got %d and %d rows", rec.Code, len(repo.rows))
	}

	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.Delete(c); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, _, e := newTestHandler()
	h.RegisterRoutes(e.Group("/api"))

	want := map[string]bool{
		"GET /api/patients/:patient_id/medications":  false,
		"POST /api/patients/:patient_id/medications": false,
		"GET /api/medications/:id":                   false,
		"PUT /api/medications/:id":                   false,
		"DELETE /api/medications/:id":                false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("route %s not registered", k)
		}
	}
}
