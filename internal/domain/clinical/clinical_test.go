package clinical

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

func newTestServices() *Services {
	return NewServices(record.NewMemoryRepo(), record.NewMemoryRepo(), record.NewMemoryRepo(), zerolog.Nop())
}

func TestConditionSchema_DefaultStatus(t *testing.T) {
	vals, err := ConditionSchema.Normalize(record.Fields{"name": "Asthma", "date_diagnosed": "2023-05-02"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *vals["status"] != "Active" {
		t.Errorf("expected Active, got %s", *vals["status"])
	}
	if vals["icd_code"] != nil || vals["severity"] != nil {
		t.Error("expected optional columns to be NULL")
	}
}

func TestSchemas_Required(t *testing.T) {
	tests := []struct {
		schema *record.Schema
		fields record.Fields
		want   string
	}{
		{ConditionSchema, record.Fields{"name": "Asthma"}, "date_diagnosed"},
		{DiagnosisSchema, record.Fields{"date": "2024-01-01", "provider": "Dr. Kim"}, "primary_diagnosis"},
		{AllergySchema, record.Fields{"allergen": "Penicillin", "reaction": "Rash", "severity": "Moderate"}, "date_identified"},
	}
	for _, tt := range tests {
		_, err := tt.schema.Normalize(tt.fields)
		var ve *record.ValidationError
		if !errors.As(err, &ve) || ve.Field != tt.want {
			t.Errorf("%s: expected missing %s, got %v", tt.schema.Table, tt.want, err)
		}
	}
}

func TestDiagnosisSchema_RejectsBadDate(t *testing.T) {
	_, err := DiagnosisSchema.Normalize(record.Fields{
		"date": "03/01/2024", "primary_diagnosis": "Hypertension", "provider": "Dr. Kim",
	})
	var ve *record.ValidationError
	if !errors.As(err, &ve) || ve.Field != "date" {
		t.Errorf("expected date validation error, got %v", err)
	}
}

func TestServices_AllergyLifecycle(t *testing.T) {
	svcs := newTestServices()
	ctx := context.Background()

	id, err := svcs.Allergies.Create(ctx, 4, record.Fields{
		"allergen": "Penicillin", "reaction": "Hives", "severity": "Severe", "date_identified": "2019-08-14",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	row, err := svcs.Allergies.Get(ctx, id)
	if err != nil || row["allergen"] != "Penicillin" || row["patient_id"] != int64(4) {
		t.Fatalf("unexpected row %v (%v)", row, err)
	}

	if err := svcs.Allergies.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svcs.Allergies.Get(ctx, id); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHandler_UpdateUnknownCondition(t *testing.T) {
	h := record.NewHandler(newTestServices().Conditions)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/api/conditions/99", strings.NewReader(`{"name":"Asthma","date_diagnosed":"2023-05-02"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("99")

	if err := h.Update(c); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServices_AllInChartOrder(t *testing.T) {
	all := newTestServices().All()
	want := []string{"conditions", "diagnoses", "allergies"}
	for i, svc := range all {
		if svc.Schema().Table != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], svc.Schema().Table)
		}
	}
}
