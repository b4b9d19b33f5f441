// Package patient owns patient demographics, name search and the chart view
// that gathers every record type for one patient.
package patient

import (
	"time"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// Schema validates patient bodies with the same rules as the record tables.
var Schema = &record.Schema{
	Table: "patients",
	Route: "patients",
	IDKey: "patient_id",
	Columns: []record.Column{
		{Name: "first_name", Required: true},
		{Name: "last_name", Required: true},
		{Name: "date_of_birth", Kind: record.Date, Required: true},
		{Name: "gender", Required: true},
		{Name: "phone"},
		{Name: "email"},
		{Name: "address"},
		{Name: "emergency_contact"},
		{Name: "insurance"},
	},
}

type Patient struct {
	ID               int64     `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	DateOfBirth      string    `json:"date_of_birth"`
	Gender           string    `json:"gender"`
	Phone            *string   `json:"phone"`
	Email            *string   `json:"email"`
	Address          *string   `json:"address"`
	EmergencyContact *string   `json:"emergency_contact"`
	Insurance        *string   `json:"insurance"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Name returns "First Last".
func (p *Patient) Name() string {
	return p.FirstName + " " + p.LastName
}

// Age returns the age in whole years on the given day, or -1 if the date of
// birth cannot be parsed.
func (p *Patient) Age(on time.Time) int {
	dob, err := time.Parse("2006-01-02", p.DateOfBirth)
	if err != nil {
		return -1
	}
	years := on.Year() - dob.Year()
	if on.Month() < dob.Month() || (on.Month() == dob.Month() && on.Day() < dob.Day()) {
		years--
	}
	return years
}

// FromFields validates a request body and builds the patient it describes.
func FromFields(f record.Fields) (*Patient, error) {
	vals, err := Schema.Normalize(f)
	if err != nil {
		return nil, err
	}
	return &Patient{
		FirstName:        *vals["first_name"],
		LastName:         *vals["last_name"],
		DateOfBirth:      *vals["date_of_birth"],
		Gender:           *vals["gender"],
		Phone:            vals["phone"],
		Email:            vals["email"],
		Address:          vals["address"],
		EmergencyContact: vals["emergency_contact"],
		Insurance:        vals["insurance"],
	}, nil
}

// SearchResult is the projection returned by name search.
type SearchResult struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	Gender string `json:"gender"`
}

// Chart is a patient with every record section attached.
type Chart struct {
	ID            int64        `json:"id"`
	Name          string       `json:"name"`
	Demographics  *Patient     `json:"demographics"`
	Medications   []record.Row `json:"medications"`
	Conditions    []record.Row `json:"conditions"`
	Diagnosis     []record.Row `json:"diagnosis"`
	ClinicalNotes []record.Row `json:"clinical_notes"`
	Allergies     []record.Row `json:"allergies"`
	Immunizations []record.Row `json:"immunizations"`
	Appointments  []record.Row `json:"appointments"`
}
