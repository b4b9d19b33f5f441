// Package clinical holds the problem-list records of a chart: conditions,
// diagnoses and allergies.
package clinical

import "github.com/pavankad/healthcare-ai-assistant/internal/platform/record"

var ConditionSchema = &record.Schema{
	Table: "conditions",
	Route: "conditions",
	IDKey: "condition_id",
	Columns: []record.Column{
		{Name: "name", Required: true},
		{Name: "icd_code"},
		{Name: "date_diagnosed", Kind: record.Date, Required: true},
		{Name: "status", Default: "Active"},
		{Name: "severity"},
	},
}

var DiagnosisSchema = &record.Schema{
	Table: "diagnoses",
	Route: "diagnoses",
	IDKey: "diagnosis_id",
	Columns: []record.Column{
		{Name: "date", Kind: record.Date, Required: true},
		{Name: "primary_diagnosis", Required: true},
		{Name: "secondary_diagnosis"},
		{Name: "provider", Required: true},
		{Name: "notes"},
	},
}

var AllergySchema = &record.Schema{
	Table: "allergies",
	Route: "allergies",
	IDKey: "allergy_id",
	Columns: []record.Column{
		{Name: "allergen", Required: true},
		{Name: "reaction", Required: true},
		{Name: "severity", Required: true},
		{Name: "date_identified", Kind: record.Date, Required: true},
	},
}

// Severity grades used for conditions created from imaging findings.
const (
	SeverityMild     = "Mild"
	SeverityModerate = "Moderate"
	SeveritySevere   = "Severe"
)
