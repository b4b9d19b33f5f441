// Package medication manages a patient's medication list.
package medication

import "github.com/pavankad/healthcare-ai-assistant/internal/platform/record"

// Schema describes the medications table.
var Schema = &record.Schema{
	Table: "medications",
	Route: "medications",
	IDKey: "medication_id",
	Columns: []record.Column{
		{Name: "name", Required: true},
		{Name: "dosage", Required: true},
		{Name: "frequency", Required: true},
		{Name: "start_date", Kind: record.Date, Required: true},
		{Name: "end_date", Kind: record.Date},
		{Name: "prescribing_doctor", Required: true},
		{Name: "status", Default: "Active"},
	},
}
