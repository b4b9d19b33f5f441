// Package immunization records vaccines given to a patient.
package immunization

import "github.com/pavankad/healthcare-ai-assistant/internal/platform/record"

var Schema = &record.Schema{
	Table: "immunizations",
	Route: "immunizations",
	IDKey: "immunization_id",
	Columns: []record.Column{
		{Name: "vaccine", Required: true},
		{Name: "date_administered", Kind: record.Date, Required: true},
		{Name: "provider", Required: true},
		{Name: "lot_number"},
	},
}
