// Package scheduling manages patient appointments.
package scheduling

import "github.com/pavankad/healthcare-ai-assistant/internal/platform/record"

// StatusScheduled is stored when an appointment is created without a status.
const StatusScheduled = "Scheduled"

var Schema = &record.Schema{
	Table: "appointments",
	Route: "appointments",
	IDKey: "appointment_id",
	Columns: []record.Column{
		{Name: "date", Kind: record.Date, Required: true},
		{Name: "time", Kind: record.Time, Required: true},
		{Name: "provider", Required: true},
		{Name: "type", Required: true},
		{Name: "status", Default: StatusScheduled},
		{Name: "notes"},
	},
}
