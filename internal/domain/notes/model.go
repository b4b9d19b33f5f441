// Package notes manages free-text clinical notes, including the notes written
// by the X-ray and voice pipelines.
package notes

import "github.com/pavankad/healthcare-ai-assistant/internal/platform/record"

var Schema = &record.Schema{
	Table: "clinical_notes",
	Route: "clinical-notes",
	IDKey: "note_id",
	Columns: []record.Column{
		{Name: "date", Kind: record.Date, Required: true},
		{Name: "provider", Required: true},
		{Name: "type", Required: true},
		{Name: "note", Required: true},
	},
}

// Note types written by the server itself.
const (
	TypeVoiceTranscription = "Voice Transcription"
	TypeXRayAnalysis       = "X-ray Analysis"
)
