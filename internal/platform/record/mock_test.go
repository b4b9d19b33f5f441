package record

var testSchema = &Schema{
	Table: "medications",
	Route: "medications",
	IDKey: "medication_id",
	Columns: []Column{
		{Name: "name", Required: true},
		{Name: "dosage", Required: true},
		{Name: "start_date", Kind: Date, Required: true},
		{Name: "end_date", Kind: Date},
		{Name: "status", Default: "Active"},
	},
}

type mockRepo = MemoryRepo

var (
	newMockRepo = NewMemoryRepo
	errStorage  = ErrInjected
)
