package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind selects how a column is cast on the way in and formatted on the way out.
type Kind int

const (
	Text Kind = iota
	// Date columns are exchanged as YYYY-MM-DD.
	Date
	// Time columns accept HH:MM or HH:MM:SS and are returned as HH:MM:SS.
	Time
)

// Column describes one writable column of a record table.
type Column struct {
	Name     string
	Kind     Kind
	Required bool
	// Default is stored when the field is absent or blank.
	Default string
}

// Schema parameterizes the generic repository, service and handler for one
// record table. Every record table belongs to a patient through patient_id.
type Schema struct {
	// Table is the SQL table name; it also names the entity in error messages.
	Table string
	// Route is the URL segment, e.g. "clinical-notes".
	Route string
	// IDKey is the JSON key that carries the new id in a create response.
	IDKey   string
	Columns []Column
}

// Fields is a decoded JSON request body.
type Fields map[string]any

// Row is a stored record as returned to clients.
type Row map[string]any

// Values holds normalized column values keyed by column name. A nil entry is
// stored as NULL.
type Values map[string]*string

// ID returns the row id, or 0 when absent.
func (r Row) ID() int64 {
	id, _ := r["id"].(int64)
	return id
}

// String returns a text column of the row, or "" when it is NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}

// Normalize checks required fields and converts fields into column values.
// Blank optional fields become NULL unless the column has a default.
func (s *Schema) Normalize(f Fields) (Values, error) {
	vals := make(Values, len(s.Columns))
	for _, col := range s.Columns {
		raw, present := stringify(f[col.Name])
		if !present {
			if col.Required {
				return nil, &ValidationError{Field: col.Name}
			}
			if col.Default != "" {
				d := col.Default
				vals[col.Name] = &d
			} else {
				vals[col.Name] = nil
			}
			continue
		}

		switch col.Kind {
		case Date:
			raw = strings.TrimSpace(raw)
			if _, err := time.Parse("2006-01-02", raw); err != nil {
				return nil, &ValidationError{Field: col.Name, Reason: "expected YYYY-MM-DD"}
			}
		case Time:
			raw = strings.TrimSpace(raw)
			if !validTime(raw) {
				return nil, &ValidationError{Field: col.Name, Reason: "expected HH:MM or HH:MM:SS"}
			}
		}
		vals[col.Name] = &raw
	}
	return vals, nil
}

func validTime(s string) bool {
	if _, err := time.Parse("15:04:05", s); err == nil {
		return true
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// stringify turns a decoded JSON value into column text. Missing, null and
// whitespace-only values report false; text is otherwise kept as sent.
func stringify(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	return s, strings.TrimSpace(s) != ""
}

func (s *Schema) columnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
