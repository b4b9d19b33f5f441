package patient

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

const demographicsSheet = "Demographics"

type sheet struct {
	name    string
	columns []string
	rows    []record.Row
}

// Export renders the chart as an .xlsx workbook: one demographics sheet and
// one sheet per record section.
func (s *Service) Export(ctx context.Context, id int64) ([]byte, error) {
	chart, err := s.Chart(ctx, id)
	if err != nil {
		return nil, err
	}

	var sheets []sheet
	add := func(name string, svc *record.Service, rows []record.Row) {
		if svc == nil {
			return
		}
		cols := []string{"id"}
		for _, c := range svc.Schema().Columns {
			cols = append(cols, c.Name)
		}
		sheets = append(sheets, sheet{name: name, columns: append(cols, "created_at"), rows: rows})
	}
	add("Medications", s.sections.Medications, chart.Medications)
	add("Conditions", s.sections.Conditions, chart.Conditions)
	add("Diagnoses", s.sections.Diagnoses, chart.Diagnosis)
	add("Clinical Notes", s.sections.Notes, chart.ClinicalNotes)
	add("Allergies", s.sections.Allergies, chart.Allergies)
	add("Immunizations", s.sections.Immunizations, chart.Immunizations)
	add("Appointments", s.sections.Appointments, chart.Appointments)

	data, err := buildWorkbook(chart.Demographics, sheets)
	if err != nil {
		s.log.Error().Err(err).Int64("patient_id", id).Msg("chart export failed")
		return nil, &record.OperationError{Entity: Schema.Table, Op: "export", Err: err}
	}
	return data, nil
}

func buildWorkbook(p *Patient, sheets []sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", demographicsSheet); err != nil {
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	demographics := [][2]any{
		{"Patient ID", p.ID},
		{"First Name", p.FirstName},
		{"Last Name", p.LastName},
		{"Date of Birth", p.DateOfBirth},
		{"Gender", p.Gender},
		{"Phone", deref(p.Phone)},
		{"Email", deref(p.Email)},
		{"Address", deref(p.Address)},
		{"Emergency Contact", deref(p.EmergencyContact)},
		{"Insurance", deref(p.Insurance)},
	}
	for i, kv := range demographics {
		if err := setRow(f, demographicsSheet, i+1, []any{kv[0], kv[1]}); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(demographicsSheet, "A1", fmt.Sprintf("A%d", len(demographics)), header); err != nil {
		return nil, fmt.Errorf("style demographics: %w", err)
	}
	if err := f.SetColWidth(demographicsSheet, "A", "B", 24); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for _, sh := range sheets {
		if _, err := f.NewSheet(sh.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sh.name, err)
		}
		headers := make([]any, len(sh.columns))
		for i, c := range sh.columns {
			headers[i] = c
		}
		if err := setRow(f, sh.name, 1, headers); err != nil {
			return nil, err
		}
		last, _ := excelize.CoordinatesToCellName(len(sh.columns), 1)
		if err := f.SetCellStyle(sh.name, "A1", last, header); err != nil {
			return nil, fmt.Errorf("style %s header: %w", sh.name, err)
		}
		for i, row := range sh.rows {
			values := make([]any, len(sh.columns))
			for j, c := range sh.columns {
				values[j] = cellValue(row[c])
			}
			if err := setRow(f, sh.name, i+2, values); err != nil {
				return nil, err
			}
		}
		if err := f.SetPanes(sh.name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return nil, fmt.Errorf("freeze %s header: %w", sh.name, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheetName string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheetName, row, err)
	}
	return nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return t
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
