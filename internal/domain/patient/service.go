package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// MinSearchLength is the shortest query, after trimming, that is searched.
const MinSearchLength = 2

// Sections are the record services a chart is assembled from. A nil service
// yields an empty section.
type Sections struct {
	Medications   *record.Service
	Conditions    *record.Service
	Diagnoses     *record.Service
	Notes         *record.Service
	Allergies     *record.Service
	Immunizations *record.Service
	Appointments  *record.Service
}

type Service struct {
	repo     Repository
	sections Sections
	log      zerolog.Logger
	observer record.Observer
}

func NewService(repo Repository, sections Sections, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		sections: sections,
		log:      logger.With().Str("entity", Schema.Table).Logger(),
	}
}

// WithObserver attaches o and returns s.
func (s *Service) WithObserver(o record.Observer) *Service {
	s.observer = o
	return s
}

func (s *Service) Create(ctx context.Context, f record.Fields) (int64, error) {
	p, err := FromFields(f)
	if err != nil {
		return 0, err
	}
	err = s.repo.Create(ctx, p)
	s.observe("create", err)
	if err != nil {
		return 0, s.fail("create", err, 0)
	}
	s.log.Info().Int64("patient_id", p.ID).Msg("patient created")
	return p.ID, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.repo.Get(ctx, id)
	s.observe("get", err)
	if err != nil {
		return nil, s.fail("retrieve", err, id)
	}
	return p, nil
}

// UpdateDemographics overwrites every demographic column of the patient.
func (s *Service) UpdateDemographics(ctx context.Context, id int64, f record.Fields) error {
	p, err := FromFields(f)
	if err != nil {
		return err
	}
	p.ID = id
	err = s.repo.Update(ctx, p)
	s.observe("update", err)
	if err != nil {
		return s.fail("update", err, id)
	}
	s.log.Info().Int64("patient_id", id).Msg("patient demographics updated")
	return nil
}

// Delete removes the patient together with all of their records.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	s.observe("delete", err)
	if err != nil {
		return s.fail("delete", err, id)
	}
	s.log.Info().Int64("patient_id", id).Msg("patient deleted")
	return nil
}

// Search finds patients whose first or last name contains q, ignoring case.
// Queries shorter than MinSearchLength return an empty result.
func (s *Service) Search(ctx context.Context, q string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinSearchLength {
		return []SearchResult{}, nil
	}
	results, err := s.repo.Search(ctx, "%"+EscapeLike(strings.ToLower(q))+"%")
	s.observe("search", err)
	if err != nil {
		return nil, s.fail("search", err, 0)
	}
	return results, nil
}

// Chart loads the patient and every record section.
func (s *Service) Chart(ctx context.Context, id int64) (*Chart, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chart := &Chart{ID: p.ID, Name: p.Name(), Demographics: p}

	sections := []struct {
		svc  *record.Service
		dest *[]record.Row
	}{
		{s.sections.Medications, &chart.Medications},
		{s.sections.Conditions, &chart.Conditions},
		{s.sections.Diagnoses, &chart.Diagnosis},
		{s.sections.Notes, &chart.ClinicalNotes},
		{s.sections.Allergies, &chart.Allergies},
		{s.sections.Immunizations, &chart.Immunizations},
		{s.sections.Appointments, &chart.Appointments},
	}
	for _, sec := range sections {
		if sec.svc == nil {
			*sec.dest = []record.Row{}
			continue
		}
		rows, err := sec.svc.List(ctx, id)
		if err != nil {
			return nil, err
		}
		*sec.dest = rows
	}
	return chart, nil
}

// EscapeLike escapes the LIKE metacharacters %, _ and the escape character
// itself so q matches literally.
func EscapeLike(q string) string {
	return likeEscaper.Replace(q)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Service) fail(op string, err error, id int64) error {
	if errors.Is(err, record.ErrNotFound) {
		return fmt.Errorf("patient %d: %w", id, record.ErrNotFound)
	}
	s.log.Error().Err(err).Str("op", op).Int64("patient_id", id).Msg("patient operation failed")
	return &record.OperationError{Entity: Schema.Table, Op: op, Err: err}
}

func (s *Service) observe(op string, err error) {
	if s.observer != nil {
		s.observer.RecordOperation(Schema.Table, op, err)
	}
}
