package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Service applies validation and the error policy shared by every record
// type: storage failures surface as OperationError with the cause logged.
type Service struct {
	schema   *Schema
	repo     Repository
	log      zerolog.Logger
	observer Observer
}

// Observer is told the outcome of every operation.
type Observer interface {
	RecordOperation(entity, op string, err error)
}

func NewService(schema *Schema, repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		schema: schema,
		repo:   repo,
		log:    logger.With().Str("entity", schema.Table).Logger(),
	}
}

// WithObserver attaches o and returns s.
func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

func (s *Service) Schema() *Schema {
	return s.schema
}

func (s *Service) List(ctx context.Context, patientID int64) ([]Row, error) {
	rows, err := s.repo.List(ctx, patientID)
	s.observe("list", err)
	if err != nil {
		return nil, s.fail("retrieve", err, patientID)
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Row, error) {
	row, err := s.repo.Get(ctx, id)
	s.observe("get", err)
	if err != nil {
		return nil, s.fail("retrieve", err, id)
	}
	return row, nil
}

func (s *Service) Create(ctx context.Context, patientID int64, f Fields) (int64, error) {
	vals, err := s.schema.Normalize(f)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, patientID, vals)
	s.observe("create", err)
	if err != nil {
		return 0, s.fail("create", err, patientID)
	}
	s.log.Info().Int64("id", id).Int64("patient_id", patientID).Msg("record created")
	return id, nil
}

func (s *Service) Update(ctx context.Context, id int64, f Fields) error {
	vals, err := s.schema.Normalize(f)
	if err != nil {
		return err
	}
	err = s.repo.Update(ctx, id, vals)
	s.observe("update", err)
	if err != nil {
		return s.fail("update", err, id)
	}
	s.log.Info().Int64("id", id).Msg("record updated")
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.Delete(ctx, id)
	s.observe("delete", err)
	if err != nil {
		return s.fail("delete", err, id)
	}
	s.log.Info().Int64("id", id).Msg("record deleted")
	return nil
}

// fail passes ErrNotFound through and wraps everything else.
func (s *Service) fail(op string, err error, id int64) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %d: %w", s.schema.Table, id, ErrNotFound)
	}
	s.log.Error().Err(err).Str("op", op).Int64("key", id).Msg("record operation failed")
	return &OperationError{Entity: s.schema.Table, Op: op, Err: err}
}

func (s *Service) observe(op string, err error) {
	if s.observer != nil {
		s.observer.RecordOperation(s.schema.Table, op, err)
	}
}
