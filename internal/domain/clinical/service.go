package clinical

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

// Services bundles the record services of this package.
type Services struct {
	Conditions *record.Service
	Diagnoses  *record.Service
	Allergies  *record.Service
}

// NewServicesPG wires the three record types to PostgreSQL.
func NewServicesPG(pool *pgxpool.Pool, logger zerolog.Logger) *Services {
	return NewServices(
		record.NewRepoPG(pool, ConditionSchema),
		record.NewRepoPG(pool, DiagnosisSchema),
		record.NewRepoPG(pool, AllergySchema),
		logger,
	)
}

func NewServices(conditions, diagnoses, allergies record.Repository, logger zerolog.Logger) *Services {
	return &Services{
		Conditions: record.NewService(ConditionSchema, conditions, logger),
		Diagnoses:  record.NewService(DiagnosisSchema, diagnoses, logger),
		Allergies:  record.NewService(AllergySchema, allergies, logger),
	}
}

// All returns the services in chart order.
func (s *Services) All() []*record.Service {
	return []*record.Service{s.Conditions, s.Diagnoses, s.Allergies}
}
