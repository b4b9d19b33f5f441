package medication

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
)

func NewRepoPG(pool *pgxpool.Pool) record.Repository {
	return record.NewRepoPG(pool, Schema)
}

func NewService(repo record.Repository, logger zerolog.Logger) *record.Service {
	return record.NewService(Schema, repo, logger)
}
