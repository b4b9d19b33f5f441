package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthBudget = 5 * time.Second

// Pool describes connection usage on /health/db.
type Pool struct {
	Open         int32  `json:"open"`
	Idle         int32  `json:"idle"`
	InUse        int32  `json:"in_use"`
	Max          int32  `json:"max"`
	Acquisitions int64  `json:"acquisitions"`
	WaitedFor    string `json:"waited_for"`
}

// DBHealth is the /health/db body.
type DBHealth struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	// Schema is "migrated" once the patients table is visible on the
	// connection's search_path, "pending" before that.
	Schema string `json:"schema,omitempty"`
	Error  string `json:"error,omitempty"`
	Pool   Pool   `json:"pool"`
}

// probe is what the handler needs from the pool.
type probe struct {
	ping     func(ctx context.Context) error
	migrated func(ctx context.Context) (bool, error)
	usage    func() Pool
}

func poolProbe(pool *pgxpool.Pool) probe {
	return probe{
		ping: pool.Ping,
		migrated: func(ctx context.Context) (bool, error) {
			var ok bool
			err := pool.QueryRow(ctx, `SELECT to_regclass('patients') IS NOT NULL`).Scan(&ok)
			return ok, err
		},
		usage: func() Pool {
			st := pool.Stat()
			return Pool{
				Open:         st.TotalConns(),
				Idle:         st.IdleConns(),
				InUse:        st.AcquiredConns(),
				Max:          st.MaxConns(),
				Acquisitions: st.AcquireCount(),
				WaitedFor:    st.AcquireDuration().String(),
			}
		},
	}
}

// HealthHandler answers 200 when the database is reachable and the EMR tables
// exist, and 503 otherwise.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return poolProbe(pool).handler()
}

func (p probe) check(ctx context.Context) (int, DBHealth) {
	ctx, cancel := context.WithTimeout(ctx, healthBudget)
	defer cancel()

	h := DBHealth{Status: "unhealthy", Database: "disconnected", Pool: p.usage()}
	if err := p.ping(ctx); err != nil {
		h.Error = err.Error()
		return http.StatusServiceUnavailable, h
	}
	h.Database = "connected"

	ok, err := p.migrated(ctx)
	switch {
	case err != nil:
		h.Error = err.Error()
		return http.StatusServiceUnavailable, h
	case !ok:
		h.Schema = "pending"
		h.Error = "migrations have not been applied"
		return http.StatusServiceUnavailable, h
	}
	h.Schema = "migrated"
	h.Status = "healthy"
	return http.StatusOK, h
}

func (p probe) handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		code, h := p.check(c.Request().Context())
		return c.JSON(code, h)
	}
}
