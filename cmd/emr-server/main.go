package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pavankad/healthcare-ai-assistant/internal/config"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/clinical"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/immunization"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/medication"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/notes"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/patient"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/scheduling"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/voice"
	"github.com/pavankad/healthcare-ai-assistant/internal/domain/xray"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/auth"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/blobstore"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/db"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/events"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/llm"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/logging"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/middleware"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/pathology"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/record"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/sandbox"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/speech"
	"github.com/pavankad/healthcare-ai-assistant/internal/platform/telemetry"
)

const (
	version = "1.0.0"

	// jsonBodyLimit caps non-upload request bodies.
	jsonBodyLimit = 1 << 20
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emr-server",
		Short: "Electronic Medical Records server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the EMR server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			schema, dir := migrationTarget(cmd, cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	migrationFlags(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			schema, dir := migrationTarget(cmd, cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	migrationFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

// migrationFlags adds --schema and --dir. Unset, they fall back to DB_SCHEMA
// and MIGRATIONS_DIR, the same values serve uses for AUTO_MIGRATE.
func migrationFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Target schema for migrations (default DB_SCHEMA)")
	cmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
}

func migrationTarget(cmd *cobra.Command, cfg *config.Config) (schema, dir string) {
	schema, dir = cfg.DBSchema, cfg.MigrationsDir
	if v, _ := cmd.Flags().GetString("schema"); v != "" {
		schema = v
	}
	if v, _ := cmd.Flags().GetString("dir"); v != "" {
		dir = v
	}
	return schema, dir
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample patients with complete charts",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, _ := cmd.Flags().GetInt("patients")
			seed, _ := cmd.Flags().GetInt64("seed")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			logger, err := logging.New("console", "info")
			if err != nil {
				return err
			}

			var st stores
			if dryRun {
				st = memoryStores()
			} else {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				ctx := context.Background()
				pool, err := openPool(ctx, cfg)
				if err != nil {
					return err
				}
				defer pool.Close()
				st = pgStores(pool)
			}

			svc := newRecordServices(st, logger, nil)
			seeder := sandbox.NewSeeder(sandbox.SeedConfig{PatientCount: patients, Seed: seed}, logger)
			result, err := seeder.Run(cmd.Context(), svc.seedTargets())
			if err != nil {
				return fmt.Errorf("seed failed after %d patient(s): %w", result.Patients, err)
			}

			fmt.Printf("Created %d patient(s) and %d record(s) in %s.\n",
				result.Patients, result.Total()-result.Patients, result.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().Int("patients", sandbox.DefaultSeedConfig().PatientCount, "Number of patients to create")
	cmd.Flags().Int64("seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().Bool("dry-run", false, "Generate into memory without touching the database")
	return cmd
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
	})
}

// stores are the repositories behind every service.
type stores struct {
	patients      patient.Repository
	medications   record.Repository
	conditions    record.Repository
	diagnoses     record.Repository
	notes         record.Repository
	allergies     record.Repository
	immunizations record.Repository
	appointments  record.Repository
}

func pgStores(pool *pgxpool.Pool) stores {
	return stores{
		patients:      patient.NewRepoPG(pool),
		medications:   medication.NewRepoPG(pool),
		conditions:    record.NewRepoPG(pool, clinical.ConditionSchema),
		diagnoses:     record.NewRepoPG(pool, clinical.DiagnosisSchema),
		notes:         notes.NewRepoPG(pool),
		allergies:     record.NewRepoPG(pool, clinical.AllergySchema),
		immunizations: immunization.NewRepoPG(pool),
		appointments:  scheduling.NewRepoPG(pool),
	}
}

func memoryStores() stores {
	patients := patient.NewMemoryRepo()
	repo := func() record.Repository {
		r := record.NewMemoryRepo()
		patients.OnDelete(r.DeletePatient)
		return r
	}
	return stores{
		patients:      patients,
		medications:   repo(),
		conditions:    repo(),
		diagnoses:     repo(),
		notes:         repo(),
		allergies:     repo(),
		immunizations: repo(),
		appointments:  repo(),
	}
}

// recordServices holds the patient service and the seven record services.
type recordServices struct {
	patients      *patient.Service
	medications   *record.Service
	clinical      *clinical.Services
	notes         *record.Service
	immunizations *record.Service
	appointments  *record.Service
}

// newRecordServices builds the services over st. A nil observer leaves them
// unmetered.
func newRecordServices(st stores, logger zerolog.Logger, observer record.Observer) *recordServices {
	s := &recordServices{
		medications:   medication.NewService(st.medications, logger),
		clinical:      clinical.NewServices(st.conditions, st.diagnoses, st.allergies, logger),
		notes:         notes.NewService(st.notes, logger),
		immunizations: immunization.NewService(st.immunizations, logger),
		appointments:  scheduling.NewService(st.appointments, logger),
	}
	s.patients = patient.NewService(st.patients, patient.Sections{
		Medications:   s.medications,
		Conditions:    s.clinical.Conditions,
		Diagnoses:     s.clinical.Diagnoses,
		Notes:         s.notes,
		Allergies:     s.clinical.Allergies,
		Immunizations: s.immunizations,
		Appointments:  s.appointments,
	}, logger)

	if observer != nil {
		s.patients.WithObserver(observer)
		for _, svc := range s.all() {
			svc.WithObserver(observer)
		}
	}
	return s
}

// all returns the record services in chart order.
func (s *recordServices) all() []*record.Service {
	return []*record.Service{
		s.medications, s.clinical.Conditions, s.clinical.Diagnoses, s.notes,
		s.clinical.Allergies, s.immunizations, s.appointments,
	}
}

func (s *recordServices) seedTargets() sandbox.Targets {
	return sandbox.Targets{
		Patients:      s.patients,
		Medications:   s.medications,
		Conditions:    s.clinical.Conditions,
		Diagnoses:     s.clinical.Diagnoses,
		Notes:         s.notes,
		Allergies:     s.clinical.Allergies,
		Immunizations: s.immunizations,
		Appointments:  s.appointments,
	}
}

// app is everything the router needs.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	records   *recordServices
	xray      *xray.Service
	voice     *voice.Service
	hub       *events.Hub
	sessions  *auth.Sessions
	telemetry *telemetry.Provider
	// pool is nil when the app runs without a database.
	pool *pgxpool.Pool
}

func newApp(cfg *config.Config, st stores, blobs blobstore.BlobStore, revocations auth.RevocationStore, logger zerolog.Logger) *app {
	tp := telemetry.NewProvider(telemetry.Config{
		ServiceVersion: version,
		Environment:    cfg.Env,
		MetricsEnabled: cfg.MetricsEnabled,
	})
	records := newRecordServices(st, logger, tp)
	hub := events.NewHub()

	xraySvc := xray.NewService(xray.Deps{
		Patients: records.patients,
		Blobs:    blobs,
		Scorer:   pathology.New(pathology.Config{URL: cfg.XRayModelURL, Timeout: cfg.ExternalTimeout}, tp),
		Interpreter: llm.New(llm.Config{
			BaseURL:     cfg.LLMBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			Temperature: 0.3,
			Timeout:     cfg.ExternalTimeout,
		}, tp),
		Conditions: records.clinical.Conditions,
		Notes:      records.notes,
		Counter:    tp,
	}, logger)

	voiceSvc := voice.NewService(voice.Deps{
		Notes:  records.notes,
		Events: hub,
		Transcriber: speech.New(speech.Config{
			WhisperURL: cfg.WhisperURL,
			BaseURL:    cfg.LLMBaseURL,
			APIKey:     cfg.LLMAPIKey,
			Model:      cfg.STTModel,
			Timeout:    cfg.ExternalTimeout,
		}, tp, logger),
		Blobs: blobs,
		Gauge: tp,
	}, logger)

	sessions := auth.NewSessions(auth.SessionConfig{
		SecretKey: []byte(cfg.SecretKey),
		TTL:       cfg.SessionTTL(),
		Username:  cfg.AuthUsername,
		Password:  cfg.AuthPassword,
		Secure:    cfg.IsProduction(),
	}, revocations)

	return &app{
		cfg:       cfg,
		logger:    logger,
		records:   records,
		xray:      xraySvc,
		voice:     voiceSvc,
		hub:       hub,
		sessions:  sessions,
		telemetry: tp,
	}
}

// router builds the echo instance with the full middleware chain and every
// route mounted.
func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(a.logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     a.cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(jsonBodyLimit, a.cfg.MaxUploadBytes()))
	e.Use(a.telemetry.MetricsMiddleware())
	e.Use(auth.RequireSession(a.sessions, auth.AuthSkipper))
	e.Use(middleware.Audit(a.logger))

	// Infrastructure
	e.GET("/health", a.telemetry.HealthHandler())
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	if a.cfg.MetricsEnabled {
		e.GET("/metrics", a.telemetry.Handler())
	}

	// Login flow and pages
	auth.NewHandler(a.sessions, a.logger).RegisterRoutes(e)

	// JSON API
	api := e.Group("/api")
	patient.NewHandler(a.records.patients).RegisterRoutes(api)
	for _, svc := range a.records.all() {
		record.NewHandler(svc).RegisterRoutes(api)
	}
	notes.NewPollHandler(a.records.notes).RegisterRoutes(api)
	xray.NewHandler(a.xray).RegisterRoutes(api)
	voice.NewHandler(a.voice, a.hub, a.cfg.VoiceHeartbeat).RegisterRoutes(api)

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Logger
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	if cfg.AutoMigrate {
		count, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(ctx, cfg.DBSchema)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to apply migrations")
		}
		logger.Info().Int("applied", count).Msg("migrations up to date")
	}

	// Session revocation
	var revocations auth.RevocationStore
	if cfg.RedisURL != "" {
		rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		revocations = auth.NewRedisRevocationStore(rdb)
		logger.Info().Msg("session revocations stored in redis")
	} else {
		mem := auth.NewMemoryRevocationStore(time.Minute)
		defer mem.Close()
		revocations = mem
	}

	// Uploads
	blobs, err := blobstore.NewDiskStore(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare upload directory")
	}

	a := newApp(cfg, pgStores(pool), blobs, revocations, logger)
	a.pool = pool
	a.telemetry.RegisterPool(pool)
	e := a.router()

	// Background workers
	go a.telemetry.RunSystemCollector(ctx, 15*time.Second)
	go a.voice.RunSweeper(ctx, time.Minute, cfg.VoiceSessionMaxAge)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
