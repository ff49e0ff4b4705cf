package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medscreen/medscreen/internal/config"
	"github.com/medscreen/medscreen/internal/domain/checker"
	"github.com/medscreen/medscreen/internal/domain/history"
	"github.com/medscreen/medscreen/internal/domain/predict"
	"github.com/medscreen/medscreen/internal/knowledge"
	"github.com/medscreen/medscreen/internal/platform/db"
	"github.com/medscreen/medscreen/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medscreen-server",
		Short: "Symptom screening and triage API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(kbCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the screening API server",
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return fmt.Errorf("DATABASE_URL is not set; nothing to migrate")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return fmt.Errorf("DATABASE_URL is not set")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the symptom knowledge base",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			kb, err := loadKB(dir)
			if err != nil {
				return fmt.Errorf("knowledge base is invalid: %w", err)
			}

			fmt.Printf("Knowledge base OK: %d concepts, %d aliases, %d diseases, %d emergency rules.\n",
				kb.ConceptCount(), kb.AliasCount(), kb.DiseaseCount(), len(kb.EmergencyRules()))
			return nil
		},
	}
	validateCmd.Flags().String("dir", "", "Path to knowledge base overrides (empty for built-in)")
	cmd.AddCommand(validateCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print per-disease symptom coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			kb, err := loadKB(dir)
			if err != nil {
				return err
			}

			fmt.Printf("%-25s %-30s %-10s %s\n", "DISEASE", "NAME", "SYMPTOMS", "URGENCY THRESHOLD")
			for _, d := range kb.Diseases() {
				fmt.Printf("%-25s %-30s %-10d %.2f\n", d.ID, d.Name, len(d.Symptoms), d.UrgencyThreshold)
			}
			return nil
		},
	}
	statsCmd.Flags().String("dir", "", "Path to knowledge base overrides (empty for built-in)")
	cmd.AddCommand(statsCmd)

	return cmd
}

func loadKB(dir string) (*knowledge.Base, error) {
	if dir == "" {
		return knowledge.LoadBuiltin()
	}
	return knowledge.Load(dir)
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	// Knowledge base. The server is useless without it, so failures are fatal.
	kb, err := loadKB(cfg.KBDir)
	if err != nil {
		logger.Fatal().Err(err).Str("kb_dir", cfg.KBDir).Msg("failed to load knowledge base")
	}
	logger.Info().
		Int("concepts", kb.ConceptCount()).
		Int("diseases", kb.DiseaseCount()).
		Int("emergency_rules", len(kb.EmergencyRules())).
		Msg("knowledge base loaded")

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute

	// Session store: Redis when configured, in-memory otherwise.
	var sessions checker.SessionStore
	if cfg.RedisURL != "" {
		store, err := checker.NewRedisStore(ctx, cfg.RedisURL, sessionTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		sessions = store
		logger.Info().Msg("using redis session store")
	} else {
		sessions = checker.NewMemoryStore(sessionTTL)
		logger.Info().Msg("using in-memory session store")
	}
	defer sessions.Close()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))

	// API group
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Symptom checker domain
	checkerSvc := checker.NewService(kb, sessions, checker.DefaultTunables(), logger)
	checkerHandler := checker.NewHandler(checkerSvc)
	checkerHandler.RegisterRoutes(apiV1)

	// Prediction history domain (requires a database)
	var recorder predict.Recorder
	if cfg.HistoryEnabled() {
		dbPool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer dbPool.Close()
		logger.Info().Msg("connected to database")

		histRepo := history.NewRepoPG(dbPool)
		histSvc := history.NewService(histRepo, logger)
		histHandler := history.NewHandler(histSvc)
		histHandler.RegisterRoutes(apiV1)
		recorder = history.NewRecorder(histSvc)

		// Health check reports pool stats when a database is attached
		e.GET("/health", db.HealthHandler(dbPool))
	} else {
		logger.Warn().Msg("DATABASE_URL not set; prediction history is disabled")
		e.GET("/health", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"status":   "ok",
				"version":  "0.1.0",
				"concepts": kb.ConceptCount(),
				"diseases": kb.DiseaseCount(),
			})
		})
	}

	// Model prediction proxy domain (requires a model service)
	var predictor predict.Predictor
	if cfg.ModelServiceURL != "" {
		predictor = predict.NewHTTPPredictor(cfg.ModelServiceURL)
		logger.Info().Str("url", cfg.ModelServiceURL).Msg("model service configured")
	} else {
		logger.Warn().Msg("MODEL_SERVICE_URL not set; model predictions will return 503")
	}
	predictSvc := predict.NewService(kb, predictor, recorder, logger)
	predictHandler := predict.NewHandler(predictSvc)
	predictHandler.RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()
	logger.Info().Str("port", cfg.Port).Bool("tls", cfg.TLSEnabled).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}
