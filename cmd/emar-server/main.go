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

	"github.com/leanifi/emar/internal/config"
	"github.com/leanifi/emar/internal/domain/audit"
	"github.com/leanifi/emar/internal/domain/dose"
	"github.com/leanifi/emar/internal/domain/user"
	"github.com/leanifi/emar/internal/platform/auth"
	"github.com/leanifi/emar/internal/platform/blobstore"
	"github.com/leanifi/emar/internal/platform/db"
	"github.com/leanifi/emar/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emar-server",
		Short: "Leanifi eMAR API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the eMAR API server",
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

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
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

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
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

// userCmd seeds staff accounts. Patients are created through the admin API;
// the first admin has to come from somewhere.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or clinician account",
		RunE: func(cmd *cobra.Command, args []string) error {
			leanifiID, _ := cmd.Flags().GetString("leanifi-id")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")

			if leanifiID == "" || password == "" || name == "" {
				return fmt.Errorf("--leanifi-id, --password, and --name are required")
			}
			if role != user.RoleAdmin && role != user.RoleClinician {
				return fmt.Errorf("--role must be admin or clinician")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			u := &user.User{
				LeanifiID:    leanifiID,
				PasswordHash: hash,
				Role:         role,
				Name:         name,
				IsActive:     true,
			}
			if err := user.NewRepoPG(pool).Create(ctx, u); err != nil {
				return err
			}
			fmt.Printf("Created %s account %s (%s)\n", role, leanifiID, u.ID)
			return nil
		},
	}
	createCmd.Flags().String("leanifi-id", "", "Login identifier")
	createCmd.Flags().String("password", "", "Initial password")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("role", "admin", "Account role (admin or clinician)")

	cmd.AddCommand(createCmd)
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
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

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	// Audit trail: every mutating API request gets a row.
	auditRepo := audit.NewRepoPG(pool)
	auditStore := audit.NewStore(auditRepo)
	e.Use(middleware.Audit(logger, auditStore))

	tokens := auth.NewTokens(cfg.JWTSecret)

	// Public surface: health and login only.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	public := e.Group("/api")
	public.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Everything else requires a session.
	api := e.Group("/api", auth.RequireSession(tokens))
	api.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Repositories and services
	userRepo := user.NewRepoPG(pool)
	doseRepo := dose.NewRepoPG(pool)

	userSvc := user.NewService(userRepo, tokens)
	userSvc.SetChangeRecorder(auditStore)
	doseSvc := dose.NewService(doseRepo, userRepo)

	// Handlers
	user.NewHandler(userSvc, doseSvc, cfg.IsProduction()).RegisterRoutes(public, api)
	dose.NewHandler(doseSvc).RegisterRoutes(api)
	audit.NewHandler(auditRepo).RegisterRoutes(api)

	// Injection photos: upload behind the clinician gate, download by id.
	photos := blobstore.NewPhotoHandler(blobstore.NewInMemoryPhotoStore())
	photos.RegisterUpload(api.Group("/clinician", auth.RequireRole(user.RoleAdmin, user.RoleClinician)))
	photos.RegisterDownload(e.Group("", auth.RequireSession(tokens)))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
