package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/config"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/database"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/images"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsroom-api",
		Short: "Newsroom content backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file (ignored when absent)")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL DSN")
	cmd.PersistentFlags().Int("database-max-open-conns", defaults.GetInt("database.max_open_conns"), "PostgreSQL connection pool size")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("admins", "", "Comma separated admin subject ids (overrides ADMINS)")
	cmd.PersistentFlags().Int("page-ceiling", defaults.GetInt("posts.page_ceiling"), "Maximum posts returned per page")
	cmd.PersistentFlags().Int64("max-upload-bytes", defaults.GetInt64("uploads.max_bytes"), "Maximum accepted upload size")
	cmd.PersistentFlags().String("static-dir", defaults.GetString("static.dir"), "Static site directory")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "database.max_open_conns", "database-max-open-conns")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "admins", "admins")
	bindFlag(cmd, "posts.page_ceiling", "page-ceiling")
	bindFlag(cmd, "uploads.max_bytes", "max-upload-bytes")
	bindFlag(cmd, "static.dir", "static-dir")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.OptionsFromConfig(appConfig), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	googleVerifier, err := auth.NewGoogleVerifier(auth.GoogleVerifierConfig{
		Audience:       appConfig.GoogleClientID,
		JWKSURL:        appConfig.GoogleJWKSURL,
		AllowedIssuers: []string{"https://accounts.google.com", "accounts.google.com"},
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()

	adminGate, err := auth.NewAdminGate(auth.AdminGateConfig{
		Verifier:  googleVerifier,
		AllowList: auth.ParseAllowList(appConfig.Admins),
		Observer:  collector,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	postsService, err := posts.NewService(posts.ServiceConfig{
		Database:    db,
		PageCeiling: appConfig.PageCeiling,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	imagesService, err := images.NewService(images.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Observer: collector,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		AdminGate:      adminGate,
		PostsService:   postsService,
		ImagesService:  imagesService,
		MetricsHandler: collector.Handler(),
		StaticDir:      appConfig.StaticDir,
		MaxUploadBytes: appConfig.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
