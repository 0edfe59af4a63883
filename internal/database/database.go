package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/config"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/images"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	errMissingPath = errors.New("database path is required")
	errMissingDSN  = errors.New("database dsn is required")
)

// Options selects the backing store.
type Options struct {
	Driver       string
	Path         string
	DSN          string
	MaxOpenConns int
}

// OptionsFromConfig maps the runtime configuration onto Options.
func OptionsFromConfig(cfg config.AppConfig) Options {
	return Options{
		Driver:       cfg.DatabaseDriver,
		Path:         cfg.DatabasePath,
		DSN:          cfg.DatabaseDSN,
		MaxOpenConns: cfg.MaxOpenConns,
	}
}

// Open establishes a connection for the configured driver and performs schema migrations.
func Open(opts Options, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialector, maxOpen, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	if err := db.AutoMigrate(&posts.Post{}, &images.Image{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", driverName(opts.Driver)))
	return db, nil
}

// OpenSQLite is a shorthand for a file backed SQLite store.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	return Open(Options{Driver: config.DriverSQLite, Path: path}, logger)
}

func dialectorFor(opts Options) (gorm.Dialector, int, error) {
	switch driverName(opts.Driver) {
	case config.DriverSQLite:
		if strings.TrimSpace(opts.Path) == "" {
			return nil, 0, errMissingPath
		}
		// SQLite allows a single writer.
		return sqlite.Open(opts.Path), 1, nil
	case config.DriverPostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, 0, errMissingDSN
		}
		maxOpen := opts.MaxOpenConns
		if maxOpen < 1 {
			maxOpen = 1
		}
		return postgres.Open(opts.DSN), maxOpen, nil
	default:
		return nil, 0, fmt.Errorf("database driver %q is not supported", opts.Driver)
	}
}

func driverName(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		return config.DriverSQLite
	}
	return driver
}
