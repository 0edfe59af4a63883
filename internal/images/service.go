package images

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/imaging"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew = "images.service.new"
	opIngest     = "images.ingest"
	opListNames  = "images.list_names"
	opFetch      = "images.fetch"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// PipelineObserver receives ingestion and retrieval outcomes.
type PipelineObserver interface {
	ObserveImageIngested(elapsed time.Duration)
	ObserveImageFailure(stage string)
}

type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Observer PipelineObserver
	Logger   *zap.Logger
}

// Service ingests uploads into the image store and serves stored payloads.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	observer PipelineObserver
	logger   *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:       cfg.Database,
		clock:    clock,
		observer: cfg.Observer,
		logger:   logger,
	}, nil
}

// Ingest buffers the upload, derives its content version and thumbnail, and stores
// both payloads in a single insert. Nothing is written when any step fails.
func (s *Service) Ingest(ctx context.Context, principal auth.AdminPrincipal, clientName string, upload io.Reader) (IngestResult, error) {
	if s.db == nil {
		s.logError(opIngest, "missing_database", errMissingDatabase)
		return IngestResult{}, serviceerror.New(opIngest, "missing_database", errMissingDatabase)
	}
	if !principal.Valid() {
		return IngestResult{}, serviceerror.New(opIngest, "unauthorized", auth.ErrPrincipalRequired)
	}
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return IngestResult{}, serviceerror.New(opIngest, "invalid_name", ErrInvalidName)
	}

	startedAt := time.Now()
	fields := []zap.Field{zap.String("client_name", clientName), zap.String("subject", principal.Subject())}

	payload, err := io.ReadAll(upload)
	if err != nil {
		return IngestResult{}, s.fail(opIngest, metrics.StageRead, "read_failed", err, fields...)
	}

	decoded, sourceFormat, err := imaging.Decode(payload)
	if err != nil {
		return IngestResult{}, s.fail(opIngest, metrics.StageDecode, "decode_failed", err, fields...)
	}

	outputFormat, err := imaging.FormatFromName(clientName)
	if err != nil {
		return IngestResult{}, s.fail(opIngest, metrics.StageEncode, "encode_failed", err, fields...)
	}
	thumbnail, err := imaging.EncodeBytes(
		imaging.Thumbnail(decoded, imaging.ThumbnailMaxWidth, imaging.ThumbnailMaxHeight),
		outputFormat,
	)
	if err != nil {
		return IngestResult{}, s.fail(opIngest, metrics.StageEncode, "encode_failed", err, fields...)
	}

	row := Image{
		Name:      imaging.VersionedName(clientName, imaging.ContentVersion(decoded)),
		StoredAt:  s.clock().UTC(),
		Main:      payload,
		Thumbnail: thumbnail,
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return IngestResult{}, s.fail(opIngest, metrics.StageStore, "store_failed", result.Error,
			append(fields, zap.String("name", row.Name))...)
	}

	created := result.RowsAffected > 0
	if created {
		s.logger.Info("image stored",
			append(fields,
				zap.String("name", row.Name),
				zap.String("source_format", string(sourceFormat)),
				zap.Int("bytes", len(payload)),
				zap.Int("thumbnail_bytes", len(thumbnail)))...)
		if s.observer != nil {
			s.observer.ObserveImageIngested(time.Since(startedAt))
		}
	} else {
		s.logger.Info("image already stored; keeping existing row", append(fields, zap.String("name", row.Name))...)
	}

	names, err := s.ListNames(ctx, principal)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Name: row.Name, Names: names, Created: created}, nil
}

// ListNames returns every stored image name, newest first.
func (s *Service) ListNames(ctx context.Context, principal auth.AdminPrincipal) ([]string, error) {
	if s.db == nil {
		s.logError(opListNames, "missing_database", errMissingDatabase)
		return nil, serviceerror.New(opListNames, "missing_database", errMissingDatabase)
	}
	if !principal.Valid() {
		return nil, serviceerror.New(opListNames, "unauthorized", auth.ErrPrincipalRequired)
	}

	names := []string{}
	if err := s.db.WithContext(ctx).
		Model(&Image{}).
		Order("stored_at DESC").
		Order("name DESC").
		Pluck("name", &names).Error; err != nil {
		s.logError(opListNames, "query_failed", err)
		return nil, serviceerror.New(opListNames, "query_failed", err)
	}
	return names, nil
}

// Fetch loads the requested payload for name and re-encodes it in the format
// implied by the stored name. A missing row yields an Asset with Found false.
func (s *Service) Fetch(ctx context.Context, name string, variant Variant) (Asset, error) {
	if s.db == nil {
		s.logError(opFetch, "missing_database", errMissingDatabase)
		return Asset{}, serviceerror.New(opFetch, "missing_database", errMissingDatabase)
	}
	column, err := variant.column()
	if err != nil {
		return Asset{}, serviceerror.New(opFetch, "unknown_variant", err)
	}

	rows := []Image{}
	if err := s.db.WithContext(ctx).
		Select("name", column).
		Where("name = ?", name).
		Limit(1).
		Find(&rows).Error; err != nil {
		s.logError(opFetch, "query_failed", err, zap.String("name", name))
		return Asset{}, serviceerror.New(opFetch, "query_failed", err)
	}
	if len(rows) == 0 {
		return Asset{}, nil
	}

	stored := rows[0].Main
	if variant == VariantThumbnail {
		stored = rows[0].Thumbnail
	}
	fields := []zap.Field{zap.String("name", name), zap.String("variant", string(variant))}
	encoded, format, err := imaging.Transcode(stored, rows[0].Name)
	if err != nil {
		stage := metrics.StageEncode
		reason := "encode_failed"
		if errors.Is(err, imaging.ErrDecode) {
			stage = metrics.StageDecode
			reason = "decode_failed"
		}
		return Asset{}, s.fail(opFetch, stage, reason, err, fields...)
	}
	return Asset{Found: true, Data: encoded, Format: format}, nil
}

func (s *Service) fail(operation, stage, reason string, err error, fields ...zap.Field) error {
	if s.observer != nil {
		s.observer.ObserveImageFailure(stage)
	}
	s.logError(operation, reason, err, fields...)
	return serviceerror.New(operation, reason, err)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("images service error", attrs...)
}
