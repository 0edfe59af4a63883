package posts

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DefaultPageCeiling caps the number of posts returned by one List call.
	DefaultPageCeiling = 3

	opServiceNew = "posts.service.new"
	opList       = "posts.list"
	opFind       = "posts.find"
	opSave       = "posts.save"
	opDelete     = "posts.delete"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

type ServiceConfig struct {
	Database    *gorm.DB
	PageCeiling int
	Logger      *zap.Logger
}

// Service reads and writes posts.
type Service struct {
	db          *gorm.DB
	pageCeiling int
	logger      *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}

	pageCeiling := cfg.PageCeiling
	if pageCeiling <= 0 {
		pageCeiling = DefaultPageCeiling
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		pageCeiling: pageCeiling,
		logger:      logger,
	}, nil
}

// List skips offset posts and returns at most min(requested, page ceiling) of the rest.
func (s *Service) List(ctx context.Context, offset, requested int) ([]Post, error) {
	if s.db == nil {
		s.logError(opList, "missing_database", errMissingDatabase)
		return nil, serviceerror.New(opList, "missing_database", errMissingDatabase)
	}
	if offset < 0 {
		return nil, serviceerror.New(opList, "invalid_offset", ErrInvalidPage)
	}

	limit := min(requested, s.pageCeiling)
	if limit <= 0 {
		return []Post{}, nil
	}

	posts := []Post{}
	if err := s.db.WithContext(ctx).
		Order("post_time DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.Int("offset", offset), zap.Int("limit", limit))
		return nil, serviceerror.New(opList, "query_failed", err)
	}
	return posts, nil
}

// FindByID returns the posts whose id matches, normally zero or one.
func (s *Service) FindByID(ctx context.Context, id int64) ([]Post, error) {
	if s.db == nil {
		s.logError(opFind, "missing_database", errMissingDatabase)
		return nil, serviceerror.New(opFind, "missing_database", errMissingDatabase)
	}

	posts := []Post{}
	if err := s.db.WithContext(ctx).Where("id = ?", id).Find(&posts).Error; err != nil {
		s.logError(opFind, "query_failed", err, zap.Int64("post_id", id))
		return nil, serviceerror.New(opFind, "query_failed", err)
	}
	return posts, nil
}

// Save applies a create or update. Updates overwrite every editable field; the
// last writer wins.
func (s *Service) Save(ctx context.Context, principal auth.AdminPrincipal, request SaveRequest) (Post, error) {
	if s.db == nil {
		s.logError(opSave, "missing_database", errMissingDatabase)
		return Post{}, serviceerror.New(opSave, "missing_database", errMissingDatabase)
	}
	if !principal.Valid() {
		return Post{}, serviceerror.New(opSave, "unauthorized", auth.ErrPrincipalRequired)
	}

	post := request.toPost()
	switch request.Operation {
	case OperationCreate:
		post.ID = 0
		if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
			s.logError(opSave, "insert_failed", err, zap.String("subject", principal.Subject()))
			return Post{}, serviceerror.New(opSave, "insert_failed", err)
		}
	case OperationUpdate:
		if request.ID < 0 {
			return Post{}, serviceerror.New(opSave, "invalid_post_id", ErrInvalidPostID)
		}
		result := s.db.WithContext(ctx).
			Model(&Post{}).
			Where("id = ?", request.ID).
			Select("title", "images", "content", "post_time").
			Updates(&post)
		if result.Error != nil {
			s.logError(opSave, "update_failed", result.Error,
				zap.String("subject", principal.Subject()), zap.Int64("post_id", request.ID))
			return Post{}, serviceerror.New(opSave, "update_failed", result.Error)
		}
		if result.RowsAffected == 0 {
			return Post{}, serviceerror.New(opSave, "not_found", ErrPostNotFound)
		}
		post.ID = request.ID
	default:
		return Post{}, serviceerror.New(opSave, "unknown_operation", ErrUnknownOperation)
	}

	s.logger.Info("post saved",
		zap.String("operation", string(request.Operation)),
		zap.Int64("post_id", post.ID),
		zap.String("subject", principal.Subject()),
		zap.Time("post_time", post.PostTime))
	return post, nil
}

// Delete removes the post with id and returns the number of rows removed.
func (s *Service) Delete(ctx context.Context, principal auth.AdminPrincipal, id int64) (int64, error) {
	if s.db == nil {
		s.logError(opDelete, "missing_database", errMissingDatabase)
		return 0, serviceerror.New(opDelete, "missing_database", errMissingDatabase)
	}
	if !principal.Valid() {
		return 0, serviceerror.New(opDelete, "unauthorized", auth.ErrPrincipalRequired)
	}

	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Post{})
	if result.Error != nil {
		s.logError(opDelete, "delete_failed", result.Error,
			zap.String("subject", principal.Subject()), zap.Int64("post_id", id))
		return 0, serviceerror.New(opDelete, "delete_failed", result.Error)
	}

	s.logger.Info("post deleted",
		zap.Int64("post_id", id),
		zap.Int64("rows", result.RowsAffected),
		zap.String("subject", principal.Subject()))
	return result.RowsAffected, nil
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
	s.loggerOrDefault().Error("posts service error", attrs...)
}
