package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/images"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	idTokenHeader  = "idToken"
	fileNameHeader = "File-Name"

	defaultMaxUploadBytes int64 = 32 << 20
)

var (
	errMissingAdminGate     = errors.New("admin gate dependency required")
	errMissingPostsService  = errors.New("posts service dependency required")
	errMissingImagesService = errors.New("images service dependency required")
)

// AdminAuthorizer turns a request credential into an AdminPrincipal.
type AdminAuthorizer interface {
	Authorize(ctx context.Context, credential string, fields ...zap.Field) (auth.AdminPrincipal, error)
}

type Dependencies struct {
	AdminGate      AdminAuthorizer
	PostsService   *posts.Service
	ImagesService  *images.Service
	MetricsHandler http.Handler
	StaticDir      string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.AdminGate == nil {
		return nil, errMissingAdminGate
	}
	if deps.PostsService == nil {
		return nil, errMissingPostsService
	}
	if deps.ImagesService == nil {
		return nil, errMissingImagesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxUploadBytes := deps.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	handler := &httpHandler{
		gate:           deps.AdminGate,
		postsService:   deps.PostsService,
		imagesService:  deps.ImagesService,
		static:         newStaticSite(deps.StaticDir),
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}

	newsroom := router.Group("/newsroom")
	newsroom.POST("/posts", handler.handlePosts)
	newsroom.GET("/images/*name", handler.handleImage(images.VariantMain))
	newsroom.GET("/thumbnail/*name", handler.handleImage(images.VariantThumbnail))

	admin := newsroom.Group("/")
	admin.Use(handler.authorizeAdmin)
	admin.POST("/getimages", handler.handleListImages)
	admin.POST("/upload/image", handler.handleUploadImage)
	admin.POST("/upload/post", handler.handleUpsertPost)
	admin.POST("/delete/post", handler.handleDeletePost)

	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	router.GET("/", handler.handleIndex)
	router.NoRoute(handler.handleStatic)

	return router, nil
}

type httpHandler struct {
	gate           AdminAuthorizer
	postsService   *posts.Service
	imagesService  *images.Service
	static         staticSite
	maxUploadBytes int64
	logger         *zap.Logger
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", idTokenHeader, fileNameHeader, requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	})
}

func cacheFor(c *gin.Context, seconds int) {
	c.Header("Cache-Control", "max-age="+strconv.Itoa(seconds))
}
