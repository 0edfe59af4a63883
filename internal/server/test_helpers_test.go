package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/images"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/metrics"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/posts"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	adminToken    = "admin-token"
	outsiderToken = "outsider-token"
	adminSubject  = "4242"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (auth.GoogleClaims, error) {
	switch token {
	case adminToken:
		return auth.GoogleClaims{Subject: adminSubject, Email: "editor@example.com"}, nil
	case outsiderToken:
		return auth.GoogleClaims{Subject: "1", Email: "visitor@example.com"}, nil
	default:
		return auth.GoogleClaims{}, errors.New("token rejected by provider")
	}
}

type testServer struct {
	handler   http.Handler
	database  *gorm.DB
	collector *metrics.Collector
}

type testServerOptions struct {
	logger         *zap.Logger
	staticDir      string
	maxUploadBytes int64
}

func newTestServer(t *testing.T, opts testServerOptions) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&posts.Post{}, &images.Image{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	collector := metrics.NewCollector()
	gate, err := auth.NewAdminGate(auth.AdminGateConfig{
		Verifier:  stubVerifier{},
		AllowList: auth.ParseAllowList(adminSubject),
		Observer:  collector,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}
	postsService, err := posts.NewService(posts.ServiceConfig{Database: database, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build posts service: %v", err)
	}
	imagesService, err := images.NewService(images.ServiceConfig{Database: database, Observer: collector, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build images service: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		AdminGate:      gate,
		PostsService:   postsService,
		ImagesService:  imagesService,
		MetricsHandler: collector.Handler(),
		StaticDir:      opts.staticDir,
		MaxUploadBytes: opts.maxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return testServer{handler: handler, database: database, collector: collector}
}

func (s testServer) do(request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func adminRequest(method, target string, body []byte) *http.Request {
	request := httptest.NewRequest(method, target, bytes.NewReader(body))
	request.Header.Set(idTokenHeader, adminToken)
	return request
}

func pngFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 3), G: uint8(y * 5), B: 120, A: 255})
		}
	}
	var buffer bytes.Buffer
	if err := png.Encode(&buffer, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buffer.Bytes()
}

func assertCacheControl(t *testing.T, recorder *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got := recorder.Header().Get("Cache-Control"); got != want {
		t.Fatalf("expected Cache-Control %q, got %q", want, got)
	}
}

func assertBody(t *testing.T, recorder *httptest.ResponseRecorder, want string) {
	t.Helper()
	if got := strings.TrimSpace(recorder.Body.String()); got != want {
		t.Fatalf("expected body %q, got %q", want, got)
	}
}
