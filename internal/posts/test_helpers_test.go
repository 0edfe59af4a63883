package posts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type stubVerifier struct {
	subject string
}

func (s stubVerifier) Verify(context.Context, string) (auth.GoogleClaims, error) {
	return auth.GoogleClaims{Subject: s.subject}, nil
}

func mustAdmin(t *testing.T) auth.AdminPrincipal {
	t.Helper()
	gate, err := auth.NewAdminGate(auth.AdminGateConfig{
		Verifier:  stubVerifier{subject: "1001"},
		AllowList: auth.ParseAllowList("1001"),
	})
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}
	principal, err := gate.Authorize(context.Background(), "token")
	if err != nil {
		t.Fatalf("failed to authorize: %v", err)
	}
	return principal
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "posts.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Post{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func mustCreate(t *testing.T, service *Service, title string, postTime time.Time) Post {
	t.Helper()
	post, err := service.Save(context.Background(), mustAdmin(t), CreateRequest(Draft{
		Title:    title,
		Images:   []string{title + ".png?v=AAAAAAAAAAA"},
		Content:  "body of " + title,
		PostTime: postTime,
	}))
	if err != nil {
		t.Fatalf("failed to create %s: %v", title, err)
	}
	return post
}
