package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/images"
	"github.com/MarcoPoloResearchLab/newsroom/backend/internal/imaging"
	"github.com/gin-gonic/gin"
)

var storedCatName = regexp.MustCompile(`^cat\.png\?v=[A-Za-z0-9+/]{11}$`)

func uploadImage(t *testing.T, server testServer, name string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	request := adminRequest(http.MethodPost, "/newsroom/upload/image", payload)
	if name != "" {
		request.Header.Set(fileNameHeader, name)
	}
	return server.do(request)
}

func decodeNames(t *testing.T, recorder *httptest.ResponseRecorder) []string {
	t.Helper()
	var names []string
	if err := json.Unmarshal(recorder.Body.Bytes(), &names); err != nil {
		t.Fatalf("failed to decode names %q: %v", recorder.Body.String(), err)
	}
	return names
}

// imagePath escapes the name the way a browser would request it: the path part is
// escaped and "?v=" turns into a query string.
func imagePath(prefix, storedName string) string {
	name, version, _ := strings.Cut(storedName, "?")
	return prefix + url.PathEscape(name) + "?" + strings.ReplaceAll(version, "+", "%2B")
}

func TestUploadAndRetrieveImage(t *testing.T) {
	server := newTestServer(t, testServerOptions{})

	recorder := uploadImage(t, server, "cat.png", pngFixture(t, 320, 200))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected upload status %d: %s", recorder.Code, recorder.Body.String())
	}
	names := decodeNames(t, recorder)
	if len(names) != 1 || !storedCatName.MatchString(names[0]) {
		t.Fatalf("unexpected names %v", names)
	}

	recorder = server.do(httptest.NewRequest(http.MethodGet, imagePath("/newsroom/images/", names[0]), http.NoBody))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected image status %d", recorder.Code)
	}
	assertCacheControl(t, recorder, "max-age=31536000")
	if recorder.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", recorder.Header().Get("Content-Type"))
	}
	decoded, _, err := imaging.Decode(recorder.Body.Bytes())
	if err != nil {
		t.Fatalf("image payload must decode: %v", err)
	}
	if decoded.Bounds().Dx() != 320 || decoded.Bounds().Dy() != 200 {
		t.Fatalf("expected original dimensions, got %v", decoded.Bounds())
	}

	recorder = server.do(httptest.NewRequest(http.MethodGet, imagePath("/newsroom/thumbnail/", names[0]), http.NoBody))
	assertCacheControl(t, recorder, "max-age=31536000")
	thumbnail, _, err := imaging.Decode(recorder.Body.Bytes())
	if err != nil {
		t.Fatalf("thumbnail payload must decode: %v", err)
	}
	if thumbnail.Bounds().Dx() > 100 || thumbnail.Bounds().Dy() > 100 {
		t.Fatalf("thumbnail exceeds bounds: %v", thumbnail.Bounds())
	}

	recorder = server.do(adminRequest(http.MethodPost, "/newsroom/getimages", nil))
	if listed := decodeNames(t, recorder); len(listed) != 1 || listed[0] != names[0] {
		t.Fatalf("unexpected listing %v", listed)
	}
}

func TestImageLookupMissReturnsEmptyUncachedBody(t *testing.T) {
	server := newTestServer(t, testServerOptions{})

	for _, target := range []string{"/newsroom/images/ghost.png?v=AAAAAAAAAAA", "/newsroom/thumbnail/ghost.png", "/newsroom/images/"} {
		recorder := server.do(httptest.NewRequest(http.MethodGet, target, http.NoBody))
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", target, recorder.Code)
		}
		if recorder.Body.Len() != 0 {
			t.Fatalf("%s: expected empty body, got %d bytes", target, recorder.Body.Len())
		}
		assertCacheControl(t, recorder, "max-age=0")
	}
}

func TestUploadImageFailures(t *testing.T) {
	testCases := []struct {
		name       string
		fileName   string
		payload    func(t *testing.T) []byte
		maxBytes   int64
		wantStatus int
		wantBody   string
	}{
		{
			name:       "missing-file-name",
			payload:    func(t *testing.T) []byte { return pngFixture(t, 4, 4) },
			wantStatus: http.StatusBadRequest,
			wantBody:   "Missing File-Name header",
		},
		{
			name:       "not-an-image",
			fileName:   "cat.png",
			payload:    func(*testing.T) []byte { return []byte("plain text") },
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Unable to process image",
		},
		{
			name:       "unknown-extension",
			fileName:   "cat.txt",
			payload:    func(t *testing.T) []byte { return pngFixture(t, 4, 4) },
			wantStatus: http.StatusInternalServerError,
			wantBody:   "Unable to process image",
		},
		{
			name:       "too-large",
			fileName:   "cat.png",
			payload:    func(t *testing.T) []byte { return pngFixture(t, 64, 64) },
			maxBytes:   16,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantBody:   "Upload too large",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := newTestServer(t, testServerOptions{maxUploadBytes: testCase.maxBytes})

			recorder := uploadImage(t, server, testCase.fileName, testCase.payload(t))
			if recorder.Code != testCase.wantStatus {
				t.Fatalf("expected %d, got %d: %s", testCase.wantStatus, recorder.Code, recorder.Body.String())
			}
			assertBody(t, recorder, testCase.wantBody)

			var count int64
			server.database.Model(&images.Image{}).Count(&count)
			if count != 0 {
				t.Fatalf("failed uploads must not write rows, got %d", count)
			}
		})
	}
}

func TestUploadImageRequiresAdmin(t *testing.T) {
	server := newTestServer(t, testServerOptions{})

	request := httptest.NewRequest(http.MethodPost, "/newsroom/upload/image", strings.NewReader("x"))
	request.Header.Set(fileNameHeader, "cat.png")
	recorder := server.do(request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without credential, got %d", recorder.Code)
	}

	request = httptest.NewRequest(http.MethodPost, "/newsroom/getimages", http.NoBody)
	request.Header.Set(idTokenHeader, "forged")
	recorder = server.do(request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid credential, got %d", recorder.Code)
	}
}

func TestMetricsEndpointReportsAdminChecks(t *testing.T) {
	server := newTestServer(t, testServerOptions{})
	server.do(adminRequest(http.MethodPost, "/newsroom/getimages", nil))

	recorder := server.do(httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `newsroom_admin_checks_total{outcome="granted"} 1`) {
		t.Fatalf("expected granted admin check in metrics output")
	}
}

func TestRequestedImageNameFoldsQueryBackIn(t *testing.T) {
	testCases := []struct {
		target string
		want   string
	}{
		{target: "/newsroom/images/cat.png", want: "cat.png"},
		{target: "/newsroom/images/cat.png?v=Ab+/Cd0123x", want: "cat.png?v=Ab+/Cd0123x"},
		{target: "/newsroom/images/cat.png?v=Ab%2B%2FCd0123x", want: "cat.png?v=Ab+/Cd0123x"},
		{target: "/newsroom/images/my%20cat.png%3Fv=Ab+/Cd0123x", want: "my cat.png?v=Ab+/Cd0123x"},
	}
	for _, testCase := range testCases {
		request := httptest.NewRequest(http.MethodGet, testCase.target, http.NoBody)
		ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
		ctx.Request = request
		ctx.Params = gin.Params{{Key: "name", Value: "/" + strings.TrimPrefix(request.URL.Path, "/newsroom/images/")}}

		if got := requestedImageName(ctx); got != testCase.want {
			t.Fatalf("%s: got %q, want %q", testCase.target, got, testCase.want)
		}
	}
}
