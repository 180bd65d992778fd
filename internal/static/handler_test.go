package static

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newStaticRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()

	files := map[string][]byte{
		"chunk.js":  []byte("console.log('ok')"),
		"logo.bin":  {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0},
		"style.css": []byte("body{}"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "nested"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	handler := NewHandler(root, "/_next/static")
	router := gin.New()
	router.GET("/_next/static/*filepath", handler.Serve)
	return router, root
}

func TestServeDetectsContentType(t *testing.T) {
	router, _ := newStaticRouter(t)

	cases := map[string]string{
		"/_next/static/chunk.js":  "text/javascript",
		"/_next/static/style.css": "text/css",
		"/_next/static/logo.bin":  "image/png",
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, want) {
			t.Fatalf("%s: Content-Type %q, want %q", path, got, want)
		}
	}
}

func TestServeNotFound(t *testing.T) {
	router, _ := newStaticRouter(t)

	for _, path := range []string{
		"/_next/static/missing.js",
		"/_next/static/nested",
		"/_next/static/",
		"/_next/static/../../etc/passwd",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}
