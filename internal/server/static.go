package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	indexFile    = "index.html"
	assetsMaxAge = 31536000
)

// staticSite serves the editor front end. Unknown paths fall back to index.html
// so client side routes resolve.
type staticSite struct {
	root http.FileSystem
}

func newStaticSite(dir string) staticSite {
	if strings.TrimSpace(dir) == "" {
		return staticSite{}
	}
	return staticSite{root: http.Dir(dir)}
}

func (h *httpHandler) handleIndex(c *gin.Context) {
	h.serveStaticFile(c, indexFile, noCacheMaxAge)
}

func (h *httpHandler) handleStatic(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.String(http.StatusNotFound, "Not found")
		return
	}
	requested := strings.TrimPrefix(path.Clean("/"+c.Request.URL.Path), "/")
	if requested == "" || requested == indexFile {
		h.serveStaticFile(c, indexFile, noCacheMaxAge)
		return
	}
	if h.serveStaticFile(c, requested, assetsMaxAge) {
		return
	}
	h.serveStaticFile(c, indexFile, noCacheMaxAge)
}

// serveStaticFile writes the named file and reports whether it existed. The index
// is answered with 404 when missing so the fallback chain terminates.
func (h *httpHandler) serveStaticFile(c *gin.Context, name string, maxAge int) bool {
	if h.static.root == nil {
		if name == indexFile {
			c.String(http.StatusNotFound, "Not found")
		}
		return false
	}

	file, err := h.static.root.Open("/" + name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("static file open failed", zap.String("path", name), zap.Error(err))
		}
		if name == indexFile {
			c.String(http.StatusNotFound, "Not found")
		}
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		if name == indexFile {
			c.String(http.StatusNotFound, "Not found")
		}
		return false
	}

	cacheFor(c, maxAge)
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
	return true
}
