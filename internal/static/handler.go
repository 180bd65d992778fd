// Package static はガード対象外の静的アセットをディレクトリから配信します。
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// Handler は URL の接頭辞を取り除いたパスを root 配下のファイルとして返します。
type Handler struct {
	root   string
	prefix string
}

// NewHandler は Handler を作成します。
func NewHandler(root, prefix string) *Handler {
	return &Handler{root: root, prefix: prefix}
}

// Serve は GET/HEAD 用のハンドラーです。
func (h *Handler) Serve(c *gin.Context) {
	rel := strings.TrimPrefix(c.Request.URL.Path, h.prefix)
	name, ok := h.resolve(rel)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	file, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", contentType(name))
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

// resolve はディレクトリトラバーサルを防ぎつつ実ファイルのパスを返します。
func (h *Handler) resolve(rel string) (string, bool) {
	if h.root == "" {
		return "", false
	}
	cleaned := path.Clean("/" + rel)
	if cleaned == "/" {
		return "", false
	}
	return filepath.Join(h.root, filepath.FromSlash(cleaned)), true
}

// contentType は拡張子から判定できない場合に中身から MIME タイプを推定します。
func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	case ".ico":
		return "image/x-icon"
	}
	mtype, err := mimetype.DetectFile(name)
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}
