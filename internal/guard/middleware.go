package guard

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/portal-edge/internal/session"
)

// TokenLookup はリクエスト自身が運ぶトークンの有無を返します。
type TokenLookup func(r *http.Request) bool

// CookieLookup は指定名のクッキーの有無でトークンを判定する TokenLookup を返します。
func CookieLookup(name string) TokenLookup {
	return func(r *http.Request) bool {
		_, ok := session.TokenFromRequest(r, name)
		return ok
	}
}

// Middleware はすべてのページ遷移の前に判定を行うミドルウェアを返します。
// セッション状態は変更しません。判定に使った正規化済みのパスで後段へ渡します。
func Middleware(rules Rules, lookup TokenLookup, logger *log.Logger) gin.HandlerFunc {
	rules = rules.withDefaults()
	return func(c *gin.Context) {
		path := CleanPath(c.Request.URL.Path)
		if path != c.Request.URL.Path {
			c.Request.URL.Path = path
			c.Request.URL.RawPath = ""
		}
		if rules.Bypassed(path) {
			c.Next()
			return
		}

		decision := rules.Decide(path, lookup(c.Request))
		if decision.Action == ActionRedirect {
			if logger != nil {
				logger.Printf("guard redirect path=%s location=%s", path, decision.Location)
			}
			c.Redirect(http.StatusTemporaryRedirect, decision.Location)
			c.Abort()
			return
		}
		c.Next()
	}
}
