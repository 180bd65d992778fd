// Package guard はリクエストごとにページへの到達可否を判定するルートガードを提供します。
package guard

import (
	"net/url"
	"path"
	"strings"
)

// Class はパスの分類です。
type Class int

const (
	ClassProtected Class = iota
	ClassPublic
)

// Action はガードの判定結果です。
type Action int

const (
	ActionAllow Action = iota
	ActionRedirect
)

// Decision はガードの判定とリダイレクト先です。
type Decision struct {
	Action   Action
	Location string
}

// Rules は公開パスとガード対象外のパスを定義します。
// PublicPaths 以外のパスはすべて保護対象です。
type Rules struct {
	// PublicPaths は完全一致、または "/*" で終わる場合は前方一致で評価します。
	PublicPaths []string
	// BypassPrefixes に前方一致するパスは判定表を通さずに許可します。
	BypassPrefixes []string
	LoginPath      string
	HomePath       string
	FromParam      string
}

// DefaultRules は標準のルールを返します。
func DefaultRules() Rules {
	return Rules{
		PublicPaths:    []string{"/login", "/signup"},
		BypassPrefixes: []string{"/api/auth", "/_next/static", "/_next/image", "/favicon.ico"},
		LoginPath:      "/login",
		HomePath:       "/",
		FromParam:      "from",
	}
}

func (r Rules) withDefaults() Rules {
	def := DefaultRules()
	if r.LoginPath == "" {
		r.LoginPath = def.LoginPath
	}
	if r.HomePath == "" {
		r.HomePath = def.HomePath
	}
	if r.FromParam == "" {
		r.FromParam = def.FromParam
	}
	return r
}

// Bypassed はガード対象外のインフラ系パスかどうかを返します。
func (r Rules) Bypassed(path string) bool {
	path = CleanPath(path)
	for _, prefix := range r.BypassPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Classify はパスを公開/保護のいずれかに分類します。
func (r Rules) Classify(path string) Class {
	path = CleanPath(path)
	for _, pattern := range r.PublicPaths {
		if matchPattern(pattern, path) {
			return ClassPublic
		}
	}
	return ClassProtected
}

// Decide はパスの分類とトークンの有無から判定します。
// トークンの中身は見ません。期限切れでも存在すれば通します。
func (r Rules) Decide(path string, hasToken bool) Decision {
	r = r.withDefaults()
	path = CleanPath(path)
	if r.Bypassed(path) {
		return Decision{Action: ActionAllow}
	}

	switch r.Classify(path) {
	case ClassPublic:
		if hasToken {
			return Decision{Action: ActionRedirect, Location: r.HomePath}
		}
		return Decision{Action: ActionAllow}
	default:
		if hasToken {
			return Decision{Action: ActionAllow}
		}
		query := url.Values{r.FromParam: []string{path}}
		return Decision{Action: ActionRedirect, Location: r.LoginPath + "?" + query.Encode()}
	}
}

// CleanPath は "." や ".." を解決したパスを返します。末尾のスラッシュは保持します。
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}

// SafeRedirect はログイン後の遷移先として使える同一オリジンの相対パスかを検査し、
// 使えない場合は fallback を返します。
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
