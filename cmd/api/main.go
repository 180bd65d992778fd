// Package main はポータルのセッションエッジサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/portal-edge/internal/auth"
	"github.com/yourusername/portal-edge/internal/config"
	"github.com/yourusername/portal-edge/internal/guard"
	"github.com/yourusername/portal-edge/internal/static"
)

// dependencies はルーティングに必要な外部依存をまとめたものです。
type dependencies struct {
	authenticator auth.Authenticator
	limiter       auth.Limiter
	publisher     auth.EventPublisher
	events        eventLister
	frontend      http.Handler
}

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	deps := dependencies{
		authenticator: auth.NewRemoteClient(cfg.AuthAPIURL, time.Duration(cfg.AuthTimeoutSeconds)*time.Second),
		limiter:       auth.NewMemoryLimiter(limitPolicy(cfg)),
	}

	frontend, err := newFrontendProxy(cfg.FrontendUpstreamURL)
	if err != nil {
		log.Fatalf("Invalid FRONTEND_UPSTREAM_URL: %v", err)
	}
	deps.frontend = frontend

	// Redis が使える場合はリミッターと監査イベントを共有ストアに載せる
	rdb, err := connectRedis(cfg.RedisURL)
	switch {
	case err == nil:
		deps.limiter = auth.NewRedisLimiter(rdb, limitPolicy(cfg))
		manager, err := setupEvents(cfg, rdb)
		if err != nil {
			log.Fatalf("Failed to set up events: %v", err)
		}
		manager.StartWorkers()
		defer manager.Shutdown(context.Background())
		deps.publisher = manager
		deps.events = manager
	case cfg.GinMode == gin.ReleaseMode:
		log.Fatalf("Failed to connect to redis: %v", err)
	default:
		log.Printf("redis unavailable, falling back to in-memory limiter without events: %v", err)
	}

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// ルーティングの設定
	setupRoutes(router, cfg, deps)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting portal edge on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "portal-edge",
		"version": "0.1.0",
	})
}

// setupRoutes はセッション・ガード・API・フロントエンド転送の配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, deps dependencies) {
	// ガードより前に登録し、ヘルスチェックは常に通す
	router.GET("/health", handleHealth)

	// プロフィール用セッションストアの設定
	store := cookie.NewStore([]byte(sessionSecret(cfg)))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(auth.SessionMaxAge(cfg).Seconds()),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(cfg.ProfileCookieName, store))

	// すべてのページ遷移をルートガードに通す
	rules := guard.Rules{
		PublicPaths:    cfg.PublicPaths,
		BypassPrefixes: cfg.BypassPrefixes,
		LoginPath:      cfg.LoginPath,
		HomePath:       cfg.HomePath,
	}
	router.Use(guard.Middleware(rules, guard.CookieLookup(cfg.TokenCookieName), log.Default()))

	authManager := auth.NewManager(cfg, deps.authenticator, deps.limiter, deps.publisher, log.Default())

	api := router.Group("/api")
	// セッションを持つ変更系リクエストは CSRF トークンを必須にする
	api.Use(cors.New(corsConfig(cfg)), authManager.VerifyCSRF())
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout", authManager.Logout)
			authRoutes.GET("/session", authManager.Session)
		}

		if deps.events != nil {
			api.GET("/session/events", recentEventsHandler(deps.events))
		}
	}

	if cfg.StaticDir != "" {
		assets := static.NewHandler(cfg.StaticDir, "/_next/static")
		router.GET("/_next/static/*filepath", assets.Serve)
		router.HEAD("/_next/static/*filepath", assets.Serve)
		router.GET("/favicon.ico", static.NewHandler(cfg.StaticDir, "").Serve)
	}

	// それ以外はフロントエンドへ転送する
	if deps.frontend != nil {
		router.NoRoute(gin.WrapH(deps.frontend))
	}
}

// sessionSecret は署名鍵を返します。開発時に未設定なら起動ごとの鍵を生成します。
func sessionSecret(cfg *config.Config) string {
	if cfg.SessionSecret != "" {
		return cfg.SessionSecret
	}
	log.Printf("SESSION_SECRET is not set, using an ephemeral key")
	return uuid.NewString()
}

func corsConfig(cfg *config.Config) cors.Config {
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		auth.CSRFHeader, // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{auth.CSRFHeader}
	return corsConfig
}

func limitPolicy(cfg *config.Config) auth.LimitPolicy {
	return auth.LimitPolicy{
		MaxAttempts:  cfg.LoginMaxAttempts,
		Window:       time.Duration(cfg.LoginWindowMinutes) * time.Minute,
		LockDuration: time.Duration(cfg.LoginLockMinutes) * time.Minute,
	}
}

func connectRedis(rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func newFrontendProxy(rawURL string) (http.Handler, error) {
	if rawURL == "" {
		return nil, nil
	}
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("frontend proxy error path=%s: %v", r.URL.Path, err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy, nil
}
