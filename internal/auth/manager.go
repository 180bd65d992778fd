// Package auth はログイン・ログアウトとセッション状態確認のハンドラーを提供します。
//
// 資格情報の検証はリモートの認証APIに委ね、成功時の応答を session.Store に保存します。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/portal-edge/internal/config"
	"github.com/yourusername/portal-edge/internal/events"
	"github.com/yourusername/portal-edge/internal/guard"
	"github.com/yourusername/portal-edge/internal/session"
)

// CSRFHeader はセッション付きの変更系リクエストが運ぶ CSRF トークンのヘッダーです。
const CSRFHeader = "X-CSRF-Token"

// EventPublisher は監査イベントの送信先です。
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	cfg       *config.Config
	client    Authenticator
	limiter   Limiter
	publisher EventPublisher
	logger    *log.Logger

	storeFor func(c *gin.Context) session.Store
}

// NewManager は認証マネージャーを作成します。publisher は nil でも構いません。
func NewManager(cfg *config.Config, client Authenticator, limiter Limiter, publisher EventPublisher, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if limiter == nil {
		limiter = NewMemoryLimiter(DefaultLimitPolicy())
	}
	opts := CookieOptions(cfg)
	return &Manager{
		cfg:       cfg,
		client:    client,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		storeFor: func(c *gin.Context) session.Store {
			return session.FromContext(c, opts)
		},
	}
}

// CookieOptions は設定からトークンクッキーの属性を組み立てます。
func CookieOptions(cfg *config.Config) session.CookieOptions {
	return session.CookieOptions{
		TokenCookieName: cfg.TokenCookieName,
		MaxAge:          SessionMaxAge(cfg),
		Secure:          cfg.GinMode == gin.ReleaseMode,
	}
}

// SessionMaxAge はトークンとプロフィールの保持期間を返します。
func SessionMaxAge(cfg *config.Config) time.Duration {
	if cfg.SessionMaxAgeDays <= 0 {
		return session.DefaultMaxAge
	}
	return time.Duration(cfg.SessionMaxAgeDays) * 24 * time.Hour
}

type loginRequest struct {
	OrganizationCode string `json:"organization_code" binding:"required"`
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
	From             string `json:"from"`
}

// Login は /api/auth/login のハンドラーです。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "organization_code、username、password を JSON で送ってください",
		})
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()
	retryAfter, err := m.limiter.Check(ctx, ip)
	if err != nil {
		m.logger.Printf("login limiter check failed ip=%s: %v", ip, err)
	}
	if retryAfter > 0 {
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    "TOO_MANY_ATTEMPTS",
			"message": "一定時間後に再度お試しください",
		})
		return
	}

	resp, err := m.client.Authenticate(ctx, Credential{
		OrganizationCode: req.OrganizationCode,
		Username:         req.Username,
		Password:         req.Password,
	})
	if err != nil {
		m.respondAuthError(c, req, ip, err)
		return
	}

	store := m.storeFor(c)
	if err := store.Establish(*resp); err != nil {
		if errors.Is(err, session.ErrMalformedResponse) {
			m.logger.Printf("malformed login response user=%s: %v", req.Username, err)
			c.JSON(http.StatusBadGateway, gin.H{
				"code":    "MALFORMED_AUTH_RESPONSE",
				"message": "認証サーバーの応答が不正なためログインできませんでした",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの保存に失敗しました",
		})
		return
	}

	if err := m.limiter.Reset(ctx, ip); err != nil {
		m.logger.Printf("login limiter reset failed ip=%s: %v", ip, err)
	}

	profile := store.CurrentProfile()
	event := events.NewEvent(events.KindLogin)
	event.ClientIP = ip
	if profile != nil {
		event.UserID = profile.UserID
		event.Username = profile.Username
		event.Organization = profile.Organization
	}
	m.publish(ctx, event)

	m.exposeCSRF(c, store)

	from := req.From
	if from == "" {
		from = c.Query(guard.DefaultRules().FromParam)
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":  profile,
		"redirect": guard.SafeRedirect(from, m.cfg.HomePath),
	})
}

func (m *Manager) respondAuthError(c *gin.Context, req loginRequest, ip string, err error) {
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		remaining, limitErr := m.limiter.RecordFailure(c.Request.Context(), ip)
		if limitErr != nil {
			m.logger.Printf("login limiter record failed ip=%s: %v", ip, limitErr)
		}

		event := events.NewEvent(events.KindLoginFailed)
		event.Username = req.Username
		event.ClientIP = ip
		event.Detail = rejected.Message
		m.publish(c.Request.Context(), event)

		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           rejected.Message,
			"remainingAttempts": remaining,
		})
	case errors.Is(err, session.ErrMalformedResponse):
		m.logger.Printf("malformed login response user=%s: %v", req.Username, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "MALFORMED_AUTH_RESPONSE",
			"message": "認証サーバーの応答が不正なためログインできませんでした",
		})
	default:
		m.logger.Printf("authentication api call failed user=%s: %v", req.Username, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "AUTH_UPSTREAM_UNAVAILABLE",
			"message": "認証サーバーに接続できませんでした",
		})
	}
}

// Logout は /api/auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	store := m.storeFor(c)
	profile := store.CurrentProfile()

	if err := store.Revoke(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "SESSION_SAVE_FAILED",
			"message": "セッションの削除に失敗しました",
		})
		return
	}

	if profile != nil {
		event := events.NewEvent(events.KindLogout)
		event.UserID = profile.UserID
		event.Username = profile.Username
		event.Organization = profile.Organization
		event.ClientIP = c.ClientIP()
		m.publish(c.Request.Context(), event)
	}

	c.JSON(http.StatusOK, gin.H{"redirect": m.cfg.LoginPath})
}

// Session は /api/auth/session のハンドラーです。
// ヘッダーのログイン/ログアウト表示の切り替えに使います。
func (m *Manager) Session(c *gin.Context) {
	store := m.storeFor(c)
	reader := session.NewReader(store)
	state := reader.State()
	m.exposeCSRF(c, store)

	c.JSON(http.StatusOK, gin.H{
		"authenticated": state == session.StateValid,
		"state":         state,
		"profile":       store.CurrentProfile(),
	})
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアです。
// セッションを持つリクエストだけが対象で、ログイン前のリクエストはそのまま通します。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		source, ok := m.storeFor(c).(csrfSource)
		if !ok {
			c.Next()
			return
		}
		expected, ok := source.CSRFToken()
		if !ok {
			c.Next()
			return
		}

		received := c.GetHeader(CSRFHeader)
		if received == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_MISSING",
				"message": "CSRF トークンが送信されていません",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "CSRF_INVALID",
				"message": "CSRF トークンが一致しません",
			})
			return
		}

		c.Next()
	}
}

type csrfSource interface {
	CSRFToken() (string, bool)
}

// exposeCSRF はフロントエンドが読めるようにレスポンスヘッダーへ CSRF トークンを載せます。
func (m *Manager) exposeCSRF(c *gin.Context, store session.Store) {
	if source, ok := store.(csrfSource); ok {
		if token, ok := source.CSRFToken(); ok {
			c.Header(CSRFHeader, token)
		}
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Printf("failed to publish %s event id=%s: %v", event.Kind, event.ID, err)
	}
}
