// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // エッジサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// セッション設定
	SessionSecret     string // プロフィールクッキー署名用の秘密鍵
	TokenCookieName   string // トークンを保持するクッキー名
	ProfileCookieName string // プロフィールを保持するクッキー名
	SessionMaxAgeDays int    // トークン/プロフィールの保持日数

	// 認証API設定
	AuthAPIURL         string // リモート認証APIのベースURL
	AuthTimeoutSeconds int    // 認証API呼び出しのタイムアウト（秒）

	// ルートガード設定
	PublicPaths    []string // セッションなしで到達できるパス
	BypassPrefixes []string // ガードを通さないインフラ系パス
	LoginPath      string   // ログイン画面のパス
	HomePath       string   // ログイン済みユーザーの遷移先

	// フロントエンド配信設定
	FrontendUpstreamURL string // ガード通過後に転送するフロントエンドのURL
	StaticDir           string // 静的アセットの配信元ディレクトリ（空なら転送）

	// Redis/イベント設定
	RedisURL        string // リミッター・監査イベント用Redis接続URL
	EventTTLMinutes int    // 監査イベントの保持期間（分）

	// ログイン試行制限
	LoginMaxAttempts   int // ウィンドウ内の最大失敗回数
	LoginWindowMinutes int // 失敗回数を数えるウィンドウ（分）
	LoginLockMinutes   int // 上限到達後のロック時間（分）

	// 開発用認証API設定
	DevAuthPort            string // 開発用認証APIのポート番号
	DevAuthSigningKey      string // 開発用トークンのHS256署名鍵
	DevAuthAccountsFile    string // 開発用アカウント定義（YAML）
	DevAuthTokenTTLMinutes int    // 開発用トークンの有効期限（分）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "3000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// セッション設定
		SessionSecret:     getEnv("SESSION_SECRET", ""),
		TokenCookieName:   getEnv("TOKEN_COOKIE_NAME", "token"),
		ProfileCookieName: getEnv("PROFILE_COOKIE_NAME", "portal_profile"),
		SessionMaxAgeDays: getEnvAsInt("SESSION_MAX_AGE_DAYS", 7),

		// 認証API設定
		AuthAPIURL:         getEnv("AUTH_API_URL", "http://localhost:8080/api/v1"),
		AuthTimeoutSeconds: getEnvAsInt("AUTH_TIMEOUT_SECONDS", 10),

		// ルートガード設定
		PublicPaths:    getEnvAsList("PUBLIC_PATHS", []string{"/login", "/signup"}),
		BypassPrefixes: getEnvAsList("GUARD_BYPASS_PREFIXES", []string{"/api/auth", "/_next/static", "/_next/image", "/favicon.ico"}),
		LoginPath:      getEnv("LOGIN_PATH", "/login"),
		HomePath:       getEnv("HOME_PATH", "/"),

		// フロントエンド配信設定
		FrontendUpstreamURL: getEnv("FRONTEND_UPSTREAM_URL", "http://localhost:3001"),
		StaticDir:           getEnv("STATIC_DIR", ""),

		// Redis/イベント設定
		RedisURL:        getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),
		EventTTLMinutes: getEnvAsInt("EVENT_TTL_MINUTES", 24*60),

		// ログイン試行制限
		LoginMaxAttempts:   getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindowMinutes: getEnvAsInt("LOGIN_WINDOW_MINUTES", 15),
		LoginLockMinutes:   getEnvAsInt("LOGIN_LOCK_MINUTES", 10),

		// 開発用認証API設定
		DevAuthPort:            getEnv("DEV_AUTH_PORT", "8080"),
		DevAuthSigningKey:      getEnv("DEV_AUTH_SIGNING_KEY", ""),
		DevAuthAccountsFile:    getEnv("DEV_AUTH_ACCOUNTS_FILE", "dev-accounts.yaml"),
		DevAuthTokenTTLMinutes: getEnvAsInt("DEV_AUTH_TOKEN_TTL_MINUTES", 60),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.TokenCookieName == "" {
		return fmt.Errorf("TOKEN_COOKIE_NAME must not be empty")
	}
	if c.ProfileCookieName == "" || c.ProfileCookieName == c.TokenCookieName {
		return fmt.Errorf("PROFILE_COOKIE_NAME must be set and differ from TOKEN_COOKIE_NAME")
	}
	if c.SessionMaxAgeDays <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_DAYS must be positive")
	}
	if !strings.HasPrefix(c.LoginPath, "/") || !strings.HasPrefix(c.HomePath, "/") {
		return fmt.Errorf("LOGIN_PATH and HOME_PATH must be absolute paths")
	}

	// ローカル開発では秘密鍵などは任意
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if c.AuthAPIURL == "" {
			return fmt.Errorf("AUTH_API_URL is required in release mode")
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数を文字列スライスとして取得します。
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
