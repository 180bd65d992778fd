// Package devauth はローカル開発用の認証APIスタブを提供します。
//
// 本番の認証APIと同じ形の応答を返し、exp と organization_id を含むトークンを発行します。
package devauth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Account は開発用アカウントの定義です。
type Account struct {
	OrganizationCode string `yaml:"organization_code"`
	OrganizationID   int64  `yaml:"organization_id"`
	Organization     string `yaml:"organization"`
	UserID           int64  `yaml:"user_id"`
	Username         string `yaml:"username"`
	PasswordHash     string `yaml:"password_hash"`
	Role             string `yaml:"role"`
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// LoadAccounts は YAML ファイルからアカウント一覧を読み込みます。
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	var file accountsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	for i, a := range file.Accounts {
		if a.OrganizationCode == "" || a.Username == "" || a.PasswordHash == "" {
			return nil, fmt.Errorf("account #%d: organization_code, username and password_hash are required", i+1)
		}
	}
	return file.Accounts, nil
}

// Server は開発用の認証APIです。
type Server struct {
	accounts   map[string]Account
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewServer は Server を作成します。
func NewServer(accounts []Account, signingKey []byte, tokenTTL time.Duration) (*Server, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("signing key is required")
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	index := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		index[accountKey(a.OrganizationCode, a.Username)] = a
	}
	return &Server{
		accounts:   index,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}, nil
}

type loginRequest struct {
	OrganizationCode string `json:"organization_code" binding:"required"`
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
}

// Login は POST /auth/login のハンドラーです。
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_code、username、password は必須です"})
		return
	}

	account, ok := s.accounts[accountKey(req.OrganizationCode, req.Username)]
	if !ok || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "組織コード、ユーザー名またはパスワードが正しくありません"})
		return
	}

	token, err := s.issue(account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "トークンの発行に失敗しました"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        token,
		"user_id":      account.UserID,
		"username":     account.Username,
		"role":         account.Role,
		"organization": account.Organization,
	})
}

func (s *Server) issue(a Account) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":             fmt.Sprint(a.UserID),
		"organization_id": a.OrganizationID,
		"role":            a.Role,
		"iat":             now.Unix(),
		"exp":             now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Register は router にエンドポイントを登録します。
func (s *Server) Register(router gin.IRoutes) {
	router.POST("/auth/login", s.Login)
}

func accountKey(org, username string) string {
	return org + "\x00" + username
}
