// Package main はローカル開発用の認証APIスタブのエントリーポイントです。
package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/portal-edge/internal/config"
	"github.com/yourusername/portal-edge/internal/devauth"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GinMode == gin.ReleaseMode {
		log.Fatalf("authstub is for local development only")
	}
	if cfg.DevAuthSigningKey == "" {
		log.Fatalf("DEV_AUTH_SIGNING_KEY is required")
	}

	accounts, err := devauth.LoadAccounts(cfg.DevAuthAccountsFile)
	if err != nil {
		log.Fatalf("Failed to load accounts: %v", err)
	}

	srv, err := devauth.NewServer(accounts, []byte(cfg.DevAuthSigningKey), time.Duration(cfg.DevAuthTokenTTLMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("Failed to create auth stub: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	router := gin.Default()
	srv.Register(router.Group("/api/v1"))

	addr := ":" + cfg.DevAuthPort
	log.Printf("Starting dev auth API on %s with %d accounts", addr, len(accounts))
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
