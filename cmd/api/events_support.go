package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/portal-edge/internal/config"
	"github.com/yourusername/portal-edge/internal/events"
)

// eventLister は最近のイベントを返すものです。
type eventLister interface {
	Recent(ctx context.Context, limit int) ([]events.Event, error)
}

func setupEvents(cfg *config.Config, rdb *redis.Client) (*events.Manager, error) {
	ttlMinutes := cfg.EventTTLMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 24 * 60
	}
	store := events.NewStore(rdb, time.Duration(ttlMinutes)*time.Minute)
	manager, err := events.NewManager(cfg.RedisURL, store, log.Default())
	if err != nil {
		return nil, err
	}
	return manager, nil
}

func recentEventsHandler(lister eventLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    "INVALID_INPUT",
					"message": "limit は正の整数で指定してください。",
				})
				return
			}
			limit = n
		}

		recent, err := lister.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "イベントの取得に失敗しました。",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"events": recent})
	}
}
