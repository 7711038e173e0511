package handler

import (
	"context"
	"net/http"
	"time"

	"tillpoint/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health reports liveness of the service and both stores. A degraded store
// flips the status code to 503 so orchestrators stop routing traffic. The
// close-report queue depth is included as an operational hint: a growing
// backlog means the worker pool is falling behind, or down.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		healthy := true

		postgres := "up"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			postgres = "down"
			healthy = false
		}

		redisState := "up"
		var queueDepth int64 = -1
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisState = "down"
			healthy = false
		} else if depth, err := rdb.LLen(ctx, worker.QueueCloseReport).Result(); err == nil {
			queueDepth = depth
		}

		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":       status,
			"postgres":     postgres,
			"redis":        redisState,
			"report_queue": queueDepth,
		})
	}
}
