package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the backing stores are reachable.
type HealthHandler struct {
	db    *gorm.DB
	redis redis.UniversalClient
}

// NewHealthHandler checks db and, when non-nil, redis.
func NewHealthHandler(db *gorm.DB, redisClient redis.UniversalClient) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Check pings the database and, when configured, Redis.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.Error(err)
		apierrors.ServiceUnavailable(c, "Database is unreachable")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			c.Error(err)
			apierrors.ServiceUnavailable(c, "Redis is unreachable")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Kanban API is running",
	})
}
