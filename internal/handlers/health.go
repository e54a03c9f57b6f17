package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/supplai-io/supplai/internal/models"
)

const readyTimeout = 2 * time.Second

// Ready checks if the service is ready to accept requests
// @Summary      Checks if the service is ready to accept requests
// @Description  Checks that the database and, when configured, redis answer
// @Id           Ready
// @Tags         Private
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      503  {object}  models.BaseError
// @Router       /ready [get]
func (api *API) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	sqlDB, err := api.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		api.Logger(ctx).Warnw("database not ready", "error", err)
		c.JSON(http.StatusServiceUnavailable, models.BaseError{Error: "database unavailable"})
		return
	}
	if api.Redis != nil {
		if err := api.Redis.Ping(ctx).Err(); err != nil {
			api.Logger(ctx).Warnw("redis not ready", "error", err)
			c.JSON(http.StatusServiceUnavailable, models.BaseError{Error: "redis unavailable"})
			return
		}
	}
	api.Live(c)
}

// Live checks if the service is live
// @Summary      Checks if the service is live
// @Description  Checks if the service is live
// @Id           Live
// @Tags         Private
// @Accept       json
// @Produce      json
// @Success      200
// @Router       /live [get]
func (api *API) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
	})
}
