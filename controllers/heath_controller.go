package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/e-course-backend/services"
	"github.com/vnkhanh/e-course-backend/ws"
)

func HealthCheck(db services.Database, hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Mặc định trạng thái OK
		response := gin.H{
			"status":    "ok",
			"message":   "Service is healthy",
			"timestamp": time.Now().Unix(),
			"db":        "ok",
			"websocket": gin.H{
				"enabled": true,
				"clients": hub.Len(),
			},
		}

		// Thử ping backend
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			response["db"] = "error: cannot connect to DB"
			response["status"] = "degraded"
			c.JSON(http.StatusInternalServerError, response)
			return
		}

		c.JSON(http.StatusOK, response)
	}
}
