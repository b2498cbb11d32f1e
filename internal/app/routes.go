package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deepscholar/core/internal/modules/aicontent"
	"github.com/deepscholar/core/internal/modules/discuss"
	"github.com/deepscholar/core/internal/modules/overview"
)

var processStart = time.Now()

func (a *App) registerRoutes(content *aicontent.Service, ov *overview.Service, disc *discuss.Service) {
	a.router.GET("/healthz", a.healthz)

	api := a.router.Group("/api/v1")
	aicontent.NewHandler(content).RegisterRoutes(api)
	overview.NewHandler(ov, content, a.logger).RegisterRoutes(api)
	discuss.NewHandler(disc).RegisterRoutes(api)
}

func (a *App) healthz(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(processStart).Truncate(time.Second).String(),
	})
}
