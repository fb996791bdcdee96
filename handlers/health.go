package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Check reports whether one backend dependency is usable.
type Check func(ctx context.Context) error

var startTime = time.Now()

// RegisterHealth mounts /health and /ready. When cause is set the portal runs
// without a backend and /ready always answers 503 with that diagnostic.
func RegisterHealth(r gin.IRouter, cause error, checks map[string]Check) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		uptime := time.Since(startTime).Round(time.Second).String()
		if cause != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": cause.Error(), "uptime": uptime})
			return
		}
		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		ready := true
		deps := map[string]bool{}
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err := checks[name](ctx)
			cancel()
			deps[name] = err == nil
			if err != nil {
				ready = false
			}
		}
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})
}
