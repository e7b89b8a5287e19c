// Package health exposes liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Checker is an extra readiness dependency, such as the lock backend.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler serves /health and /health/ready.
type Handler struct {
	db       *gorm.DB
	service  string
	checkers map[string]Checker
}

// NewHandler creates a Handler. db may be nil when the service runs
// without a database.
func NewHandler(db *gorm.DB, service string) *Handler {
	return &Handler{db: db, service: service, checkers: make(map[string]Checker)}
}

// AddChecker registers a named readiness dependency.
func (h *Handler) AddChecker(name string, c Checker) {
	h.checkers[name] = c
}

// RegisterRoutes mounts the health endpoints.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
}

// Live reports that the process is up.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Ready pings every dependency.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if h.db != nil {
		checks["database"] = "ok"
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = err.Error()
			ready = false
		}
	}
	for name, checker := range h.checkers {
		checks[name] = "ok"
		if err := checker.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
		}
	}

	status, label := http.StatusOK, "ready"
	if !ready {
		status, label = http.StatusServiceUnavailable, "not_ready"
	}
	c.JSON(status, gin.H{"status": label, "service": h.service, "checks": checks})
}
