package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/gymstack/gymstack/internal/app"
	iauth "github.com/gymstack/gymstack/internal/auth"
	"github.com/gymstack/gymstack/internal/handlers"
	"github.com/gymstack/gymstack/internal/middleware"
	"github.com/gymstack/gymstack/internal/realtime"
	"github.com/gymstack/gymstack/internal/services"
)

// Deps bundles the constructed services the router wires into handlers.
type Deps struct {
	DB          *gorm.DB
	JWT         *iauth.JWTService
	Classes     *services.ClassService
	Sessions    *services.CheckInSessionService
	Enrollments *services.EnrollmentService
	Scans       *services.ScanService
	Members     *services.MemberService
	Hub         *realtime.Hub
	RateStore   middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(cfg *app.Config, deps Deps) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(deps.RateStore, cfg.Server.RateLimit.MaxRequests, cfg.Server.RateLimit.Window))
	}

	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(deps.DB))
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	registerClassRoutes(api, deps)
	registerCheckInRoutes(api, deps)
	registerMemberRoutes(api, deps)

	return r, nil
}
