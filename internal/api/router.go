package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"clinic-session-backend/config"
	"clinic-session-backend/internal/mw"
	"clinic-session-backend/internal/notify"
	"clinic-session-backend/internal/session"
	"clinic-session-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, sessions *session.Manager, hub *notify.Hub, webpushOptions *webpush.Options, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, sessions, hub, webpushOptions)

	// Initialize middleware
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	api.Use(mw.Auth(cfg.Auth.JWTSecret))
	{
		// Session lifecycle
		api.POST("/appointments/:id/start", handler.StartAppointment)
		api.POST("/appointments/:id/pause", handler.PauseAppointment)
		api.POST("/appointments/:id/resume", handler.ResumeAppointment)
		api.POST("/appointments/:id/stop", handler.StopAppointment)
		api.PUT("/appointments/:id/duration", handler.UpdateAppointmentDuration)
		api.POST("/appointments/:id/assign-device", handler.AssignDevice)
		api.GET("/appointments/:id/equipment-availability", handler.GetAppointmentAvailability)

		// Equipment views
		api.GET("/equipment", caching, handler.GetEquipment)
		api.GET("/clinics/:clinic_id/equipment", caching, handler.GetClinicEquipment)

		// Push subscriptions
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		// Real-time timer events
		api.GET("/ws", handler.Subscribe)
	}

	return r
}
