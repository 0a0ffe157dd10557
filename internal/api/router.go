package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"parking-availability-backend/config"
	"parking-availability-backend/internal/auth"
	"parking-availability-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, tokens *auth.TokenManager, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	if len(cfg.AllowedOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
		r.Use(cors.New(corsCfg))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	authRequired := mw.Auth(tokens)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/login", h.Login)

		// Dashboard reads; cached briefly since occupancy moves slowly.
		api.GET("/areas", caching, h.GetAreas)
		api.GET("/areas/:area_id/slots", caching, h.GetAreaSlots)
		api.GET("/areas/:area_id/free", caching, h.GetAreaFreeSlots)
		api.GET("/slots/available", caching, h.GetAvailableSlots)
		api.GET("/observations/recent", caching, h.GetRecentObservations)

		// Slot detail resolves the caller's session when a token is present,
		// so it stays uncached.
		api.GET("/slots/:slot_id", mw.OptionalAuth(tokens), h.GetSlot)

		// Simulated sensor updates.
		api.POST("/slots/:slot_id/observations", h.PostObservation)

		// Session lifecycle.
		api.POST("/slots/:slot_id/occupy", authRequired, h.Occupy)
		api.POST("/slots/:slot_id/leave", authRequired, h.Leave)
		api.GET("/sessions", authRequired, h.GetSessions)
		api.POST("/sessions/:session_id/pay", authRequired, h.Pay)

		// Web push subscriptions.
		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
