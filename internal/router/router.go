package router // HTTP route registration

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/feastfriends/feastfriends/internal/config"
	"github.com/feastfriends/feastfriends/internal/handler"
	"github.com/feastfriends/feastfriends/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check and the Prometheus scrape
// endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth, while /v1/me requires
// a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterMatching registers the matching and voting endpoints.  All of
// them require a valid access token; the join endpoint additionally sits
// behind the Redis token bucket because it is the write-heavy entry point
// of the flow.
func RegisterMatching(e *echo.Echo, m *handler.MatchingHandler, g *handler.GroupHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.NewTokenBucket(rlCfg, rdb))

	auth.POST("/matching/join", m.Join)
	auth.POST("/rooms/:id/leave", m.Leave)
	auth.GET("/rooms/:id", m.RoomStatus)
	auth.GET("/rooms/:id/users", m.RoomUsers)

	auth.POST("/groups/:id/vote", g.Vote)
	auth.POST("/groups/:id/leave", g.Leave)
	auth.GET("/groups/:id", g.Status)
}
