// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/blog-cms/internal/handler"
	"github.com/iliyamo/blog-cms/internal/metrics"
)

// RegisterRoutes registers routes that need no authentication: the health
// probe and the metrics endpoint.
func RegisterRoutes(e *echo.Echo, gatherer prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	}
}

// RegisterAuth mounts the /api/auth endpoints. register and login sit behind
// limiter; me and logout sit behind gate.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, gate, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth")

	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)

	g.GET("/me", a.Me, gate)
	g.POST("/logout", a.Logout, gate)
}
