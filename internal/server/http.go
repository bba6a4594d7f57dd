// Package server assembles the HTTP transport.
package server

import (
	"farmlokal/internal/biz"
	"farmlokal/internal/conf"
	"farmlokal/internal/server/middleware"
	"farmlokal/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	limiter *biz.RateLimiterUseCase,
	catalog *service.CatalogService,
	auth *service.AuthService,
	external *service.ExternalService,
	logger log.Logger,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logger),
			middleware.RateLimit(limiter),
		),
	}
	if c.HTTP != nil {
		if c.HTTP.Network != "" {
			opts = append(opts, http.Network(c.HTTP.Network))
		}
		if c.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.HTTP.Addr))
		}
		if c.HTTP.Timeout > 0 {
			opts = append(opts, http.Timeout(c.HTTP.Timeout))
		}
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, catalog, auth, external)

	return srv
}

// registerRoutes binds the route table.
func registerRoutes(srv *http.Server, catalog *service.CatalogService, auth *service.AuthService, external *service.ExternalService) {
	r := srv.Route("/")

	r.GET("/products", catalog.ListProducts)
	r.GET("/products/{id}", catalog.GetProduct)
	r.POST("/products/{id}/stock", catalog.UpdateStock)

	r.GET("/auth/token", auth.GetToken)
	r.POST("/auth/refresh", auth.RefreshToken)
	r.GET("/auth/status", auth.TokenStatus)

	r.GET("/external/api-a/{id}", external.FetchFromAPIA)
	r.POST("/external/webhook", external.IngestWebhook)
	r.GET("/external/circuit-status", external.CircuitStatus)
	r.GET("/external/await-callback/{callbackId}", external.AwaitCallback)
}
