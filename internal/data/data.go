// Package data provides data access layer implementations.
// It handles database connections and data persistence.
package data

import (
	"farmlokal/internal/biz"

	"github.com/google/wire"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	NewCacheClient,
	NewMySQLClient,
	NewProductRepo,
	NewRateLimitRepo,
	NewTokenRepo,
	NewEventLedgerRepo,
	NewOAuthClient,
	NewAPIClient,
	wire.Bind(new(biz.ProductRepo), new(*ProductRepo)),
	wire.Bind(new(biz.RateLimitRepo), new(*RateLimitRepo)),
	wire.Bind(new(biz.TokenRepo), new(*TokenRepo)),
	wire.Bind(new(biz.EventLedgerRepo), new(*EventLedgerRepo)),
	wire.Bind(new(biz.TokenProvider), new(*OAuthClient)),
	wire.Bind(new(biz.UpstreamClient), new(*APIClient)),
)
