//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"farmlokal/internal/biz"
	"farmlokal/internal/conf"
	"farmlokal/internal/data"
	"farmlokal/internal/server"
	"farmlokal/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Upstream, *conf.RateLimit, *conf.Breaker, *conf.Auth, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		newCryptoService,
		newApp,
	))
}
