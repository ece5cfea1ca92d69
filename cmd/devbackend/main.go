package main

import (
	"context"

	"github.com/rryowa/storefront/internal/api"
	"github.com/rryowa/storefront/internal/backend"
	"github.com/rryowa/storefront/internal/controller"
	"github.com/rryowa/storefront/internal/util"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger(util.LogLevel())

	tokenConfig, err := util.NewTokenConfig()
	if err != nil {
		logger.Fatal(err)
	}

	directory := backend.NewDirectory(backend.NewTokenService(tokenConfig), logger)
	controller := controller.NewController(logger, directory)

	apiServer, err := api.NewAPI(controller, directory, logger, util.NewServerConfig())
	if err != nil {
		logger.Fatal(err)
	}
	apiServer.Run(ctx)
}
