// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rapidaai/dictamed/config"
	internal_cli "github.com/rapidaai/dictamed/internal/cli"
	"github.com/rapidaai/dictamed/pkg/commons"
)

func main() {
	viperConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("unable to initialize config: %v", err)
	}
	appConfig, err := config.GetApplicationConfig(viperConfig)
	if err != nil {
		log.Fatalf("unable to load config: %v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(appConfig.Name),
		commons.Path(appConfig.LogPath),
		commons.Level(appConfig.LogLevel),
	)
	if err != nil {
		log.Fatalf("unable to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown requested")
		cancel()
	}()

	root := internal_cli.NewRootCmd(logger, appConfig)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Errorf("command failed: %v", err)
		os.Exit(1)
	}
}
