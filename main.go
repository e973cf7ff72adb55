// @title Quiz Engine API
// @version 1.0
// @description Quiz attempt and grading backend for the education platform.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"log"

	"eduquiz_backend/internal/app"
	"eduquiz_backend/internal/config"
	"eduquiz_backend/pkg/configwatcher"
	"eduquiz_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if c, ok := newCfg.(*config.Config); ok {
			application.Config = c
			logger.Log.Info("Configuration reloaded")
		}
	})

	application.Run()
}
