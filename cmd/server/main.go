package main

import (
	"fmt"
	"os"

	"github.com/medinfo-ai/medinfo/internal/config"
	"github.com/medinfo-ai/medinfo/internal/logger"
	"github.com/medinfo-ai/medinfo/internal/services"
)

func main() {
	cfg := config.MustLoad()
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	invoker := services.NewGeminiInvoker(cfg.Model.BaseURL, cfg.Model.Temperature)
	app, err := newApplication(cfg, log, invoker)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	return app.serve()
}
