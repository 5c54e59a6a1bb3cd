package app

import (
	"assetactivity/internal/config"
	"context"
	"os/signal"
	"syscall"
	"time"
)

// Run We assemble the container, start it, wait for the signal and stop
func Run(cfg *config.Config) error {
	ctxBuild, cancelBuild := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelBuild()

	container, err := Build(ctxBuild, cfg)
	if err != nil {
		return err
	}

	if err = container.Start(); err != nil {
		container.cleanup()
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-sigCtx.Done():
	case runErr = <-container.app.Errors():
	}

	if err = container.Stop(cfg.App.ShutdownTimeout); err != nil {
		return err
	}
	return runErr
}
