package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"vision-classifier/config"
	"vision-classifier/internal/api/rest"
	"vision-classifier/internal/api/telegram"
	app "vision-classifier/internal/application"
	"vision-classifier/internal/container"
	"vision-classifier/internal/domain/entity"
	"vision-classifier/internal/infrastructure/onnx"
	"vision-classifier/internal/infrastructure/storage"
	"vision-classifier/internal/infrastructure/vision"
	"vision-classifier/internal/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Init("info")
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	if cfg.TelegramToken == "" && cfg.HTTPAddr == "" {
		log.Error("nothing to run: set TELEGRAM_TOKEN or HTTP_ADDR")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Error("service stopped", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}

func run(cfg *config.Config) error {
	labels, err := storage.LoadLabels(cfg.LabelsPath)
	if err != nil {
		log.Warn("labels not loaded, using class indexes", "path", cfg.LabelsPath, "error", err)
		labels = entity.Labels{}
	}

	// Собираем адаптеры и сервисы
	c := container.New(container.Deps{
		UserRepo: storage.NewMemoryUserRepository(),
		Loader: onnx.NewLoader(onnx.Config{
			LibraryPath:    cfg.Model.LibraryPath,
			IntraOpThreads: cfg.Model.IntraOpThreads,
		}),
		Resizer:       vision.NewResizer(cfg.PNGLossless),
		Camera:        vision.NewGoCVCamera(cfg.Camera.Device, cfg.Camera.Quality),
		Permissions:   vision.DevicePermissions{Enabled: cfg.Camera.Enabled, Path: cfg.Camera.DevicePath},
		Labels:        labels,
		Normalization: cfg.Normalization,
		TopK:          cfg.TopK,
		Capture: app.CaptureConfig{
			Interval:       cfg.Camera.Interval,
			StatusInterval: cfg.Camera.StatusInterval,
		},
	})
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Загрузка один раз при старте, без повторов: статус остаётся "Error: ..."
	if err := c.Classifier.LoadModel(ctx, cfg.Model.Source()); err != nil {
		log.Error("model load failed", "path", cfg.Model.Path, "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, c)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}
		g.Go(func() error { return bot.Run(ctx) })
	}

	if cfg.HTTPAddr != "" {
		server := rest.NewServer(c)
		g.Go(func() error { return server.Run(ctx, cfg.HTTPAddr) })
	}

	log.Info("service is running", "http", cfg.HTTPAddr, "telegram", cfg.TelegramToken != "")
	return g.Wait()
}
