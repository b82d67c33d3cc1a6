package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moodfi/vibecheck/internal/config"
	"github.com/moodfi/vibecheck/internal/log"
	"github.com/moodfi/vibecheck/pkg/camera"
	"github.com/moodfi/vibecheck/pkg/detect"
	"github.com/moodfi/vibecheck/pkg/history"
	"github.com/moodfi/vibecheck/pkg/training"
	"github.com/moodfi/vibecheck/pkg/verify"
	"github.com/moodfi/vibecheck/pkg/web"
)

func main() {
	configPath := flag.String("config", "moodfi.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Init("info")
		log.L().Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Detector cascade: YuNet with FER+ expressions as primary, a
	// randomized standby so the engine stays responsive when the
	// models cannot be fetched.
	detectCfg := detect.DefaultConfig()
	detectCfg.FaceModelPath = filepath.Join(cfg.ModelDir, "face_detection_yunet.onnx")
	detectCfg.EmotionModelPath = filepath.Join(cfg.ModelDir, "emotion_ferplus.onnx")
	detectCfg.FaceModelURL = cfg.FaceModelURL
	detectCfg.EmotionModelURL = cfg.EmotionModelURL

	yunet := detect.NewYuNet(detectCfg)
	cascade, err := detect.NewCascade(yunet, detect.NewFallback(nil))
	if err != nil {
		logger.Error("detector setup failed", "error", err)
		os.Exit(1)
	}
	defer cascade.Close()

	// Warm the models before serving so first-request latency stays
	// low. The cascade degrades instead of failing.
	loadCtx, loadCancel := context.WithTimeout(ctx, 2*time.Minute)
	if err := cascade.LoadModels(loadCtx); err != nil {
		logger.Error("no detection backend available", "error", err)
		loadCancel()
		os.Exit(1)
	}
	loadCancel()

	cameraCfg := camera.DefaultConfig()
	cameraCfg.Device = cfg.CameraDevice
	manager, err := camera.NewManager(cameraCfg)
	if err != nil {
		logger.Error("camera setup failed", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(cfg.ListenAddr, web.Deps{
		Verifier:    verify.New(cascade),
		History:     history.NewRing(history.DefaultCapacity),
		Frames:      web.CameraAcquirer(manager),
		ModelsReady: yunet.Loaded,
		Scheduler: training.IntervalScheduler{
			Interval: time.Duration(cfg.DetectionIntervalMS) * time.Millisecond,
		},
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("moodfi vibecheck engine starting",
		"addr", cfg.ListenAddr,
		"camera", cfg.CameraDevice,
		"models_loaded", yunet.Loaded(),
	)
	if err := server.Start(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
