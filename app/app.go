package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	transcodeHttp "sizefit-service/ddd/adapter/http"
	"sizefit-service/ddd/application/app"
	"sizefit-service/ddd/domain/gateway"
	"sizefit-service/ddd/domain/service"
	"sizefit-service/ddd/infrastructure/events"
	"sizefit-service/ddd/infrastructure/executor"
	"sizefit-service/ddd/infrastructure/registry"
	"sizefit-service/ddd/infrastructure/storage"
	"sizefit-service/ddd/infrastructure/sweeper"
	"sizefit-service/internal/resource"
	"sizefit-service/pkg/config"
	"sizefit-service/pkg/logger"
	"sizefit-service/pkg/middleware"
	"sizefit-service/pkg/observability"
	serviceRegistry "sizefit-service/pkg/registry"
	"sizefit-service/pkg/task"
)

func Run() {
	fmt.Println("[STARTUP] Starting sizefit service...")

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	defer logService.Close()

	logger.Debug("Logger initialized", map[string]interface{}{
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})

	if profiler := observability.StartProfiling(cfg.Profiling); profiler != nil {
		defer func() { _ = profiler.Stop() }()
	}

	if err := run(cfg); err != nil {
		logger.Errorf("Service stopped with error=%v", err)
		logService.Close()
		os.Exit(1)
	}
	logger.Infof("Server exited safely")
}

func run(cfg *config.Config) error {
	if cfg.Auth.UsingDefaults {
		logger.Warnf("Using default credentials login=%s, set LOGIN and PASSWORD to change them", cfg.Auth.Login)
	}
	for _, bin := range []string{cfg.Transcode.FFmpegPath, cfg.Transcode.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Warnf("binary not found, transcodes will fail binary=%s error=%v", bin, err)
		}
	}
	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir %s: %w", cfg.Upload.Dir, err)
	}
	if cfg.Server.StaticPath == "" {
		logger.Warnf("No static directory found, only the API is served")
	} else if info, err := os.Stat(cfg.Server.StaticPath); err != nil || !info.IsDir() {
		logger.Warnf("Static directory missing path=%s", cfg.Server.StaticPath)
	}
	logger.Infof("Sizefit service starting upload_dir=%s static=%s", cfg.Upload.Dir, cfg.Server.StaticPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// jobCtx outlives ctx long enough for the HTTP server to drain.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	var publisher gateway.JobEventPublisher = gateway.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaRes, err := resource.OpenKafka(cfg.Kafka)
		if err != nil {
			return err
		}
		defer kafkaRes.Close()
		publisher = events.NewKafkaPublisher(kafkaRes.Client(), kafkaRes.Topic(), 5*time.Second)
	}

	var archive gateway.OutputArchive
	if cfg.Minio.Enabled {
		minioRes, err := resource.OpenMinio(ctx, cfg.Minio)
		if err != nil {
			return err
		}
		archive = storage.NewMinioArchive(minioRes, cfg.Minio.Prefix)
	}

	var rateStore middleware.WindowStore
	if cfg.RateLimit.Enabled {
		rateStore = middleware.NewMemoryWindowStore()
		if cfg.Redis.Enabled {
			redisRes, err := resource.OpenRedis(ctx, cfg.Redis)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer redisRes.Close()
			rateStore = middleware.NewRedisWindowStore(redisRes.Client())
		}
	}

	jobs := registry.NewMemoryJobRegistry()
	planner := service.NewBitratePlanner(service.PlannerOptions{
		AllowedCodecs:           cfg.Transcode.AllowedCodecs,
		DefaultAudioBitrateKbps: cfg.Planner.DefaultAudioBitrateKbps,
		MinVideoBitrateKbps:     cfg.Planner.MinVideoBitrateKbps,
		RotationAware:           cfg.Planner.RotationAware,
	})
	pipeline := service.NewEncodePipeline(
		jobs,
		executor.NewFFmpegPassRunner(cfg.Transcode.FFmpegPath, cfg.Transcode.StderrTailLines),
		executor.NewFFmpegThumbnailer(cfg.Transcode.FFmpegPath, cfg.Upload.Dir, cfg.Transcode.ThumbnailTimeout),
		publisher,
		archive,
		service.PipelineConfig{
			PassTimeout: cfg.Transcode.PassTimeout,
			Preset:      cfg.Transcode.Preset,
			AudioCodec:  cfg.Transcode.AudioCodec,
		},
	)
	prober := executor.NewFFprobeReader(cfg.Transcode.FFprobePath, cfg.Transcode.ProbeTimeout)
	transcodeApp := app.NewTranscodeApp(jobCtx, cfg.Upload.Dir, jobs, prober, planner, pipeline, publisher)
	deliveryApp := app.NewDeliveryApp(cfg.Upload.Dir, jobs, publisher)

	tasks := task.NewManager()
	tasks.Register(sweeper.NewRetentionSweeper(cfg.Upload.Dir, cfg.Retention.MaxAge, cfg.Retention.SweepInterval, jobs))
	if cfg.Discovery.Enabled {
		announcer, err := serviceRegistry.NewServiceRegistry(cfg.Discovery, cfg.AdvertiseAddr())
		if err != nil {
			return err
		}
		tasks.Register(announcer)
	}
	if err := tasks.StartAll(ctx); err != nil {
		return err
	}
	defer tasks.StopAll()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := transcodeHttp.NewRouter(
		transcodeHttp.NewTranscodeController(transcodeApp, cfg.Upload.Dir, cfg.Upload.MaxFileSize, cfg.Upload.FieldName),
		transcodeHttp.NewDeliveryController(deliveryApp, cfg.Server.StaticPath, cfg.Delivery.NotReadyPolicy),
		transcodeHttp.RouterOptions{
			Accounts:       gin.Accounts{cfg.Auth.Login: cfg.Auth.Password},
			RateLimitStore: rateStore,
			RateLimit:      cfg.RateLimit.Limit,
			RateWindow:     cfg.RateLimit.Window,
			RateKeyPrefix:  cfg.RateLimit.KeyPrefix,
		},
	)
	engine := router.NewEngine()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("HTTP server started addr=%s ping_url=http://localhost:%d/api/ping", server.Addr, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Received shutdown signal, shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		cancelJobs()
		transcodeApp.Wait()
		return err
	})
	return g.Wait()
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config.prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
