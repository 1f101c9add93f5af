package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cryptoj/internal/common/cache"
	"cryptoj/internal/common/db"
	"cryptoj/internal/common/middleware"
	"cryptoj/internal/common/storage"
	"cryptoj/internal/judge/api"
	"cryptoj/internal/judge/checkpoint"
	"cryptoj/internal/judge/engine"
	"cryptoj/internal/judge/event"
	"cryptoj/internal/judge/intake"
	"cryptoj/internal/judge/sandbox"
	"cryptoj/internal/judge/scheduler"
	"cryptoj/internal/judge/store"
	"cryptoj/internal/notify"
	"cryptoj/pkg/utils/logger"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQL(appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()
	submissionStore := store.New(mysqlDB)

	var redisClient *redis.Client
	if appCfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedis(appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisClient.Close()
		}()
	}

	sandboxClient, err := sandbox.NewClient(appCfg.Sandbox)
	if err != nil {
		logger.Error(context.Background(), "init sandbox client failed", zap.Error(err))
		return
	}

	var opener checkpoint.Opener
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		opener = checkpoint.NewCache(appCfg.Archive.RootDir, appCfg.MinIO.Bucket,
			appCfg.Archive.TTL, appCfg.Archive.MaxEntries, objStorage)
	} else {
		opener = checkpoint.DirOpener{Root: appCfg.Archive.RootDir}
	}

	bus := event.NewBus()
	defer bus.Close()

	judgeEngine := engine.New(sandboxClient, opener,
		appCfg.SizeLimit.CompileOutput, appCfg.SizeLimit.RunOutput)
	loop := scheduler.NewLoop(submissionStore, judgeEngine, bus, appCfg.Sandbox.CheckInterval)
	submissionIntake := intake.New(submissionStore, redisClient, loop.Wake)
	hub := notify.NewHub(bus)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(context.Background(), "judge loop stopped", zap.Error(err))
		}
	}()
	go hub.Run(rootCtx)

	httpServer := buildHTTPServer(appCfg.Server, submissionStore, submissionIntake, loop, hub)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-rootCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		logger.Warn(context.Background(), "judge loop did not stop in time")
	}
}

func buildHTTPServer(cfg ServerConfig, submissionStore *store.Store, submissionIntake *intake.Intake, loop *scheduler.Loop, hub *notify.Hub) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceContext())
	router.Use(requestLogger())

	api.NewHandler(submissionStore, submissionIntake, loop, hub.Handle).Register(router)

	return &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
