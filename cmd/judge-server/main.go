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

	"rivoj/internal/common/cache"
	"rivoj/internal/common/storage"
	"rivoj/internal/judgeapi"
	"rivoj/internal/judgeserver/compiler"
	"rivoj/internal/judgeserver/judgeclient"
	"rivoj/internal/judgeserver/sandbox"
	"rivoj/internal/judgeserver/server"
	"rivoj/internal/judgeserver/sysinfo"
	"rivoj/internal/judgeserver/testdata"
	"rivoj/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_server.yaml"

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

	for _, dir := range []string{appCfg.Judge.WorkspaceDir, appCfg.Judge.SPJSrcDir, appCfg.Judge.SPJExeDir, appCfg.Cache.RootDir} {
		if err := os.MkdirAll(dir, 0711); err != nil {
			logger.Error(context.Background(), "prepare directory failed", zap.String("dir", dir), zap.Error(err))
			return
		}
	}

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	runner, err := sandbox.NewRunner(sandbox.Options{HelperPath: appCfg.Sandbox.HelperPath})
	if err != nil {
		logger.Error(context.Background(), "init sandbox runner failed", zap.Error(err))
		return
	}

	comp := compiler.New(runner, appCfg.Users.CompilerUID, appCfg.Users.CompilerGID)
	spjStore := compiler.NewSPJStore(comp, appCfg.Judge.SPJSrcDir, appCfg.Judge.SPJExeDir)
	client, err := judgeclient.New(judgeclient.Options{
		Runner:      runner,
		RunUID:      appCfg.Users.RunUID,
		RunGID:      appCfg.Users.RunGID,
		SPJUID:      appCfg.Users.SPJUID,
		SPJGID:      appCfg.Users.SPJGID,
		Parallelism: appCfg.Judge.Parallelism,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge client failed", zap.Error(err))
		return
	}

	dataCache := testdata.NewCache(appCfg.Cache.RootDir, appCfg.Cache.TTL, appCfg.Cache.LockWait,
		appCfg.Cache.MaxEntries, appCfg.Cache.MaxBytes, appCfg.MinIO.Bucket, objStorage, redisCache)

	svc, err := server.NewService(server.ServiceConfig{
		WorkspaceDir: appCfg.Judge.WorkspaceDir,
		DebugMode:    appCfg.Judge.DebugMode,
	}, comp, spjStore, client, dataCache)
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	hashedToken := judgeapi.HashToken(appCfg.Token)
	collector := sysinfo.NewCollector()

	reporter, err := server.NewHeartbeatReporter(server.HeartbeatConfig{
		DispatchURL: appCfg.Heartbeat.DispatchURL,
		ServiceURL:  appCfg.Heartbeat.ServiceURL,
		Interval:    appCfg.Heartbeat.Interval,
	}, hashedToken, collector)
	if err != nil {
		logger.Error(context.Background(), "init heartbeat reporter failed", zap.Error(err))
		return
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go reporter.Start(heartbeatCtx)

	httpServer := buildHTTPServer(appCfg.Server, svc, collector, hashedToken)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	stopHeartbeat()
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, svc *server.Service, collector *sysinfo.Collector, hashedToken string) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	ctrl := server.NewController(svc, collector, hashedToken)
	ctrl.RegisterRoutes(router)

	return &http.Server{
		Addr:         cfg.Addr,
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
