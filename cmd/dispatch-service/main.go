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
	"rivoj/internal/common/db"
	commonmw "rivoj/internal/common/http/middleware"
	"rivoj/internal/common/mq"
	"rivoj/internal/dispatch/controller"
	"rivoj/internal/dispatch/dispatcher"
	"rivoj/internal/dispatch/options"
	"rivoj/internal/dispatch/pool"
	"rivoj/internal/dispatch/queue"
	"rivoj/internal/dispatch/repository"
	"rivoj/internal/dispatch/rpc"
	"rivoj/internal/dispatch/stats"
	"rivoj/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/dispatch_service.yaml"

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

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	optsSvc := options.NewService(redisCache, appCfg.Options.TTL)
	if appCfg.Auth.JudgeToken != "" {
		if err := optsSvc.SetJudgeToken(context.Background(), appCfg.Auth.JudgeToken); err != nil {
			logger.Error(context.Background(), "seed judge token failed", zap.Error(err))
			return
		}
	}

	workerPool := pool.NewPool(mysqlDB)
	pendingQueue := queue.NewPendingQueue(redisCache)
	judgeRPC := rpc.NewClient(optsSvc, appCfg.RPC.JudgeTimeout)
	spjRPC := rpc.NewClient(optsSvc, appCfg.RPC.SPJTimeout)
	spjCompiler := rpc.NewSPJCompiler(workerPool, spjRPC, optsSvc)

	submissionRepo := repository.NewSubmissionRepository(mysqlDB)
	problemRepo := repository.NewProblemRepository(mysqlDB)
	userRepo := repository.NewUserRepository(mysqlDB)
	contestRepo := repository.NewContestRepository(mysqlDB)
	statsStore := repository.NewStatsStore(mysqlDB)
	statsUpdater := stats.NewUpdater(statsStore, stats.NewContestRankCache(redisCache))

	disp := dispatcher.New(dispatcher.Config{
		Submissions: submissionRepo,
		Problems:    problemRepo,
		Users:       userRepo,
		Contests:    contestRepo,
		Pool:        workerPool,
		Queue:       pendingQueue,
		Client:      judgeRPC,
		Stats:       statsUpdater,
		Languages:   optsSvc,
		Redispatch:  dispatcher.NewQueueRedispatcher(mqClient, appCfg.Kafka.Topic),
	})
	consumer := dispatcher.NewConsumer(disp)

	err = mqClient.SubscribeWithOptions(context.Background(), appCfg.Kafka.Topic, consumer.HandleMessage, &mq.SubscribeOptions{
		ConsumerGroup:   appCfg.Kafka.ConsumerGroup,
		Concurrency:     appCfg.Kafka.Concurrency,
		MaxRetries:      appCfg.Kafka.MaxRetries,
		RetryDelay:      appCfg.Kafka.RetryDelay,
		DeadLetterTopic: appCfg.Kafka.DeadLetter,
	})
	if err != nil {
		logger.Error(context.Background(), "subscribe kafka failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg, workerPool, optsSvc, disp, problemRepo, spjCompiler)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "dispatch http server started", zap.String("addr", appCfg.Server.Addr))
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

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}

func buildHTTPServer(appCfg *AppConfig, workerPool *pool.Pool, optsSvc *options.Service,
	disp *dispatcher.Dispatcher, problems *repository.ProblemRepository, spjCompiler *rpc.SPJCompiler) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	hb := controller.NewHeartbeatController(workerPool, optsSvc, disp)
	admin := controller.NewWorkerAdminController(workerPool, disp)
	spj := controller.NewSPJController(problems, spjCompiler)
	controller.RegisterRoutes(router, hb, admin, spj, appCfg.Auth.JWTSecret)

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
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
