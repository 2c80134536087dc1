package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saccoguard/internal/config"
	"saccoguard/internal/fraud"
	"saccoguard/internal/handler"
	"saccoguard/internal/infrastructure/cache"
	"saccoguard/internal/infrastructure/database"
	"saccoguard/internal/infrastructure/mq"
	"saccoguard/internal/job"
	"saccoguard/internal/logging"
	"saccoguard/internal/repository"
	"saccoguard/internal/service"
	"saccoguard/pkg/idgen"
)

func main() {
	if err := run("config/config.yaml"); err != nil {
		slog.Error("服务异常退出", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log)

	loc, err := cfg.Business.Location()
	if err != nil {
		return err
	}

	// 初始化 ID 生成器
	ids, err := idgen.New(1)
	if err != nil {
		return err
	}

	// 初始化 MySQL
	db, err := database.NewMySQL(&cfg.MySQL)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Error("关闭 MySQL 失败", "error", err)
		}
	}()

	// 初始化 Redis
	redisClient, err := cache.NewRedis(&cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// 初始化 Kafka
	producer, err := mq.NewProducer(&cfg.Kafka)
	if err != nil {
		return err
	}
	defer producer.Close()

	// 组装反欺诈评分与业务服务
	scorer := fraud.NewScorer(
		repository.NewFraudStore(db),
		fraud.WithLocation(loc),
		fraud.WithLogger(logger.With("component", "fraud")),
	)
	summaryCache := cache.NewJSONCache(redisClient, cfg.Business.DashboardCacheTTL())
	monitor := service.NewFraudMonitor(db, scorer, summaryCache, cfg, logger)

	memberService := service.NewMemberService(db, ids)
	transactionService := service.NewTransactionService(db, redisClient, cfg, ids, monitor, logger)
	alertService := service.NewAlertService(db, summaryCache, logger)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务，退出前等待其结束，再关闭 DB 和 Kafka
	waitJobs := job.StartAll(ctx,
		job.NewOutboxSender(db, producer, cfg, logger),
		job.NewScoringBackfillJob(db, monitor, cfg, logger),
	)

	h := handler.NewHandler(memberService, transactionService, alertService, logger)
	router := handler.SetupRouter(h, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("服务启动", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		cancel()
		waitJobs()
		return fmt.Errorf("服务启动失败: %w", err)
	}

	logger.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务关闭异常", "error", err)
	}

	waitJobs()

	logger.Info("服务已关闭")
	return nil
}
