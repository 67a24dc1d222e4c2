package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/config"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/metrics"
	"github.com/gaia-urban/gaia/backend/internal/planner"
	"github.com/gaia-urban/gaia/backend/internal/progress"
	"github.com/gaia-urban/gaia/backend/internal/queue"
	"github.com/gaia-urban/gaia/backend/internal/repository"
	"github.com/gaia-urban/gaia/backend/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", slog.String("error", err.Error()))
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()
	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", slog.String("error", err.Error()))
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          0,
		DialTimeout: time.Duration(cfg.Redis.ConnectTimeout) * time.Second,
	})
	defer rdb.Close()

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	// worker 消费优化队列，并向邮件队列投递通知
	if err := queue.Declare(ch, domain.OptimizationQueue, domain.EmailQueue); err != nil {
		logger.Error("无法声明队列", slog.String("error", err.Error()))
		return
	}

	// 一次只取一个任务，优化任务会长时间占用 CPU
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Error("无法设置预取数量", slog.String("error", err.Error()))
		return
	}

	msgs, err := ch.Consume(
		domain.OptimizationQueue, // 队列
		"",                       // 消费者标识，由 RabbitMQ 自动分配
		false,                    // 是否自动确认
		false,                    // 是否独占队列
		false,                    // no-local，RabbitMQ 不支持
		false,                    // 是否不等待
		nil,                      // 额外参数
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 创建 worker
	 **********************************************/
	m := metrics.New()
	progressExpiration := time.Duration(cfg.Optimizer.ProgressExpiration) * time.Second
	redisTimeout := time.Duration(cfg.Redis.OperationExpiration) * time.Second
	newProgress := func(runID uuid.UUID) worker.Progress {
		return progress.NewTracker(rdb, runID, progressExpiration, redisTimeout, logger)
	}

	w := worker.New(
		repo,
		queue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second),
		planner.New(logger),
		m,
		newProgress,
		planner.DefaultOptions().WithConfig(cfg.Optimizer),
		time.Duration(cfg.Optimizer.RunTimeout)*time.Second,
		logger,
	)

	/**********************************************
	 * 暴露 prometheus 指标
	 **********************************************/
	mux := chi.NewRouter()
	mux.Method(http.MethodGet, "/metrics", m.Handler())
	metricsSrv := &http.Server{
		Addr:     fmt.Sprintf(":%s", cfg.Metrics.Port),
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	go func() {
		logger.Info("正在启动指标服务器...", slog.String("port", cfg.Metrics.Port))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("无法启动指标服务器", slog.String("error", err.Error()))
		}
	}()

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 用于关闭 goroutine 的上下文，取消后正在运行的优化会被中止并重新入队
	ctx, stop := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("消息通道已关闭")
					return
				}

				err := w.Handle(ctx, msg.Body)
				switch {
				case err == nil:
					_ = msg.Ack(false)
				case errors.Is(err, worker.ErrMalformedTask):
					logger.Error("丢弃无法解析的任务", slog.String("error", err.Error()))
					_ = msg.Nack(false, false)
				default:
					logger.Error("任务处理失败，重新入队", slog.String("error", err.Error()))
					_ = msg.Nack(false, true)
				}
			}
		}
	}()

	logger.Info("等待优化任务...（按 CTRL+C 退出）")
	<-sigChan

	// 优雅退出
	logger.Info("正在关闭 optimization worker...")
	stop()
	wg.Wait()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancelShutdown()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭指标服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("optimization worker 已成功关闭")
}
