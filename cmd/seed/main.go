package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/config"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/queue"
	"github.com/gaia-urban/gaia/backend/internal/repository"
	"github.com/gaia-urban/gaia/backend/internal/seed"
	amqp "github.com/rabbitmq/amqp091-go"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var randSeed int64

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入规划师账号, 2: 插入示例运行并投递到优化队列)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.Int64Var(&randSeed, "seed", 0, "生成示例场景的随机种子，0 表示使用当前时间")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if n <= 0 {
		logger.Error("请输入合法的记录数量")
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		logger.Error("未指定操作")
	case 1:
		cnt := 0
		for i := 0; i < n; i++ {
			user, err := seed.CreatePlanner(cfg, repo, i+1)
			if err != nil {
				logger.Error("无法插入规划师", slog.String("error", err.Error()))
				continue
			}
			logger.Info("插入规划师", slog.String("username", user.Username))
			cnt++
		}

		logger.Info("插入规划师成功", slog.Int("count", cnt))
	case 2:
		if err := insertDemoRuns(logger, cfg, repo, n, randSeed); err != nil {
			logger.Error("无法插入示例运行", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		logger.Error("指定的操作非法")
	}
}

// insertDemoRuns 以初始管理员的身份插入示例运行，并投递给 worker
func insertDemoRuns(logger *slog.Logger, cfg *config.Config, repo *repository.Repository, n int, randSeed int64) error {
	if err := seed.EnsureInitialAdmin(cfg, repo); err != nil {
		return err
	}
	admin, err := repo.GetUserByUsername(cfg.InitialAdmin.Username)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := queue.Declare(ch, domain.OptimizationQueue); err != nil {
		return err
	}
	publisher := queue.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(randSeed))

	cnt := 0
	for i := 0; i < n; i++ {
		s, err := seed.DemoScenario(rng, seed.DefaultDemoOptions())
		if err != nil {
			return err
		}
		s.Name = fmt.Sprintf("%s #%d", s.Name, i+1)

		run, err := seed.CreateDemoRun(repo, s, admin.ID)
		if err != nil {
			logger.Error("无法插入示例运行", slog.String("error", err.Error()))
			continue
		}
		if err := publisher.Publish(context.Background(), domain.OptimizationQueue, domain.OptimizationTask{RunID: run.ID}); err != nil {
			logger.Error("无法投递优化任务", slog.String("run", run.ID.String()), slog.String("error", err.Error()))
			continue
		}

		logger.Info("插入示例运行", slog.String("run", run.ID.String()), slog.String("name", run.Name))
		cnt++
	}

	logger.Info("插入示例运行成功", slog.Int("count", cnt), slog.Int64("seed", randSeed))
	return nil
}
