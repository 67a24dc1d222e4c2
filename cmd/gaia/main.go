package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/config"
	"github.com/gaia-urban/gaia/backend/internal/daedalus"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/planner"
	"github.com/gaia-urban/gaia/backend/internal/seed"
	"github.com/gaia-urban/gaia/backend/internal/upga"
	"github.com/gaia-urban/gaia/backend/internal/utils"
	"github.com/go-playground/validator/v10"
)

type flags struct {
	scenario   string
	demo       bool
	report     string
	plan       string
	seed       int64
	skipShapes bool
	verbose    bool
}

func main() {
	var f flags
	flag.StringVar(&f.scenario, "scenario", "", "场景文件路径 (YAML 或 JSON)")
	flag.BoolVar(&f.demo, "demo", false, "不读取场景文件，使用随机生成的示例场景")
	flag.StringVar(&f.report, "report", "", "把评估报告写入指定文件")
	flag.StringVar(&f.plan, "plan", "", "把优化结果以 JSON 格式写入指定文件")
	flag.Int64Var(&f.seed, "seed", 0, "随机种子，0 表示使用场景中的种子或当前时间")
	flag.BoolVar(&f.skipShapes, "skip-shapes", false, "只运行城市布局优化")
	flag.BoolVar(&f.verbose, "v", false, "输出每一代的进度")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// CTRL+C 会中止正在运行的优化
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, f); err != nil {
		logger.Error("运行失败", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	cfg, err := config.LoadOptimizerConfig()
	if err != nil {
		return fmt.Errorf("无法读取配置: %w", err)
	}

	s, err := loadScenario(f)
	if err != nil {
		return err
	}
	if f.seed != 0 {
		s.Options.Seed = f.seed
	}
	if f.skipShapes {
		s.Options.SkipShapes = true
	}

	opts := planner.DefaultOptions().WithConfig(*cfg).WithScenario(s)
	if f.verbose {
		opts.UrbanObserver = func(stats upga.GenerationStats) {
			logger.Info("城市布局", slog.Int("generation", stats.Generation), slog.Float64("best", stats.Best.Total))
		}
		opts.ShapeObserver = func(buildingID string, stats daedalus.GenerationStats) {
			logger.Info("建筑形体", slog.String("building", buildingID), slog.Int("generation", stats.Generation), slog.Float64("best", stats.Best.Total))
		}
	}

	start := time.Now()
	plan, err := planner.New(logger).Run(ctx, s, opts)
	if err != nil {
		return err
	}
	logger.Info("优化完成", slog.Duration("duration", time.Since(start)), slog.Float64("fitness", plan.Urban.Breakdown.Total))

	fmt.Println(plan.Report)

	if f.report != "" {
		if err := os.WriteFile(f.report, []byte(plan.Report+"\n"+plan.Generations), 0o644); err != nil {
			return fmt.Errorf("无法写入报告: %w", err)
		}
	}
	if f.plan != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.plan, data, 0o644); err != nil {
			return fmt.Errorf("无法写入优化结果: %w", err)
		}
	}

	return nil
}

// loadScenario 读取并校验场景
func loadScenario(f flags) (*domain.Scenario, error) {
	var (
		s   *domain.Scenario
		err error
	)
	switch {
	case f.scenario != "":
		s, err = seed.LoadScenarioFile(f.scenario)
	case f.demo:
		randSeed := f.seed
		if randSeed == 0 {
			randSeed = time.Now().UnixNano()
		}
		s, err = seed.DemoScenario(rand.New(rand.NewSource(randSeed)), seed.DefaultDemoOptions())
	default:
		return nil, errors.New("必须指定 -scenario 或 -demo")
	}
	if err != nil {
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("场景不合法: %w", err)
	}
	if err := utils.ValidateScenario(s); err != nil {
		return nil, fmt.Errorf("场景不合法: %w", err)
	}

	return s, nil
}
