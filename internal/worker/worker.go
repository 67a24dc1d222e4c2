package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/daedalus"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/metrics"
	"github.com/gaia-urban/gaia/backend/internal/planner"
	"github.com/gaia-urban/gaia/backend/internal/upga"
	"github.com/google/uuid"
)

// ErrMalformedTask 表示消息无法解析，重新投递也无济于事
var ErrMalformedTask = errors.New("无法解析优化任务")

type RunStore interface {
	GetRunByID(id uuid.UUID) (*domain.Run, error)
	StartRun(run *domain.Run) error
	FinishRun(run *domain.Run) error
	ResetRun(run *domain.Run) error
	GetUserByID(id int64) (*domain.User, error)
}

type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Progress 接收运行过程中的进度
type Progress interface {
	SetTotals(urban, shape int)
	Urban(stats upga.GenerationStats)
	Shape(buildingID string, stats daedalus.GenerationStats)
	Done(bestFitness float64)
}

type Worker struct {
	store       RunStore
	publisher   Publisher
	planner     *planner.Planner
	metrics     *metrics.Metrics
	newProgress func(runID uuid.UUID) Progress
	options     planner.Options
	runTimeout  time.Duration
	logger      *slog.Logger
}

func New(store RunStore, publisher Publisher, p *planner.Planner, m *metrics.Metrics, newProgress func(uuid.UUID) Progress, options planner.Options, runTimeout time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:       store,
		publisher:   publisher,
		planner:     p,
		metrics:     m,
		newProgress: newProgress,
		options:     options,
		runTimeout:  runTimeout,
		logger:      logger,
	}
}

// Handle 处理一条优化任务消息。
// 返回的错误只表示基础设施故障，调用方应当把消息重新入队；
// 场景本身不合法时运行会被标记为失败，返回 nil
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var task domain.OptimizationTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	logger := w.logger.With(slog.String("run", task.RunID.String()))

	run, err := w.store.GetRunByID(task.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn("运行不存在，可能已被删除")
			return nil
		}
		return err
	}

	if err := w.store.StartRun(run); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// 只有排队中的运行才会被执行，重复投递的消息直接忽略
			logger.Info("运行不在排队状态，跳过", slog.String("status", string(run.Status)))
			return nil
		}
		return err
	}

	w.metrics.RunStarted()
	start := time.Now()
	plan, runErr := w.execute(ctx, run)
	duration := time.Since(start)

	if runErr != nil {
		if !planner.IsInputError(runErr) && ctx.Err() != nil {
			// worker 正在关闭，把运行放回队列以便重新执行
			w.metrics.RunAborted()
			if err := w.store.ResetRun(run); err != nil {
				return errors.Join(runErr, err)
			}
			return runErr
		}
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
		logger.Warn("运行失败", slog.String("error", runErr.Error()))
	} else {
		result, err := json.Marshal(plan)
		if err != nil {
			return err
		}
		best := plan.Urban.Breakdown.Total
		run.Status = domain.RunStatusSucceeded
		run.Result = result
		run.Report = plan.Report + "\n" + plan.Generations
		run.BestFitness = &best
		logger.Info("运行完成", slog.Duration("duration", duration), slog.Float64("fitness", best))
	}
	w.metrics.RunFinished(run.Status, duration)

	if err := w.store.FinishRun(run); err != nil {
		return err
	}

	w.notify(ctx, logger, run)
	return nil
}

func (w *Worker) execute(ctx context.Context, run *domain.Run) (*planner.Plan, error) {
	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	opts := w.options.WithScenario(&run.Scenario)
	tracker := w.newProgress(run.ID)
	tracker.SetTotals(opts.Urban.Generations, opts.Shape.Generations)

	opts.UrbanObserver = func(stats upga.GenerationStats) {
		tracker.Urban(stats)
		w.metrics.ObserveGeneration(domain.StageUrban, stats.Best.Total)
	}
	opts.ShapeObserver = func(buildingID string, stats daedalus.GenerationStats) {
		tracker.Shape(buildingID, stats)
		w.metrics.ObserveGeneration(domain.StageShape, stats.Best.Total)
	}

	plan, err := w.planner.Run(ctx, &run.Scenario, opts)
	if err != nil {
		return nil, err
	}
	tracker.Done(plan.Urban.Breakdown.Total)

	return plan, nil
}

// notify 通知运行的创建者，失败只记录日志
func (w *Worker) notify(ctx context.Context, logger *slog.Logger, run *domain.Run) {
	user, err := w.store.GetUserByID(run.CreatedBy)
	if err != nil {
		logger.Warn("无法获取运行创建者", slog.String("error", err.Error()))
		return
	}

	data := domain.RunFinishedMailData{
		FullName: user.FullName,
		RunID:    run.ID.String(),
		RunName:  run.Name,
		Status:   run.Status,
		Error:    run.Error,
	}
	if run.BestFitness != nil {
		data.BestFitness = *run.BestFitness
	}

	msg := domain.MailMessage{Type: domain.MailTypeRunFinished, To: user.Email, Data: data}
	if err := w.publisher.Publish(ctx, domain.EmailQueue, msg); err != nil {
		logger.Warn("无法投递运行完成邮件", slog.String("error", err.Error()))
	}
}
