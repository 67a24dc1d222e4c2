package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/daedalus"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/upga"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotFound = errors.New("没有找到运行进度")

func Key(runID uuid.UUID) string {
	return fmt.Sprintf("run_progress_%s", runID)
}

// Tracker 把每一代的进度写入 redis 的 hash 中
type Tracker struct {
	rdb        redis.Cmdable
	runID      uuid.UUID
	expiration time.Duration
	timeout    time.Duration
	logger     *slog.Logger

	urbanGenerations int
	shapeGenerations int
}

func NewTracker(rdb redis.Cmdable, runID uuid.UUID, expiration, timeout time.Duration, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		rdb:        rdb,
		runID:      runID,
		expiration: expiration,
		timeout:    timeout,
		logger:     logger.With(slog.String("run", runID.String())),
	}
}

// SetTotals 记录两个阶段的总迭代次数
func (t *Tracker) SetTotals(urban, shape int) {
	t.urbanGenerations = urban
	t.shapeGenerations = shape
}

func (t *Tracker) Urban(stats upga.GenerationStats) {
	t.save(domain.RunProgress{
		Stage:       domain.StageUrban,
		Generation:  stats.Generation,
		Generations: t.urbanGenerations,
		BestFitness: stats.Best.Total,
	})
}

func (t *Tracker) Shape(buildingID string, stats daedalus.GenerationStats) {
	t.save(domain.RunProgress{
		Stage:       domain.StageShape,
		Subject:     buildingID,
		Generation:  stats.Generation,
		Generations: t.shapeGenerations,
		BestFitness: stats.Best.Total,
	})
}

func (t *Tracker) Done(bestFitness float64) {
	t.save(domain.RunProgress{
		Stage:       domain.StageDone,
		BestFitness: bestFitness,
	})
}

// save 写入失败只记录日志，不影响优化本身
func (t *Tracker) save(p domain.RunProgress) {
	p.UpdatedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	key := Key(t.runID)
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, toHash(p))
		pipe.Expire(ctx, key, t.expiration)
		return nil
	})
	if err != nil {
		t.logger.Warn("无法写入运行进度", slog.String("error", err.Error()))
	}
}

func Get(ctx context.Context, rdb redis.Cmdable, runID uuid.UUID) (*domain.RunProgress, error) {
	values, err := rdb.HGetAll(ctx, Key(runID)).Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	return fromHash(values)
}

func toHash(p domain.RunProgress) map[string]any {
	return map[string]any{
		"stage":       string(p.Stage),
		"subject":     p.Subject,
		"generation":  p.Generation,
		"generations": p.Generations,
		"bestFitness": strconv.FormatFloat(p.BestFitness, 'g', -1, 64),
		"updatedAt":   p.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func fromHash(values map[string]string) (*domain.RunProgress, error) {
	p := &domain.RunProgress{
		Stage:   domain.RunStage(values["stage"]),
		Subject: values["subject"],
	}

	var err error
	if p.Generation, err = strconv.Atoi(values["generation"]); err != nil {
		return nil, fmt.Errorf("无效的进度字段 generation: %w", err)
	}
	if p.Generations, err = strconv.Atoi(values["generations"]); err != nil {
		return nil, fmt.Errorf("无效的进度字段 generations: %w", err)
	}
	if p.BestFitness, err = strconv.ParseFloat(values["bestFitness"], 64); err != nil {
		return nil, fmt.Errorf("无效的进度字段 bestFitness: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, values["updatedAt"]); err != nil {
		return nil, fmt.Errorf("无效的进度字段 updatedAt: %w", err)
	}

	return p, nil
}
