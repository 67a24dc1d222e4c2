package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/daedalus"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geodata"
	"github.com/gaia-urban/gaia/backend/internal/geometry"
	"github.com/gaia-urban/gaia/backend/internal/report"
	"github.com/gaia-urban/gaia/backend/internal/upga"
)

var ErrEmptyLayout = errors.New("待评估的布局为空")

// 由输入场景本身导致的错误，重试也不会成功
var inputErrors = []error{
	ErrEmptyLayout,
	geodata.ErrDuplicateSite,
	geodata.ErrAnchorNotFound,
	geometry.ErrAltitudeOutOfRange,
	upga.ErrNotEnoughSites,
	upga.ErrNoBuildings,
	upga.ErrInvalidParameters,
	upga.ErrUnknownSite,
	upga.ErrSiteReused,
	upga.ErrMissingPlacement,
	daedalus.ErrInvalidParameters,
}

// IsInputError 判断错误是否由场景或参数不合法引起
func IsInputError(err error) bool {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// PlacedShape 是某个场地上建筑形体优化的结果
type PlacedShape struct {
	BuildingID string              `json:"buildingID"`
	SiteID     string              `json:"siteID"`
	Site       geodata.SiteRect    `json:"site"`
	TargetGFA  float64             `json:"targetGFA"`
	MaxHeight  float64             `json:"maxHeight"`
	Buildings  []daedalus.Building `json:"buildings"`
	Breakdown  daedalus.Breakdown  `json:"breakdown"`
}

type Plan struct {
	Scenario    string                      `json:"scenario"`
	Urban       *upga.Result                `json:"urban"`
	Explanation upga.Explanation            `json:"explanation"`
	Sites       map[string]geodata.SiteRect `json:"sites"`
	Shapes      []PlacedShape               `json:"shapes"`
	Report      string                      `json:"-"`
	Generations string                      `json:"-"`

	shapeReports []report.Shape
}

type Planner struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{logger: logger}
}

func (p *Planner) prepare(s *domain.Scenario, opts Options) (*geodata.Layers, error) {
	layers, err := geodata.FromScenario(s)
	if err != nil {
		return nil, err
	}
	if err := layers.DescribeSites(s.AnchorSite, opts.RectangleResolution); err != nil {
		return nil, err
	}
	return layers, nil
}

func (opts Options) newRand(offset int64) *rand.Rand {
	if opts.Seed == 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano() + offset))
	}
	return rand.New(rand.NewSource(opts.Seed + offset))
}

// Run 依次运行城市布局优化和每个场地的建筑形体优化
func (p *Planner) Run(ctx context.Context, s *domain.Scenario, opts Options) (*Plan, error) {
	logger := p.logger.With(slog.String("scenario", s.Name))

	layers, err := p.prepare(s, opts)
	if err != nil {
		return nil, fmt.Errorf("准备图层失败: %w", err)
	}

	urbanOpts := []upga.Option{upga.WithRand(opts.newRand(0))}
	if opts.UrbanObserver != nil {
		urbanOpts = append(urbanOpts, upga.WithObserver(opts.UrbanObserver))
	}
	urban, err := upga.New(layers, s.Buildings, opts.Urban, urbanOpts...)
	if err != nil {
		return nil, fmt.Errorf("创建城市布局优化器失败: %w", err)
	}

	start := time.Now()
	result, err := urban.Run(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("城市布局优化完成",
		slog.Duration("duration", time.Since(start)),
		slog.Float64("fitness", result.Breakdown.Total),
	)

	plan := &Plan{
		Scenario:    s.Name,
		Urban:       result,
		Explanation: urban.Explain(result.Best),
		Sites:       make(map[string]geodata.SiteRect, len(layers.Sites)),
		Generations: report.Generations(result.History),
	}
	for _, site := range layers.Sites {
		plan.Sites[site.ID] = site.Rect
	}

	if !opts.SkipShapes {
		if err := p.runShapes(ctx, logger, layers, result, opts, plan); err != nil {
			return nil, err
		}
	}

	plan.Report = p.renderReport(s, layers, opts, plan)
	return plan, nil
}

// runShapes 按场地顺序为每个分配了建筑的场地运行形体优化
func (p *Planner) runShapes(ctx context.Context, logger *slog.Logger, layers *geodata.Layers, result *upga.Result, opts Options, plan *Plan) error {
	for i, site := range layers.Sites {
		buildingID, ok := result.SiteToBuilding[site.ID]
		if !ok {
			logger.Info("场地没有分配建筑，跳过", slog.String("site", site.ID))
			continue
		}
		a := result.Assignments[buildingID]

		params := opts.Shape
		params.TargetGFA = a.TargetGFA
		params.SiteLength = site.Rect.Length
		params.SiteWidth = site.Rect.Width
		params.MaxHeight = math.Round(a.MaxHeight*100) / 100

		shapeOpts := []daedalus.Option{daedalus.WithRand(opts.newRand(int64(i) + 1))}
		if opts.ShapeObserver != nil {
			shapeOpts = append(shapeOpts, daedalus.WithObserver(func(stats daedalus.GenerationStats) {
				opts.ShapeObserver(buildingID, stats)
			}))
		}

		ga, err := daedalus.New(params, shapeOpts...)
		if errors.Is(err, daedalus.ErrInvalidSite) {
			// 找不到内接矩形的场地无法生成形体
			logger.Warn("场地没有可用的内接矩形，跳过形体优化",
				slog.String("site", site.ID),
				slog.String("building", buildingID),
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("创建建筑 %s 的形体优化器失败: %w", buildingID, err)
		}

		start := time.Now()
		shape, err := ga.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("建筑形体优化完成",
			slog.String("site", site.ID),
			slog.String("building", buildingID),
			slog.Duration("duration", time.Since(start)),
			slog.Float64("fitness", shape.Breakdown.Total),
		)

		plan.Shapes = append(plan.Shapes, PlacedShape{
			BuildingID: buildingID,
			SiteID:     site.ID,
			Site:       site.Rect,
			TargetGFA:  a.TargetGFA,
			MaxHeight:  params.MaxHeight,
			Buildings:  shape.Buildings,
			Breakdown:  shape.Breakdown,
		})
		plan.shapeReports = append(plan.shapeReports, report.Shape{
			BuildingID: buildingID,
			SiteID:     site.ID,
			Details:    shape.Report,
		})
	}

	return nil
}

// Evaluate 对一个已确定的布局打分，建筑面积子项固定为 1
func (p *Planner) Evaluate(ctx context.Context, s *domain.Scenario, layout []domain.LayoutEntry, opts Options) (*Plan, error) {
	if len(layout) == 0 {
		return nil, ErrEmptyLayout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	layers, err := p.prepare(s, opts)
	if err != nil {
		return nil, fmt.Errorf("准备图层失败: %w", err)
	}

	targets := make(map[string]float64, len(s.Buildings))
	for _, b := range s.Buildings {
		targets[b.ID] = b.TargetGFA
	}

	specs := make([]domain.BuildingSpec, 0, len(layout))
	placements := make(map[string]upga.Placement, len(layout))
	for _, entry := range layout {
		target, ok := targets[entry.BuildingID]
		if !ok {
			// 没有目标面积时以现状面积为目标
			if i, found := layers.SiteIndex(entry.SiteID); found {
				floors := max(1, math.Round(entry.Height/opts.Urban.FloorHeight))
				target = layers.Sites[i].Area * opts.Urban.FootprintRatio * floors
			}
		}
		specs = append(specs, domain.BuildingSpec{ID: entry.BuildingID, Type: entry.Type, TargetGFA: target})
		placements[entry.BuildingID] = upga.Placement{Type: entry.Type, SiteID: entry.SiteID, Height: entry.Height}
	}

	urban, err := upga.New(layers, specs, opts.Urban)
	if err != nil {
		return nil, fmt.Errorf("创建评估器失败: %w", err)
	}
	ind, err := urban.NewIndividual(placements)
	if err != nil {
		return nil, err
	}

	ex := urban.Explain(ind)
	ex.GFA = 1
	ex.Total = opts.Urban.Weights.Combine(ex.Breakdown)
	ind.Breakdown = ex.Breakdown

	plan := &Plan{
		Scenario:    s.Name,
		Urban:       urban.ResultOf(ind),
		Explanation: ex,
		Sites:       make(map[string]geodata.SiteRect, len(layers.Sites)),
	}
	for _, site := range layers.Sites {
		plan.Sites[site.ID] = site.Rect
	}
	plan.Report = p.renderReport(s, layers, opts, plan)

	p.logger.Info("布局评估完成",
		slog.String("scenario", s.Name),
		slog.Float64("fitness", ex.Total),
	)
	return plan, nil
}

func (p *Planner) renderReport(s *domain.Scenario, layers *geodata.Layers, opts Options, plan *Plan) string {
	assignments := make([]upga.Assignment, 0, len(plan.Urban.Order))
	for _, id := range plan.Urban.Order {
		assignments = append(assignments, plan.Urban.Assignments[id])
	}

	return report.Evaluation(report.Input{
		Title:             s.Name,
		Assignments:       assignments,
		Explanation:       plan.Explanation,
		AccessibilityType: opts.Urban.AccessibilityType,
		NatureArea:        layers.NatureArea,
		Shapes:            plan.shapeReports,
	})
}
