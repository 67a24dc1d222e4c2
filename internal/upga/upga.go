package upga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ctessum/geom"
	"github.com/gaia-urban/gaia/backend/internal/accessibility"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geodata"
	"github.com/gaia-urban/gaia/backend/internal/geometry"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotEnoughSites    = errors.New("场地数量不足，无法为每栋建筑分配不同的场地")
	ErrNoBuildings       = errors.New("没有需要布置的建筑")
	ErrInvalidParameters = errors.New("遗传算法参数不合法")
	ErrUnknownSite       = errors.New("场地不存在")
	ErrSiteReused        = errors.New("同一场地被分配给了多栋建筑")
	ErrMissingPlacement  = errors.New("缺少建筑的布置信息")
)

// GenerationStats 是每一代结束后的统计
type GenerationStats struct {
	Generation  int       `json:"generation"`
	Best        Breakdown `json:"best"`
	MeanFitness float64   `json:"meanFitness"`
}

type Observer func(GenerationStats)

type Optimizer struct {
	layers   *geodata.Layers
	specs    []domain.BuildingSpec
	targets  []float64
	params   Parameters
	scorer   *accessibility.Scorer
	rng      *rand.Rand
	observer Observer

	existingShadows  []geom.Polygon // 现状建筑的阴影不随个体变化，只计算一次
	existingRoofArea float64
}

type Option func(*Optimizer)

func WithRand(rng *rand.Rand) Option {
	return func(o *Optimizer) {
		o.rng = rng
	}
}

func WithObserver(observer Observer) Option {
	return func(o *Optimizer) {
		o.observer = observer
	}
}

func New(layers *geodata.Layers, specs []domain.BuildingSpec, params Parameters, opts ...Option) (*Optimizer, error) {
	if len(specs) == 0 {
		return nil, ErrNoBuildings
	}
	if len(layers.Sites) < len(specs) {
		return nil, fmt.Errorf("%w: %d 个场地, %d 栋建筑", ErrNotEnoughSites, len(layers.Sites), len(specs))
	}
	if params.PopulationSize < 1 || params.Generations < 0 || params.MaxInitialFloors < 1 || params.FloorHeight <= 0 {
		return nil, ErrInvalidParameters
	}
	if params.MutationProbability < 0 || params.MutationProbability > 1 {
		return nil, fmt.Errorf("%w: 变异概率 %v", ErrInvalidParameters, params.MutationProbability)
	}

	// 即使没有现状建筑也要提前检查太阳高度角
	if _, _, err := geometry.Displacement(1, params.Azimuth, params.Altitude); err != nil {
		return nil, err
	}

	o := &Optimizer{
		layers:  layers,
		specs:   specs,
		targets: make([]float64, len(specs)),
		params:  params,
		scorer:  accessibility.NewScorer(layers),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if o.params.Workers < 1 {
		o.params.Workers = 1
	}
	for i, spec := range specs {
		o.targets[i] = spec.TargetGFA
	}
	for _, opt := range opts {
		opt(o)
	}

	o.existingShadows = make([]geom.Polygon, len(layers.Existing))
	for i, e := range layers.Existing {
		shadow, err := geometry.ShadowOf(e.Footprint, e.Height, params.Azimuth, params.Altitude)
		if err != nil {
			return nil, fmt.Errorf("计算现状建筑 %s 的阴影失败: %w", e.ID, err)
		}
		o.existingShadows[i] = shadow
		o.existingRoofArea += e.Area
	}

	return o, nil
}

func (o *Optimizer) Parameters() Parameters {
	return o.params
}

func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	// 生成初始种群
	pop := make([]*Individual, o.params.PopulationSize)
	for i := range pop {
		pop[i] = o.randomInit(o.rng)
	}
	o.evaluateAll(pop)

	best, _ := selectTop2(pop)
	bestEver := best.Clone()
	history := make([]GenerationStats, 0, o.params.Generations)

	for gen := 0; gen < o.params.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("城市布局优化在第 %d 代被中止: %w", gen, err)
		}

		pop = o.nextGeneration(pop)

		genBest, _ := selectTop2(pop)
		if genBest.Fitness() > bestEver.Fitness() {
			// 这里需要深拷贝，防止后续繁殖修改到最佳个体
			bestEver = genBest.Clone()
		}

		stats := GenerationStats{
			Generation:  gen + 1,
			Best:        bestEver.Breakdown.clone(),
			MeanFitness: meanFitness(pop),
		}
		history = append(history, stats)
		if o.observer != nil {
			o.observer(stats)
		}
	}

	return o.result(bestEver, history), nil
}

// nextGeneration 保留精英，其余个体由前两名交叉、变异得到
func (o *Optimizer) nextGeneration(pop []*Individual) []*Individual {
	p1, p2 := selectTop2(pop)

	newPop := make([]*Individual, 0, len(pop))
	newPop = append(newPop, p1.Clone())

	for len(newPop) < len(pop) {
		child := o.crossover(o.rng, p1, p2)
		if o.rng.Float64() < o.params.MutationProbability {
			child = o.mutate(o.rng, child)
		}
		newPop = append(newPop, child)
	}

	// 精英的适应度已经算过
	o.evaluateAll(newPop[1:])
	return newPop
}

// evaluateAll 计算适应度，Workers > 1 时并行计算，每个 goroutine 只写自己的下标
func (o *Optimizer) evaluateAll(pop []*Individual) {
	if o.params.Workers <= 1 {
		for _, ind := range pop {
			ind.Breakdown = o.Evaluate(ind)
		}
		return
	}

	p := pool.New().WithMaxGoroutines(o.params.Workers)
	for _, ind := range pop {
		ind := ind
		p.Go(func() {
			ind.Breakdown = o.Evaluate(ind)
		})
	}
	p.Wait()
}

func meanFitness(pop []*Individual) float64 {
	if len(pop) == 0 {
		return 0
	}
	values := make([]float64, len(pop))
	for i, ind := range pop {
		values[i] = ind.Fitness()
	}
	return stat.Mean(values, nil)
}

// Placement 是一个已确定的建筑布置
type Placement struct {
	Type   domain.BuildingType
	SiteID string
	Height float64
}

// NewIndividual 根据给定的布置构造个体并计算适应度，用于评估现状方案
// 层数由高度按层高取整得到，至少为 1 层
func (o *Optimizer) NewIndividual(placements map[string]Placement) (*Individual, error) {
	ind := &Individual{Genes: make([]Gene, len(o.specs))}
	used := make(map[int]bool, len(o.specs))

	for i, spec := range o.specs {
		pl, ok := placements[spec.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPlacement, spec.ID)
		}
		site, ok := o.layers.SiteIndex(pl.SiteID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSite, pl.SiteID)
		}
		if used[site] {
			return nil, fmt.Errorf("%w: %s", ErrSiteReused, pl.SiteID)
		}
		used[site] = true

		g := Gene{BuildingID: spec.ID, Type: pl.Type, Site: site}
		if g.Type == "" {
			g.Type = spec.Type
		}
		o.setFloors(&g, int(math.Round(pl.Height/o.params.FloorHeight)))
		g.Height = pl.Height
		ind.Genes[i] = g
	}

	ind.Breakdown = o.Evaluate(ind)
	return ind, nil
}

// Assignment 是某栋建筑最终分配到的场地和最大高度
type Assignment struct {
	BuildingID string              `json:"buildingID"`
	Type       domain.BuildingType `json:"type"`
	SiteID     string              `json:"siteID"`
	Floors     int                 `json:"floors"`
	MaxHeight  float64             `json:"maxHeight"`
	GFA        float64             `json:"gfa"`
	TargetGFA  float64             `json:"targetGFA"`
}

type Result struct {
	Assignments    map[string]Assignment `json:"assignments"`    // 建筑 -> 场地
	SiteToBuilding map[string]string     `json:"siteToBuilding"` // 场地 -> 建筑
	Order          []string              `json:"order"`          // 建筑规格的顺序
	Breakdown      Breakdown             `json:"breakdown"`
	History        []GenerationStats     `json:"history,omitempty"`
	Best           *Individual           `json:"-"`
}

func (o *Optimizer) result(best *Individual, history []GenerationStats) *Result {
	r := &Result{
		Assignments:    make(map[string]Assignment, len(best.Genes)),
		SiteToBuilding: make(map[string]string, len(best.Genes)),
		Order:          make([]string, 0, len(best.Genes)),
		Breakdown:      best.Breakdown.clone(),
		History:        history,
		Best:           best,
	}

	for i, g := range best.Genes {
		siteID := o.layers.Sites[g.Site].ID
		r.Assignments[g.BuildingID] = Assignment{
			BuildingID: g.BuildingID,
			Type:       g.Type,
			SiteID:     siteID,
			Floors:     g.Floors,
			MaxHeight:  g.Height,
			GFA:        g.GFA,
			TargetGFA:  o.targets[i],
		}
		r.SiteToBuilding[siteID] = g.BuildingID
		r.Order = append(r.Order, g.BuildingID)
	}

	return r
}

// ResultOf 把给定个体包装为结果，用于评估现状方案
func (o *Optimizer) ResultOf(ind *Individual) *Result {
	return o.result(ind, nil)
}
