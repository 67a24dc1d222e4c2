package daedalus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

var (
	ErrInvalidSite       = errors.New("场地尺寸必须大于 0")
	ErrInvalidParameters = errors.New("遗传算法参数不合法")
)

// GenerationStats 是每一代结束后的统计
type GenerationStats struct {
	Generation int       `json:"generation"`
	Best       Breakdown `json:"best"`
}

type Observer func(GenerationStats)

type Optimizer struct {
	params   Parameters
	levelCap int
	rng      *rand.Rand
	observer Observer
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

func New(params Parameters, opts ...Option) (*Optimizer, error) {
	if params.SiteLength <= 0 || params.SiteWidth <= 0 {
		return nil, fmt.Errorf("%w: %.2f x %.2f", ErrInvalidSite, params.SiteLength, params.SiteWidth)
	}
	if params.PopulationSize < 1 || params.Generations < 0 || params.FloorHeight <= 0 ||
		params.BuildingsPerIndividual < 1 || params.TargetGFA <= 0 || params.MaxHeight <= 0 {
		return nil, ErrInvalidParameters
	}
	if params.MutationProbability < 0 || params.MutationProbability > 1 {
		return nil, fmt.Errorf("%w: 变异概率 %v", ErrInvalidParameters, params.MutationProbability)
	}

	o := &Optimizer{
		params: params,
		// 最大高度通常是层高的整数倍，加一个小量避免浮点误差少算一层
		levelCap: max(1, int(math.Floor(params.MaxHeight/params.FloorHeight+1e-9))),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

func (o *Optimizer) LevelCap() int {
	return o.levelCap
}

type Result struct {
	Buildings []Building        `json:"buildings"`
	Breakdown Breakdown         `json:"breakdown"`
	History   []GenerationStats `json:"history,omitempty"`
	Report    string            `json:"report"`
	Best      *Individual       `json:"-"`
}

func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	// 生成初始种群
	pop := make([]*Individual, o.params.PopulationSize)
	for i := range pop {
		pop[i] = o.randomInit(o.rng)
		pop[i].Breakdown = o.Evaluate(pop[i])
	}

	best, _ := selectTop2(pop)
	bestEver := best.Clone()
	history := make([]GenerationStats, 0, o.params.Generations)

	for gen := 0; gen < o.params.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("建筑形体优化在第 %d 代被中止: %w", gen, err)
		}

		pop = o.nextGeneration(pop)

		genBest, _ := selectTop2(pop)
		if genBest.Fitness() > bestEver.Fitness() {
			bestEver = genBest.Clone()
		}

		stats := GenerationStats{Generation: gen + 1, Best: bestEver.Breakdown}
		history = append(history, stats)
		if o.observer != nil {
			o.observer(stats)
		}
	}

	return &Result{
		Buildings: bestEver.Buildings,
		Breakdown: bestEver.Breakdown,
		History:   history,
		Report:    o.Describe(bestEver),
		Best:      bestEver,
	}, nil
}

// nextGeneration 保留精英，其余个体由前两名交叉、变异得到
func (o *Optimizer) nextGeneration(pop []*Individual) []*Individual {
	p1, p2 := selectTop2(pop)

	newPop := make([]*Individual, 0, len(pop))
	newPop = append(newPop, p1.Clone())

	for len(newPop) < len(pop) {
		c1, c2 := crossover(o.rng, p1, p2)
		for _, child := range []*Individual{c1, c2} {
			if len(newPop) == len(pop) {
				break
			}
			child = o.mutate(o.rng, child)
			child.Breakdown = o.Evaluate(child)
			newPop = append(newPop, child)
		}
	}

	return newPop
}

// Describe 输出个体的建筑参数和适应度明细
func (o *Optimizer) Describe(ind *Individual) string {
	var sb strings.Builder

	for i := range ind.Buildings {
		bd := &ind.Buildings[i]
		fmt.Fprintf(&sb, "--- Building %d ---\n", i+1)
		fmt.Fprintf(&sb, "GFA: %.2f\n", bd.GFA())
		fmt.Fprintf(&sb, "Shape: %s\n", bd.Shape)
		fmt.Fprintf(&sb, "Roof: %s\n", bd.Roof)
		fmt.Fprintf(&sb, "Length: %.2f m\n", bd.Length)
		fmt.Fprintf(&sb, "Width: %.2f m\n", bd.Width)
		fmt.Fprintf(&sb, "Arm1: %.2f m\n", bd.Arm1)
		fmt.Fprintf(&sb, "Arm2: %.2f m\n", bd.Arm2)
		fmt.Fprintf(&sb, "Overhang: %.2f m\n", bd.Overhang)
		fmt.Fprintf(&sb, "Top height: %.2f m\n", bd.TopHeight)
		fmt.Fprintf(&sb, "Levels: %d\n", bd.Levels)
		fmt.Fprintf(&sb, "Window sill: %.2f m\n", bd.WindowSill)
		fmt.Fprintf(&sb, "Window width: %.2f m\n", bd.WindowWidth)
		fmt.Fprintf(&sb, "Window height: %.2f m\n", bd.WindowHeight)
		fmt.Fprintf(&sb, "Distance x: %.2f m\n", bd.DistanceX)
		fmt.Fprintf(&sb, "Distance y: %.2f m\n", bd.DistanceY)
	}

	b := ind.Breakdown
	fmt.Fprintf(&sb, "Fitness compactness: %.3f\n", b.Compactness)
	fmt.Fprintf(&sb, "Fitness PV ratio: %.3f\n", b.PV)
	fmt.Fprintf(&sb, "Fitness WW ratio: %.3f\n", b.WWR)
	fmt.Fprintf(&sb, "Fitness GFA: %.3f\n", b.GFA)
	fmt.Fprintf(&sb, "Fitness green space (unweighted): %.3f\n", b.GreenSpace)
	fmt.Fprintf(&sb, "Fitness building count (unweighted): %.3f\n", b.BuildingCount)
	fmt.Fprintf(&sb, "Fitness similarity (unweighted): %.3f\n", b.Similarity)
	if b.Violation != ViolationNone {
		fmt.Fprintf(&sb, "Constraint violated: %s\n", b.Violation)
	}
	fmt.Fprintf(&sb, "Total fitness: %.4f\n", b.Total)

	return sb.String()
}
