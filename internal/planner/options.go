package planner

import (
	"github.com/gaia-urban/gaia/backend/internal/config"
	"github.com/gaia-urban/gaia/backend/internal/daedalus"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/upga"
)

// ShapeObserver 接收某栋建筑形体优化每一代的统计
type ShapeObserver func(buildingID string, stats daedalus.GenerationStats)

type Options struct {
	Urban upga.Parameters
	// Shape 中与场地相关的字段（目标面积、场地尺寸、最大高度）由城市布局结果填充
	Shape daedalus.Parameters

	RectangleResolution float64 // 内接矩形的旋转步长（度）
	Seed                int64   // 0 表示使用当前时间
	SkipShapes          bool    // 只运行城市布局优化

	UrbanObserver upga.Observer
	ShapeObserver ShapeObserver
}

func DefaultOptions() Options {
	return Options{
		Urban:               upga.DefaultParameters(),
		Shape:               daedalus.DefaultParameters(),
		RectangleResolution: 1,
	}
}

// WithConfig 用服务配置覆盖默认值，零值不覆盖
func (o Options) WithConfig(c config.OptimizerConfig) Options {
	if c.UrbanPopulation > 0 {
		o.Urban.PopulationSize = c.UrbanPopulation
	}
	if c.UrbanGenerations > 0 {
		o.Urban.Generations = c.UrbanGenerations
	}
	if c.ShapePopulation > 0 {
		o.Shape.PopulationSize = c.ShapePopulation
	}
	if c.ShapeGenerations > 0 {
		o.Shape.Generations = c.ShapeGenerations
	}
	if c.MutationProbability > 0 {
		o.Urban.MutationProbability = c.MutationProbability
		o.Shape.MutationProbability = c.MutationProbability
	}
	if c.Workers > 0 {
		o.Urban.Workers = c.Workers
	}
	if c.RectangleResolution > 0 {
		o.RectangleResolution = c.RectangleResolution
	}

	return o
}

// WithScenario 用场景中的太阳位置和参数覆盖默认值，零值不覆盖
func (o Options) WithScenario(s *domain.Scenario) Options {
	o.Urban.Azimuth = s.Sun.Azimuth
	o.Urban.Altitude = s.Sun.Altitude

	opts := s.Options
	if opts.UrbanPopulation > 0 {
		o.Urban.PopulationSize = opts.UrbanPopulation
	}
	if opts.UrbanGenerations > 0 {
		o.Urban.Generations = opts.UrbanGenerations
	}
	if opts.ShapePopulation > 0 {
		o.Shape.PopulationSize = opts.ShapePopulation
	}
	if opts.ShapeGenerations > 0 {
		o.Shape.Generations = opts.ShapeGenerations
	}
	if opts.MutationProbability > 0 {
		o.Urban.MutationProbability = opts.MutationProbability
		o.Shape.MutationProbability = opts.MutationProbability
	}
	if opts.AccessibilityType != "" {
		o.Urban.AccessibilityType = domain.BuildingType(opts.AccessibilityType)
	}
	if opts.Seed != 0 {
		o.Seed = opts.Seed
	}
	if opts.SkipShapes {
		o.SkipShapes = true
	}

	return o
}
