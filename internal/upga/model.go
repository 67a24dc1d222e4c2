package upga

import (
	"slices"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geodata"
)

// Gene: 表示某栋建筑的布置决策
type Gene struct {
	BuildingID string
	Type       domain.BuildingType
	Site       int // layers.Sites 中的下标
	Floors     int
	Height     float64
	GFA        float64
}

// Individual: 一个完整的布置方案，基因按建筑规格的顺序排列，场地互不相同
type Individual struct {
	Genes     []Gene
	Breakdown Breakdown
}

func (ind *Individual) Fitness() float64 {
	return ind.Breakdown.Total
}

// Clone 深拷贝，算子只修改拷贝
func (ind *Individual) Clone() *Individual {
	return &Individual{
		Genes:     slices.Clone(ind.Genes),
		Breakdown: ind.Breakdown.clone(),
	}
}

// Weights 是六个子目标的权重
type Weights struct {
	GFA             float64 `json:"gfa"`
	ShadowNature    float64 `json:"shadowNature"`
	Walkability     float64 `json:"walkability"`
	Cycleability    float64 `json:"cycleability"`
	Service         float64 `json:"service"`
	ShadowBuildings float64 `json:"shadowBuildings"`
}

func EqualWeights() Weights {
	w := 1.0 / 6
	return Weights{GFA: w, ShadowNature: w, Walkability: w, Cycleability: w, Service: w, ShadowBuildings: w}
}

// Combine 计算加权总分
func (w Weights) Combine(b Breakdown) float64 {
	return w.GFA*b.GFA +
		w.ShadowNature*b.ShadowNature +
		w.Walkability*b.Walkability +
		w.Cycleability*b.Cycleability +
		w.Service*b.Service +
		w.ShadowBuildings*b.ShadowBuildings
}

// ServiceGroup 描述某类建筑关心的服务设施
type ServiceGroup struct {
	Type      domain.BuildingType
	AnyShop   bool     // 带有 shop 标签的设施都算
	Amenities []string // 匹配的 amenity 标签
}

func (g ServiceGroup) Matches(s geodata.Service) bool {
	if g.AnyShop && s.Shop != "" {
		return true
	}
	return s.Amenity != "" && slices.Contains(g.Amenities, s.Amenity)
}

func DefaultServiceGroups() []ServiceGroup {
	return []ServiceGroup{
		{Type: domain.BuildingTypeApartment, AnyShop: true, Amenities: []string{"cafe", "supermarket"}},
		{Type: domain.BuildingTypeOffice, Amenities: []string{"cafe", "restaurant"}},
	}
}

// 遗传算法参数
type Parameters struct {
	PopulationSize      int     // 种群大小
	Generations         int     // 迭代次数
	MutationProbability float64 // 每个后代发生变异的概率
	FootprintRatio      float64 // 建筑占地面积与场地面积之比
	FloorHeight         float64 // 层高
	MaxInitialFloors    int     // 初始化时的最大层数

	Azimuth  float64
	Altitude float64

	AccessibilityType domain.BuildingType // 可达性评估的目的地建筑类型
	ServiceGroups     []ServiceGroup
	Weights           Weights

	NaturePenalty float64 // 阴影落在自然区域的放大系数
	AreaPenalty   float64 // 建筑间遮挡面积的放大系数
	HitPenalty    float64 // 被遮挡现状建筑数量的放大系数

	Workers int // 并行计算适应度的 goroutine 数，1 表示串行
}

func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:      100,
		Generations:         200,
		MutationProbability: 0.1,
		FootprintRatio:      0.7,
		FloorHeight:         2.26,
		MaxInitialFloors:    15,
		Azimuth:             180,
		Altitude:            30,
		AccessibilityType:   domain.BuildingTypeSchool,
		ServiceGroups:       DefaultServiceGroups(),
		Weights:             EqualWeights(),
		NaturePenalty:       5,
		AreaPenalty:         50,
		HitPenalty:          1,
		Workers:             1,
	}
}
