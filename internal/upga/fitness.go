package upga

import (
	"math"
	"slices"

	"github.com/ctessum/geom"
	"github.com/gaia-urban/gaia/backend/internal/accessibility"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geometry"
	"gonum.org/v1/gonum/stat"
)

const (
	// 建筑间遮挡的面积惩罚与数量惩罚的组合权重
	areaPenaltyWeight = 0.4
	hitPenaltyWeight  = 0.7
)

type GroupScore struct {
	Type  domain.BuildingType `json:"type"`
	Score float64             `json:"score"`
}

// Breakdown 是适应度的各个子项，除 Total 外均在 [0,1] 内
type Breakdown struct {
	GFA             float64      `json:"gfa"`
	ShadowNature    float64      `json:"shadowNature"`
	Walkability     float64      `json:"walkability"`
	Cycleability    float64      `json:"cycleability"`
	Service         float64      `json:"service"`
	ServiceByGroup  []GroupScore `json:"serviceByGroup"`
	ShadowBuildings float64      `json:"shadowBuildings"`
	Total           float64      `json:"total"`
}

func (b Breakdown) clone() Breakdown {
	b.ServiceByGroup = slices.Clone(b.ServiceByGroup)
	return b
}

// ShadowHit 记录一次高建筑对矮建筑的遮挡
type ShadowHit struct {
	Caster         string  `json:"caster"`
	CasterHeight   float64 `json:"casterHeight"`
	Receiver       string  `json:"receiver"`
	ReceiverHeight float64 `json:"receiverHeight"`
	Overlap        float64 `json:"overlap"`
}

// Explanation 在子项得分之外给出报告所需的面积统计
type Explanation struct {
	Breakdown

	NewRoofArea          float64     `json:"newRoofArea"`
	NatureShadowArea     float64     `json:"natureShadowArea"`
	ConflictAreaNew      float64     `json:"conflictAreaNew"`      // 现状建筑投在新建筑上
	ConflictAreaExisting float64     `json:"conflictAreaExisting"` // 新建筑投在现状建筑上
	CastOnExisting       []ShadowHit `json:"castOnExisting"`
	CastOnNew            []ShadowHit `json:"castOnNew"`
}

// Evaluate 计算个体的适应度，不修改个体本身
func (o *Optimizer) Evaluate(ind *Individual) Breakdown {
	return o.Explain(ind).Breakdown
}

func (o *Optimizer) Explain(ind *Individual) Explanation {
	var ex Explanation

	// 每次评估都重新计算阴影
	shadows := make([]geom.Polygon, len(ind.Genes))
	for i, g := range ind.Genes {
		// 高度角已在 New 中校验过，这里不会出错
		shadows[i], _ = geometry.ShadowOf(o.layers.Sites[g.Site].Footprint, g.Height, o.params.Azimuth, o.params.Altitude)
		ex.NewRoofArea += o.layers.Sites[g.Site].Area
	}

	ex.GFA = o.gfaScore(ind)
	ex.ShadowNature, ex.NatureShadowArea = o.shadowNatureScore(shadows)
	ex.Walkability, ex.Cycleability = o.accessibilityScores(ind)
	ex.Service, ex.ServiceByGroup = o.serviceScore(ind)
	o.shadowBuildingScore(ind, shadows, &ex)
	ex.Total = o.params.Weights.Combine(ex.Breakdown)

	return ex
}

// gfaScore: 理想层数 = floor(目标面积 / (场地面积 × 占地率))，按层数偏差打分
func (o *Optimizer) gfaScore(ind *Individual) float64 {
	if len(ind.Genes) == 0 {
		return 0
	}

	scores := make([]float64, len(ind.Genes))
	for i, g := range ind.Genes {
		footprint := o.layers.Sites[g.Site].Area * o.params.FootprintRatio
		if footprint <= 0 {
			continue
		}
		ideal := math.Floor(o.targets[i] / footprint)
		if ideal <= 0 {
			continue
		}
		deviation := math.Abs(float64(g.Floors) - ideal)
		scores[i] = clamp01(1 - deviation/ideal)
	}
	return stat.Mean(scores, nil)
}

// shadowNatureScore 返回得分和被遮挡的自然区域面积，没有自然区域时得分为 0
func (o *Optimizer) shadowNatureScore(shadows []geom.Polygon) (float64, float64) {
	if o.layers.NatureArea <= 0 {
		return 0, 0
	}

	union := geometry.UnionAll(shadows)
	if len(union) == 0 {
		return 1, 0
	}

	overlap := 0.0
	for _, i := range o.layers.NatureCandidates(union.Bounds()) {
		overlap += geometry.IntersectionArea(union, o.layers.Nature[i])
	}

	score := 1 - overlap*o.params.NaturePenalty/o.layers.NatureArea
	return clamp01(score), overlap
}

func (o *Optimizer) accessibilityScores(ind *Individual) (float64, float64) {
	sites := make([]int, len(ind.Genes))
	types := make([]domain.BuildingType, len(ind.Genes))
	for i, g := range ind.Genes {
		sites[i] = g.Site
		types[i] = g.Type
	}
	dests := o.scorer.Destinations(sites, types, o.params.AccessibilityType)

	return o.scorer.Score(dests, accessibility.Walk), o.scorer.Score(dests, accessibility.Cycle)
}

// serviceScore 对每个建筑组取到最近相关设施距离的平均值，再在组之间取平均
func (o *Optimizer) serviceScore(ind *Individual) (float64, []GroupScore) {
	groups := make([]GroupScore, 0, len(o.params.ServiceGroups))
	for _, group := range o.params.ServiceGroups {
		groups = append(groups, GroupScore{Type: group.Type, Score: o.groupServiceScore(ind, group)})
	}
	if len(groups) == 0 {
		return 0, groups
	}

	scores := make([]float64, len(groups))
	for i, g := range groups {
		scores[i] = g.Score
	}
	return stat.Mean(scores, nil), groups
}

func (o *Optimizer) groupServiceScore(ind *Individual, group ServiceGroup) float64 {
	if o.layers.DMax <= 0 {
		return 0
	}

	var services []geom.Point
	for _, s := range o.layers.Services {
		if group.Matches(s) {
			services = append(services, s.Location)
		}
	}
	if len(services) == 0 {
		return 0
	}

	var distances []float64
	for _, g := range ind.Genes {
		if g.Type != group.Type {
			continue
		}
		centroid := o.layers.Sites[g.Site].Centroid
		nearest := math.Inf(1)
		for _, s := range services {
			nearest = math.Min(nearest, geometry.Distance(centroid, s))
		}
		distances = append(distances, nearest)
	}
	if len(distances) == 0 {
		return 0
	}

	return clamp01(1 - stat.Mean(distances, nil)/o.layers.DMax)
}

// shadowBuildingScore 双向检查新建筑与现状建筑之间的遮挡，只有投影方更高时才计入
// 等高的情况既不算惩罚也不算奖励
func (o *Optimizer) shadowBuildingScore(ind *Individual, shadows []geom.Polygon, ex *Explanation) {
	affected := make(map[int]struct{})

	// 新建筑投在现状建筑上
	for i, g := range ind.Genes {
		if len(shadows[i]) == 0 {
			continue
		}
		for _, j := range o.layers.ExistingCandidates(shadows[i].Bounds()) {
			existing := o.layers.Existing[j]
			if g.Height <= existing.Height {
				continue
			}
			overlap := geometry.IntersectionArea(shadows[i], existing.Footprint)
			if overlap <= 0 {
				continue
			}
			ex.ConflictAreaExisting += overlap
			affected[j] = struct{}{}
			ex.CastOnExisting = append(ex.CastOnExisting, ShadowHit{
				Caster:         g.BuildingID,
				CasterHeight:   g.Height,
				Receiver:       existing.ID,
				ReceiverHeight: existing.Height,
				Overlap:        overlap,
			})
		}
	}

	// 现状建筑投在新建筑上
	for j, existing := range o.layers.Existing {
		shadow := o.existingShadows[j]
		if len(shadow) == 0 {
			continue
		}
		for _, g := range ind.Genes {
			if existing.Height <= g.Height {
				continue
			}
			overlap := geometry.IntersectionArea(shadow, o.layers.Sites[g.Site].Footprint)
			if overlap <= 0 {
				continue
			}
			ex.ConflictAreaNew += overlap
			ex.CastOnNew = append(ex.CastOnNew, ShadowHit{
				Caster:         existing.ID,
				CasterHeight:   existing.Height,
				Receiver:       g.BuildingID,
				ReceiverHeight: g.Height,
				Overlap:        overlap,
			})
		}
	}

	// 没有屋顶面积或没有现状建筑时惩罚取 0，而不是取满额 1，因此只平移绝对分值，不改变同一次运行内的排序
	areaPenalty := 0.0
	if roof := o.existingRoofArea + ex.NewRoofArea; roof > 0 {
		areaPenalty = math.Min(o.params.AreaPenalty*(ex.ConflictAreaExisting+ex.ConflictAreaNew)/roof, 1)
	}

	hitPenalty := 0.0
	if n := len(o.layers.Existing); n > 0 {
		hitPenalty = math.Min(o.params.HitPenalty*float64(len(affected))/float64(n), 1)
	}

	ex.ShadowBuildings = clamp01(1 - (areaPenaltyWeight*areaPenalty + hitPenaltyWeight*hitPenalty))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
