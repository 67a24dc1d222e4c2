package daedalus

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	pvPanelLength  = 1.0
	pvPanelWidth   = 2.0
	pvPanelSpacing = 0.1
	windowSpacing  = 1.0

	// 绿地率的目标是建筑占地为场地面积的 70%
	greenTargetRatio    = 0.7
	greenToleranceRatio = 0.3
)

type Violation string

const (
	ViolationNone        Violation = ""
	ViolationArmsTooThin Violation = "arms_too_thin"
	ViolationExceedsSite Violation = "exceeds_site"
	ViolationInvalid     Violation = "invalid_building"
)

// Breakdown 是适应度的各个子项，均在 [0,1] 内
type Breakdown struct {
	Compactness   float64   `json:"compactness"`
	PV            float64   `json:"pv"`
	WWR           float64   `json:"wwr"`
	GFA           float64   `json:"gfa"`
	GreenSpace    float64   `json:"greenSpace"`
	BuildingCount float64   `json:"buildingCount"`
	Similarity    float64   `json:"similarity"`
	Total         float64   `json:"total"`
	Violation     Violation `json:"violation,omitempty"`
}

func (o *Optimizer) Evaluate(ind *Individual) Breakdown {
	var b Breakdown
	if len(ind.Buildings) == 0 {
		return b
	}

	b.Compactness = o.compactness(ind)
	b.PV = pvRatio(ind)
	b.WWR = o.wwrScore(ind)
	b.GFA = o.gfaScore(ind)
	b.GreenSpace = o.greenSpace(ind)
	b.BuildingCount = o.buildingCount(ind)
	b.Similarity = similarity(ind)
	b.Total = o.params.Weights.Combine(b)

	// 违反约束时总分置零，子项保留用于报告
	if v := o.violation(ind); v != ViolationNone {
		b.Violation = v
		b.Total = 0
	}
	return b
}

func (o *Optimizer) violation(ind *Individual) Violation {
	var lengths, widths float64
	for i := range ind.Buildings {
		bd := &ind.Buildings[i]
		if bd.Validate(o.levelCap) != nil {
			return ViolationInvalid
		}
		if bd.Shape == LShape && bd.Arm1+bd.Arm2 < o.params.MinArmSum {
			return ViolationArmsTooThin
		}
		lengths += bd.Length + bd.DistanceX
		widths += bd.Width + bd.DistanceY
	}

	if lengths > o.params.SiteLength || widths > o.params.SiteWidth {
		return ViolationExceedsSite
	}
	return ViolationNone
}

// compactness: 同体积立方体的表面积与实际表面积之比，上限为 1
func (o *Optimizer) compactness(ind *Individual) float64 {
	scores := make([]float64, len(ind.Buildings))
	for i := range ind.Buildings {
		bd := &ind.Buildings[i]
		height := float64(bd.Levels) * o.params.FloorHeight
		footprint := bd.Footprint()

		// L 形的周长与外接矩形相同
		surface := 2*footprint + 2*(bd.Length+bd.Width)*height
		volume := footprint * height
		if surface <= 0 || volume <= 0 {
			continue
		}
		cube := 6 * math.Pow(math.Cbrt(volume), 2)
		scores[i] = math.Min(cube/surface, 1)
	}
	return math.Min(stat.Mean(scores, nil), 1)
}

// pvRatio 是可铺设光伏板的面积与坡屋面面积之比，只对双坡和棱柱屋顶计算
func pvRatio(ind *Individual) float64 {
	var ratios []float64
	for i := range ind.Buildings {
		bd := &ind.Buildings[i]
		switch bd.Roof {
		case Pyramid:
			continue
		case Prism, Pitched:
			ratios = append(ratios, roofPV(bd))
		}
	}
	if len(ratios) == 0 {
		return 0
	}
	return stat.Mean(ratios, nil)
}

func roofPV(bd *Building) float64 {
	var roofArea, panelArea float64
	add := func(length, span float64) {
		width := math.Hypot(bd.TopHeight, span) + bd.Overhang
		if length <= 0 || width <= 0 {
			return
		}
		roofArea += length * width
		panels := math.Floor(width/(pvPanelWidth+pvPanelSpacing)) * math.Floor(length/pvPanelLength)
		panelArea += panels * pvPanelWidth * pvPanelLength
	}

	switch bd.Shape {
	case Rectangle:
		add(bd.Length, bd.Width)
	case LShape:
		// 拆成两个矩形
		add(bd.Length-bd.Arm2, bd.Arm1)
		add(bd.Arm2, bd.Width)
	}

	if roofArea <= 0 {
		return 0
	}
	return math.Min(panelArea/roofArea, 1)
}

// wwrScore: 各朝向按系数缩放窗户尺寸，窗户之间留 1 米，按参考值归一化
func (o *Optimizer) wwrScore(ind *Individual) float64 {
	ratios := make([]float64, len(ind.Buildings))
	for i := range ind.Buildings {
		bd := &ind.Buildings[i]
		wall := 2*bd.Length + 2*bd.Width
		if wall <= 0 {
			continue
		}

		windows := 0.0
		for _, facade := range []struct {
			factor float64
			length float64
		}{
			{bd.Facades.South, bd.Length},
			{bd.Facades.North, bd.Length},
			{bd.Facades.East, bd.Width},
			{bd.Facades.West, bd.Width},
		} {
			w := bd.WindowWidth * facade.factor
			h := bd.WindowHeight * facade.factor
			n := math.Floor(facade.length / (w + windowSpacing))
			windows += n * w * h
		}
		ratios[i] = windows / wall
	}

	if o.params.WWRReference <= 0 {
		return 0
	}
	return clamp01(stat.Mean(ratios, nil) / o.params.WWRReference)
}

// gfaScore 取 target/actual 和 actual/target 中不大于 1 的那个
func (o *Optimizer) gfaScore(ind *Individual) float64 {
	total := 0.0
	for i := range ind.Buildings {
		total += ind.Buildings[i].GFA()
	}
	if total <= 0 || o.params.TargetGFA <= 0 {
		return 0
	}
	if total > o.params.TargetGFA {
		return o.params.TargetGFA / total
	}
	return total / o.params.TargetGFA
}

func (o *Optimizer) greenSpace(ind *Individual) float64 {
	siteArea := o.params.SiteLength * o.params.SiteWidth
	if siteArea <= 0 {
		return 0
	}
	ground := 0.0
	for i := range ind.Buildings {
		ground += ind.Buildings[i].Footprint()
	}
	return clamp01(1 - math.Abs(ground-greenTargetRatio*siteArea)/(greenToleranceRatio*siteArea))
}

func (o *Optimizer) buildingCount(ind *Individual) float64 {
	siteArea := o.params.SiteLength * o.params.SiteWidth
	var ideal float64
	switch {
	case siteArea < 100:
		ideal = 1
	case siteArea < 200:
		ideal = 2
	case siteArea < 300:
		ideal = 3
	case siteArea < 500:
		ideal = 4
	default:
		ideal = 5
	}
	return math.Min(float64(len(ind.Buildings))/ideal, 1)
}

// similarity 比较各建筑的占地和层数，只有一栋建筑时给 0.5
func similarity(ind *Individual) float64 {
	if len(ind.Buildings) <= 1 {
		return 0.5
	}

	areas := make([]float64, len(ind.Buildings))
	levels := make([]float64, len(ind.Buildings))
	for i := range ind.Buildings {
		areas[i] = ind.Buildings[i].Footprint()
		levels[i] = float64(ind.Buildings[i].Levels)
	}
	return (uniformity(areas) + uniformity(levels)) / 2
}

// uniformity = 1 - 变异系数
func uniformity(values []float64) float64 {
	mean, std := stat.MeanStdDev(values, nil)
	if mean <= 0 {
		return 0
	}
	return clamp01(1 - std/mean)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
