package daedalus

import (
	"math"
	"math/rand"
	"slices"
)

const (
	phi = 1.618
	// 长宽下限的缩放系数
	dimensionScale = 1.63
	// 两个间距同时随机的概率
	bothDistancesProbability = 0.4
)

// uniform 在 a 和 b 之间均匀取值，a > b 时同样成立
func uniform(rng *rand.Rand, a, b float64) float64 {
	return a + (b-a)*rng.Float64()
}

// randomInit 随机初始化一个个体，后一栋建筑从前一栋建筑的偏移处开始布置
func (o *Optimizer) randomInit(rng *rand.Rand) *Individual {
	ind := &Individual{Buildings: make([]Building, 0, o.params.BuildingsPerIndividual)}

	var xOffset, yOffset float64
	for i := 0; i < o.params.BuildingsPerIndividual; i++ {
		var bd Building
		if i == 0 {
			bd = o.randomBuilding(rng, xOffset, yOffset)
		} else {
			bd = o.differentBuilding(rng, xOffset, yOffset, &ind.Buildings[i-1])
		}
		ind.Buildings = append(ind.Buildings, bd)

		xOffset += bd.Length + bd.DistanceX + bd.Overhang
		yOffset += bd.Width + bd.DistanceY + bd.Overhang
		if xOffset >= o.params.SiteLength || yOffset >= o.params.SiteWidth {
			break
		}
	}

	return ind
}

// randomBuilding 的尺寸按黄金比例确定取值范围
func (o *Optimizer) randomBuilding(rng *rand.Rand, xOffset, yOffset float64) Building {
	minDimension := o.params.SiteLength / math.Pow(dimensionScale, 3)

	bd := Building{
		Shape:  Shape(rng.Intn(2)),
		Length: uniform(rng, minDimension, o.params.SiteLength-xOffset),
		Width:  uniform(rng, minDimension, o.params.SiteWidth-yOffset),
		Levels: 1 + rng.Intn(o.levelCap),
	}
	if bd.Shape == LShape {
		o.randomArms(rng, &bd)
	}

	height := float64(bd.Levels) * o.params.FloorHeight
	bd.TopHeight = uniform(rng, 1, math.Max(1, height/math.Pow(phi, 3)))
	bd.Overhang = uniform(rng, 1, height/math.Pow(phi, 6))

	// 为了对称，通常只让一个方向有间距
	spareX := math.Max(0, o.params.SiteLength-xOffset-bd.Length-bd.Overhang)
	spareY := math.Max(0, o.params.SiteWidth-yOffset-bd.Width-bd.Overhang)
	if rng.Intn(2) == 0 {
		bd.DistanceY = uniform(rng, 1.5, spareY)
	} else {
		bd.DistanceX = uniform(rng, 1.5, spareX)
	}
	if rng.Float64() < bothDistancesProbability {
		bd.DistanceX = uniform(rng, 1.5, spareX)
		bd.DistanceY = uniform(rng, 1.5, spareY)
	}

	bd.Roof = Roof(rng.Intn(3))
	bd.WindowSill = uniform(rng, minSill, maxSill)
	bd.WindowWidth = uniform(rng, minWindow, 1.26)
	bd.WindowHeight = uniform(rng, minWindow, 1.26)
	bd.Facades = Facades{
		South: uniform(rng, 0.8, 1),
		East:  uniform(rng, 0.4, 0.7),
		West:  uniform(rng, 0.4, 0.7),
		North: uniform(rng, 0, 0.3),
	}

	return bd
}

// randomArms 从黄金比例阶梯中选择翼厚
func (o *Optimizer) randomArms(rng *rand.Rand, bd *Building) {
	k := float64(1 + rng.Intn(4))
	bd.Arm1 = bd.Width / math.Pow(phi, k)
	k = float64(1 + rng.Intn(4))
	bd.Arm2 = bd.Length / math.Pow(phi, k)
}

// differentBuilding 生成一栋与前一栋形状不同、尺寸相近的建筑
func (o *Optimizer) differentBuilding(rng *rand.Rand, xOffset, yOffset float64, prev *Building) Building {
	bd := o.randomBuilding(rng, xOffset, yOffset)

	switch prev.Shape {
	case Rectangle:
		bd.Shape = LShape
	case LShape:
		bd.Shape = Rectangle
	}
	bd.Roof = Roof(rng.Intn(3))

	scale := dimensionScale * dimensionScale
	bd.Length = math.Max(prev.Length/scale, math.Min(bd.Length+uniform(rng, -1, 1), o.params.SiteLength-xOffset))
	bd.Width = math.Max(prev.Width/scale, math.Min(bd.Width+uniform(rng, -1, 1), o.params.SiteWidth-yOffset))

	bd.Arm1, bd.Arm2 = 0, 0
	if bd.Shape == LShape {
		o.randomArms(rng, &bd)
	}
	return bd
}

// crossover 两点交叉，任一父本只有一栋建筑时返回两个父本的拷贝
func crossover(rng *rand.Rand, p1, p2 *Individual) (*Individual, *Individual) {
	n := min(len(p1.Buildings), len(p2.Buildings))
	if len(p1.Buildings) <= 1 || len(p2.Buildings) <= 1 {
		return p1.Clone(), p2.Clone()
	}

	point1 := rng.Intn(n)
	point2 := point1 + rng.Intn(n-point1)

	c1, c2 := p1.Clone(), p2.Clone()
	copy(c1.Buildings[point1:point2], p2.Buildings[point1:point2])
	copy(c2.Buildings[point1:point2], p1.Buildings[point1:point2])
	return c1, c2
}

// mutate 返回变异后的拷贝，每栋建筑的每个属性独立地以一定概率扰动
func (o *Optimizer) mutate(rng *rand.Rand, ind *Individual) *Individual {
	out := ind.Clone()
	p := o.params.MutationProbability

	for i := range out.Buildings {
		bd := &out.Buildings[i]

		if rng.Float64() < p {
			bd.Levels = clampInt(bd.Levels+rng.Intn(3)-1, 1, o.levelCap)
		}
		if rng.Float64() < p {
			bd.WindowSill = clamp(bd.WindowSill+uniform(rng, -0.1, 0.1), minSill, maxSill)
		}
		if rng.Float64() < p {
			bd.WindowHeight = clamp(bd.WindowHeight+uniform(rng, -0.1, 0.1), minWindow, maxWindow)
		}
		if rng.Float64() < p {
			bd.WindowWidth = clamp(bd.WindowWidth+uniform(rng, -0.1, 0.1), minWindow, maxWindow)
		}
		if rng.Float64() < p {
			height := float64(bd.Levels) * o.params.FloorHeight
			bd.TopHeight = clamp(bd.TopHeight+uniform(rng, -1, 1), 1, math.Max(1, height/math.Pow(phi, 3)))
		}

		// 变异后不合法的建筑退回变异前的取值
		if bd.Validate(o.levelCap) != nil {
			*bd = ind.Buildings[i]
		}
	}

	return out
}

const (
	minSill   = 0.1
	maxSill   = 1.0
	minWindow = 0.5
	maxWindow = 2.0
)

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// selectTop2 按适应度从高到低选出两个父本
func selectTop2(pop []*Individual) (*Individual, *Individual) {
	sorted := slices.Clone(pop)
	slices.SortStableFunc(sorted, func(a, b *Individual) int {
		switch {
		case a.Fitness() > b.Fitness():
			return -1
		case a.Fitness() < b.Fitness():
			return 1
		}
		return 0
	})

	if len(sorted) == 1 {
		return sorted[0], sorted[0]
	}
	return sorted[0], sorted[1]
}
