package daedalus

import (
	"errors"
	"fmt"
	"slices"
)

type Shape int

const (
	Rectangle Shape = iota
	LShape
)

func (s Shape) String() string {
	switch s {
	case Rectangle:
		return "Rectangle"
	case LShape:
		return "L-shape"
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Rectangle":
		*s = Rectangle
	case "L-shape":
		*s = LShape
	default:
		return fmt.Errorf("未知的建筑形状: %s", text)
	}
	return nil
}

type Roof int

const (
	Pyramid Roof = iota
	Prism
	Pitched
)

func (r Roof) String() string {
	switch r {
	case Pyramid:
		return "Pyramid"
	case Prism:
		return "Prism"
	case Pitched:
		return "Pitched"
	}
	return fmt.Sprintf("Roof(%d)", int(r))
}

func (r Roof) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Roof) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Pyramid":
		*r = Pyramid
	case "Prism":
		*r = Prism
	case "Pitched":
		*r = Pitched
	default:
		return fmt.Errorf("未知的屋顶类型: %s", text)
	}
	return nil
}

// Facades 是各朝向的窗户缩放系数
type Facades struct {
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
}

// Building 描述一栋建筑的形体，长度沿 x 方向，宽度沿 y 方向
// L 形建筑的 Arm1 是沿长度方向那一翼的厚度（取自宽度），Arm2 是沿宽度方向那一翼的厚度（取自长度）
type Building struct {
	Shape        Shape   `json:"shape"`
	Roof         Roof    `json:"roof"`
	Length       float64 `json:"length"`
	Width        float64 `json:"width"`
	Arm1         float64 `json:"arm1"`
	Arm2         float64 `json:"arm2"`
	Levels       int     `json:"levels"`
	TopHeight    float64 `json:"topHeight"`
	Overhang     float64 `json:"overhang"`
	WindowSill   float64 `json:"windowSill"`
	WindowWidth  float64 `json:"windowWidth"`
	WindowHeight float64 `json:"windowHeight"`
	DistanceX    float64 `json:"distanceX"`
	DistanceY    float64 `json:"distanceY"`
	Facades      Facades `json:"facades"`
}

var ErrInvalidBuilding = errors.New("建筑参数不合法")

// Validate 检查结构上的不变量，过细的 L 形不在这里拒绝，而是由适应度置零
func (b *Building) Validate(levelCap int) error {
	switch b.Shape {
	case Rectangle:
		if b.Arm1 != 0 || b.Arm2 != 0 {
			return fmt.Errorf("%w: 矩形建筑的翼厚必须为 0", ErrInvalidBuilding)
		}
	case LShape:
		if b.Arm1 <= 0 || b.Arm2 <= 0 {
			return fmt.Errorf("%w: L 形建筑的翼厚必须大于 0", ErrInvalidBuilding)
		}
		if b.Arm1 >= b.Width || b.Arm2 >= b.Length {
			return fmt.Errorf("%w: 翼厚必须小于对应的平面尺寸", ErrInvalidBuilding)
		}
	default:
		return fmt.Errorf("%w: 未知的建筑形状 %v", ErrInvalidBuilding, b.Shape)
	}

	if b.Levels < 1 || b.Levels > levelCap {
		return fmt.Errorf("%w: 层数 %d 不在 [1, %d] 内", ErrInvalidBuilding, b.Levels, levelCap)
	}
	return nil
}

// Footprint 是建筑的占地面积
func (b *Building) Footprint() float64 {
	switch b.Shape {
	case Rectangle:
		return b.Length * b.Width
	case LShape:
		return b.Width*b.Arm2 + (b.Length-b.Arm2)*b.Arm1
	}
	return 0
}

func (b *Building) GFA() float64 {
	return b.Footprint() * float64(b.Levels)
}

type Individual struct {
	Buildings []Building
	Breakdown Breakdown
}

func (ind *Individual) Fitness() float64 {
	return ind.Breakdown.Total
}

func (ind *Individual) Clone() *Individual {
	return &Individual{
		Buildings: slices.Clone(ind.Buildings),
		Breakdown: ind.Breakdown,
	}
}

type Weights struct {
	Compactness   float64 `json:"compactness"`
	PV            float64 `json:"pv"`
	WWR           float64 `json:"wwr"`
	GFA           float64 `json:"gfa"`
	GreenSpace    float64 `json:"greenSpace"`
	BuildingCount float64 `json:"buildingCount"`
	Similarity    float64 `json:"similarity"`
}

// DefaultWeights 中绿地率、建筑数量和相似度的权重为 0，只计算不计分
func DefaultWeights() Weights {
	return Weights{Compactness: 0.2, PV: 0.2, WWR: 0.2, GFA: 0.4}
}

func (w Weights) Combine(b Breakdown) float64 {
	return w.Compactness*b.Compactness +
		w.PV*b.PV +
		w.WWR*b.WWR +
		w.GFA*b.GFA +
		w.GreenSpace*b.GreenSpace +
		w.BuildingCount*b.BuildingCount +
		w.Similarity*b.Similarity
}

// 遗传算法参数
type Parameters struct {
	PopulationSize         int     // 种群大小
	Generations            int     // 迭代次数
	MutationProbability    float64 // 每个属性发生变异的概率
	TargetGFA              float64 // 目标建筑面积
	SiteLength             float64 // 场地短边
	SiteWidth              float64 // 场地长边
	MaxHeight              float64 // 城市布局给出的最大高度
	FloorHeight            float64 // 层高
	BuildingsPerIndividual int     // 每个个体包含的建筑数量
	MinArmSum              float64 // L 形两翼厚度之和的下限
	WWRReference           float64 // 窗墙比的参考值
	Weights                Weights
}

func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:         500,
		Generations:            5000,
		MutationProbability:    0.1,
		FloorHeight:            2.26,
		BuildingsPerIndividual: 1,
		MinArmSum:              3,
		WWRReference:           0.36,
		Weights:                DefaultWeights(),
	}
}
