package daedalus

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParameters() Parameters {
	p := DefaultParameters()
	p.PopulationSize = 20
	p.Generations = 30
	p.TargetGFA = 1200
	p.SiteLength = 30
	p.SiteWidth = 40
	p.MaxHeight = 8 * p.FloorHeight
	return p
}

func newOptimizer(t *testing.T, p Parameters) *Optimizer {
	t.Helper()
	o, err := New(p, WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	return o
}

func rectangle() Building {
	return Building{
		Shape:        Rectangle,
		Roof:         Pitched,
		Length:       10,
		Width:        4,
		Levels:       3,
		TopHeight:    3,
		WindowSill:   0.5,
		WindowWidth:  1,
		WindowHeight: 1,
		Facades:      Facades{South: 0.5, East: 0.5, West: 0.5, North: 0.5},
	}
}

func assertInUnit(t *testing.T, b Breakdown) {
	t.Helper()
	for name, v := range map[string]float64{
		"compactness":   b.Compactness,
		"pv":            b.PV,
		"wwr":           b.WWR,
		"gfa":           b.GFA,
		"greenSpace":    b.GreenSpace,
		"buildingCount": b.BuildingCount,
		"similarity":    b.Similarity,
		"total":         b.Total,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestNew_InvalidSite(t *testing.T) {
	p := testParameters()
	p.SiteLength = 0
	_, err := New(p)
	assert.ErrorIs(t, err, ErrInvalidSite)

	p = testParameters()
	p.MaxHeight = 0
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestLevelCap_ExactMultiple(t *testing.T) {
	p := testParameters()
	p.MaxHeight = 3 * 2.26
	o := newOptimizer(t, p)
	assert.Equal(t, 3, o.LevelCap())

	// 低于一层时至少允许一层
	p.MaxHeight = 1
	o = newOptimizer(t, p)
	assert.Equal(t, 1, o.LevelCap())
}

func TestEvaluate_ThinLShapeIsZero(t *testing.T) {
	o := newOptimizer(t, testParameters())

	bd := rectangle()
	bd.Shape = LShape
	bd.Arm1 = 1
	bd.Arm2 = 1
	ind := &Individual{Buildings: []Building{bd}}

	b := o.Evaluate(ind)
	assert.Positive(t, o.params.Weights.Combine(b))
	assert.Equal(t, 0.0, b.Total)
	assert.Equal(t, ViolationArmsTooThin, b.Violation)

	// 两翼之和达到下限即可
	ind.Buildings[0].Arm1 = 1.5
	ind.Buildings[0].Arm2 = 1.5
	b = o.Evaluate(ind)
	assert.Equal(t, ViolationNone, b.Violation)
	assert.Positive(t, b.Total)
}

func TestEvaluate_ExceedsSiteIsZero(t *testing.T) {
	o := newOptimizer(t, testParameters())

	bd := rectangle()
	bd.DistanceX = 25
	b := o.Evaluate(&Individual{Buildings: []Building{bd}})
	assert.Equal(t, 0.0, b.Total)
	assert.Equal(t, ViolationExceedsSite, b.Violation)

	bd = rectangle()
	bd.Width = 20
	bd.DistanceY = 15
	other := rectangle()
	other.Width = 6
	b = o.Evaluate(&Individual{Buildings: []Building{bd, other}})
	assert.Equal(t, 0.0, b.Total)
	assert.Equal(t, ViolationExceedsSite, b.Violation)
}

func TestEvaluate_InvalidBuildingIsZero(t *testing.T) {
	o := newOptimizer(t, testParameters())

	tooTall := rectangle()
	tooTall.Levels = o.levelCap + 1
	b := o.Evaluate(&Individual{Buildings: []Building{tooTall}})
	assert.Equal(t, 0.0, b.Total)
	assert.Equal(t, ViolationInvalid, b.Violation)

	// 矩形不能带翼
	armed := rectangle()
	armed.Arm1 = 2
	b = o.Evaluate(&Individual{Buildings: []Building{armed}})
	assert.Equal(t, ViolationInvalid, b.Violation)
}

func TestMutate_RevertsInvalidBuilding(t *testing.T) {
	p := testParameters()
	p.MutationProbability = 1
	o := newOptimizer(t, p)
	rng := rand.New(rand.NewSource(4))

	// 翼厚超过进深，任何变异结果都不合法，建筑保持原样
	bd := rectangle()
	bd.Shape = LShape
	bd.Arm1 = bd.Width
	bd.Arm2 = 2
	ind := &Individual{Buildings: []Building{bd, rectangle()}}

	for i := 0; i < 20; i++ {
		next := o.mutate(rng, ind)
		assert.Equal(t, bd, next.Buildings[0])
		require.NoError(t, next.Buildings[1].Validate(o.levelCap))
	}
}

func TestGFAScore(t *testing.T) {
	p := testParameters()
	p.TargetGFA = 120
	o := newOptimizer(t, p)

	ind := &Individual{Buildings: []Building{rectangle()}}
	assert.Equal(t, 1.0, o.gfaScore(ind))

	o.params.TargetGFA = 240
	assert.InDelta(t, 0.5, o.gfaScore(ind), 1e-12)

	o.params.TargetGFA = 60
	assert.InDelta(t, 0.5, o.gfaScore(ind), 1e-12)
}

func TestPVRatio(t *testing.T) {
	bd := rectangle()
	// 屋面宽度 5，横向 2 块、纵向 10 块，共 40 平方米
	ind := &Individual{Buildings: []Building{bd}}
	assert.InDelta(t, 0.8, pvRatio(ind), 1e-9)

	ind.Buildings[0].Roof = Prism
	assert.InDelta(t, 0.8, pvRatio(ind), 1e-9)

	ind.Buildings[0].Roof = Pyramid
	assert.Equal(t, 0.0, pvRatio(ind))
}

func TestWWRScore(t *testing.T) {
	o := newOptimizer(t, testParameters())

	bd := rectangle()
	bd.Width = 5
	ind := &Individual{Buildings: []Building{bd}}

	// 南北各 6 扇 0.25 平方米的窗，东西各 3 扇，墙长 30
	assert.InDelta(t, 4.5/30/0.36, o.wwrScore(ind), 1e-9)

	ind.Buildings[0].Facades = Facades{South: 1, East: 1, West: 1, North: 1}
	assert.Equal(t, 1.0, o.wwrScore(ind))
}

func TestCompactness_Cube(t *testing.T) {
	p := testParameters()
	p.FloorHeight = 2.5
	o := newOptimizer(t, p)

	bd := rectangle()
	bd.Width = 10
	bd.Levels = 4
	assert.InDelta(t, 1.0, o.compactness(&Individual{Buildings: []Building{bd}}), 1e-9)

	bd.Length = 40
	assert.Less(t, o.compactness(&Individual{Buildings: []Building{bd}}), 1.0)
}

func TestDormantScores(t *testing.T) {
	o := newOptimizer(t, testParameters())

	single := &Individual{Buildings: []Building{rectangle()}}
	assert.Equal(t, 0.5, similarity(single))
	// 场地 1200 平方米，理想数量为 5
	assert.InDelta(t, 0.2, o.buildingCount(single), 1e-12)

	twins := &Individual{Buildings: []Building{rectangle(), rectangle()}}
	assert.InDelta(t, 1.0, similarity(twins), 1e-12)

	// 占地 840 = 0.7 × 1200 时绿地得分为 1
	bd := rectangle()
	bd.Length = 28
	bd.Width = 30
	assert.InDelta(t, 1.0, o.greenSpace(&Individual{Buildings: []Building{bd}}), 1e-9)

	// 这些子项不影响总分
	b := o.Evaluate(single)
	assert.InDelta(t, 0.2*b.Compactness+0.2*b.PV+0.2*b.WWR+0.4*b.GFA, b.Total, 1e-12)
}

func TestRandomInit_ValidBuildings(t *testing.T) {
	p := testParameters()
	p.BuildingsPerIndividual = 3
	o := newOptimizer(t, p)
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 200; i++ {
		ind := o.randomInit(rng)
		require.NotEmpty(t, ind.Buildings)
		assert.LessOrEqual(t, len(ind.Buildings), 3)

		for j := range ind.Buildings {
			require.NoError(t, ind.Buildings[j].Validate(o.levelCap))
			if j > 0 {
				assert.NotEqual(t, ind.Buildings[j-1].Shape, ind.Buildings[j].Shape)
			}
		}
		assertInUnit(t, o.Evaluate(ind))
	}
}

func TestMutate_StaysInRange(t *testing.T) {
	p := testParameters()
	p.MutationProbability = 1
	o := newOptimizer(t, p)
	rng := rand.New(rand.NewSource(9))

	ind := o.randomInit(rng)
	for i := 0; i < 300; i++ {
		before := ind.Clone()
		next := o.mutate(rng, ind)
		assert.Equal(t, before.Buildings, ind.Buildings)
		ind = next

		for j := range ind.Buildings {
			bd := &ind.Buildings[j]
			require.NoError(t, bd.Validate(o.levelCap))
			assert.GreaterOrEqual(t, bd.WindowSill, minSill)
			assert.LessOrEqual(t, bd.WindowSill, maxSill)
			assert.GreaterOrEqual(t, bd.WindowWidth, minWindow)
			assert.LessOrEqual(t, bd.WindowWidth, maxWindow)
			assert.GreaterOrEqual(t, bd.WindowHeight, minWindow)
			assert.LessOrEqual(t, bd.WindowHeight, maxWindow)
			assert.GreaterOrEqual(t, bd.TopHeight, 1.0)
		}
		assertInUnit(t, o.Evaluate(ind))
	}
}

func TestCrossover(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	// 只有一栋建筑时返回拷贝
	a := &Individual{Buildings: []Building{rectangle()}}
	b := &Individual{Buildings: []Building{rectangle()}}
	b.Buildings[0].Levels = 7
	c1, c2 := crossover(rng, a, b)
	assert.Equal(t, a.Buildings, c1.Buildings)
	assert.Equal(t, b.Buildings, c2.Buildings)
	c1.Buildings[0].Levels = 99
	assert.Equal(t, 3, a.Buildings[0].Levels)

	// 多栋建筑时每个位置上的建筑来自两个父本之一，且互补
	p1 := &Individual{}
	p2 := &Individual{}
	for i := 0; i < 5; i++ {
		x := rectangle()
		x.Levels = i + 1
		y := rectangle()
		y.Levels = i + 11
		p1.Buildings = append(p1.Buildings, x)
		p2.Buildings = append(p2.Buildings, y)
	}
	for i := 0; i < 50; i++ {
		c1, c2 := crossover(rng, p1, p2)
		require.Len(t, c1.Buildings, 5)
		require.Len(t, c2.Buildings, 5)
		for j := 0; j < 5; j++ {
			pair := []int{c1.Buildings[j].Levels, c2.Buildings[j].Levels}
			assert.ElementsMatch(t, []int{j + 1, j + 11}, pair)
		}
	}
}

func TestRun(t *testing.T) {
	var history []GenerationStats
	p := testParameters()
	o, err := New(p,
		WithRand(rand.New(rand.NewSource(3))),
		WithObserver(func(s GenerationStats) { history = append(history, s) }),
	)
	require.NoError(t, err)

	res, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Buildings, 1)
	require.NoError(t, res.Buildings[0].Validate(o.LevelCap()))
	assertInUnit(t, res.Breakdown)
	assert.Contains(t, res.Report, "Total fitness")

	require.Len(t, history, p.Generations)
	for i := 1; i < len(history); i++ {
		assert.GreaterOrEqual(t, history[i].Best.Total, history[i-1].Best.Total)
	}
}

func TestNextGeneration_Elitism(t *testing.T) {
	o := newOptimizer(t, testParameters())

	pop := make([]*Individual, o.params.PopulationSize)
	for i := range pop {
		pop[i] = o.randomInit(o.rng)
		pop[i].Breakdown = o.Evaluate(pop[i])
	}

	for gen := 0; gen < 20; gen++ {
		oldBest, _ := selectTop2(pop)
		pop = o.nextGeneration(pop)
		newBest, _ := selectTop2(pop)
		assert.Len(t, pop, o.params.PopulationSize)
		assert.GreaterOrEqual(t, newBest.Fitness(), oldBest.Fitness())
	}
}

func TestShapeJSON(t *testing.T) {
	data, err := json.Marshal(Building{Shape: LShape, Roof: Pitched})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"shape":"L-shape"`)
	assert.Contains(t, string(data), `"roof":"Pitched"`)

	var bd Building
	require.NoError(t, json.Unmarshal(data, &bd))
	assert.Equal(t, LShape, bd.Shape)
	assert.Equal(t, Pitched, bd.Roof)

	assert.Error(t, json.Unmarshal([]byte(`{"shape":"Circle"}`), &bd))
}
