package accessibility

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geodata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(cx, cy, half float64) []domain.Coord {
	return []domain.Coord{
		{cx - half, cy - half},
		{cx + half, cy - half},
		{cx + half, cy + half},
		{cx - half, cy + half},
	}
}

// baseScenario: 一栋住宅位于原点，一个场地位于正东 100 米处
func baseScenario() *domain.Scenario {
	return &domain.Scenario{
		Name:       "accessibility",
		AnchorSite: "site1",
		Sites: []domain.Site{
			{ID: "site1", Footprint: square(100, 0, 5)},
		},
		Buildings: []domain.BuildingSpec{
			{ID: "school1", Type: domain.BuildingTypeSchool, TargetGFA: 500},
		},
		Existing: []domain.ExistingBuilding{
			{ID: "home", Use: "house", Height: 6, Footprint: square(0, 0, 5)},
		},
		Sun: domain.Sun{Azimuth: 180, Altitude: 45},
	}
}

func newScorer(t *testing.T, s *domain.Scenario) (*Scorer, *geodata.Layers) {
	t.Helper()
	layers, err := geodata.FromScenario(s)
	require.NoError(t, err)
	return NewScorer(layers), layers
}

func destination() []geom.Point {
	return []geom.Point{{X: 100, Y: 0}}
}

func TestScore_NoOriginsOrDestinations(t *testing.T) {
	s := baseScenario()
	s.Existing[0].Use = "office"
	scorer, _ := newScorer(t, s)

	assert.Equal(t, 0.0, scorer.Score(destination(), Walk))
	assert.Equal(t, 0.0, scorer.Score(destination(), Cycle))

	scorer, _ = newScorer(t, baseScenario())
	assert.Equal(t, 0.0, scorer.Score(nil, Walk))
	assert.Equal(t, 0.0, scorer.Score(nil, Cycle))
}

func TestScore_ZeroLengthSegmentSkipped(t *testing.T) {
	scorer, _ := newScorer(t, baseScenario())
	assert.Equal(t, 0.0, scorer.Score([]geom.Point{{X: 0, Y: 0}}, Walk))
}

func TestScore_WalkDistanceOnly(t *testing.T) {
	scorer, layers := newScorer(t, baseScenario())

	// 研究区域为 [-5,105]×[-5,5]
	require.InDelta(t, math.Hypot(110, 10), layers.DMax, 1e-9)

	want := 0.5 * (1 - 100/layers.DMax)
	assert.InDelta(t, want, scorer.Score(destination(), Walk), 1e-9)
}

func TestScore_WalkNatureAndBarriers(t *testing.T) {
	s := baseScenario()
	s.Nature = []domain.NatureArea{
		{ID: "park", Footprint: square(50, 0, 10)},
		{ID: "far", Footprint: square(50, 500, 10)},
	}
	scorer, layers := newScorer(t, s)
	distance := 1 - 100/layers.DMax

	// 经过一个自然区域
	assert.InDelta(t, 0.5*distance+0.5*0.25, scorer.Score(destination(), Walk), 1e-9)

	// 再穿过一条道路，障碍得分为 (1+0)/2/4
	s.Barriers = []domain.Barrier{
		{Kind: domain.BarrierHighway, Line: []domain.Coord{{30, -50}, {30, 50}}},
	}
	scorer, _ = newScorer(t, s)
	assert.InDelta(t, 0.5*distance+0.5*0.125, scorer.Score(destination(), Walk), 1e-9)

	// 障碍多于自然区域时环境得分截断为 0
	s.Nature = nil
	scorer, _ = newScorer(t, s)
	assert.InDelta(t, 0.5*distance, scorer.Score(destination(), Walk), 1e-9)
}

func TestScore_Cycle(t *testing.T) {
	s := baseScenario()
	s.CycleWays = []domain.CycleWay{
		{Line: []domain.Coord{{0, 3}, {50, 3}}},
	}
	scorer, layers := newScorer(t, s)
	distance := 1 - 100/layers.DMax

	// 0..50 直接覆盖，另外 50 之后还有 √(100-9) 的缓冲
	covered := (50 + math.Sqrt(91)) / 100
	assert.InDelta(t, 0.5*distance+0.5*covered, scorer.Score(destination(), Cycle), 1e-6)

	s.CycleWays = append(s.CycleWays, domain.CycleWay{Line: []domain.Coord{{40, -2}, {120, -2}}})
	scorer, _ = newScorer(t, s)
	assert.InDelta(t, 0.5*distance+0.5, scorer.Score(destination(), Cycle), 1e-6)
}

func TestScore_Bounds(t *testing.T) {
	s := baseScenario()
	s.Existing = append(s.Existing,
		domain.ExistingBuilding{ID: "flat", Use: "apartments", Height: 12, Footprint: square(20, 80, 5)},
		domain.ExistingBuilding{ID: "dorm", Use: "dormitory", Height: 12, Footprint: square(-60, -40, 5)},
	)
	s.Nature = []domain.NatureArea{{ID: "park", Footprint: square(50, 20, 30)}}
	s.CycleWays = []domain.CycleWay{{Line: []domain.Coord{{-100, 0}, {200, 10}}}}
	scorer, _ := newScorer(t, s)

	dests := []geom.Point{{X: 100, Y: 0}, {X: 0, Y: 100}, {X: -50, Y: 60}}
	for _, mode := range []Mode{Walk, Cycle} {
		score := scorer.Score(dests, mode)
		assert.GreaterOrEqual(t, score, 0.0, mode.String())
		assert.LessOrEqual(t, score, 1.0, mode.String())
	}
}

func TestDestinations(t *testing.T) {
	s := baseScenario()
	s.Sites = append(s.Sites, domain.Site{ID: "site2", Footprint: square(0, 100, 5)})
	scorer, _ := newScorer(t, s)

	points := scorer.Destinations(
		[]int{1, 0},
		[]domain.BuildingType{domain.BuildingTypeSchool, domain.BuildingTypeOffice},
		domain.BuildingTypeSchool,
	)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.0, points[0].X, 1e-9)
	assert.InDelta(t, 100.0, points[0].Y, 1e-9)
}
