package accessibility

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geodata"
	"github.com/gaia-urban/gaia/backend/internal/geometry"
	"gonum.org/v1/gonum/stat"
)

type Mode int

const (
	Walk Mode = iota
	Cycle
)

func (m Mode) String() string {
	switch m {
	case Walk:
		return "walk"
	case Cycle:
		return "cycle"
	}
	return "unknown"
}

const (
	// 自行车道缓冲区半径
	CycleBuffer = 10.0

	natureCap      = 4.0
	barrierCap     = 4.0
	distanceWeight = 0.5
	contextWeight  = 0.5
)

// Scorer 以居住建筑为起点、目标场地为终点的直线连线评估可达性
// 只是路线质量的启发式近似，并不做真实的路径规划
type Scorer struct {
	layers *geodata.Layers
}

func NewScorer(layers *geodata.Layers) *Scorer {
	return &Scorer{layers: layers}
}

// Score 返回所有起终点对得分的平均值，没有起点或终点时返回 0
func (s *Scorer) Score(destinations []geom.Point, mode Mode) float64 {
	if len(s.layers.Residential) == 0 || len(destinations) == 0 {
		return 0
	}

	scores := make([]float64, 0, len(s.layers.Residential)*len(destinations))
	for _, origin := range s.layers.Residential {
		for _, dest := range destinations {
			seg := geometry.Segment{A: origin, B: dest}
			length := seg.Length()
			// 长度为 0 的连线不参与计分
			if length < 1e-9 {
				continue
			}

			var surroundings float64
			switch mode {
			case Walk:
				surroundings = s.walkContext(seg)
			case Cycle:
				surroundings = s.cycleContext(seg, length)
			}

			score := distanceWeight*s.distanceScore(length) + contextWeight*surroundings
			scores = append(scores, math.Max(0, math.Min(1, score)))
		}
	}

	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}

// Destinations 返回被分配了指定类型建筑的场地质心
func (s *Scorer) Destinations(siteIdx []int, types []domain.BuildingType, want domain.BuildingType) []geom.Point {
	var points []geom.Point
	for i, t := range types {
		if t == want {
			points = append(points, s.layers.Sites[siteIdx[i]].Centroid)
		}
	}
	return points
}

func (s *Scorer) distanceScore(length float64) float64 {
	if s.layers.DMax <= 0 {
		return 0
	}
	return math.Max(0, 1-length/s.layers.DMax)
}

// walkContext 经过的自然区域越多越好，穿越的道路和铁路越多越差
func (s *Scorer) walkContext(seg geometry.Segment) float64 {
	bounds := seg.Bounds()

	natureHits := 0.0
	for _, i := range s.layers.NatureCandidates(bounds) {
		if geometry.SegmentIntersectsPolygon(seg, s.layers.Nature[i]) {
			natureHits++
		}
	}

	var highway, railway float64
	for _, i := range s.layers.BarrierCandidates(bounds) {
		b := s.layers.Barriers[i]
		if !geometry.SegmentIntersectsLine(seg, b.Line) {
			continue
		}
		switch b.Kind {
		case domain.BarrierHighway:
			highway++
		case domain.BarrierRailway:
			railway++
		}
	}

	nature := math.Min(natureHits, natureCap) / natureCap
	barrier := math.Min((highway+railway)/2, barrierCap) / barrierCap
	return math.Max(0, nature-barrier)
}

// cycleContext 是连线落在自行车道缓冲区内的长度比例
func (s *Scorer) cycleContext(seg geometry.Segment, length float64) float64 {
	candidates := s.layers.CycleCandidates(geometry.Expand(seg.Bounds(), CycleBuffer))
	if len(candidates) == 0 {
		return 0
	}

	lines := make([]geom.LineString, 0, len(candidates))
	for _, i := range candidates {
		lines = append(lines, s.layers.Cycle[i])
	}
	return math.Min(1, geometry.CoveredLength(seg, lines, CycleBuffer)/length)
}
