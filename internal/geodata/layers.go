package geodata

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ctessum/geom"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geometry"
)

var (
	ErrDuplicateSite  = errors.New("场地编号重复")
	ErrAnchorNotFound = errors.New("找不到作为参照的锚点场地")
)

// 视为居住建筑的现状建筑用途
var ResidentialUses = []string{"house", "apartments", "residential", "dormitory", "semidetached_house", "terrace"}

type Site struct {
	ID        string
	Footprint geom.Polygon
	Area      float64
	Centroid  geom.Point
	Rect      SiteRect
}

// SiteRect 是场地最大内接矩形的参数，位置相对于锚点场地
type SiteRect struct {
	Length      float64 `json:"length"` // 短边
	Width       float64 `json:"width"`  // 长边
	Orientation float64 `json:"orientation"`
	PositionX   float64 `json:"positionX"`
	PositionY   float64 `json:"positionY"`
}

type Existing struct {
	ID        string
	Use       string
	Height    float64
	Footprint geom.Polygon
	Area      float64
}

type Barrier struct {
	Kind domain.BarrierKind
	Line geom.LineString
}

type Service struct {
	Shop     string
	Amenity  string
	Location geom.Point
}

// Layers 是从场景编译出的只读图层集合，优化过程中被多个 goroutine 共享读取
type Layers struct {
	Sites       []Site
	Existing    []Existing
	Nature      []geom.Polygon
	NatureArea  float64
	Barriers    []Barrier
	Cycle       []geom.LineString
	Services    []Service
	Residential []geom.Point

	// 研究区域（现状建筑与场地）的包围盒及其对角线长度
	Bounds *geom.Bounds
	DMax   float64

	siteIndex   map[string]int
	natureIdx   *geometry.Index
	barrierIdx  *geometry.Index
	cycleIdx    *geometry.Index
	existingIdx *geometry.Index
}

func FromScenario(s *domain.Scenario) (*Layers, error) {
	l := &Layers{
		Sites:       make([]Site, 0, len(s.Sites)),
		Existing:    make([]Existing, 0, len(s.Existing)),
		Nature:      make([]geom.Polygon, 0, len(s.Nature)),
		Barriers:    make([]Barrier, 0, len(s.Barriers)),
		Cycle:       make([]geom.LineString, 0, len(s.CycleWays)),
		Services:    make([]Service, 0, len(s.Services)),
		siteIndex:   make(map[string]int, len(s.Sites)),
		natureIdx:   geometry.NewIndex(),
		barrierIdx:  geometry.NewIndex(),
		cycleIdx:    geometry.NewIndex(),
		existingIdx: geometry.NewIndex(),
	}

	var bounds *geom.Bounds

	for _, site := range s.Sites {
		if _, exists := l.siteIndex[site.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSite, site.ID)
		}
		poly := geometry.PolygonFromCoords(toPairs(site.Footprint))
		area := geometry.Area(poly)
		centroid := geom.Point{}
		if area > 0 {
			centroid = poly.Centroid()
		}
		l.siteIndex[site.ID] = len(l.Sites)
		l.Sites = append(l.Sites, Site{
			ID:        site.ID,
			Footprint: poly,
			Area:      area,
			Centroid:  centroid,
		})
		bounds = extend(bounds, poly.Bounds())
	}

	for _, e := range s.Existing {
		poly := geometry.PolygonFromCoords(toPairs(e.Footprint))
		area := geometry.Area(poly)
		l.existingIdx.Insert(poly)
		l.Existing = append(l.Existing, Existing{
			ID:        e.ID,
			Use:       e.Use,
			Height:    e.Height,
			Footprint: poly,
			Area:      area,
		})
		bounds = extend(bounds, poly.Bounds())

		if area > 0 && slices.Contains(ResidentialUses, e.Use) {
			l.Residential = append(l.Residential, poly.Centroid())
		}
	}

	for _, n := range s.Nature {
		poly := geometry.PolygonFromCoords(toPairs(n.Footprint))
		l.natureIdx.Insert(poly)
		l.Nature = append(l.Nature, poly)
		l.NatureArea += geometry.Area(poly)
	}

	for _, b := range s.Barriers {
		line := geometry.LineFromCoords(toPairs(b.Line))
		l.barrierIdx.Insert(line)
		l.Barriers = append(l.Barriers, Barrier{Kind: b.Kind, Line: line})
	}

	for _, c := range s.CycleWays {
		line := geometry.LineFromCoords(toPairs(c.Line))
		l.cycleIdx.Insert(line)
		l.Cycle = append(l.Cycle, line)
	}

	for _, svc := range s.Services {
		l.Services = append(l.Services, Service{
			Shop:     svc.Shop,
			Amenity:  svc.Amenity,
			Location: geom.Point{X: svc.Location[0], Y: svc.Location[1]},
		})
	}

	l.Bounds = bounds
	l.DMax = geometry.Diagonal(bounds)

	return l, nil
}

// SiteIndex 返回场地在 Sites 中的下标
func (l *Layers) SiteIndex(id string) (int, bool) {
	i, ok := l.siteIndex[id]
	return i, ok
}

func (l *Layers) NatureCandidates(b *geom.Bounds) []int {
	return l.natureIdx.Search(b)
}

func (l *Layers) BarrierCandidates(b *geom.Bounds) []int {
	return l.barrierIdx.Search(b)
}

func (l *Layers) CycleCandidates(b *geom.Bounds) []int {
	return l.cycleIdx.Search(b)
}

func (l *Layers) ExistingCandidates(b *geom.Bounds) []int {
	return l.existingIdx.Search(b)
}

// DescribeSites 为每个场地计算最大内接矩形，位置以锚点场地的矩形中心为原点
// 找不到内接矩形的场地尺寸为 0，中心取场地质心
func (l *Layers) DescribeSites(anchor string, resolutionDeg float64) error {
	anchorIdx, ok := l.siteIndex[anchor]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAnchorNotFound, anchor)
	}

	centers := make([]geom.Point, len(l.Sites))
	rects := make([]geometry.Rectangle, len(l.Sites))
	for i, site := range l.Sites {
		rect, found := geometry.InscribedRectangle(site.Footprint, resolutionDeg)
		if !found {
			centers[i] = site.Centroid
			continue
		}
		rects[i] = rect
		centers[i] = rect.Centroid
	}

	origin := centers[anchorIdx]
	for i := range l.Sites {
		l.Sites[i].Rect = SiteRect{
			Length:      math.Min(rects[i].Length, rects[i].Width),
			Width:       math.Max(rects[i].Length, rects[i].Width),
			Orientation: rects[i].Orientation,
			PositionX:   math.Round((centers[i].X-origin.X)*100) / 100,
			PositionY:   math.Round((centers[i].Y-origin.Y)*100) / 100,
		}
	}

	return nil
}

func toPairs(coords []domain.Coord) [][2]float64 {
	pairs := make([][2]float64, len(coords))
	for i, c := range coords {
		pairs[i] = c
	}
	return pairs
}

func extend(acc, b *geom.Bounds) *geom.Bounds {
	if b == nil {
		return acc
	}
	if acc == nil {
		return &geom.Bounds{Min: b.Min, Max: b.Max}
	}
	acc.Min.X = math.Min(acc.Min.X, b.Min.X)
	acc.Min.Y = math.Min(acc.Min.Y, b.Min.Y)
	acc.Max.X = math.Max(acc.Max.X, b.Max.X)
	acc.Max.Y = math.Max(acc.Max.Y, b.Max.Y)
	return acc
}
