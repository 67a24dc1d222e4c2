package geometry

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
)

// Segment 是两点之间的直线段
type Segment struct {
	A, B geom.Point
}

// LineString 返回线段对应的两点折线
func (s Segment) LineString() geom.LineString {
	return geom.LineString{s.A, s.B}
}

func (s Segment) Length() float64 {
	return s.LineString().Length()
}

// At 返回参数 t ∈ [0,1] 处的点
func (s Segment) At(t float64) geom.Point {
	return geom.Point{X: s.A.X + t*(s.B.X-s.A.X), Y: s.A.Y + t*(s.B.Y-s.A.Y)}
}

func (s Segment) Bounds() *geom.Bounds {
	return s.LineString().Bounds()
}

func orientation(a, b, c geom.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p geom.Point) bool {
	return p.X >= math.Min(a.X, b.X)-epsilon && p.X <= math.Max(a.X, b.X)+epsilon &&
		p.Y >= math.Min(a.Y, b.Y)-epsilon && p.Y <= math.Max(a.Y, b.Y)+epsilon
}

// SegmentsIntersect 判断线段 ab 与 cd 是否相交（含端点接触与共线重叠）
func SegmentsIntersect(a, b, c, d geom.Point) bool {
	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if ((o1 > epsilon && o2 < -epsilon) || (o1 < -epsilon && o2 > epsilon)) &&
		((o3 > epsilon && o4 < -epsilon) || (o3 < -epsilon && o4 > epsilon)) {
		return true
	}

	switch {
	case math.Abs(o1) <= epsilon && onSegment(a, b, c):
		return true
	case math.Abs(o2) <= epsilon && onSegment(a, b, d):
		return true
	case math.Abs(o3) <= epsilon && onSegment(c, d, a):
		return true
	case math.Abs(o4) <= epsilon && onSegment(c, d, b):
		return true
	}
	return false
}

// SegmentIntersectsLine 判断线段是否与折线的任意一段相交
func SegmentIntersectsLine(s Segment, line geom.LineString) bool {
	for i := 0; i+1 < len(line); i++ {
		if SegmentsIntersect(s.A, s.B, line[i], line[i+1]) {
			return true
		}
	}
	return false
}

// SegmentIntersectsPolygon 判断线段是否与多边形有公共部分
// 端点落在多边形内或边上即算相交，否则看裁剪后留在多边形内的长度
func SegmentIntersectsPolygon(s Segment, poly geom.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	if s.A.Within(poly) != geom.Outside || s.B.Within(poly) != geom.Outside {
		return true
	}
	return s.LineString().Clip(poly).Length() > epsilon
}

const (
	searchIterations = 100
)

type interval struct {
	lo, hi float64
}

// CoveredLength 返回线段 s 上落在任一折线 radius 距离以内部分的总长度
func CoveredLength(s Segment, lines []geom.LineString, radius float64) float64 {
	total := s.Length()
	if total < epsilon || radius <= 0 {
		return 0
	}

	var intervals []interval
	for _, line := range lines {
		for i := 0; i+1 < len(line); i++ {
			if iv, ok := coveredInterval(s, geom.LineString{line[i], line[i+1]}, radius); ok {
				intervals = append(intervals, iv)
			}
		}
	}
	if len(intervals) == 0 {
		return 0
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].lo < intervals[j].lo
	})

	covered := 0.0
	cur := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.lo <= cur.hi {
			cur.hi = math.Max(cur.hi, iv.hi)
			continue
		}
		covered += cur.hi - cur.lo
		cur = iv
	}
	covered += cur.hi - cur.lo

	return math.Min(covered, 1) * total
}

// coveredInterval 求线段参数区间 [lo,hi]，区间内的点到 cd 的距离不超过 radius
// 点沿线段移动时到单条线段 cd 的距离是凸函数，因此满足条件的参数构成一个区间
func coveredInterval(s Segment, cd geom.LineString, radius float64) (interval, bool) {
	dist := func(t float64) float64 {
		return cd.Distance(s.At(t))
	}

	// 三分法求最近点
	lo, hi := 0.0, 1.0
	for i := 0; i < searchIterations; i++ {
		m1 := lo + (hi-lo)/3
		m2 := hi - (hi-lo)/3
		if dist(m1) <= dist(m2) {
			hi = m2
		} else {
			lo = m1
		}
	}
	tMin := (lo + hi) / 2
	if dist(tMin) > radius {
		return interval{}, false
	}

	// 在最近点两侧二分出边界
	start := 0.0
	if dist(0) > radius {
		l, r := 0.0, tMin
		for i := 0; i < searchIterations; i++ {
			m := (l + r) / 2
			if dist(m) > radius {
				l = m
			} else {
				r = m
			}
		}
		start = r
	}

	end := 1.0
	if dist(1) > radius {
		l, r := tMin, 1.0
		for i := 0; i < searchIterations; i++ {
			m := (l + r) / 2
			if dist(m) > radius {
				r = m
			} else {
				l = m
			}
		}
		end = l
	}

	return interval{lo: start, hi: end}, true
}
