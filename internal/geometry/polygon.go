package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

// 坐标差小于该值时视为同一点
const epsilon = 1e-9

// PolygonFromCoords 将坐标对转换为单环多边形，首尾重复的闭合点会被去掉
func PolygonFromCoords(coords [][2]float64) geom.Polygon {
	path := make(geom.Path, 0, len(coords))
	for _, c := range coords {
		path = append(path, geom.Point{X: c[0], Y: c[1]})
	}
	if n := len(path); n > 1 && samePoint(path[0], path[n-1]) {
		path = path[:n-1]
	}
	return geom.Polygon{path}
}

// LineFromCoords 将坐标对转换为折线
func LineFromCoords(coords [][2]float64) geom.LineString {
	line := make(geom.LineString, 0, len(coords))
	for _, c := range coords {
		line = append(line, geom.Point{X: c[0], Y: c[1]})
	}
	return line
}

// Box 返回轴对齐矩形
func Box(minX, minY, maxX, maxY float64) geom.Polygon {
	return geom.Polygon{{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}}
}

// Exterior 返回多边形的外环，空多边形返回 nil
func Exterior(p geom.Polygon) geom.Path {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Area 返回多边形面积，空多边形为 0
func Area(p geom.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	return p.Area()
}

// Translate 平移多边形
func Translate(p geom.Polygon, dx, dy float64) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, path := range p {
		moved := make(geom.Path, len(path))
		for j, pt := range path {
			moved[j] = geom.Point{X: pt.X + dx, Y: pt.Y + dy}
		}
		out[i] = moved
	}
	return out
}

// Rotate 以 origin 为中心逆时针旋转多边形 deg 度
func Rotate(p geom.Polygon, origin geom.Point, deg float64) geom.Polygon {
	sin, cos := math.Sincos(deg * math.Pi / 180)
	out := make(geom.Polygon, len(p))
	for i, path := range p {
		turned := make(geom.Path, len(path))
		for j, pt := range path {
			x, y := pt.X-origin.X, pt.Y-origin.Y
			turned[j] = geom.Point{
				X: origin.X + x*cos - y*sin,
				Y: origin.Y + x*sin + y*cos,
			}
		}
		out[i] = turned
	}
	return out
}

// UnionAll 依次合并多边形，空输入返回空多边形
func UnionAll(polys []geom.Polygon) geom.Polygon {
	var acc geom.Polygon
	for _, p := range polys {
		if len(p) == 0 {
			continue
		}
		if len(acc) == 0 {
			acc = p
			continue
		}
		acc = asPolygon(acc.Union(p))
	}
	return acc
}

// IntersectionArea 返回两个多边形相交部分的面积，包围盒不相交时直接返回 0
func IntersectionArea(a, b geom.Polygon) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if !a.Bounds().Overlaps(b.Bounds()) {
		return 0
	}
	return Area(asPolygon(a.Intersection(b)))
}

// asPolygon 把布尔运算的结果还原为 geom.Polygon
// geom 的多边形运算返回的具体类型就是 Polygon，其他 Polygonal 按环合并
func asPolygon(p geom.Polygonal) geom.Polygon {
	if poly, ok := p.(geom.Polygon); ok {
		return poly
	}
	var out geom.Polygon
	for _, pp := range p.Polygons() {
		out = append(out, pp...)
	}
	return out
}

// Distance 返回两点间的欧氏距离
func Distance(a, b geom.Point) float64 {
	return geom.LineString{a, b}.Length()
}

// Expand 返回向四周扩展 r 的包围盒副本
func Expand(b *geom.Bounds, r float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - r, Y: b.Min.Y - r},
		Max: geom.Point{X: b.Max.X + r, Y: b.Max.Y + r},
	}
}

// Diagonal 返回包围盒对角线长度
func Diagonal(b *geom.Bounds) float64 {
	if b == nil {
		return 0
	}
	return Distance(b.Min, b.Max)
}

func samePoint(a, b geom.Point) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon
}
