package geometry

import (
	"math"

	"github.com/ctessum/geom"
)

const (
	// 缩放尝试的次数，从 1.0 线性降到 minScale
	scaleSteps = 20
	minScale   = 0.5
	// 判定包含关系前矩形向内收缩的比例，避免边界重合时的误判
	containTolerance = 1e-6
)

// Rectangle 是多边形内最大内接矩形的描述
type Rectangle struct {
	Polygon     geom.Polygon
	Area        float64
	Length      float64 // 主边长度
	Width       float64 // 次边长度
	Orientation float64 // 主边的罗盘方位角，0 为正北
	Centroid    geom.Point
}

// InscribedRectangle 以 resolutionDeg 为步长旋转多边形，在每个角度下尝试以质心为中心、
// 按包围盒缩放的矩形，取第一个完全包含在内的矩形，最终返回面积最大者
func InscribedRectangle(poly geom.Polygon, resolutionDeg float64) (Rectangle, bool) {
	if len(Exterior(poly)) < 3 || Area(poly) <= 0 {
		return Rectangle{}, false
	}
	if resolutionDeg <= 0 {
		resolutionDeg = 1
	}

	var (
		best      geom.Polygon
		bestArea  float64
		bestFound bool
	)

	origin := poly.Centroid()
	for angle := 0.0; angle < 180; angle += resolutionDeg {
		rotated := Rotate(poly, origin, angle)
		bounds := rotated.Bounds()
		center := rotated.Centroid()

		for i := 0; i < scaleSteps; i++ {
			scale := 1 - (1-minScale)*float64(i)/float64(scaleSteps-1)
			w := (bounds.Max.X - bounds.Min.X) * scale / 2
			h := (bounds.Max.Y - bounds.Min.Y) * scale / 2
			rect := Box(center.X-w, center.Y-h, center.X+w, center.Y+h)
			rectArea := 4 * w * h
			if rectArea <= 0 {
				break
			}

			if containsBox(rotated, center, w, h) {
				if rectArea > bestArea {
					bestArea = rectArea
					best = Rotate(rect, origin, -angle)
					bestFound = true
				}
				break
			}
		}
	}

	if !bestFound {
		return Rectangle{}, false
	}

	length, width, orientation := rectangleDimensions(Exterior(best))
	return Rectangle{
		Polygon:     best,
		Area:        bestArea,
		Length:      length,
		Width:       width,
		Orientation: orientation,
		Centroid:    best.Centroid(),
	}, true
}

// rectangleDimensions 返回主边长度、次边长度和主边的罗盘方位角
func rectangleDimensions(ring geom.Path) (main, secondary, orientation float64) {
	secondary = math.Inf(1)
	for i := 0; i < len(ring); i++ {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)

		if length > main {
			main = length
			fromEast := math.Atan2(dy, dx) * 180 / math.Pi
			orientation = math.Mod(90-fromEast+360, 360)
		}
		if length < secondary {
			secondary = length
		}
	}
	if math.IsInf(secondary, 1) {
		secondary = 0
	}
	return main, secondary, math.Round(orientation*10) / 10
}

// containsBox 判断以 center 为中心、半宽 w 半高 h 的轴对齐矩形是否落在多边形内：
// 四角都在内部，多边形的边不穿过矩形边界，也没有顶点落在矩形内部
func containsBox(poly geom.Polygon, center geom.Point, w, h float64) bool {
	w *= 1 - containTolerance
	h *= 1 - containTolerance
	corners := Exterior(Box(center.X-w, center.Y-h, center.X+w, center.Y+h))

	for _, c := range corners {
		if c.Within(poly) == geom.Outside {
			return false
		}
	}

	for _, ring := range poly {
		n := len(ring)
		for i := 0; i < n; i++ {
			a, b := ring[i], ring[(i+1)%n]
			if math.Abs(a.X-center.X) < w && math.Abs(a.Y-center.Y) < h {
				return false
			}
			for j := 0; j < 4; j++ {
				if SegmentsIntersect(a, b, corners[j], corners[(j+1)%4]) {
					return false
				}
			}
		}
	}
	return true
}
