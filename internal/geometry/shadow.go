package geometry

import (
	"errors"
	"math"

	"github.com/ctessum/geom"
)

var ErrAltitudeOutOfRange = errors.New("太阳高度角必须大于 0 度且小于 90 度")

// Displacement 计算高度为 height 的点在平面上的阴影位移
// 方位角自正北顺时针计量，sin/cos 的位置与罗盘约定一致
func Displacement(height, azimuthDeg, altitudeDeg float64) (dx, dy float64, err error) {
	if !(altitudeDeg > 0 && altitudeDeg < 90) {
		return 0, 0, ErrAltitudeOutOfRange
	}

	azimuth := azimuthDeg * math.Pi / 180
	altitude := altitudeDeg * math.Pi / 180
	scale := 1 / math.Tan(altitude)

	dx = snap(-height * scale * math.Sin(azimuth))
	dy = snap(-height * scale * math.Cos(azimuth))
	return dx, dy, nil
}

// snap 把浮点误差留下的极小分量归零
// 例如正南方位角下 sin(π) ≈ 1.2e-16，墙面四边形会与轮廓边几乎重合，多边形合并时会被丢掉
func snap(v float64) float64 {
	if math.Abs(v) < epsilon {
		return 0
	}
	return v
}

// ProjectShadow 返回拉伸体在平行光下投影出的阴影多边形集合：
// 每条边一个墙面四边形，再加上平移后的屋顶
func ProjectShadow(footprint geom.Polygon, height, azimuthDeg, altitudeDeg float64) ([]geom.Polygon, error) {
	dx, dy, err := Displacement(height, azimuthDeg, altitudeDeg)
	if err != nil {
		return nil, err
	}

	ring := Exterior(footprint)
	if height <= 0 || len(ring) < 3 {
		return nil, nil
	}

	shadows := make([]geom.Polygon, 0, len(ring)+1)
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		wall := geom.Path{
			a,
			b,
			{X: b.X + dx, Y: b.Y + dy},
			{X: a.X + dx, Y: a.Y + dy},
		}
		// 与光线平行的边投出的四边形没有面积
		if Area(geom.Polygon{wall}) < epsilon {
			continue
		}
		shadows = append(shadows, geom.Polygon{wall})
	}
	shadows = append(shadows, Translate(geom.Polygon{ring}, dx, dy))

	return shadows, nil
}

// ShadowOf 返回单个建筑阴影的并集
func ShadowOf(footprint geom.Polygon, height, azimuthDeg, altitudeDeg float64) (geom.Polygon, error) {
	parts, err := ProjectShadow(footprint, height, azimuthDeg, altitudeDeg)
	if err != nil {
		return nil, err
	}
	return UnionAll(parts), nil
}
