package geometry

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplacement_NorthwardShadow(t *testing.T) {
	// 太阳在正南方，高度角 45 度时，20 米高的物体投影长度为 20 米
	dx, dy, err := Displacement(20, 180, 45)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, math.Hypot(dx, dy), 1e-9)
	// sin(π) 的舍入误差被归零
	assert.Zero(t, dx)
	// 正北方向为 +y
	assert.Greater(t, dy, 0.0)
}

func TestDisplacement_AltitudeOutOfRange(t *testing.T) {
	for _, alt := range []float64{0, -10, 90, 120} {
		_, _, err := Displacement(10, 180, alt)
		assert.ErrorIs(t, err, ErrAltitudeOutOfRange, "altitude %v", alt)
	}

	_, err := ProjectShadow(Box(0, 0, 10, 10), 10, 180, 90)
	assert.ErrorIs(t, err, ErrAltitudeOutOfRange)
}

func TestProjectShadow_Parts(t *testing.T) {
	square := Box(0, 0, 10, 10)

	parts, err := ProjectShadow(square, 20, 180, 45)
	require.NoError(t, err)

	// 两条与光线平行的边被丢弃，剩下两个墙面和一个屋顶
	require.Len(t, parts, 3)

	roof := parts[len(parts)-1]
	assert.InDelta(t, 100.0, Area(roof), 1e-9)
	b := roof.Bounds()
	assert.InDelta(t, 20.0, b.Min.Y, 1e-9)
	assert.InDelta(t, 30.0, b.Max.Y, 1e-9)
}

func TestProjectShadow_ZeroHeight(t *testing.T) {
	parts, err := ProjectShadow(Box(0, 0, 10, 10), 0, 180, 45)
	require.NoError(t, err)
	assert.Empty(t, parts)

	shadow, err := ShadowOf(Box(0, 0, 10, 10), -5, 180, 45)
	require.NoError(t, err)
	assert.Zero(t, Area(shadow))
}

func TestShadowOf_DiagonalArea(t *testing.T) {
	// 方形沿对角方向平移 10 米扫出的面积 = 100 + 10√2·10
	shadow, err := ShadowOf(Box(0, 0, 10, 10), 10, 135, 45)
	require.NoError(t, err)

	assert.InDelta(t, 100+100*math.Sqrt2, Area(shadow), 1e-6)
}

func TestShadowOf_DueSouthArea(t *testing.T) {
	// 正南方向的阴影是方形沿 +y 扫出的矩形
	shadow, err := ShadowOf(Box(0, 0, 10, 10), 20, 180, 45)
	require.NoError(t, err)
	assert.InDelta(t, 300.0, Area(shadow), 1e-6)

	shadow, err = ShadowOf(Box(0, 0, 10, 10), 20, 180, 30)
	require.NoError(t, err)
	assert.InDelta(t, 100+200*math.Sqrt(3), Area(shadow), 1e-6)
}

func TestShadowOf_AzimuthSweep(t *testing.T) {
	const height = 20.0
	for _, alt := range []float64{30, 45, 60} {
		for az := 0.0; az < 360; az += 15 {
			shadow, err := ShadowOf(Box(0, 0, 10, 10), height, az, alt)
			require.NoError(t, err)

			// 边长 10 的方形平移 (dx,dy) 扫出的面积 = 100 + 10|dx| + 10|dy|
			length := height / math.Tan(alt*math.Pi/180)
			sin, cos := math.Sincos(az * math.Pi / 180)
			want := 100 + 10*length*(math.Abs(sin)+math.Abs(cos))
			assert.InDelta(t, want, Area(shadow), 1e-6, "azimuth %v altitude %v", az, alt)
		}
	}
}

func TestShadowOf_LongerWhenSunLower(t *testing.T) {
	high, err := ShadowOf(Box(0, 0, 10, 10), 10, 135, 60)
	require.NoError(t, err)
	low, err := ShadowOf(Box(0, 0, 10, 10), 10, 135, 30)
	require.NoError(t, err)

	assert.Greater(t, Area(low), Area(high))
}

func TestPolygonFromCoords_StripsClosingPoint(t *testing.T) {
	p := PolygonFromCoords([][2]float64{{0, 0}, {4, 0}, {4, 3}, {0, 3}, {0, 0}})
	require.Len(t, Exterior(p), 4)
	assert.InDelta(t, 12.0, Area(p), 1e-9)
}

func TestRotate_QuarterTurn(t *testing.T) {
	p := Rotate(Box(0, 0, 2, 1), geom.Point{}, 90)
	b := p.Bounds()
	assert.InDelta(t, -1.0, b.Min.X, 1e-9)
	assert.InDelta(t, 0.0, b.Max.X, 1e-9)
	assert.InDelta(t, 2.0, b.Max.Y, 1e-9)
}

func TestIntersectionArea_Disjoint(t *testing.T) {
	assert.Zero(t, IntersectionArea(Box(0, 0, 1, 1), Box(5, 5, 6, 6)))
	assert.Zero(t, IntersectionArea(nil, Box(5, 5, 6, 6)))
}

func TestIntersectionArea_Overlapping(t *testing.T) {
	assert.InDelta(t, 2.0, IntersectionArea(Box(0, 0, 2, 2), Box(1, 0, 3, 2)), 1e-9)
	assert.InDelta(t, 4.0, IntersectionArea(Box(0, 0, 2, 2), Box(-1, -1, 3, 3)), 1e-9)
}

func TestUnionAll(t *testing.T) {
	assert.Empty(t, UnionAll(nil))
	assert.InDelta(t, 6.0, Area(UnionAll([]geom.Polygon{Box(0, 0, 2, 2), nil, Box(1, 0, 3, 2)})), 1e-9)
	// 不相交的部分各自保留
	assert.InDelta(t, 2.0, Area(UnionAll([]geom.Polygon{Box(0, 0, 1, 1), Box(5, 5, 6, 6)})), 1e-9)
}

func TestInscribedRectangle_AxisAligned(t *testing.T) {
	rect, ok := InscribedRectangle(Box(0, 0, 40, 30), 1)
	require.True(t, ok)

	assert.InDelta(t, 1200.0, rect.Area, 1e-6)
	assert.InDelta(t, 40.0, rect.Length, 1e-6)
	assert.InDelta(t, 30.0, rect.Width, 1e-6)
	// 主边沿东西向
	assert.True(t, rect.Orientation == 90 || rect.Orientation == 270, "orientation %v", rect.Orientation)
	assert.InDelta(t, 20.0, rect.Centroid.X, 1e-6)
	assert.InDelta(t, 15.0, rect.Centroid.Y, 1e-6)
}

func TestInscribedRectangle_Rotated(t *testing.T) {
	// 40×10 的矩形逆时针旋转 30 度，主边方位角为 60 度或 240 度
	site := Rotate(Box(0, 0, 40, 10), geom.Point{X: 20, Y: 5}, 30)
	rect, ok := InscribedRectangle(site, 5)
	require.True(t, ok)

	assert.InDelta(t, 400.0, rect.Area, 1e-6)
	assert.InDelta(t, 40.0, rect.Length, 1e-6)
	assert.InDelta(t, 10.0, rect.Width, 1e-6)
	assert.True(t, rect.Orientation == 60 || rect.Orientation == 240, "orientation %v", rect.Orientation)
}

func TestInscribedRectangle_Degenerate(t *testing.T) {
	_, ok := InscribedRectangle(geom.Polygon{}, 1)
	assert.False(t, ok)

	_, ok = InscribedRectangle(PolygonFromCoords([][2]float64{{0, 0}, {1, 1}}), 1)
	assert.False(t, ok)
}

func TestSegmentsIntersect(t *testing.T) {
	o := geom.Point{}
	assert.True(t, SegmentsIntersect(o, geom.Point{X: 2, Y: 2}, geom.Point{X: 0, Y: 2}, geom.Point{X: 2, Y: 0}))
	assert.False(t, SegmentsIntersect(o, geom.Point{X: 1, Y: 0}, geom.Point{X: 0, Y: 1}, geom.Point{X: 1, Y: 1}))
	// 端点接触
	assert.True(t, SegmentsIntersect(o, geom.Point{X: 1, Y: 0}, geom.Point{X: 1, Y: 0}, geom.Point{X: 1, Y: 1}))
	// 共线重叠
	assert.True(t, SegmentsIntersect(o, geom.Point{X: 2, Y: 0}, geom.Point{X: 1, Y: 0}, geom.Point{X: 3, Y: 0}))
}

func TestSegmentIntersectsPolygon(t *testing.T) {
	box := Box(0, 0, 10, 10)

	assert.True(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: -5, Y: 5}, B: geom.Point{X: 15, Y: 5}}, box))
	// 完全在内部
	assert.True(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: 2, Y: 2}, B: geom.Point{X: 3, Y: 3}}, box))
	assert.False(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: 20, Y: 0}, B: geom.Point{X: 20, Y: 10}}, box))
	// 起点落在边上
	assert.True(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: 10, Y: 5}, B: geom.Point{X: 20, Y: 5}}, box))
	assert.False(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: -5, Y: 5}, B: geom.Point{X: 15, Y: 5}}, nil))

	// U 形多边形：两端都在凹口里，但中段穿过两臂
	u := PolygonFromCoords([][2]float64{{0, 0}, {30, 0}, {30, 30}, {20, 30}, {20, 10}, {10, 10}, {10, 30}, {0, 30}})
	assert.True(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: -5, Y: 5}, B: geom.Point{X: 35, Y: 5}}, u))
	assert.False(t, SegmentIntersectsPolygon(Segment{A: geom.Point{X: 12, Y: 20}, B: geom.Point{X: 18, Y: 25}}, u))
}

func TestSegment_Measures(t *testing.T) {
	s := Segment{A: geom.Point{X: 4, Y: 0}, B: geom.Point{X: 0, Y: 3}}
	assert.InDelta(t, 5.0, s.Length(), 1e-12)
	assert.InDelta(t, 5.0, Distance(s.A, s.B), 1e-12)
	assert.Zero(t, Distance(s.A, s.A))

	b := s.Bounds()
	assert.Equal(t, geom.Point{X: 0, Y: 0}, b.Min)
	assert.Equal(t, geom.Point{X: 4, Y: 3}, b.Max)
	assert.InDelta(t, 5.0, Diagonal(b), 1e-12)
	assert.Zero(t, Diagonal(nil))
}

func TestCoveredLength(t *testing.T) {
	seg := Segment{A: geom.Point{X: 0, Y: 0}, B: geom.Point{X: 100, Y: 0}}

	t.Run("parallel line within buffer", func(t *testing.T) {
		line := LineFromCoords([][2]float64{{20, 5}, {60, 5}})
		// 线段两端各延伸出 √(100-25) 的圆弧部分
		want := 40 + 2*math.Sqrt(75)
		assert.InDelta(t, want, CoveredLength(seg, []geom.LineString{line}, 10), 1e-6)
	})

	t.Run("crossing line", func(t *testing.T) {
		line := LineFromCoords([][2]float64{{50, -50}, {50, 50}})
		assert.InDelta(t, 20.0, CoveredLength(seg, []geom.LineString{line}, 10), 1e-6)
	})

	t.Run("overlapping intervals are merged", func(t *testing.T) {
		lines := []geom.LineString{
			LineFromCoords([][2]float64{{-20, 0}, {50, 0}}),
			LineFromCoords([][2]float64{{40, 0}, {200, 0}}),
		}
		assert.InDelta(t, 100.0, CoveredLength(seg, lines, 10), 1e-6)
	})

	t.Run("far away", func(t *testing.T) {
		line := LineFromCoords([][2]float64{{0, 50}, {100, 50}})
		assert.Zero(t, CoveredLength(seg, []geom.LineString{line}, 10))
	})

	t.Run("zero length segment", func(t *testing.T) {
		line := LineFromCoords([][2]float64{{0, 0}, {1, 0}})
		assert.Zero(t, CoveredLength(Segment{}, []geom.LineString{line}, 10))
	})
}

func TestIndex_Search(t *testing.T) {
	idx := NewIndex()
	idx.Insert(Box(0, 0, 1, 1))
	idx.Insert(Box(10, 10, 11, 11))
	idx.Insert(LineFromCoords([][2]float64{{0, 5}, {20, 5}}))
	require.Equal(t, 3, idx.Len())

	ids := idx.Search(&geom.Bounds{Min: geom.Point{X: -1, Y: -1}, Max: geom.Point{X: 2, Y: 6}})
	assert.Equal(t, []int{0, 2}, ids)

	assert.Empty(t, NewIndex().Search(&geom.Bounds{}))
}
