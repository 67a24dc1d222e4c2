package domain

// Coord 是投影坐标系下的一个点 [x, y]
type Coord [2]float64

type BuildingType string

const (
	BuildingTypeApartment BuildingType = "apartment"
	BuildingTypeOffice    BuildingType = "office"
	BuildingTypeSchool    BuildingType = "school"
)

type BarrierKind string

const (
	BarrierHighway BarrierKind = "highway"
	BarrierRailway BarrierKind = "railway"
)

type BuildingSpec struct {
	ID        string       `json:"id" yaml:"id" validate:"required"`
	Type      BuildingType `json:"type" yaml:"type" validate:"required,oneof=apartment office school"`
	TargetGFA float64      `json:"targetGFA" yaml:"targetGFA" validate:"gt=0"`
}

type Site struct {
	ID        string  `json:"id" yaml:"id" validate:"required"`
	Footprint []Coord `json:"footprint" yaml:"footprint" validate:"min=3"`
}

type ExistingBuilding struct {
	ID        string  `json:"id" yaml:"id" validate:"required"`
	Use       string  `json:"use" yaml:"use"` // 如 apartments、house、office
	Height    float64 `json:"height" yaml:"height" validate:"gte=0"`
	Footprint []Coord `json:"footprint" yaml:"footprint" validate:"min=3"`
}

type NatureArea struct {
	ID        string  `json:"id" yaml:"id"`
	Footprint []Coord `json:"footprint" yaml:"footprint" validate:"min=3"`
}

type Barrier struct {
	Kind BarrierKind `json:"kind" yaml:"kind" validate:"required,oneof=highway railway"`
	Line []Coord     `json:"line" yaml:"line" validate:"min=2"`
}

type CycleWay struct {
	Line []Coord `json:"line" yaml:"line" validate:"min=2"`
}

// Service 是带有 OSM 风格标签的服务设施点
type Service struct {
	Shop     string `json:"shop,omitempty" yaml:"shop,omitempty"`
	Amenity  string `json:"amenity,omitempty" yaml:"amenity,omitempty"`
	Location Coord  `json:"location" yaml:"location"`
}

// Sun 的方位角自正北顺时针计量，高度角必须在 (0, 90) 之间
type Sun struct {
	Azimuth  float64 `json:"azimuth" yaml:"azimuth" validate:"gte=0,lt=360"`
	Altitude float64 `json:"altitude" yaml:"altitude" validate:"gt=0,lt=90"`
}

// OptimizerOptions 覆盖服务端的默认遗传算法参数，零值表示使用默认值
type OptimizerOptions struct {
	UrbanPopulation     int     `json:"urbanPopulation,omitempty" yaml:"urbanPopulation,omitempty" validate:"gte=0"`
	UrbanGenerations    int     `json:"urbanGenerations,omitempty" yaml:"urbanGenerations,omitempty" validate:"gte=0"`
	ShapePopulation     int     `json:"shapePopulation,omitempty" yaml:"shapePopulation,omitempty" validate:"gte=0"`
	ShapeGenerations    int     `json:"shapeGenerations,omitempty" yaml:"shapeGenerations,omitempty" validate:"gte=0"`
	MutationProbability float64 `json:"mutationProbability,omitempty" yaml:"mutationProbability,omitempty" validate:"gte=0,lte=1"`
	AccessibilityType   string  `json:"accessibilityType,omitempty" yaml:"accessibilityType,omitempty" validate:"omitempty,oneof=apartment office school"`
	Seed                int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
	SkipShapes          bool    `json:"skipShapes,omitempty" yaml:"skipShapes,omitempty"`
}

// Scenario 是一次优化所需的全部输入，坐标均已投影到同一个平面坐标系
type Scenario struct {
	Name       string             `json:"name" yaml:"name" validate:"required"`
	AnchorSite string             `json:"anchorSite" yaml:"anchorSite" validate:"required"`
	Sites      []Site             `json:"sites" yaml:"sites" validate:"required,min=1,dive"`
	Buildings  []BuildingSpec     `json:"buildings" yaml:"buildings" validate:"required,min=1,dive"`
	Existing   []ExistingBuilding `json:"existing" yaml:"existing" validate:"dive"`
	Nature     []NatureArea       `json:"nature" yaml:"nature" validate:"dive"`
	Barriers   []Barrier          `json:"barriers" yaml:"barriers" validate:"dive"`
	CycleWays  []CycleWay         `json:"cycleWays" yaml:"cycleWays" validate:"dive"`
	Services   []Service          `json:"services" yaml:"services" validate:"dive"`
	Sun        Sun                `json:"sun" yaml:"sun"`
	Options    OptimizerOptions   `json:"options" yaml:"options"`
}

// LayoutEntry 描述一个已确定的建筑布置，用于评估现状方案
type LayoutEntry struct {
	BuildingID string       `json:"buildingID" yaml:"buildingID" validate:"required"`
	Type       BuildingType `json:"type" yaml:"type" validate:"required,oneof=apartment office school"`
	SiteID     string       `json:"siteID" yaml:"siteID" validate:"required"`
	Height     float64      `json:"height" yaml:"height" validate:"gt=0"`
}
