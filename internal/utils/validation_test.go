package utils

import (
	"testing"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/stretchr/testify/assert"
)

func box(minX, minY, maxX, maxY float64) []domain.Coord {
	return []domain.Coord{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}

func validScenario() *domain.Scenario {
	return &domain.Scenario{
		Name:       "check",
		AnchorSite: "a",
		Sites: []domain.Site{
			{ID: "a", Footprint: box(0, 0, 10, 10)},
			{ID: "b", Footprint: box(20, 0, 30, 10)},
		},
		Buildings: []domain.BuildingSpec{
			{ID: "home", Type: domain.BuildingTypeApartment, TargetGFA: 100},
		},
		Existing: []domain.ExistingBuilding{
			{ID: "way/1", Height: 9, Footprint: box(40, 0, 50, 10)},
		},
		Services: []domain.Service{{Amenity: "cafe"}},
	}
}

func TestValidateScenario(t *testing.T) {
	assert.NoError(t, ValidateScenario(validScenario()))

	tests := []struct {
		name   string
		modify func(s *domain.Scenario)
		msg    string
	}{
		{"duplicate site", func(s *domain.Scenario) { s.Sites[1].ID = "a" }, "场地 a 重复"},
		{"missing anchor", func(s *domain.Scenario) { s.AnchorSite = "z" }, "锚点场地 z 不存在"},
		{"duplicate building", func(s *domain.Scenario) {
			s.Buildings = append(s.Buildings, s.Buildings[0])
		}, "建筑 home 重复"},
		{"too many buildings", func(s *domain.Scenario) {
			s.Buildings = append(s.Buildings,
				domain.BuildingSpec{ID: "office", Type: domain.BuildingTypeOffice, TargetGFA: 1},
				domain.BuildingSpec{ID: "school", Type: domain.BuildingTypeSchool, TargetGFA: 1})
		}, "建筑数量 (3) 不能多于场地数量 (2)"},
		{"collinear site", func(s *domain.Scenario) {
			s.Sites[0].Footprint = []domain.Coord{{0, 0}, {5, 0}, {10, 0}}
		}, "面积为 0"},
		{"closed ring with two points", func(s *domain.Scenario) {
			s.Sites[0].Footprint = []domain.Coord{{0, 0}, {5, 5}, {0, 0}}
		}, "至少需要三个不同的顶点"},
		{"untagged service", func(s *domain.Scenario) { s.Services = append(s.Services, domain.Service{}) }, "第 2 个服务设施"},
		{"bad existing", func(s *domain.Scenario) { s.Existing[0].Footprint = box(0, 0, 0, 0) }, "现状建筑 way/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validScenario()
			tt.modify(s)
			assert.ErrorContains(t, ValidateScenario(s), tt.msg)
		})
	}
}

func TestValidateLayout(t *testing.T) {
	s := validScenario()
	layout := []domain.LayoutEntry{
		{BuildingID: "home", Type: domain.BuildingTypeApartment, SiteID: "a", Height: 9},
		{BuildingID: "shop", Type: domain.BuildingTypeOffice, SiteID: "b", Height: 6},
	}
	assert.NoError(t, ValidateLayout(s, layout))

	assert.Error(t, ValidateLayout(s, nil))

	layout[1].SiteID = "a"
	assert.ErrorContains(t, ValidateLayout(s, layout), "同一个场地 a")

	layout[1].SiteID = "c"
	assert.ErrorContains(t, ValidateLayout(s, layout), "场地 c 不存在")

	layout[1].BuildingID = "home"
	assert.ErrorContains(t, ValidateLayout(s, layout), "建筑 home 重复")
}

func TestGenerateRandomPassword(t *testing.T) {
	p := GenerateRandomPassword(16)
	assert.Len(t, []rune(p), 16)
	for _, r := range p {
		assert.Contains(t, string(letters), string(r))
	}

	assert.Len(t, GenerateRandomOTP(), 6)
}
