package utils

import (
	"errors"
	"fmt"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/geometry"
)

// ValidateScenario 检查结构体标签无法表达的约束
func ValidateScenario(s *domain.Scenario) error {
	sites := make(map[string]bool, len(s.Sites))
	for _, site := range s.Sites {
		if sites[site.ID] {
			return fmt.Errorf("场地 %s 重复", site.ID)
		}
		sites[site.ID] = true

		if err := validateFootprint(site.Footprint); err != nil {
			return fmt.Errorf("场地 %s 的轮廓无效: %w", site.ID, err)
		}
	}

	if !sites[s.AnchorSite] {
		return fmt.Errorf("锚点场地 %s 不存在", s.AnchorSite)
	}

	buildings := make(map[string]bool, len(s.Buildings))
	for _, b := range s.Buildings {
		if buildings[b.ID] {
			return fmt.Errorf("建筑 %s 重复", b.ID)
		}
		buildings[b.ID] = true
	}

	if len(s.Buildings) > len(s.Sites) {
		return fmt.Errorf("建筑数量 (%d) 不能多于场地数量 (%d)", len(s.Buildings), len(s.Sites))
	}

	for _, e := range s.Existing {
		if err := validateFootprint(e.Footprint); err != nil {
			return fmt.Errorf("现状建筑 %s 的轮廓无效: %w", e.ID, err)
		}
	}

	for i, svc := range s.Services {
		if svc.Shop == "" && svc.Amenity == "" {
			return fmt.Errorf("第 %d 个服务设施缺少 shop 或 amenity 标签", i+1)
		}
	}

	return nil
}

// ValidateLayout 检查待评估的布局是否与场景一致
func ValidateLayout(s *domain.Scenario, layout []domain.LayoutEntry) error {
	if len(layout) == 0 {
		return errors.New("布局不能为空")
	}

	sites := make(map[string]bool, len(s.Sites))
	for _, site := range s.Sites {
		sites[site.ID] = true
	}

	usedSites := make(map[string]string, len(layout))
	buildings := make(map[string]bool, len(layout))
	for _, entry := range layout {
		if buildings[entry.BuildingID] {
			return fmt.Errorf("建筑 %s 重复", entry.BuildingID)
		}
		buildings[entry.BuildingID] = true

		if !sites[entry.SiteID] {
			return fmt.Errorf("建筑 %s 所在的场地 %s 不存在", entry.BuildingID, entry.SiteID)
		}
		if other, ok := usedSites[entry.SiteID]; ok {
			return fmt.Errorf("建筑 %s 和 %s 位于同一个场地 %s", other, entry.BuildingID, entry.SiteID)
		}
		usedSites[entry.SiteID] = entry.BuildingID
	}

	return nil
}

func validateFootprint(coords []domain.Coord) error {
	pairs := make([][2]float64, 0, len(coords))
	for _, c := range coords {
		pairs = append(pairs, [2]float64(c))
	}

	poly := geometry.PolygonFromCoords(pairs)
	if len(geometry.Exterior(poly)) < 3 {
		return errors.New("至少需要三个不同的顶点")
	}
	if geometry.Area(poly) <= 0 {
		return errors.New("面积为 0")
	}

	return nil
}
