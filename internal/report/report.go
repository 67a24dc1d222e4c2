package report

import (
	"fmt"
	"strings"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/upga"
)

const (
	wideRule   = 60
	narrowRule = 50
	// 高于这个值的子项视为表现良好
	goodThreshold = 0.5
)

// Shape 是某个场地上建筑形体优化的摘要
type Shape struct {
	BuildingID string
	SiteID     string
	Details    string
}

type Input struct {
	Title             string
	Assignments       []upga.Assignment // 按建筑规格的顺序
	Explanation       upga.Explanation
	AccessibilityType domain.BuildingType
	NatureArea        float64
	Shapes            []Shape
}

// Evaluation 生成布局方案的评估报告
func Evaluation(in Input) string {
	var sb strings.Builder
	ex := in.Explanation

	rule(&sb, "=", wideRule)
	fmt.Fprintf(&sb, "%s - Evaluation Report\n", titleOf(in))
	rule(&sb, "=", wideRule)

	sb.WriteString("\nLayout:\n")
	rule(&sb, "-", wideRule)
	for _, a := range in.Assignments {
		footprint := 0.0
		if a.Floors > 0 {
			footprint = a.GFA / float64(a.Floors)
		}
		fmt.Fprintf(&sb, "- %-12s | Site: %-8s | Type: %-10s | Max height: %6.2f m | GFA: %8.1f m² | Target: %8.1f m² | Footprint: %7.1f m²\n",
			a.BuildingID, a.SiteID, a.Type, a.MaxHeight, a.GFA, a.TargetGFA, footprint)
	}

	sb.WriteString("\nFitness:\n")
	rule(&sb, "-", wideRule)
	fmt.Fprintf(&sb, "- GFA:               %.3f\n", ex.GFA)
	fmt.Fprintf(&sb, "- Shadow on nature:  %.3f\n", ex.ShadowNature)
	fmt.Fprintf(&sb, "- Shadow buildings:  %.3f\n", ex.ShadowBuildings)
	fmt.Fprintf(&sb, "- Walkability:       %.3f\n", ex.Walkability)
	fmt.Fprintf(&sb, "- Cycleability:      %.3f\n", ex.Cycleability)
	fmt.Fprintf(&sb, "- Service:           %.3f\n", ex.Service)
	for _, g := range ex.ServiceByGroup {
		fmt.Fprintf(&sb, "    %-14s   %.3f\n", g.Type, g.Score)
	}
	fmt.Fprintf(&sb, "\nTotal fitness: %.3f\n", ex.Total)

	sb.WriteString("\nNotes:\n")
	rule(&sb, "-", wideRule)
	for _, line := range notes(in) {
		fmt.Fprintf(&sb, "- %s\n", line)
	}

	sb.WriteString("\nSolar potential:\n")
	rule(&sb, "-", wideRule)
	shadowedNew := 0.0
	if ex.NewRoofArea > 0 {
		shadowedNew = ex.ConflictAreaNew / ex.NewRoofArea * 100
	}
	shadowedNature := 0.0
	if in.NatureArea > 0 {
		shadowedNature = ex.NatureShadowArea / in.NatureArea * 100
	}
	fmt.Fprintf(&sb, "- New roof area:                  %9.1f m²\n", ex.NewRoofArea)
	fmt.Fprintf(&sb, "- Shadowed area on new buildings: %9.1f m² (%.1f%%)\n", ex.ConflictAreaNew, shadowedNew)
	fmt.Fprintf(&sb, "- Shadowed area on existing:      %9.1f m²\n", ex.ConflictAreaExisting)
	fmt.Fprintf(&sb, "- Area available for PV:          %9.1f m²\n", max(ex.NewRoofArea-ex.ConflictAreaNew, 0))
	fmt.Fprintf(&sb, "- Nature area in shadow:          %9.1f m² (%.1f%%)\n", ex.NatureShadowArea, shadowedNature)

	sb.WriteString("\nShadow impact:\n")
	rule(&sb, "-", wideRule)
	sb.WriteString("New buildings casting shadow on existing buildings:\n")
	writeHits(&sb, ex.CastOnExisting, func(h upga.ShadowHit) (string, string, float64) {
		return h.Caster, h.Receiver, h.ReceiverHeight
	})
	sb.WriteString("Existing buildings casting shadow on new buildings:\n")
	writeHits(&sb, ex.CastOnNew, func(h upga.ShadowHit) (string, string, float64) {
		return h.Receiver, h.Caster, h.CasterHeight
	})

	for _, s := range in.Shapes {
		fmt.Fprintf(&sb, "\nBuilding shape for %s at %s:\n", s.BuildingID, s.SiteID)
		rule(&sb, "-", wideRule)
		sb.WriteString(s.Details)
	}

	return sb.String()
}

func titleOf(in Input) string {
	if in.Title == "" {
		return "Urban Layout"
	}
	return in.Title
}

func notes(in Input) []string {
	ex := in.Explanation
	target := in.AccessibilityType
	if target == "" {
		target = domain.BuildingTypeSchool
	}

	lines := []string{
		judge(ex.GFA,
			"building heights match the target floor areas well",
			"building heights miss the target floor areas, consider more generations or a larger population"),
		judge(ex.ShadowNature,
			"green areas keep their sunlight",
			"many green areas are in shadow, check whether they are sensitive to it"),
		judge(ex.Walkability,
			fmt.Sprintf("walking from homes to the %s site(s) is short and pleasant", target),
			fmt.Sprintf("distance or barriers make walking to the %s site(s) unattractive", target)),
		judge(ex.Cycleability,
			fmt.Sprintf("the %s site(s) are well served by cycle paths", target),
			fmt.Sprintf("cycle infrastructure towards the %s site(s) is limited", target)),
	}
	for _, g := range ex.ServiceByGroup {
		lines = append(lines, judge(g.Score,
			fmt.Sprintf("%s buildings are close to relevant services", g.Type),
			fmt.Sprintf("%s buildings are far from relevant services", g.Type)))
	}
	lines = append(lines, judge(ex.ShadowBuildings,
		"little overshadowing between buildings",
		"overshadowing may affect daylight and solar gains"))

	return lines
}

func judge(score float64, good, bad string) string {
	if score > goodThreshold {
		return fmt.Sprintf("%.2f: %s", score, good)
	}
	return fmt.Sprintf("%.2f: %s", score, bad)
}

// writeHits 按第一个字段分组输出遮挡记录
func writeHits(sb *strings.Builder, hits []upga.ShadowHit, fields func(upga.ShadowHit) (string, string, float64)) {
	if len(hits) == 0 {
		sb.WriteString("  (none)\n")
		return
	}

	var order []string
	groups := make(map[string][]upga.ShadowHit)
	for _, h := range hits {
		key, _, _ := fields(h)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], h)
	}

	for _, key := range order {
		fmt.Fprintf(sb, "  %s: %d building(s)\n", key, len(groups[key]))
		for _, h := range groups[key] {
			_, other, height := fields(h)
			fmt.Fprintf(sb, "    %s | height %.1f m | overlap %.1f m²\n", other, height, h.Overlap)
		}
	}
}

// Generations 生成每一代最佳个体的适应度报告
func Generations(history []upga.GenerationStats) string {
	var sb strings.Builder

	sb.WriteString("Fitness per Generation\n")
	rule(&sb, "=", narrowRule)
	for _, s := range history {
		fmt.Fprintf(&sb, "\nGeneration %d:\n", s.Generation)
		fmt.Fprintf(&sb, "  Total fitness: %.4f (mean %.4f)\n", s.Best.Total, s.MeanFitness)
		fmt.Fprintf(&sb, "  - GFA: %.4f\n", s.Best.GFA)
		fmt.Fprintf(&sb, "  - Shadow nature: %.4f\n", s.Best.ShadowNature)
		fmt.Fprintf(&sb, "  - Walkability: %.4f\n", s.Best.Walkability)
		fmt.Fprintf(&sb, "  - Cycleability: %.4f\n", s.Best.Cycleability)
		fmt.Fprintf(&sb, "  - Service: %.4f\n", s.Best.Service)
		fmt.Fprintf(&sb, "  - Shadow buildings: %.4f\n", s.Best.ShadowBuildings)
	}

	return sb.String()
}

func rule(sb *strings.Builder, ch string, n int) {
	sb.WriteString(strings.Repeat(ch, n))
	sb.WriteString("\n")
}
