package upga

import (
	"math/rand"
	"slices"
)

// randomInit 随机初始化一个个体，每栋建筑占用一个不同的场地
func (o *Optimizer) randomInit(rng *rand.Rand) *Individual {
	// 打乱场地顺序，依次取用，保证场地互不相同
	order := rng.Perm(len(o.layers.Sites))

	genes := make([]Gene, len(o.specs))
	for i, spec := range o.specs {
		site := order[i]
		floors := 1 + rng.Intn(o.params.MaxInitialFloors)
		genes[i] = Gene{
			BuildingID: spec.ID,
			Type:       spec.Type,
			Site:       site,
		}

		footprint := o.layers.Sites[site].Area * o.params.FootprintRatio
		if spec.TargetGFA < footprint {
			// 一层就能满足目标面积
			genes[i].Floors = 1
			genes[i].Height = o.params.FloorHeight
			genes[i].GFA = spec.TargetGFA
			continue
		}
		o.setFloors(&genes[i], floors)
	}

	return &Individual{Genes: genes}
}

// setFloors 设置层数，并重新计算高度和建筑面积
func (o *Optimizer) setFloors(g *Gene, floors int) {
	g.Floors = max(1, floors)
	g.Height = float64(g.Floors) * o.params.FloorHeight
	g.GFA = o.layers.Sites[g.Site].Area * o.params.FootprintRatio * float64(g.Floors)
}

// selectTop2 按适应度从高到低选出两个父本，适应度相同时保持原有顺序
func selectTop2(pop []*Individual) (*Individual, *Individual) {
	sorted := slices.Clone(pop)
	slices.SortStableFunc(sorted, func(a, b *Individual) int {
		switch {
		case a.Fitness() > b.Fitness():
			return -1
		case a.Fitness() < b.Fitness():
			return 1
		}
		return 0
	})

	if len(sorted) == 1 {
		return sorted[0], sorted[0]
	}
	return sorted[0], sorted[1]
}

// crossover 生成一个后代，父本不会被修改
// 对每栋建筑掷一次硬币决定高度来自哪个父本，场地则来自另一个父本
func (o *Optimizer) crossover(rng *rand.Rand, p1, p2 *Individual) *Individual {
	child := &Individual{Genes: make([]Gene, len(p1.Genes))}
	used := make(map[int]bool, len(p1.Genes))

	for i := range p1.Genes {
		heightParent, siteParent := p1, p2
		if rng.Intn(2) == 1 {
			heightParent, siteParent = p2, p1
		}

		site := siteParent.Genes[i].Site
		if used[site] {
			// 场地已被占用时先退回高度父本的场地，再退回第一个空闲场地
			site = heightParent.Genes[i].Site
			if used[site] {
				site = o.firstUnusedSite(used)
			}
		}
		used[site] = true

		g := heightParent.Genes[i]
		g.Site = site
		o.setFloors(&g, g.Floors)
		child.Genes[i] = g
	}

	return child
}

func (o *Optimizer) firstUnusedSite(used map[int]bool) int {
	for i := range o.layers.Sites {
		if !used[i] {
			return i
		}
	}

	// New 中已经保证场地数量不少于建筑数量
	return 0
}

// mutate 返回变异后的拷贝：调整一栋建筑的层数，或交换两栋建筑的场地
func (o *Optimizer) mutate(rng *rand.Rand, ind *Individual) *Individual {
	out := ind.Clone()
	if len(out.Genes) == 0 {
		return out
	}

	if rng.Intn(2) == 0 {
		i := rng.Intn(len(out.Genes))
		delta := 1 + rng.Intn(3)
		if rng.Intn(2) == 0 {
			delta = -delta
		}
		o.setFloors(&out.Genes[i], out.Genes[i].Floors+delta)
		return out
	}

	// 只有一栋建筑时交换没有意义
	if len(out.Genes) < 2 {
		return out
	}
	i := rng.Intn(len(out.Genes))
	j := rng.Intn(len(out.Genes) - 1)
	if j >= i {
		j++
	}
	out.Genes[i].Site, out.Genes[j].Site = out.Genes[j].Site, out.Genes[i].Site
	o.setFloors(&out.Genes[i], out.Genes[i].Floors)
	o.setFloors(&out.Genes[j], out.Genes[j].Floors)
	return out
}
