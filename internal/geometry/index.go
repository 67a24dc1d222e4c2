package geometry

import (
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

type entry struct {
	geom.Geom
	ID int
}

// Index 是按包围盒检索候选要素的 R 树，要素以插入时的序号标识
type Index struct {
	tree *rtree.Rtree
	size int
}

func NewIndex() *Index {
	return &Index{tree: rtree.NewTree(25, 50)}
}

// Insert 插入要素并返回其序号
func (idx *Index) Insert(g geom.Geom) int {
	id := idx.size
	idx.tree.Insert(&entry{Geom: g, ID: id})
	idx.size++
	return id
}

func (idx *Index) Len() int {
	return idx.size
}

// Search 返回包围盒与 b 相交的要素序号，按升序排列
func (idx *Index) Search(b *geom.Bounds) []int {
	if idx.size == 0 || b == nil {
		return nil
	}
	found := idx.tree.SearchIntersect(b)
	ids := make([]int, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.(*entry).ID)
	}
	sort.Ints(ids)
	return ids
}
