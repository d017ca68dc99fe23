// Package sourcespace builds decimated source spaces by mapping a dense
// subject surface onto a sparse canonical icosphere, and reads the
// morph maps used for inter-subject registration.
package sourcespace

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// NearestIndex answers nearest-neighbor queries over a fixed point set.
// Nearest returns the index of the closest point in the set the index
// was built from.
type NearestIndex interface {
	Nearest(p r3.Vec) int
}

// IndexMaker selects the nearest-neighbor strategy. The choice is a
// configuration decision, not a runtime fallback.
type IndexMaker func(pts []r3.Vec) NearestIndex

// MapNearest returns, for every point of to, the index of the nearest
// point of from.
func MapNearest(to, from []r3.Vec, maker IndexMaker) []int {
	idx := maker(from)
	out := make([]int, len(to))
	for i, p := range to {
		out[i] = idx.Nearest(p)
	}
	return out
}

// NewBruteIndex builds the sequential argmin index. On exact distance
// ties the lowest index wins, which makes its results the reference the
// accelerated index is checked against.
func NewBruteIndex(pts []r3.Vec) NearestIndex {
	return bruteIndex(pts)
}

type bruteIndex []r3.Vec

func (b bruteIndex) Nearest(p r3.Vec) int {
	best := -1
	bestDist := 0.0
	for i, q := range b {
		d := r3.Norm2(r3.Sub(p, q))
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// NewKDIndex builds a k-d tree index over the points.
func NewKDIndex(pts []r3.Vec) NearestIndex {
	nodes := make(kdPoints, len(pts))
	for i, p := range pts {
		nodes[i] = kdPoint{vec: p, idx: i}
	}
	tree := kdtree.New(nodes, false)
	return &kdIndex{tree: tree}
}

type kdIndex struct {
	tree *kdtree.Tree
}

func (k *kdIndex) Nearest(p r3.Vec) int {
	got, _ := k.tree.Nearest(kdPoint{vec: p, idx: -1})
	return got.(kdPoint).idx
}

type kdPoint struct {
	vec r3.Vec
	idx int
}

func (a kdPoint) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return kdComp(a, b.(kdPoint), int(d))
}

func (a kdPoint) Dims() int { return 3 }

func (a kdPoint) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.vec, b.(kdPoint).vec))
}

type kdPoints []kdPoint

func (k kdPoints) Index(i int) kdtree.Comparable { return k[i] }

func (k kdPoints) Len() int { return len(k) }

func (k kdPoints) Pivot(d kdtree.Dim) int {
	p := kdPlane{dim: int(d), points: k}
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}

func (k kdPoints) Slice(start, end int) kdtree.Interface { return k[start:end] }

func kdComp(a, b kdPoint, dim int) float64 {
	switch dim {
	case 0:
		return a.vec.X - b.vec.X
	case 1:
		return a.vec.Y - b.vec.Y
	}
	return a.vec.Z - b.vec.Z
}

type kdPlane struct {
	dim    int
	points kdPoints
}

func (p kdPlane) Less(i, j int) bool {
	return kdComp(p.points[i], p.points[j], p.dim) < 0
}

func (p kdPlane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

func (p kdPlane) Len() int { return len(p.points) }

func (p kdPlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
