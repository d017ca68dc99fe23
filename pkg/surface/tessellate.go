package surface

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// octahedron is the level-1 approximation of the unit sphere.
var (
	octVerts = []r3.Vec{
		{X: 1}, {X: -1},
		{Y: 1}, {Y: -1},
		{Z: 1}, {Z: -1},
	}
	octTris = [][3]int{
		{0, 4, 2}, {2, 4, 1}, {1, 4, 3}, {3, 4, 0},
		{0, 2, 5}, {2, 1, 5}, {1, 3, 5}, {3, 0, 5},
	}
)

// dedupTol is the Euclidean distance under which two subdivision
// vertices are considered the same point.
const dedupTol = 1e-4

func normMidpt(a, b r3.Vec) r3.Vec {
	return r3.Unit(r3.Scale(0.5, r3.Add(a, b)))
}

// TessellateSphere approximates the unit sphere by recursively
// subdividing an octahedron. Level 1 is the bare octahedron; every
// further level replaces each triangle with four children whose new
// edge-midpoint vertices are projected back onto the sphere. Duplicate
// vertices created by neighboring triangles are merged in a final pass.
func TessellateSphere(level int) ([]r3.Vec, [][3]int, error) {
	if level < 1 {
		return nil, nil, fmt.Errorf("number of levels must be >= 1: %w", ErrInvalidArgument)
	}

	rr := append([]r3.Vec(nil), octVerts...)
	tris := make([][3]int, len(octTris))
	// Reverse the corner order of each triangle for counter-clockwise
	// winding.
	for i, tri := range octTris {
		tris[i] = [3]int{tri[2], tri[1], tri[0]}
	}

	for l := 1; l < level; l++ {
		// Each triangle [0,1,2] gains midpoints a=(0+2)/2, b=(0+1)/2,
		// c=(1+2)/2, normalized onto the sphere, and is replaced by
		// [0,b,a], [b,1,c], [a,b,c], [a,c,2]. Midpoints shared between
		// triangles are duplicated here and merged afterwards.
		next := make([][3]int, 0, 4*len(tris))
		for _, tri := range tris {
			ai := len(rr)
			rr = append(rr, normMidpt(rr[tri[0]], rr[tri[2]]))
			bi := len(rr)
			rr = append(rr, normMidpt(rr[tri[0]], rr[tri[1]]))
			ci := len(rr)
			rr = append(rr, normMidpt(rr[tri[1]], rr[tri[2]]))
			next = append(next,
				[3]int{tri[0], bi, ai},
				[3]int{bi, tri[1], ci},
				[3]int{ai, bi, ci},
				[3]int{ai, ci, tri[2]})
		}
		tris = next
	}

	nodes, corners := dedupVertices(rr, tris)
	return nodes, corners, nil
}

// dedupVertices merges vertices closer than dedupTol and reindexes the
// triangles accordingly. The pairwise scan against already-accepted
// nodes is quadratic but runs once, after all subdivisions.
func dedupVertices(rr []r3.Vec, tris [][3]int) ([]r3.Vec, [][3]int) {
	nodes := make([]r3.Vec, 0, len(rr))
	corners := make([][3]int, len(tris))
	for k, tri := range tris {
		for j, t := range tri {
			coord := rr[t]
			idx := -1
			for n, node := range nodes {
				if r3.Norm(r3.Sub(coord, node)) < dedupTol {
					idx = n
					break
				}
			}
			if idx < 0 {
				idx = len(nodes)
				nodes = append(nodes, coord)
			}
			corners[k][j] = idx
		}
	}
	return nodes, corners
}

// TessellateSphereSurface wraps TessellateSphere in a Surface scaled to
// the requested radius. The unit-sphere positions double as the vertex
// normals, and every vertex starts out in use.
func TessellateSphereSurface(level int, rad float64) (*Surface, error) {
	rr, tris, err := TessellateSphere(level)
	if err != nil {
		return nil, err
	}
	s := &Surface{
		ID:         IDUnknown,
		Sigma:      1.0,
		CoordFrame: CoordFrameMRI,
		Verts:      make([]r3.Vec, len(rr)),
		Tris:       tris,
		Normals:    rr,
		UseTris:    tris,
		InUse:      make([]bool, len(rr)),
		VertNo:     make([]int, len(rr)),
		NUse:       len(rr),
	}
	for i, v := range rr {
		s.Verts[i] = r3.Scale(rad, v)
		s.InUse[i] = true
		s.VertNo[i] = i
	}
	return s, nil
}
