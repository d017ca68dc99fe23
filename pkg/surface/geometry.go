package surface

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// CompleteInfo enriches the surface with the derived geometry used by
// the source-space algorithms: per-triangle centroids, unit normals and
// areas, accumulated per-vertex unit normals, and the incident-triangle
// adjacency of every vertex. When neighborVert is true the
// vertex-to-vertex neighbor lists are derived as well.
//
// The pass is safe to re-invoke: everything is recomputed from Verts
// and Tris, discarding prior derived fields.
func (s *Surface) CompleteInfo(neighborVert bool) error {
	ntri := s.NTris()
	npts := s.NVerts()

	s.TriCents = make([]r3.Vec, ntri)
	s.TriNormals = make([]r3.Vec, ntri)
	s.TriAreas = make([]float64, ntri)
	s.NeighborVert = nil

	for i, tri := range s.Tris {
		r1 := s.Verts[tri[0]]
		r2 := s.Verts[tri[1]]
		r3v := s.Verts[tri[2]]
		s.TriCents[i] = r3.Scale(1.0/3.0, r3.Add(r1, r3.Add(r2, r3v)))
		nn := r3.Cross(r3.Sub(r2, r1), r3.Sub(r3v, r1))
		size := r3.Norm(nn)
		s.TriAreas[i] = size / 2.0
		if size == 0 {
			fmt.Printf("    Warning: zero size triangle # %d\n", i)
			// Clamp the divisor so the degenerate triangle keeps a zero
			// normal instead of NaN.
			size = 1.0
		}
		s.TriNormals[i] = r3.Scale(1/size, nn)
	}

	fmt.Println("    Triangle neighbors and vertex normals...")
	s.NeighborTri = triangleNeighbors(s.Tris, npts)
	s.Normals = accumulateNormals(s.Tris, s.TriNormals, npts)
	NormalizeVectors(s.Normals)

	// Topological defects: isolated vertices are reported, vertices with
	// fewer than three incident triangles additionally have their
	// adjacency cleared so neighbor-based algorithms skip them.
	var isolated, defective []int
	for k := range s.NeighborTri {
		n := len(s.NeighborTri[k].Tris)
		if n == 0 {
			isolated = append(isolated, k)
		}
		if n < 3 {
			defective = append(defective, k)
		}
	}
	if len(isolated) > 0 {
		fmt.Printf("    Vertices %v do not have any neighboring triangles!\n", isolated)
	}
	if len(defective) > 0 {
		fmt.Printf("    Vertices %v have fewer than three neighboring tris, omitted\n", defective)
	}
	for _, k := range defective {
		s.NeighborTri[k] = VertexTris{State: AdjacencyCleared}
	}

	if neighborVert {
		s.NeighborVert = make([][]int, npts)
		for k := 0; k < npts; k++ {
			verts, err := s.Neighbors(k)
			if err != nil {
				return err
			}
			s.NeighborVert[k] = verts
		}
	}
	return nil
}

// triangleNeighbors builds the sorted incident-triangle list of every
// vertex with a counting pass followed by grouped fills, avoiding a
// per-vertex append loop over all triangles.
func triangleNeighbors(tris [][3]int, npts int) []VertexTris {
	counts := make([]int, npts)
	for _, tri := range tris {
		counts[tri[0]]++
		counts[tri[1]]++
		counts[tri[2]]++
	}
	neighbor := make([]VertexTris, npts)
	for k := range neighbor {
		neighbor[k] = VertexTris{State: AdjacencyValid, Tris: make([]int, 0, counts[k])}
	}
	for i, tri := range tris {
		for _, v := range tri {
			neighbor[v].Tris = append(neighbor[v].Tris, i)
		}
	}
	// A triangle may reference the same vertex in more than one corner;
	// the fill order already yields ascending lists otherwise, sort to
	// guarantee it.
	for k := range neighbor {
		sort.Ints(neighbor[k].Tris)
	}
	return neighbor
}

// accumulateNormals sums the unit triangle normals onto their three
// vertices with a grouped summation keyed by vertex index.
func accumulateNormals(tris [][3]int, triNN []r3.Vec, npts int) []r3.Vec {
	nn := make([]r3.Vec, npts)
	for i, tri := range tris {
		for _, v := range tri {
			nn[v] = r3.Add(nn[v], triNN[i])
		}
	}
	return nn
}
