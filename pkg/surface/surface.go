// Package surface provides the in-memory representation of triangulated
// BEM and cortical surfaces together with the differential-geometry
// quantities derived from them (triangle normals and areas, accumulated
// vertex normals, vertex adjacency) and the synthetic icosphere
// tessellations used for source-space resampling.
package surface

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Error kinds shared by the surface codecs and the source-space builder.
// They are wrapped with fmt.Errorf("...: %w", ...) and matched with
// errors.Is.
var (
	// ErrNotFound indicates a required file, block or tag is absent.
	ErrNotFound = errors.New("not found")

	// ErrMalformedRecord indicates a structural count mismatch between
	// declared and actual data in a surface record.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnsupportedFormat indicates an unrecognized magic number.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrInvalidArgument indicates a caller-supplied parameter violates
	// a precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvariantViolation indicates an internal consistency check
	// failed, usually a sign of a corrupt mesh.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDecimationConflict indicates no free neighbor was available
	// while resolving a double occupation during source-space mapping.
	ErrDecimationConflict = errors.New("decimation conflict")
)

// Surface id sentinels and coordinate frames. The ids match the values
// stored in BEM files; the frames identify the reference coordinate
// system of the vertex positions.
const (
	IDUnknown = -1

	CoordFrameUnknown = 0
	CoordFrameDevice  = 1
	CoordFrameHead    = 4
	CoordFrameMRI     = 5
)

// AdjacencyState distinguishes a vertex whose incident-triangle list was
// never computed from one whose list was invalidated because the vertex
// is topologically defective.
type AdjacencyState uint8

const (
	AdjacencyUnset AdjacencyState = iota
	AdjacencyValid
	// AdjacencyCleared marks a vertex with fewer than three incident
	// triangles; its list is emptied and must not be trusted by
	// neighbor-based algorithms.
	AdjacencyCleared
)

// VertexTris is the incident-triangle adjacency of a single vertex.
type VertexTris struct {
	State AdjacencyState

	// Tris holds the indices of the triangles referencing this vertex,
	// sorted ascending. Empty when State is AdjacencyCleared.
	Tris []int
}

// Surface is a triangulated surface, either decoded from a BEM or
// FreeSurfer file or generated synthetically. Only Verts and Tris are
// guaranteed to be populated; CompleteInfo fills in the derived geometry
// and the source-space builder fills in the decimation fields.
type Surface struct {
	// ID is the surface classification tag (tissue compartment),
	// IDUnknown when the source record carried none.
	ID int

	// Sigma is the conductivity of the compartment bounded by this
	// surface, 1.0 when absent from the source record.
	Sigma float64

	// CoordFrame identifies the coordinate system of Verts.
	CoordFrame int

	// Verts are the vertex positions.
	Verts []r3.Vec

	// Tris are the vertex indices of each triangle, 0-based.
	Tris [][3]int

	// Normals are the per-vertex unit normals. Empty until read from a
	// file or computed by CompleteInfo.
	Normals []r3.Vec

	// Derived geometry, populated by CompleteInfo.
	TriNormals  []r3.Vec
	TriAreas    []float64
	TriCents    []r3.Vec
	NeighborTri []VertexTris

	// NeighborVert is the per-vertex list of neighboring vertices,
	// populated only when CompleteInfo is asked for it.
	NeighborVert [][]int

	// Decimation fields, populated by the source-space builder.
	InUse   []bool
	UseTris [][3]int
	VertNo  []int
	NUse    int
}

// NVerts returns the number of vertices.
func (s *Surface) NVerts() int { return len(s.Verts) }

// NTris returns the number of triangles.
func (s *Surface) NTris() int { return len(s.Tris) }

// Neighbors returns the vertices sharing a triangle with vertex k,
// gathered from the completed incident-triangle adjacency. The result
// excludes k itself and is sorted ascending. A vertex with more distinct neighbors than incident
// triangles signals a corrupt mesh and fails with ErrInvariantViolation;
// fewer neighbors than expected is tolerated and logged.
func (s *Surface) Neighbors(k int) ([]int, error) {
	seen := make(map[int]bool)
	var verts []int
	for _, nt := range s.NeighborTri[k].Tris {
		for _, v := range s.Tris[nt] {
			if v == k || seen[v] {
				continue
			}
			if v < 0 || v >= s.NVerts() {
				return nil, fmt.Errorf("vertex %d refers outside the surface: %w",
					v, ErrInvariantViolation)
			}
			seen[v] = true
			verts = append(verts, v)
		}
	}
	sort.Ints(verts)
	nneighMax := len(s.NeighborTri[k].Tris)
	if len(verts) > nneighMax {
		return nil, fmt.Errorf("too many neighbors for vertex %d: %w", k, ErrInvariantViolation)
	}
	if len(verts) != nneighMax {
		fmt.Printf("    Incorrect number of distinct neighbors for vertex %d (%d instead of %d) [fixed].\n",
			k, len(verts), nneighMax)
	}
	return verts, nil
}

// NormalizeVectors scales every vector to unit length in place.
// Zero-length vectors are left untouched to avoid divide-by-zero.
func NormalizeVectors(vv []r3.Vec) {
	for i, v := range vv {
		size := r3.Norm(v)
		if size == 0 {
			continue
		}
		vv[i] = r3.Scale(1/size, v)
	}
}

// SurfaceStats summarizes the triangle geometry of a completed surface.
type SurfaceStats struct {
	// TotalArea is the sum of all triangle areas.
	TotalArea float64

	// MeanTriArea and StdTriArea describe the triangle-area distribution.
	MeanTriArea float64
	StdTriArea  float64

	// ZeroAreaTris counts degenerate triangles.
	ZeroAreaTris int
}

// Stats computes summary statistics over the completed triangle areas.
// CompleteInfo must have run first.
func (s *Surface) Stats() SurfaceStats {
	st := SurfaceStats{}
	for _, a := range s.TriAreas {
		st.TotalArea += a
		if a == 0 {
			st.ZeroAreaTris++
		}
	}
	if len(s.TriAreas) > 0 {
		st.MeanTriArea = stat.Mean(s.TriAreas, nil)
		st.StdTriArea = stat.StdDev(s.TriAreas, nil)
	}
	return st
}
