package surface

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestTessellateSphereLevelOne verifies level 1 is the bare octahedron
func TestTessellateSphereLevelOne(t *testing.T) {
	rr, tris, err := TessellateSphere(1)
	if err != nil {
		t.Fatalf("TessellateSphere(1) failed: %v", err)
	}
	if len(rr) != 6 {
		t.Errorf("Expected 6 vertices, got %d", len(rr))
	}
	if len(tris) != 8 {
		t.Errorf("Expected 8 triangles, got %d", len(tris))
	}
}

// TestTessellateSphereInvalidLevel verifies the level precondition
func TestTessellateSphereInvalidLevel(t *testing.T) {
	for _, level := range []int{0, -1} {
		_, _, err := TessellateSphere(level)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("TessellateSphere(%d): expected ErrInvalidArgument, got %v", level, err)
		}
	}
}

// TestTessellateSphereCounts verifies each level quadruples the
// triangle count and deduplication yields the closed-surface vertex
// count (V = F/2 + 2)
func TestTessellateSphereCounts(t *testing.T) {
	for level := 1; level <= 4; level++ {
		rr, tris, err := TessellateSphere(level)
		if err != nil {
			t.Fatalf("TessellateSphere(%d) failed: %v", level, err)
		}
		wantTris := 8
		for l := 1; l < level; l++ {
			wantTris *= 4
		}
		if len(tris) != wantTris {
			t.Errorf("Level %d: expected %d triangles, got %d", level, wantTris, len(tris))
		}
		wantVerts := wantTris/2 + 2
		if len(rr) != wantVerts {
			t.Errorf("Level %d: expected %d vertices, got %d", level, wantVerts, len(rr))
		}
	}
}

// TestTessellateSphereRadius verifies all vertices lie on the sphere of
// the requested radius
func TestTessellateSphereRadius(t *testing.T) {
	const rad = 2.5
	s, err := TessellateSphereSurface(3, rad)
	if err != nil {
		t.Fatalf("TessellateSphereSurface failed: %v", err)
	}
	for i, v := range s.Verts {
		if math.Abs(r3.Norm(v)-rad) > 1e-6 {
			t.Errorf("Vertex %d at distance %f, want %f", i, r3.Norm(v), rad)
		}
	}
	// Unit-sphere positions double as the normals.
	for i, n := range s.Normals {
		if math.Abs(r3.Norm(n)-1) > 1e-6 {
			t.Errorf("Normal %d is not unit length: %f", i, r3.Norm(n))
		}
		if r3.Norm(r3.Sub(r3.Scale(rad, n), s.Verts[i])) > 1e-6 {
			t.Errorf("Normal %d does not point along vertex %d", i, i)
		}
	}
	if s.NUse != len(s.Verts) {
		t.Errorf("NUse = %d, want %d", s.NUse, len(s.Verts))
	}
}

// TestTessellateSphereIndices verifies the triangles index valid,
// deduplicated vertices
func TestTessellateSphereIndices(t *testing.T) {
	rr, tris, err := TessellateSphere(3)
	if err != nil {
		t.Fatalf("TessellateSphere failed: %v", err)
	}
	for i, tri := range tris {
		for _, v := range tri {
			if v < 0 || v >= len(rr) {
				t.Fatalf("Triangle %d references vertex %d outside [0,%d)", i, v, len(rr))
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			t.Errorf("Triangle %d is degenerate: %v", i, tri)
		}
	}
	// No two remaining vertices coincide within the merge tolerance.
	for i := 0; i < len(rr); i++ {
		for j := i + 1; j < len(rr); j++ {
			if r3.Norm(r3.Sub(rr[i], rr[j])) < 1e-4 {
				t.Errorf("Vertices %d and %d were not deduplicated", i, j)
			}
		}
	}
}
