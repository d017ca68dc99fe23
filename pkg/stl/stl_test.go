package stl

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"neurosurf/pkg/surface"
)

func tetrahedron() *surface.Surface {
	return &surface.Surface{
		Verts: []r3.Vec{
			{X: 1, Y: 1, Z: 1},
			{X: 1, Y: -1, Z: -1},
			{X: -1, Y: 1, Z: -1},
			{X: -1, Y: -1, Z: 1},
		},
		Tris: [][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}},
	}
}

// TestFromSurface verifies triangle conversion with recomputed unit
// normals
func TestFromSurface(t *testing.T) {
	s := tetrahedron()
	tris := FromSurface(s)
	if len(tris) != s.NTris() {
		t.Fatalf("Got %d triangles, want %d", len(tris), s.NTris())
	}
	for i, tri := range tris {
		norm := math.Sqrt(float64(tri.Normal[0]*tri.Normal[0] +
			tri.Normal[1]*tri.Normal[1] + tri.Normal[2]*tri.Normal[2]))
		if math.Abs(norm-1) > 1e-5 {
			t.Errorf("Triangle %d normal magnitude = %f, want 1", i, norm)
		}
		want := s.Verts[s.Tris[i][0]]
		if float64(tri.Vertex1[0]) != want.X || float64(tri.Vertex1[1]) != want.Y ||
			float64(tri.Vertex1[2]) != want.Z {
			t.Errorf("Triangle %d vertex 1 = %v, want %v", i, tri.Vertex1, want)
		}
	}
}

// TestFromSurfaceUsesCompletedNormals verifies completed per-triangle
// normals are carried through unchanged
func TestFromSurfaceUsesCompletedNormals(t *testing.T) {
	s := tetrahedron()
	if err := s.CompleteInfo(false); err != nil {
		t.Fatalf("CompleteInfo failed: %v", err)
	}
	tris := FromSurface(s)
	for i, tri := range tris {
		want := s.TriNormals[i]
		got := r3.Vec{X: float64(tri.Normal[0]), Y: float64(tri.Normal[1]), Z: float64(tri.Normal[2])}
		if r3.Norm(r3.Sub(got, want)) > 1e-6 {
			t.Errorf("Triangle %d normal = %v, want completed normal %v", i, got, want)
		}
	}
}

// TestFromSurfaceDegenerate verifies degenerate triangles keep a zero
// normal instead of producing NaN
func TestFromSurfaceDegenerate(t *testing.T) {
	s := &surface.Surface{
		Verts: []r3.Vec{{X: 1, Y: 1, Z: 1}},
		Tris:  [][3]int{{0, 0, 0}},
	}
	tris := FromSurface(s)
	for _, c := range tris[0].Normal {
		if c != 0 || math.IsNaN(float64(c)) {
			t.Errorf("Degenerate normal = %v, want all zeros", tris[0].Normal)
			break
		}
	}
}

// TestSaveToSTL verifies the binary layout: 80-byte header, uint32
// count, 50 bytes per triangle
func TestSaveToSTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mesh.stl")
	tris := FromSurface(tetrahedron())
	if err := SaveToSTL(path, tris); err != nil {
		t.Fatalf("SaveToSTL failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	wantSize := 84 + 50*len(tris)
	if len(data) != wantSize {
		t.Fatalf("File is %d bytes, want %d", len(data), wantSize)
	}
	if got := binary.LittleEndian.Uint32(data[80:84]); got != uint32(len(tris)) {
		t.Errorf("Triangle count = %d, want %d", got, len(tris))
	}
	// First record starts with the first triangle's normal.
	n0 := math.Float32frombits(binary.LittleEndian.Uint32(data[84:88]))
	if n0 != tris[0].Normal[0] {
		t.Errorf("First normal component = %f, want %f", n0, tris[0].Normal[0])
	}
}
