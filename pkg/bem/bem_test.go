package bem

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"neurosurf/pkg/fiff"
	"neurosurf/pkg/surface"
)

func tetrahedron() *surface.Surface {
	return &surface.Surface{
		ID:         4,
		Sigma:      0.33,
		CoordFrame: surface.CoordFrameMRI,
		Verts: []r3.Vec{
			{X: 1, Y: 1, Z: 1},
			{X: 1, Y: -1, Z: -1},
			{X: -1, Y: 1, Z: -1},
			{X: -1, Y: -1, Z: 1},
		},
		Tris: [][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}},
	}
}

// TestWriteReadRoundTrip verifies a surface survives the BEM codec with
// the geometry completed on read
func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bem.fif")
	want := tetrahedron()
	if err := WriteSurface(path, want); err != nil {
		t.Fatalf("WriteSurface failed: %v", err)
	}

	surfs, err := ReadSurfaces(path, true)
	if err != nil {
		t.Fatalf("ReadSurfaces failed: %v", err)
	}
	if len(surfs) != 1 {
		t.Fatalf("Got %d surfaces, want 1", len(surfs))
	}
	got := surfs[0]

	if got.ID != want.ID {
		t.Errorf("ID = %d, want %d", got.ID, want.ID)
	}
	if math.Abs(got.Sigma-want.Sigma) > 1e-6 {
		t.Errorf("Sigma = %f, want %f", got.Sigma, want.Sigma)
	}
	if got.CoordFrame != want.CoordFrame {
		t.Errorf("CoordFrame = %d, want %d", got.CoordFrame, want.CoordFrame)
	}
	if got.NVerts() != want.NVerts() || got.NTris() != want.NTris() {
		t.Fatalf("Got %d verts %d tris, want %d and %d",
			got.NVerts(), got.NTris(), want.NVerts(), want.NTris())
	}
	for i := range got.Verts {
		if r3.Norm(r3.Sub(got.Verts[i], want.Verts[i])) > 1e-6 {
			t.Errorf("Vertex %d = %v, want %v", i, got.Verts[i], want.Verts[i])
		}
	}
	for i := range got.Tris {
		if got.Tris[i] != want.Tris[i] {
			t.Errorf("Triangle %d = %v, want %v", i, got.Tris[i], want.Tris[i])
		}
	}

	// addGeom computed the derived fields
	if len(got.TriNormals) != got.NTris() || len(got.Normals) != got.NVerts() {
		t.Error("geometry was not completed on read")
	}
	for i, a := range got.TriAreas {
		if a <= 0 {
			t.Errorf("Triangle %d area = %f, want > 0", i, a)
		}
	}
}

// writeTwoSurfaces builds a file carrying surfaces with ids 1 and 3
func writeTwoSurfaces(t *testing.T, path string) {
	t.Helper()
	w, err := fiff.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.StartBlock(fiff.BlockBEM)
	for _, id := range []int32{1, 3} {
		s := tetrahedron()
		w.StartBlock(fiff.BlockBEMSurf)
		w.WriteInt(fiff.TagBEMSurfID, id)
		w.WriteFloat(fiff.TagBEMSigma, float64(id)*0.1)
		w.WriteInt(fiff.TagBEMSurfNNode, int32(s.NVerts()))
		w.WriteInt(fiff.TagBEMSurfNTri, int32(s.NTris()))
		w.WriteFloatMatrix(fiff.TagBEMSurfNodes, s.Verts)
		tris := make([][3]int32, s.NTris())
		for i, tri := range s.Tris {
			tris[i] = [3]int32{int32(tri[0]) + 1, int32(tri[1]) + 1, int32(tri[2]) + 1}
		}
		w.WriteIntMatrix(fiff.TagBEMSurfTriangles, tris)
		w.EndBlock(fiff.BlockBEMSurf)
	}
	w.EndBlock(fiff.BlockBEM)
	if err := w.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
}

// TestReadSurfaceByID verifies the id filter picks the right surface
// and reports a miss as not found
func TestReadSurfaceByID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.fif")
	writeTwoSurfaces(t, path)

	s, err := ReadSurfaceByID(path, false, 3)
	if err != nil {
		t.Fatalf("ReadSurfaceByID(3) failed: %v", err)
	}
	if s.ID != 3 {
		t.Errorf("ID = %d, want 3", s.ID)
	}
	if math.Abs(s.Sigma-0.3) > 1e-6 {
		t.Errorf("Sigma = %f, want 0.3", s.Sigma)
	}

	if _, err := ReadSurfaceByID(path, false, 99); !errors.Is(err, surface.ErrNotFound) {
		t.Errorf("ReadSurfaceByID(99) error = %v, want ErrNotFound", err)
	}
}

// TestReadSurfacesFileOrder verifies all surfaces come back in file
// order with the default coordinate frame when none is stored
func TestReadSurfacesFileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.fif")
	writeTwoSurfaces(t, path)

	surfs, err := ReadSurfaces(path, false)
	if err != nil {
		t.Fatalf("ReadSurfaces failed: %v", err)
	}
	if len(surfs) != 2 {
		t.Fatalf("Got %d surfaces, want 2", len(surfs))
	}
	if surfs[0].ID != 1 || surfs[1].ID != 3 {
		t.Errorf("ids = %d, %d, file order not preserved", surfs[0].ID, surfs[1].ID)
	}
	for _, s := range surfs {
		if s.CoordFrame != surface.CoordFrameMRI {
			t.Errorf("CoordFrame = %d, want MRI default %d", s.CoordFrame, surface.CoordFrameMRI)
		}
	}
}

// TestReadSurfacesNoBEM verifies a file without BEM content is reported
// as not found
func TestReadSurfacesNoBEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.fif")
	w, err := fiff.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := w.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if _, err := ReadSurfaces(path, false); !errors.Is(err, surface.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// TestReadSurfaceCountMismatch verifies a vertex count that disagrees
// with the stored matrix is reported as a malformed record
func TestReadSurfaceCountMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fif")
	s := tetrahedron()
	w, err := fiff.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.StartBlock(fiff.BlockBEM)
	w.StartBlock(fiff.BlockBEMSurf)
	w.WriteInt(fiff.TagBEMSurfNNode, int32(s.NVerts()+1)) // lies
	w.WriteInt(fiff.TagBEMSurfNTri, int32(s.NTris()))
	w.WriteFloatMatrix(fiff.TagBEMSurfNodes, s.Verts)
	w.EndBlock(fiff.BlockBEMSurf)
	w.EndBlock(fiff.BlockBEM)
	if err := w.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	if _, err := ReadSurfaces(path, false); !errors.Is(err, surface.ErrMalformedRecord) {
		t.Errorf("error = %v, want ErrMalformedRecord", err)
	}
}

// TestGetIcoSurface verifies the 9000+grade id convention
func TestGetIcoSurface(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ico.fif")
	ico, err := surface.TessellateSphereSurface(2, 1.0)
	if err != nil {
		t.Fatalf("TessellateSphereSurface failed: %v", err)
	}
	ico.ID = 9002
	if err := WriteSurface(path, ico); err != nil {
		t.Fatalf("WriteSurface failed: %v", err)
	}

	got, err := GetIcoSurface(path, 2)
	if err != nil {
		t.Fatalf("GetIcoSurface failed: %v", err)
	}
	if got.NVerts() != ico.NVerts() || got.NTris() != ico.NTris() {
		t.Errorf("Got %d verts %d tris, want %d and %d",
			got.NVerts(), got.NTris(), ico.NVerts(), ico.NTris())
	}

	if _, err := GetIcoSurface(path, 3); !errors.Is(err, surface.ErrNotFound) {
		t.Errorf("GetIcoSurface(3) error = %v, want ErrNotFound", err)
	}
}
