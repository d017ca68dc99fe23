// Package stl exports triangulated surfaces as binary STL files so the
// meshes can be inspected in external viewers.
package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"neurosurf/pkg/surface"
)

// Triangle represents a single triangle in the STL format with its
// normal vector and three vertices.
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

func toF32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

// FromSurface converts a surface into STL triangles. Completed
// per-triangle normals are used when present; otherwise each normal is
// recomputed from the triangle's edges. Degenerate triangles keep a
// zero normal.
func FromSurface(s *surface.Surface) []Triangle {
	tris := make([]Triangle, s.NTris())
	for i, tri := range s.Tris {
		r1 := s.Verts[tri[0]]
		r2 := s.Verts[tri[1]]
		r3v := s.Verts[tri[2]]
		var n r3.Vec
		if i < len(s.TriNormals) {
			n = s.TriNormals[i]
		} else {
			n = r3.Cross(r3.Sub(r2, r1), r3.Sub(r3v, r1))
			if size := r3.Norm(n); size > 0 {
				n = r3.Scale(1/size, n)
			}
		}
		tris[i] = Triangle{
			Normal:  toF32(n),
			Vertex1: toF32(r1),
			Vertex2: toF32(r2),
			Vertex3: toF32(r3v),
		}
	}
	return tris
}

// SaveToSTL writes triangles to a binary STL file: an 80-byte header,
// a triangle count, and one 50-byte record per triangle.
func SaveToSTL(path string, triangles []Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stl: failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)

	var header [80]byte
	copy(header[:], "neurosurf surface export")
	if _, err = w.Write(header[:]); err == nil {
		err = binary.Write(w, binary.LittleEndian, uint32(len(triangles)))
	}
	for _, t := range triangles {
		if err != nil {
			break
		}
		if err = binary.Write(w, binary.LittleEndian, t); err == nil {
			// Attribute byte count, unused.
			err = binary.Write(w, binary.LittleEndian, uint16(0))
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("stl: failed to write %s: %w", path, err)
	}
	return nil
}
