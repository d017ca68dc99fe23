package sourcespace

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"neurosurf/pkg/freesurfer"
	"neurosurf/pkg/surface"
)

// SpacingType selects the resampling strategy.
type SpacingType int

const (
	// SpacingAll keeps every vertex of the subject surface.
	SpacingAll SpacingType = iota
	// SpacingIco and SpacingOct decimate against a subdivided
	// icosahedron or octahedron of the spacing's grade.
	SpacingIco
	SpacingOct
)

// Spacing is a parsed resampling request such as "all", "ico5" or
// "oct6".
type Spacing struct {
	Type  SpacingType
	Grade int
}

// ParseSpacing parses a spacing string.
func ParseSpacing(s string) (Spacing, error) {
	if s == "all" {
		return Spacing{Type: SpacingAll}, nil
	}
	for prefix, t := range map[string]SpacingType{"ico": SpacingIco, "oct": SpacingOct} {
		if strings.HasPrefix(s, prefix) {
			grade, err := strconv.Atoi(s[len(prefix):])
			if err != nil || grade < 1 {
				return Spacing{}, fmt.Errorf("sourcespace: bad spacing grade in %q: %w",
					s, surface.ErrInvalidArgument)
			}
			return Spacing{Type: t, Grade: grade}, nil
		}
	}
	return Spacing{}, fmt.Errorf("sourcespace: unknown spacing %q: %w", s, surface.ErrInvalidArgument)
}

func (sp Spacing) String() string {
	switch sp.Type {
	case SpacingIco:
		return fmt.Sprintf("ico%d", sp.Grade)
	case SpacingOct:
		return fmt.Sprintf("oct%d", sp.Grade)
	}
	return "all"
}

// CreateSpacing loads the subject surface at surfPath, completes its
// geometry and decimates it against icoSurf, the canonical icosphere
// (its vertices must already be unit-normalized; the surface is read,
// never mutated). spherePath names the subject's spherical registration
// surface, a mesh with the same topology as the subject surface but
// embedded on a sphere. maker picks the nearest-neighbor strategy.
//
// With SpacingAll the icosphere and sphere are unused and every vertex
// stays in use.
func CreateSpacing(surfPath, spherePath string, sp Spacing, icoSurf *surface.Surface, maker IndexMaker) (*surface.Surface, error) {
	surf, err := freesurfer.ReadSurfaceGeom(surfPath, true, false)
	if err != nil {
		return nil, err
	}

	if sp.Type == SpacingAll {
		surf.InUse = make([]bool, surf.NVerts())
		surf.VertNo = make([]int, surf.NVerts())
		for i := range surf.InUse {
			surf.InUse[i] = true
			surf.VertNo[i] = i
		}
		surf.UseTris = nil
		surf.NUse = surf.NVerts()
		finalizeNormals(surf)
		return surf, nil
	}

	fmt.Printf("Loading geometry from %s...\n", spherePath)
	fromSurf, err := freesurfer.ReadSurfaceGeom(spherePath, false, true)
	if err != nil {
		return nil, err
	}
	if fromSurf.NVerts() != surf.NVerts() {
		return nil, fmt.Errorf("sourcespace: registration sphere has %d vertices, surface has %d: %w",
			fromSurf.NVerts(), surf.NVerts(), surface.ErrInvariantViolation)
	}

	fmt.Printf("Mapping %s -> %s ...\n", surfPath, sp)
	mmap := MapNearest(icoSurf.Verts, fromSurf.Verts, maker)

	surf.InUse = make([]bool, surf.NVerts())
	for k := range mmap {
		if mmap[k] < 0 || mmap[k] >= surf.NVerts() {
			return nil, fmt.Errorf("sourcespace: map number out of range (%d), probably due to "+
				"inconsistent surfaces; parts of the FreeSurfer reconstruction need to be redone: %w",
				mmap[k], surface.ErrInvariantViolation)
		}
		if surf.InUse[mmap[k]] {
			// Double occupation: walk the mesh neighbors of the taken
			// vertex and take the last unused one. The neighbor list is
			// sorted ascending, so "last" is the highest-index unused
			// neighbor.
			neigh, err := surf.Neighbors(mmap[k])
			if err != nil {
				return nil, err
			}
			was := mmap[k]
			moved := -1
			for _, n := range neigh {
				if !surf.InUse[n] {
					moved = n
				}
			}
			if moved < 0 {
				return nil, fmt.Errorf("sourcespace: could not find neighbor for vertex %d / %d: %w",
					k, len(mmap), surface.ErrDecimationConflict)
			}
			mmap[k] = moved
			fmt.Printf("    Source space vertex moved from %d to %d because of double occupation\n",
				was, mmap[k])
		}
		surf.InUse[mmap[k]] = true
	}

	fmt.Println("Setting up the triangulation for the decimated surface...")
	surf.UseTris = make([][3]int, len(icoSurf.Tris))
	for i, tri := range icoSurf.Tris {
		surf.UseTris[i] = [3]int{mmap[tri[0]], mmap[tri[1]], mmap[tri[2]]}
	}

	surf.VertNo = surf.VertNo[:0]
	for i, used := range surf.InUse {
		if used {
			surf.VertNo = append(surf.VertNo, i)
		}
	}
	surf.NUse = len(surf.VertNo)

	finalizeNormals(surf)
	return surf, nil
}

// finalizeNormals renormalizes the vertex normals and drops vertices
// whose normal has zero magnitude from the in-use set; such vertices
// are geometrically degenerate. Only the in-use count is recomputed.
func finalizeNormals(surf *surface.Surface) {
	for i, n := range surf.Normals {
		if r3.Norm(n) <= 0 {
			surf.InUse[i] = false
		}
	}
	surface.NormalizeVectors(surf.Normals)
	surf.NUse = 0
	for _, used := range surf.InUse {
		if used {
			surf.NUse++
		}
	}
}
