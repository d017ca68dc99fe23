// Package bem decodes and encodes boundary-element-model surfaces
// stored in tagged container files.
package bem

import (
	"fmt"

	"neurosurf/pkg/fiff"
	"neurosurf/pkg/surface"
)

// ReadSurfaces reads every BEM surface from the file, in file order.
// When addGeom is true the derived geometry of each surface is
// completed before returning.
func ReadSurfaces(path string, addGeom bool) ([]*surface.Surface, error) {
	return readSurfaces(path, addGeom, nil)
}

// ReadSurfaceByID reads the single surface carrying the given id.
// It fails with surface.ErrNotFound unless exactly one surface matches.
func ReadSurfaceByID(path string, addGeom bool, id int) (*surface.Surface, error) {
	surfs, err := readSurfaces(path, addGeom, &id)
	if err != nil {
		return nil, err
	}
	if len(surfs) != 1 {
		return nil, fmt.Errorf("bem: surface with id %d not found in %s: %w",
			id, path, surface.ErrNotFound)
	}
	return surfs[0], nil
}

func readSurfaces(path string, addGeom bool, sID *int) ([]*surface.Surface, error) {
	f, tree, err := fiff.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bemBlock := fiff.FindBlock(tree, fiff.BlockBEM)
	if bemBlock == nil {
		return nil, fmt.Errorf("bem: BEM data not found in %s: %w", path, surface.ErrNotFound)
	}
	surfBlocks := fiff.FindBlocks(bemBlock, fiff.BlockBEMSurf)
	if len(surfBlocks) == 0 {
		return nil, fmt.Errorf("bem: BEM surface data not found in %s: %w", path, surface.ErrNotFound)
	}
	fmt.Printf("    %d BEM surfaces found\n", len(surfBlocks))

	// The coordinate frame may sit at the top level and is inherited by
	// surfaces that do not carry their own.
	coordFrame := surface.CoordFrameMRI
	tag, err := f.FindTag(bemBlock, fiff.TagBEMCoordFrame)
	if err != nil {
		return nil, err
	}
	if tag != nil {
		v, err := tag.Int()
		if err != nil {
			return nil, err
		}
		coordFrame = int(v)
	}

	var surfs []*surface.Surface
	for _, blk := range surfBlocks {
		if sID == nil {
			fmt.Println("    Reading a surface...")
		}
		s, err := readSurface(f, blk, coordFrame, sID)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue // id filter did not match
		}
		if sID == nil {
			fmt.Println("[done]")
		}
		if addGeom {
			if err := s.CompleteInfo(false); err != nil {
				return nil, err
			}
		}
		surfs = append(surfs, s)
	}
	if sID == nil {
		fmt.Printf("    %d BEM surfaces read\n", len(surfs))
	}
	return surfs, nil
}

// readSurface decodes one surface block. A non-nil sID that does not
// match the decoded id yields (nil, nil) so the caller can skip the
// surface without treating it as an error.
func readSurface(f *fiff.File, blk *fiff.Block, defCoordFrame int, sID *int) (*surface.Surface, error) {
	s := &surface.Surface{ID: surface.IDUnknown, Sigma: 1.0}

	tag, err := f.FindTag(blk, fiff.TagBEMSurfID)
	if err != nil {
		return nil, err
	}
	if tag != nil {
		v, err := tag.Int()
		if err != nil {
			return nil, err
		}
		s.ID = int(v)
	}
	if sID != nil && s.ID != *sID {
		return nil, nil
	}

	if tag, err = f.FindTag(blk, fiff.TagBEMSigma); err != nil {
		return nil, err
	} else if tag != nil {
		if s.Sigma, err = tag.Float(); err != nil {
			return nil, err
		}
	}

	nnode, err := requiredInt(f, blk, fiff.TagBEMSurfNNode, "number of vertices")
	if err != nil {
		return nil, err
	}
	ntri, err := requiredInt(f, blk, fiff.TagBEMSurfNTri, "number of triangles")
	if err != nil {
		return nil, err
	}

	// Coordinate frame: the MNE tag wins, then the BEM tag, then the
	// frame inherited from the enclosing block.
	s.CoordFrame = defCoordFrame
	for _, kind := range []int32{fiff.TagMNECoordFrame, fiff.TagBEMCoordFrame} {
		if tag, err = f.FindTag(blk, kind); err != nil {
			return nil, err
		}
		if tag != nil {
			v, err := tag.Int()
			if err != nil {
				return nil, err
			}
			s.CoordFrame = int(v)
			break
		}
	}

	if tag, err = f.FindTag(blk, fiff.TagBEMSurfNodes); err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("bem: vertex data not found: %w", surface.ErrMalformedRecord)
	}
	if s.Verts, err = tag.Vecs(); err != nil {
		return nil, err
	}
	if len(s.Verts) != nnode {
		return nil, fmt.Errorf("bem: vertex information is incorrect (%d rows, declared %d): %w",
			len(s.Verts), nnode, surface.ErrMalformedRecord)
	}

	// Vertex normals are optional.
	if tag, err = f.FindTag(blk, fiff.TagSourceSpaceNormals); err != nil {
		return nil, err
	}
	if tag != nil {
		if s.Normals, err = tag.Vecs(); err != nil {
			return nil, err
		}
		if len(s.Normals) != nnode {
			return nil, fmt.Errorf("bem: vertex normal information is incorrect (%d rows, declared %d): %w",
				len(s.Normals), nnode, surface.ErrMalformedRecord)
		}
	}

	if tag, err = f.FindTag(blk, fiff.TagBEMSurfTriangles); err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("bem: triangulation not found: %w", surface.ErrMalformedRecord)
	}
	rows, err := tag.IntRows()
	if err != nil {
		return nil, err
	}
	if len(rows) != ntri {
		return nil, fmt.Errorf("bem: triangulation information is incorrect (%d rows, declared %d): %w",
			len(rows), ntri, surface.ErrMalformedRecord)
	}
	s.Tris = make([][3]int, len(rows))
	for i, row := range rows {
		// Stored 1-based on disk.
		s.Tris[i] = [3]int{int(row[0]) - 1, int(row[1]) - 1, int(row[2]) - 1}
	}
	return s, nil
}

func requiredInt(f *fiff.File, blk *fiff.Block, kind int32, what string) (int, error) {
	tag, err := f.FindTag(blk, kind)
	if err != nil {
		return 0, err
	}
	if tag == nil {
		return 0, fmt.Errorf("bem: %s not found: %w", what, surface.ErrNotFound)
	}
	v, err := tag.Int()
	return int(v), err
}

// WriteSurface writes one surface as a BEM file, creating or
// overwriting the destination. The container is flushed and finalized
// before returning.
func WriteSurface(path string, s *surface.Surface) error {
	w, err := fiff.Create(path)
	if err != nil {
		return err
	}

	w.StartBlock(fiff.BlockBEM)
	w.StartBlock(fiff.BlockBEMSurf)

	w.WriteInt(fiff.TagBEMSurfID, int32(s.ID))
	w.WriteFloat(fiff.TagBEMSigma, s.Sigma)
	w.WriteInt(fiff.TagBEMSurfNNode, int32(s.NVerts()))
	w.WriteInt(fiff.TagBEMSurfNTri, int32(s.NTris()))
	w.WriteInt(fiff.TagBEMCoordFrame, int32(s.CoordFrame))
	w.WriteFloatMatrix(fiff.TagBEMSurfNodes, s.Verts)

	if len(s.Normals) > 0 {
		w.WriteFloatMatrix(fiff.TagSourceSpaceNormals, s.Normals)
	}

	tris := make([][3]int32, s.NTris())
	for i, tri := range s.Tris {
		// Stored 1-based on disk.
		tris[i] = [3]int32{int32(tri[0]) + 1, int32(tri[1]) + 1, int32(tri[2]) + 1}
	}
	w.WriteIntMatrix(fiff.TagBEMSurfTriangles, tris)

	w.EndBlock(fiff.BlockBEMSurf)
	w.EndBlock(fiff.BlockBEM)

	return w.End()
}

// GetIcoSurface reads the canonical subdivided-icosahedron surface of
// the given grade from a bundled BEM file. The icosphere surfaces are
// stored with ids 9000+grade.
func GetIcoSurface(path string, grade int) (*surface.Surface, error) {
	return ReadSurfaceByID(path, false, 9000+grade)
}
