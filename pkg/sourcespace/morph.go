package sourcespace

import (
	"fmt"
	"os"
	"path/filepath"

	"neurosurf/pkg/fiff"
	"neurosurf/pkg/surface"
)

func morphMapName(subjectsDir, from, to string) string {
	return filepath.Join(subjectsDir, "morph-maps", fmt.Sprintf("%s-%s-morph.fif", from, to))
}

// ReadMorphMap reads the sparse morphing matrices mapping subjectFrom's
// cortical surfaces onto subjectTo's, one matrix per hemisphere. The
// map file is looked up under <subjectsDir>/morph-maps in either
// direction of the subject pair. Both hemispheres must be present.
//
// Morph maps are produced by an external tool; a missing file fails
// with surface.ErrNotFound and points there.
func ReadMorphMap(subjectFrom, subjectTo, subjectsDir string) (left, right *fiff.SparseMatrix, err error) {
	name := morphMapName(subjectsDir, subjectFrom, subjectTo)
	if _, statErr := os.Stat(name); statErr != nil {
		name = morphMapName(subjectsDir, subjectTo, subjectFrom)
		if _, statErr := os.Stat(name); statErr != nil {
			return nil, nil, fmt.Errorf("sourcespace: the requested morph map does not exist; "+
				"perhaps you need to run: mne_make_morph_maps --from %s --to %s: %w",
				subjectFrom, subjectTo, surface.ErrNotFound)
		}
	}

	f, tree, err := fiff.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	maps := fiff.FindBlocks(tree, fiff.BlockMorphMap)
	if len(maps) == 0 {
		return nil, nil, fmt.Errorf("sourcespace: morphing map data not found in %s: %w",
			name, surface.ErrNotFound)
	}

	for _, m := range maps {
		from, err := stringTag(f, m, fiff.TagMorphMapFrom)
		if err != nil {
			return nil, nil, err
		}
		if from != subjectFrom {
			continue
		}
		to, err := stringTag(f, m, fiff.TagMorphMapTo)
		if err != nil {
			return nil, nil, err
		}
		if to != subjectTo {
			continue
		}

		// Names match: which hemisphere is this?
		hemiTag, err := f.FindTag(m, fiff.TagHemi)
		if err != nil {
			return nil, nil, err
		}
		if hemiTag == nil {
			return nil, nil, fmt.Errorf("sourcespace: hemisphere tag missing in %s: %w",
				name, surface.ErrNotFound)
		}
		hemi, err := hemiTag.Int()
		if err != nil {
			return nil, nil, err
		}
		mapTag, err := f.FindTag(m, fiff.TagMorphMap)
		if err != nil {
			return nil, nil, err
		}
		if mapTag == nil {
			return nil, nil, fmt.Errorf("sourcespace: morph map matrix missing in %s: %w",
				name, surface.ErrNotFound)
		}
		switch hemi {
		case fiff.HemiLeft:
			if left, err = mapTag.Sparse(); err != nil {
				return nil, nil, err
			}
			fmt.Println("    Left-hemisphere map read.")
		case fiff.HemiRight:
			if right, err = mapTag.Sparse(); err != nil {
				return nil, nil, err
			}
			fmt.Println("    Right-hemisphere map read.")
		}
	}

	if left == nil {
		return nil, nil, fmt.Errorf("sourcespace: left hemisphere map not found in %s: %w",
			name, surface.ErrNotFound)
	}
	if right == nil {
		return nil, nil, fmt.Errorf("sourcespace: right hemisphere map not found in %s: %w",
			name, surface.ErrNotFound)
	}
	return left, right, nil
}

func stringTag(f *fiff.File, b *fiff.Block, kind int32) (string, error) {
	tag, err := f.FindTag(b, kind)
	if err != nil {
		return "", err
	}
	if tag == nil {
		return "", nil
	}
	return tag.Text()
}

// WriteMorphMap writes a morph-map file holding both hemispheres of
// one subject pair.
func WriteMorphMap(path, subjectFrom, subjectTo string, left, right *fiff.SparseMatrix) error {
	w, err := fiff.Create(path)
	if err != nil {
		return err
	}
	for _, hm := range []struct {
		hemi int32
		m    *fiff.SparseMatrix
	}{{fiff.HemiLeft, left}, {fiff.HemiRight, right}} {
		w.StartBlock(fiff.BlockMorphMap)
		w.WriteString(fiff.TagMorphMapFrom, subjectFrom)
		w.WriteString(fiff.TagMorphMapTo, subjectTo)
		w.WriteInt(fiff.TagHemi, hm.hemi)
		w.WriteSparseMatrix(fiff.TagMorphMap, hm.m)
		w.EndBlock(fiff.BlockMorphMap)
	}
	return w.End()
}
