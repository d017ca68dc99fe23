// Package freesurfer reads and writes the native FreeSurfer binary
// mesh formats (the legacy quad variant and the triangle variant) and
// the companion per-vertex curvature format.
package freesurfer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"neurosurf/pkg/surface"
)

// Magic numbers dispatching the on-disk variants. They are stored as
// 3-byte big-endian integers.
const (
	magicQuad     = 16777215
	magicQuadNew  = 16777213
	magicTriangle = 16777214
)

// binReader reads big-endian scalars with a sticky error, so the parse
// code stays linear and checks once at the end of each section.
type binReader struct {
	r   *bufio.Reader
	err error
}

func (b *binReader) read3() int {
	var buf [3]byte
	if b.err == nil {
		_, b.err = io.ReadFull(b.r, buf[:])
	}
	if b.err != nil {
		return 0
	}
	return int(buf[0])<<16 + int(buf[1])<<8 + int(buf[2])
}

func (b *binReader) i16() int16 {
	var buf [2]byte
	if b.err == nil {
		_, b.err = io.ReadFull(b.r, buf[:])
	}
	if b.err != nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(buf[:]))
}

func (b *binReader) i32() int32 {
	var buf [4]byte
	if b.err == nil {
		_, b.err = io.ReadFull(b.r, buf[:])
	}
	if b.err != nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(buf[:]))
}

func (b *binReader) f32() float32 {
	var buf [4]byte
	if b.err == nil {
		_, b.err = io.ReadFull(b.r, buf[:])
	}
	if b.err != nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(buf[:]))
}

func (b *binReader) line() string {
	if b.err != nil {
		return ""
	}
	s, err := b.r.ReadString('\n')
	b.err = err
	return strings.TrimRight(s, "\n")
}

// ReadSurface loads a FreeSurfer surface mesh. Both on-disk variants
// yield 0-based triangle indices; quads are split into two triangles
// with the parity rule of the original format so winding stays
// consistent across the mesh.
func ReadSurface(path string) ([]r3.Vec, [][3]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	b := &binReader{r: bufio.NewReader(f)}
	magic := b.read3()
	if b.err != nil {
		return nil, nil, fmt.Errorf("freesurfer: reading %s: %w", path, b.err)
	}

	var coords []r3.Vec
	var faces [][3]int
	switch magic {
	case magicQuad, magicQuadNew:
		coords, faces = readQuad(b)
	case magicTriangle:
		stamp := b.line()
		b.line()
		vnum := int(b.i32())
		fnum := int(b.i32())
		if b.err == nil && (vnum < 0 || fnum < 0) {
			return nil, nil, fmt.Errorf("freesurfer: negative counts in %s: %w",
				path, surface.ErrMalformedRecord)
		}
		coords = make([]r3.Vec, vnum)
		for i := range coords {
			coords[i] = r3.Vec{X: float64(b.f32()), Y: float64(b.f32()), Z: float64(b.f32())}
		}
		faces = make([][3]int, fnum)
		for i := range faces {
			faces[i] = [3]int{int(b.i32()), int(b.i32()), int(b.i32())}
		}
		if b.err == nil {
			fmt.Printf("Triangle file: %s nvert = %d ntri = %d\n", stamp, vnum, fnum)
		}
	default:
		return nil, nil, fmt.Errorf("freesurfer: %s does not appear to be a FreeSurfer surface: %w",
			path, surface.ErrUnsupportedFormat)
	}
	if b.err != nil {
		return nil, nil, fmt.Errorf("freesurfer: reading %s: %w", path, b.err)
	}
	return coords, faces, nil
}

// readQuad reads the legacy quad variant: 3-byte counts, vertex
// coordinates quantized as int16 hundredths, and quads as four 3-byte
// indices each. Each quad splits on the parity of its first index:
// even gives (v0,v1,v3) and (v2,v3,v1), odd gives (v0,v1,v2) and
// (v0,v2,v3).
func readQuad(b *binReader) ([]r3.Vec, [][3]int) {
	nvert := b.read3()
	nquad := b.read3()
	coords := make([]r3.Vec, nvert)
	for i := range coords {
		coords[i] = r3.Vec{
			X: float64(b.i16()) / 100.0,
			Y: float64(b.i16()) / 100.0,
			Z: float64(b.i16()) / 100.0,
		}
	}
	faces := make([][3]int, 0, 2*nquad)
	for i := 0; i < nquad; i++ {
		var q [4]int
		for j := range q {
			q[j] = b.read3()
		}
		if q[0]%2 == 0 {
			faces = append(faces, [3]int{q[0], q[1], q[3]}, [3]int{q[2], q[3], q[1]})
		} else {
			faces = append(faces, [3]int{q[0], q[1], q[2]}, [3]int{q[0], q[2], q[3]})
		}
	}
	return coords, faces
}

// WriteSurface writes a surface mesh in the triangle variant, which is
// the only format emitted regardless of how the mesh was read. The
// createStamp comment goes on the first line of the file and must not
// contain line breaks.
func WriteSurface(path string, coords []r3.Vec, faces [][3]int, createStamp string) error {
	if strings.ContainsAny(createStamp, "\r\n") {
		return fmt.Errorf("freesurfer: create stamp can only contain one line: %w",
			surface.ErrInvalidArgument)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	write := func(data any) {
		if err == nil {
			err = binary.Write(w, binary.BigEndian, data)
		}
	}
	write([3]byte{255, 255, 254})
	if err == nil {
		_, err = fmt.Fprintf(w, "%s\n\n", createStamp)
	}
	write(int32(len(coords)))
	write(int32(len(faces)))
	for _, v := range coords {
		write([3]float32{float32(v.X), float32(v.Y), float32(v.Z)})
	}
	for _, face := range faces {
		write([3]int32{int32(face[0]), int32(face[1]), int32(face[2])})
	}
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("freesurfer: writing %s: %w", path, err)
	}
	return nil
}

// ReadCurvature loads per-vertex curvature values and binarizes them:
// 1 where the raw value is exactly zero, 0 otherwise.
func ReadCurvature(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b := &binReader{r: bufio.NewReader(f)}
	magic := b.read3()
	if b.err != nil {
		return nil, fmt.Errorf("freesurfer: reading %s: %w", path, b.err)
	}

	var curv []float64
	if magic == magicQuad {
		// Full-size variant: 3-int header, then float32 values.
		vnum := int(b.i32())
		b.i32() // fnum
		b.i32() // vals per vertex
		curv = make([]float64, vnum)
		for i := range curv {
			curv[i] = float64(b.f32())
		}
	} else {
		// The magic itself packs the vertex count.
		vnum := magic
		b.read3()
		curv = make([]float64, vnum)
		for i := range curv {
			curv[i] = float64(b.i16()) / 100.0
		}
	}
	if b.err != nil {
		return nil, fmt.Errorf("freesurfer: reading %s: %w", path, b.err)
	}

	bin := make([]int, len(curv))
	for i, c := range curv {
		if c == 0 {
			bin[i] = 1
		}
	}
	return bin, nil
}

// ReadSurfaceGeom loads a surface mesh into a Surface, optionally
// completing the derived geometry and normalizing the vertex positions
// (used for spherical registration surfaces).
func ReadSurfaceGeom(path string, addGeom, normVerts bool) (*surface.Surface, error) {
	coords, tris, err := ReadSurface(path)
	if err != nil {
		return nil, err
	}
	s := &surface.Surface{
		ID:         surface.IDUnknown,
		Sigma:      1.0,
		CoordFrame: surface.CoordFrameMRI,
		Verts:      coords,
		Tris:       tris,
		UseTris:    tris,
	}
	if addGeom {
		if err := s.CompleteInfo(false); err != nil {
			return nil, err
		}
	}
	if normVerts {
		surface.NormalizeVectors(s.Verts)
	}
	return s, nil
}
