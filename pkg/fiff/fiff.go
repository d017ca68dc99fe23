package fiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
)

// tagHeaderSize is the fixed on-disk size of a tag header:
// kind, type, size and next as big-endian int32.
const tagHeaderSize = 16

// tagRef locates one tag inside the file without holding its payload.
type tagRef struct {
	kind int32
	typ  int32
	size int32
	off  int64
}

// Block is one node of the container's block tree. Tags hold the
// directory of the block's own tags; Children the nested blocks in
// file order.
type Block struct {
	Kind     int32
	Children []*Block

	tags []tagRef
}

// FindBlock returns the first block of the given kind in a depth-first
// scan of the tree rooted at b, or nil when there is none.
func FindBlock(b *Block, kind int32) *Block {
	if b == nil {
		return nil
	}
	if b.Kind == kind {
		return b
	}
	for _, c := range b.Children {
		if found := FindBlock(c, kind); found != nil {
			return found
		}
	}
	return nil
}

// FindBlocks returns all blocks of the given kind in file order.
func FindBlocks(b *Block, kind int32) []*Block {
	if b == nil {
		return nil
	}
	var out []*Block
	if b.Kind == kind {
		out = append(out, b)
	}
	for _, c := range b.Children {
		out = append(out, FindBlocks(c, kind)...)
	}
	return out
}

// File is an open container handle. Tag payloads are read on demand
// through FindTag; the caller must Close the handle on every exit path.
type File struct {
	f *os.File
}

// Open opens a tagged container and scans its directory into a block
// tree. The handle is closed before any mid-scan error propagates.
func Open(path string) (*File, *Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	root := &Block{Kind: BlockRoot}
	stack := []*Block{root}
	var hdr [tagHeaderSize]byte
	var off int64
	for {
		_, err := io.ReadFull(f, hdr[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("fiff: truncated tag header in %s: %w", path, err)
		}
		ref := tagRef{
			kind: int32(binary.BigEndian.Uint32(hdr[0:4])),
			typ:  int32(binary.BigEndian.Uint32(hdr[4:8])),
			size: int32(binary.BigEndian.Uint32(hdr[8:12])),
			off:  off + tagHeaderSize,
		}
		if ref.size < 0 {
			f.Close()
			return nil, nil, fmt.Errorf("fiff: negative tag size in %s", path)
		}
		payload := make([]byte, 0)
		switch ref.kind {
		case tagBlockStart, tagBlockEnd:
			payload = make([]byte, ref.size)
			if _, err := io.ReadFull(f, payload); err != nil {
				f.Close()
				return nil, nil, fmt.Errorf("fiff: truncated block tag in %s: %w", path, err)
			}
		default:
			if _, err := f.Seek(int64(ref.size), io.SeekCurrent); err != nil {
				f.Close()
				return nil, nil, err
			}
		}
		off += tagHeaderSize + int64(ref.size)

		cur := stack[len(stack)-1]
		switch ref.kind {
		case tagBlockStart:
			if len(payload) < 4 {
				f.Close()
				return nil, nil, fmt.Errorf("fiff: block start without kind in %s", path)
			}
			child := &Block{Kind: int32(binary.BigEndian.Uint32(payload))}
			cur.Children = append(cur.Children, child)
			stack = append(stack, child)
		case tagBlockEnd:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		default:
			cur.tags = append(cur.tags, ref)
		}
	}
	return &File{f: f}, root, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error { return f.f.Close() }

// Tag is one tag's payload, decoded lazily through the typed accessors.
type Tag struct {
	Kind int32
	Type int32
	Data []byte
}

// FindTag reads the first tag of the given kind in the block. A missing
// tag yields (nil, nil): absence is an ordinary condition the codecs
// decide about themselves.
func (f *File) FindTag(b *Block, kind int32) (*Tag, error) {
	for _, ref := range b.tags {
		if ref.kind != kind {
			continue
		}
		data := make([]byte, ref.size)
		if _, err := f.f.ReadAt(data, ref.off); err != nil {
			return nil, fmt.Errorf("fiff: reading tag %d: %w", kind, err)
		}
		return &Tag{Kind: ref.kind, Type: ref.typ, Data: data}, nil
	}
	return nil, nil
}

// Int decodes a scalar int32 tag.
func (t *Tag) Int() (int32, error) {
	if t.Type != typeInt32 || len(t.Data) < 4 {
		return 0, fmt.Errorf("fiff: tag %d is not an int", t.Kind)
	}
	return int32(binary.BigEndian.Uint32(t.Data)), nil
}

// Float decodes a scalar float tag. Values are stored as float32.
func (t *Tag) Float() (float64, error) {
	if t.Type != typeFloat || len(t.Data) < 4 {
		return 0, fmt.Errorf("fiff: tag %d is not a float", t.Kind)
	}
	return float64(math.Float32frombits(binary.BigEndian.Uint32(t.Data))), nil
}

// Text decodes a string tag.
func (t *Tag) Text() (string, error) {
	if t.Type != typeString {
		return "", fmt.Errorf("fiff: tag %d is not a string", t.Kind)
	}
	return string(t.Data), nil
}

// matrixDims reads the (ncols, nrows, ndim) trailer at the end of a
// matrix payload and returns rows, cols and the payload length in bytes.
func (t *Tag) matrixDims() (rows, cols, body int, err error) {
	if len(t.Data) < 12 {
		return 0, 0, 0, fmt.Errorf("fiff: tag %d matrix trailer missing", t.Kind)
	}
	n := len(t.Data)
	ndim := int(int32(binary.BigEndian.Uint32(t.Data[n-4:])))
	if ndim != 2 {
		return 0, 0, 0, fmt.Errorf("fiff: tag %d has %d matrix dimensions, want 2", t.Kind, ndim)
	}
	rows = int(int32(binary.BigEndian.Uint32(t.Data[n-8:])))
	cols = int(int32(binary.BigEndian.Uint32(t.Data[n-12:])))
	body = n - 12
	if rows < 0 || cols < 0 || rows*cols*4 != body {
		return 0, 0, 0, fmt.Errorf("fiff: tag %d matrix dims %dx%d disagree with payload", t.Kind, rows, cols)
	}
	return rows, cols, body, nil
}

// Vecs decodes an n-by-3 float matrix tag as 3D points.
func (t *Tag) Vecs() ([]r3.Vec, error) {
	if t.Type != typeFloatMatrix {
		return nil, fmt.Errorf("fiff: tag %d is not a float matrix", t.Kind)
	}
	rows, cols, _, err := t.matrixDims()
	if err != nil {
		return nil, err
	}
	if cols != 3 {
		return nil, fmt.Errorf("fiff: tag %d has %d columns, want 3", t.Kind, cols)
	}
	out := make([]r3.Vec, rows)
	for i := 0; i < rows; i++ {
		base := i * 12
		out[i] = r3.Vec{
			X: float64(math.Float32frombits(binary.BigEndian.Uint32(t.Data[base:]))),
			Y: float64(math.Float32frombits(binary.BigEndian.Uint32(t.Data[base+4:]))),
			Z: float64(math.Float32frombits(binary.BigEndian.Uint32(t.Data[base+8:]))),
		}
	}
	return out, nil
}

// IntRows decodes an n-by-3 int matrix tag.
func (t *Tag) IntRows() ([][3]int32, error) {
	if t.Type != typeIntMatrix {
		return nil, fmt.Errorf("fiff: tag %d is not an int matrix", t.Kind)
	}
	rows, cols, _, err := t.matrixDims()
	if err != nil {
		return nil, err
	}
	if cols != 3 {
		return nil, fmt.Errorf("fiff: tag %d has %d columns, want 3", t.Kind, cols)
	}
	out := make([][3]int32, rows)
	for i := 0; i < rows; i++ {
		base := i * 12
		for j := 0; j < 3; j++ {
			out[i][j] = int32(binary.BigEndian.Uint32(t.Data[base+4*j:]))
		}
	}
	return out, nil
}

// SparseMatrix is a compressed-sparse-row matrix as stored in morph-map
// files. Indices are column indices per value; Indptr has Rows+1
// entries delimiting each row's slice of Data/Indices.
type SparseMatrix struct {
	Rows, Cols int
	Data       []float64
	Indices    []int32
	Indptr     []int32
}

// At returns the matrix element at (i, j).
func (m *SparseMatrix) At(i, j int) float64 {
	for k := m.Indptr[i]; k < m.Indptr[i+1]; k++ {
		if int(m.Indices[k]) == j {
			return m.Data[k]
		}
	}
	return 0
}

// Sparse decodes a sparse float matrix tag.
func (t *Tag) Sparse() (*SparseMatrix, error) {
	if t.Type != typeSparseMatrix {
		return nil, fmt.Errorf("fiff: tag %d is not a sparse matrix", t.Kind)
	}
	if len(t.Data) < 16 {
		return nil, fmt.Errorf("fiff: tag %d sparse trailer missing", t.Kind)
	}
	n := len(t.Data)
	ndim := int(int32(binary.BigEndian.Uint32(t.Data[n-4:])))
	if ndim != 2 {
		return nil, fmt.Errorf("fiff: tag %d has %d matrix dimensions, want 2", t.Kind, ndim)
	}
	rows := int(int32(binary.BigEndian.Uint32(t.Data[n-8:])))
	cols := int(int32(binary.BigEndian.Uint32(t.Data[n-12:])))
	nnz := int(int32(binary.BigEndian.Uint32(t.Data[n-16:])))
	want := nnz*4 + nnz*4 + (rows+1)*4 + 16
	if rows < 0 || nnz < 0 || want != n {
		return nil, fmt.Errorf("fiff: tag %d sparse dims disagree with payload", t.Kind)
	}
	m := &SparseMatrix{
		Rows:    rows,
		Cols:    cols,
		Data:    make([]float64, nnz),
		Indices: make([]int32, nnz),
		Indptr:  make([]int32, rows+1),
	}
	off := 0
	for i := 0; i < nnz; i++ {
		m.Data[i] = float64(math.Float32frombits(binary.BigEndian.Uint32(t.Data[off:])))
		off += 4
	}
	for i := 0; i < nnz; i++ {
		m.Indices[i] = int32(binary.BigEndian.Uint32(t.Data[off:]))
		off += 4
	}
	for i := 0; i <= rows; i++ {
		m.Indptr[i] = int32(binary.BigEndian.Uint32(t.Data[off:]))
		off += 4
	}
	return m, nil
}
