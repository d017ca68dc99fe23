package fiff

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
)

// Writer emits a tagged container. Blocks are opened with StartBlock
// and must be closed in reverse order before End, which flushes and
// finalizes the file.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	err error
}

// Create creates (or truncates) the destination file and writes the
// file-id tag.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, buf: bufio.NewWriter(f)}
	w.WriteInt(tagFileID, 1)
	return w, nil
}

func (w *Writer) writeTag(kind, typ int32, data []byte) {
	if w.err != nil {
		return
	}
	var hdr [tagHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(kind))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(typ))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(data)))
	binary.BigEndian.PutUint32(hdr[12:16], 0) // next: sequential
	if _, err := w.buf.Write(hdr[:]); err != nil {
		w.err = err
		return
	}
	if _, err := w.buf.Write(data); err != nil {
		w.err = err
	}
}

// StartBlock opens a nested block of the given kind.
func (w *Writer) StartBlock(kind int32) {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], uint32(kind))
	w.writeTag(tagBlockStart, typeInt32, data[:])
}

// EndBlock closes the innermost open block of the given kind.
func (w *Writer) EndBlock(kind int32) {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], uint32(kind))
	w.writeTag(tagBlockEnd, typeInt32, data[:])
}

// WriteInt writes a scalar int32 tag.
func (w *Writer) WriteInt(kind int32, val int32) {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], uint32(val))
	w.writeTag(kind, typeInt32, data[:])
}

// WriteFloat writes a scalar float tag as float32.
func (w *Writer) WriteFloat(kind int32, val float64) {
	var data [4]byte
	binary.BigEndian.PutUint32(data[:], math.Float32bits(float32(val)))
	w.writeTag(kind, typeFloat, data[:])
}

// WriteString writes a string tag.
func (w *Writer) WriteString(kind int32, val string) {
	w.writeTag(kind, typeString, []byte(val))
}

func appendDims(data []byte, dims ...int32) []byte {
	for _, d := range dims {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(d))
		data = append(data, b[:]...)
	}
	return data
}

// WriteFloatMatrix writes an n-by-3 float matrix tag from 3D points.
func (w *Writer) WriteFloatMatrix(kind int32, rows []r3.Vec) {
	data := make([]byte, 0, len(rows)*12+12)
	for _, v := range rows {
		var b [12]byte
		binary.BigEndian.PutUint32(b[0:4], math.Float32bits(float32(v.X)))
		binary.BigEndian.PutUint32(b[4:8], math.Float32bits(float32(v.Y)))
		binary.BigEndian.PutUint32(b[8:12], math.Float32bits(float32(v.Z)))
		data = append(data, b[:]...)
	}
	data = appendDims(data, 3, int32(len(rows)), 2) // ncols, nrows, ndim
	w.writeTag(kind, typeFloatMatrix, data)
}

// WriteIntMatrix writes an n-by-3 int matrix tag.
func (w *Writer) WriteIntMatrix(kind int32, rows [][3]int32) {
	data := make([]byte, 0, len(rows)*12+12)
	for _, row := range rows {
		var b [12]byte
		for j, v := range row {
			binary.BigEndian.PutUint32(b[4*j:], uint32(v))
		}
		data = append(data, b[:]...)
	}
	data = appendDims(data, 3, int32(len(rows)), 2)
	w.writeTag(kind, typeIntMatrix, data)
}

// WriteSparseMatrix writes a compressed-sparse-row float matrix tag.
func (w *Writer) WriteSparseMatrix(kind int32, m *SparseMatrix) {
	nnz := len(m.Data)
	data := make([]byte, 0, nnz*8+(m.Rows+1)*4+16)
	for _, v := range m.Data {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(v)))
		data = append(data, b[:]...)
	}
	data = appendDims(data, m.Indices...)
	data = appendDims(data, m.Indptr...)
	data = appendDims(data, int32(nnz), int32(m.Cols), int32(m.Rows), 2)
	w.writeTag(kind, typeSparseMatrix, data)
}

// End flushes pending writes and closes the file. The file is invalid
// unless End returns nil; any earlier write error surfaces here.
func (w *Writer) End() error {
	flushErr := w.buf.Flush()
	closeErr := w.f.Close()
	if w.err != nil {
		return fmt.Errorf("fiff: write failed: %w", w.err)
	}
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
