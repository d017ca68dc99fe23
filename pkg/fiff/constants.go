// Package fiff implements the tagged binary container used by the BEM
// and morph-map files: nested typed blocks holding typed key/value tags.
// The surface codecs consume it through Open/FindBlock/FindTag and the
// Writer; they never touch the byte layout themselves.
package fiff

// Block kinds.
const (
	BlockRoot     int32 = 999
	BlockBEM      int32 = 310 // BEM data
	BlockBEMSurf  int32 = 311 // one of the surfaces
	BlockMorphMap int32 = 365 // one subject-to-subject morph map
)

// Tag kinds.
const (
	tagFileID     int32 = 100
	tagBlockStart int32 = 104
	tagBlockEnd   int32 = 105

	TagBEMSurfID        int32 = 3101 // int    surface number
	TagBEMSurfName      int32 = 3102 // string surface name
	TagBEMSurfNNode     int32 = 3103 // int    number of vertices
	TagBEMSurfNTri      int32 = 3104 // int    number of triangles
	TagBEMSurfNodes     int32 = 3105 // float  vertex positions (nnode x 3)
	TagBEMSurfTriangles int32 = 3106 // int    triangles (ntri x 3), 1-based
	TagBEMSurfNormals   int32 = 3107 // float  vertex normal unit vectors
	TagBEMCoordFrame    int32 = 3112 // coordinate frame of the surface
	TagBEMSigma         int32 = 3113 // conductivity of a compartment

	TagMNECoordFrame      int32 = 3504
	TagSourceSpaceNormals int32 = 3507
	TagMorphMap           int32 = 3401 // sparse morphing matrix
	TagMorphMapTo         int32 = 3402 // string, destination subject
	TagMorphMapFrom       int32 = 3403 // string, source subject
	TagHemi               int32 = 3404 // int, hemisphere
)

// Hemisphere values stored in TagHemi.
const (
	HemiLeft  int32 = 101
	HemiRight int32 = 102
)

// Tag data types. Matrix and sparse payloads carry a dims trailer after
// the values.
const (
	typeInt32  int32 = 3
	typeFloat  int32 = 4
	typeString int32 = 10

	matrixFlag int32 = 1 << 30
	sparseFlag int32 = 1 << 28

	typeFloatMatrix  = matrixFlag | typeFloat
	typeIntMatrix    = matrixFlag | typeInt32
	typeSparseMatrix = sparseFlag | typeFloat
)
