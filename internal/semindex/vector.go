package semindex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector packs a vector as a 4-byte little-endian dimension header
// followed by float32 little-endian values. Compact enough to live in a
// sqlite BLOB column.
func EncodeVector(vec []float64) []byte {
	buf := make([]byte, 4+4*len(vec))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(blob []byte) ([]float64, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("vector blob too short: %d bytes", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob[0:4]))
	if len(blob) != 4+4*dim {
		return nil, fmt.Errorf("vector blob size mismatch: dim %d, %d bytes", dim, len(blob))
	}
	vec := make([]float64, dim)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[4+i*4:])
		vec[i] = float64(math.Float32frombits(bits))
	}
	return vec, nil
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either is empty, zero-length or of mismatched dimension.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
