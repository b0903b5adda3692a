package store

import (
	"encoding/binary"
	"math"
)

// encodeEmbedding converts a []float32 to a binary BLOB (4 bytes per float32).
func encodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float32.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
