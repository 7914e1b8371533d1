package vector

import (
	"encoding/binary"
	"math"
	"sort"
	"strconv"
	"strings"
)

// serializeVector converts a float32 slice to a byte blob (little-endian).
// sqlite-vec reads the same layout.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// vectorLiteral renders a vector as a DuckDB list literal, castable to
// FLOAT[n]
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.Grow(len(vector) * 10)
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate is an artifact with its similarity to the query
type candidate struct {
	artifactID string
	score      float64
}

// rankCandidates sorts by score descending, ties by artifact id, and
// returns the ids of the best limit candidates.
func rankCandidates(candidates []candidate, limit int) []string {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].artifactID < candidates[j].artifactID
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	ids := make([]string, limit)
	for i := 0; i < limit; i++ {
		ids[i] = candidates[i].artifactID
	}
	return ids
}
