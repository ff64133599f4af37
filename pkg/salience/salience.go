// Package salience scores retrieval candidates. A candidate's salience grows
// with semantic similarity and reinforcement and decays with the age of the
// remembered event.
package salience

import (
	"math"
	"time"
)

// Cosine returns the cosine similarity of two vectors. Mismatched lengths or
// a zero-magnitude vector yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Score computes the salience of a candidate:
//
//	similarity * (1 + ln(1+reinforcement)) / ln(1 + hours + 1)
//
// Reinforcement boosts logarithmically so repeated facts cannot drown out
// relevance, and recency decays logarithmically so old memories fade without
// ever reaching zero.
func Score(similarity float64, reinforcement int, happenedAt, now time.Time) float64 {
	if reinforcement < 0 {
		reinforcement = 0
	}

	hours := now.Sub(happenedAt).Hours()
	if hours < 0 {
		hours = 0
	}

	boost := 1 + math.Log1p(float64(reinforcement))
	decay := 1 / math.Log1p(hours+1)

	return similarity * boost * decay
}

// IsNearDuplicate reports whether two embeddings are similar enough to count
// as the same memory. Exact duplicates are caught upstream by content hash;
// this gate catches paraphrases.
func IsNearDuplicate(a, b []float32, threshold float64) bool {
	return Cosine(a, b) >= threshold
}
