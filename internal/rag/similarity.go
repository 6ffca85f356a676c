package rag

import (
	"math"
	"sort"

	"github.com/hupe1980/vecgo/distance"
)

const (
	// DefaultThreshold is the minimum similarity a result must reach.
	DefaultThreshold = 0.75
	// DefaultTopK is the maximum number of results returned.
	DefaultTopK = 5
)

// CosineSimilarity returns dot(a,b) / (|a|·|b|) clamped to [-1, 1].
// Vectors of unequal length, empty vectors, and zero-magnitude vectors all
// score 0 rather than failing.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := float64(distance.Dot(a, a))
	nb := float64(distance.Dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	s := float64(distance.Dot(a, b)) / math.Sqrt(na*nb)
	switch {
	case math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// Rank scores every record against query, keeps those with
// score >= threshold, and returns at most topK results ordered by descending
// score. Equal scores keep their input order. topK <= 0 yields no results.
func Rank(query []float32, records []Record, topK int, threshold float64) []SearchResult {
	if topK <= 0 {
		return []SearchResult{}
	}
	out := make([]SearchResult, 0, len(records))
	for _, r := range records {
		s := CosineSimilarity(query, r.Embedding)
		if s >= threshold {
			out = append(out, SearchResult{Record: r, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}
