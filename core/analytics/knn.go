package analytics

import (
	"math"
	"sort"
)

// SimilarPair is a kNN result edge between two projected nodes.
type SimilarPair struct {
	Source string
	Target string
	Score  float64
}

// KNN finds, for every node with an embedding, its topK nearest neighbors
// by cosine similarity and returns the pairs with score >= cutoff.
// Each undirected pair is reported once.
func KNN(p *Projection, topK int, cutoff float64) []SimilarPair {
	type scored struct {
		node  int
		score float64
	}

	seen := make(map[[2]int]bool)
	var pairs []SimilarPair

	for i := range p.ids {
		if len(p.embeddings[i]) == 0 {
			continue
		}

		var candidates []scored
		for j := range p.ids {
			if i == j || len(p.embeddings[j]) == 0 {
				continue
			}
			score := cosineSimilarity(p.embeddings[i], p.embeddings[j])
			if score >= cutoff {
				candidates = append(candidates, scored{node: j, score: score})
			}
		}

		sort.Slice(candidates, func(a, b int) bool {
			return candidates[a].score > candidates[b].score
		})
		if topK > 0 && len(candidates) > topK {
			candidates = candidates[:topK]
		}

		for _, candidate := range candidates {
			key := [2]int{i, candidate.node}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			pairs = append(pairs, SimilarPair{
				Source: p.ids[key[0]],
				Target: p.ids[key[1]],
				Score:  candidate.score,
			})
		}
	}

	return pairs
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
