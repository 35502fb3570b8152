package analytics

import (
	"math/rand"
	"sort"
)

const sllpaStableRounds = 5

// SLLPA runs speaker-listener label propagation over the projection's
// undirected adjacency and returns overlapping community ids per node.
// Labels heard less often than threshold (relative to the memory size)
// are pruned at the end. Nodes without neighbors get no communities.
// The run is deterministic for a given seed.
func SLLPA(p *Projection, maxIterations int, threshold float64, seed int64) map[string][]int {
	n := p.Size()
	if n == 0 {
		return map[string][]int{}
	}

	rng := rand.New(rand.NewSource(seed))

	// Each node starts remembering only its own label.
	memories := make([]map[int]int, n)
	memorySize := make([]int, n)
	for i := range memories {
		memories[i] = map[int]int{i: 1}
		memorySize[i] = 1
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	previous := ""
	stable := 0

	for iteration := 0; iteration < maxIterations; iteration++ {
		rng.Shuffle(n, func(a, b int) {
			order[a], order[b] = order[b], order[a]
		})

		for _, listener := range order {
			if len(p.neighbors[listener]) == 0 {
				continue
			}

			heard := map[int]int{}
			for speaker := range p.neighbors[listener] {
				label := speak(memories[speaker], memorySize[speaker], rng)
				heard[label]++
			}

			best := popularLabel(heard)
			memories[listener][best]++
			memorySize[listener]++
		}

		// The algorithm has converged once the retained label sets stop
		// changing between iterations.
		current := fingerprint(retain(memories, memorySize, threshold))
		if current == previous {
			stable++
			if stable >= sllpaStableRounds {
				break
			}
		} else {
			stable = 0
		}
		previous = current
	}

	retained := retain(memories, memorySize, threshold)

	// Compact the surviving labels into consecutive community numbers.
	labelSet := map[int]bool{}
	for _, labels := range retained {
		for _, label := range labels {
			labelSet[label] = true
		}
	}
	sortedLabels := make([]int, 0, len(labelSet))
	for label := range labelSet {
		sortedLabels = append(sortedLabels, label)
	}
	sort.Ints(sortedLabels)
	compact := make(map[int]int, len(sortedLabels))
	for i, label := range sortedLabels {
		compact[label] = i
	}

	communities := make(map[string][]int, n)
	for i, labels := range retained {
		if len(p.neighbors[i]) == 0 {
			continue
		}
		ids := make([]int, 0, len(labels))
		for _, label := range labels {
			ids = append(ids, compact[label])
		}
		sort.Ints(ids)
		communities[p.ids[i]] = ids
	}

	return communities
}

// speak selects one label from the memory with probability proportional
// to how often it was heard.
func speak(memory map[int]int, size int, rng *rand.Rand) int {
	target := rng.Intn(size)

	// Iterate labels in sorted order so the draw is deterministic.
	labels := make([]int, 0, len(memory))
	for label := range memory {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	cumulative := 0
	for _, label := range labels {
		cumulative += memory[label]
		if target < cumulative {
			return label
		}
	}
	return labels[len(labels)-1]
}

// popularLabel returns the most heard label, smallest label on ties.
func popularLabel(heard map[int]int) int {
	best := -1
	bestCount := 0
	for label, count := range heard {
		if count > bestCount || (count == bestCount && (best == -1 || label < best)) {
			best = label
			bestCount = count
		}
	}
	return best
}

// retain keeps, per node, the labels heard at least threshold of the time.
func retain(memories []map[int]int, memorySize []int, threshold float64) [][]int {
	retained := make([][]int, len(memories))
	for i, memory := range memories {
		minCount := threshold * float64(memorySize[i])
		var labels []int
		for label, count := range memory {
			if float64(count) >= minCount {
				labels = append(labels, label)
			}
		}
		sort.Ints(labels)
		retained[i] = labels
	}
	return retained
}

func fingerprint(retained [][]int) string {
	// Compact textual form, good enough for convergence comparison.
	b := make([]byte, 0, len(retained)*4)
	for _, labels := range retained {
		for _, label := range labels {
			b = append(b, byte(label), byte(label>>8))
		}
		b = append(b, 0xff, 0xff)
	}
	return string(b)
}
