package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cliqueProjection() *Projection {
	p := NewProjection("communities")
	first := []string{"脑卒中", "缺血性脑卒中", "出血性脑卒中", "短暂性脑缺血发作"}
	second := []string{"阿司匹林", "氯吡格雷", "他汀类药物", "抗血小板药"}
	for _, id := range append(append([]string{}, first...), second...) {
		p.AddNode(id, nil)
	}
	for i := range first {
		for j := i + 1; j < len(first); j++ {
			p.AddRelationship(first[i], first[j], 1)
		}
	}
	for i := range second {
		for j := i + 1; j < len(second); j++ {
			p.AddRelationship(second[i], second[j], 1)
		}
	}
	// One weak bridge between the cliques.
	p.AddRelationship("脑卒中", "阿司匹林", 1)
	return p
}

func TestSLLPA(t *testing.T) {
	t.Run("Two cliques form two communities", func(t *testing.T) {
		p := cliqueProjection()

		communities := SLLPA(p, 10000, 0.1, 42)

		require.NotEmpty(t, communities)

		// Members of the same clique end up sharing a community id.
		assert.NotEmpty(t, intersect(communities["缺血性脑卒中"], communities["出血性脑卒中"]))
		assert.NotEmpty(t, intersect(communities["氯吡格雷"], communities["他汀类药物"]))
		// The cliques do not collapse into identical label sets.
		assert.NotEqual(t, communities["缺血性脑卒中"], communities["氯吡格雷"])
	})

	t.Run("Deterministic for a fixed seed", func(t *testing.T) {
		first := SLLPA(cliqueProjection(), 10000, 0.1, 7)
		second := SLLPA(cliqueProjection(), 10000, 0.1, 7)

		assert.Equal(t, first, second)
	})

	t.Run("Isolated nodes get no communities", func(t *testing.T) {
		p := NewProjection("communities")
		p.AddNode("a", nil)
		p.AddNode("b", nil)
		p.AddRelationship("a", "b", 1)
		p.AddNode("isolated", nil)

		communities := SLLPA(p, 10000, 0.1, 1)

		_, ok := communities["isolated"]
		assert.False(t, ok)
		assert.NotEmpty(t, communities["a"])
	})

	t.Run("Empty projection", func(t *testing.T) {
		p := NewProjection("communities")

		communities := SLLPA(p, 10000, 0.1, 1)

		assert.Empty(t, communities)
	})

	t.Run("Community ids are compact and sorted", func(t *testing.T) {
		communities := SLLPA(cliqueProjection(), 10000, 0.1, 42)

		maxID := -1
		total := map[int]bool{}
		for _, ids := range communities {
			for i := 1; i < len(ids); i++ {
				assert.Less(t, ids[i-1], ids[i])
			}
			for _, id := range ids {
				total[id] = true
				if id > maxID {
					maxID = id
				}
			}
		}
		assert.Equal(t, maxID+1, len(total))
	})
}

func intersect(a, b []int) []int {
	inA := map[int]bool{}
	for _, x := range a {
		inA[x] = true
	}
	var out []int
	for _, x := range b {
		if inA[x] {
			out = append(out, x)
		}
	}
	return out
}
