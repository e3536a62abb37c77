package network

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmpty(t *testing.T) {
	idx := Build(nil)
	assert.Equal(t, 0, idx.Len())
	assert.True(t, math.IsInf(idx.Lookup("a", "a"), 1))
	assert.False(t, idx.Contains("a"))
}

func TestBuildLineAndShortcut(t *testing.T) {
	idx := Build([]Connection{
		{A: "S", B: "A", Fee: 5},
		{A: "A", B: "B", Fee: 3},
		{A: "S", B: "B", Fee: 10},
	})
	require.Equal(t, 3, idx.Len())
	assert.Equal(t, 8.0, idx.Lookup("S", "B"))
	assert.Equal(t, 8.0, idx.Lookup("B", "S"))
	assert.Equal(t, 0.0, idx.Lookup("A", "A"))
	assert.Equal(t, []Location{"S", "A", "B"}, idx.Locations())
}

func TestBuildDuplicateConnectionsKeepCheapest(t *testing.T) {
	idx := Build([]Connection{
		{A: "x", B: "y", Fee: 7},
		{A: "y", B: "x", Fee: 2.5},
		{A: "x", B: "y", Fee: 4},
	})
	assert.Equal(t, 2.5, idx.Lookup("x", "y"))
	assert.Equal(t, 2.5, idx.Lookup("y", "x"))
}

func TestBuildSelfLoopIgnored(t *testing.T) {
	idx := Build([]Connection{{A: "x", B: "x", Fee: 9}})
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 0.0, idx.Lookup("x", "x"))

	idx = Build([]Connection{{A: "x", B: "x", Fee: 9}, {A: "y", B: "z", Fee: 1}})
	assert.True(t, idx.Contains("x"))
	assert.False(t, idx.Reachable("x", "y"))
	assert.Equal(t, 1.0, idx.Lookup("z", "y"))
}

func TestLookupUnknownAndDisconnected(t *testing.T) {
	idx := Build([]Connection{
		{A: "a", B: "b", Fee: 1},
		{A: "c", B: "d", Fee: 1},
	})
	assert.True(t, math.IsInf(idx.Lookup("a", "c"), 1))
	assert.True(t, math.IsInf(idx.Lookup("a", "zz"), 1))
	assert.True(t, math.IsInf(idx.Lookup("zz", "zz"), 1))
	assert.False(t, idx.Reachable("b", "d"))
	assert.True(t, idx.Reachable("c", "d"))
}

func TestNilIndexLookup(t *testing.T) {
	var idx *CostIndex
	assert.True(t, math.IsInf(idx.Lookup("a", "b"), 1))
	assert.Equal(t, 0, idx.Len())
}

func randomConnections(rng *rand.Rand, stations, edges int) []Connection {
	out := make([]Connection, 0, edges)
	for len(out) < edges {
		a := rng.Intn(stations)
		b := rng.Intn(stations)
		if a == b {
			continue
		}
		out = append(out, Connection{
			A:   Location(fmt.Sprintf("s%d", a)),
			B:   Location(fmt.Sprintf("s%d", b)),
			Fee: float64(rng.Intn(20)),
		})
	}
	return out
}

func TestIndexInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		conns := randomConnections(rng, 3+rng.Intn(10), 1+rng.Intn(25))
		idx := Build(conns)
		locs := idx.Locations()
		for _, a := range locs {
			assert.Equal(t, 0.0, idx.Lookup(a, a), "diagonal %s", a)
			for _, b := range locs {
				assert.Equal(t, idx.Lookup(a, b), idx.Lookup(b, a), "symmetry %s-%s", a, b)
				for _, c := range locs {
					assert.LessOrEqual(t, idx.Lookup(a, c), idx.Lookup(a, b)+idx.Lookup(b, c),
						"triangle %s-%s-%s", a, b, c)
				}
			}
		}
	}
}

func TestAddingConnectionNeverIncreasesCost(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 20; round++ {
		conns := randomConnections(rng, 8, 10)
		before := Build(conns)
		extra := randomConnections(rng, 8, 1)
		after := Build(append(append([]Connection(nil), conns...), extra...))
		for _, a := range after.Locations() {
			for _, b := range after.Locations() {
				assert.LessOrEqual(t, after.Lookup(a, b), before.Lookup(a, b))
			}
		}
	}
}

// dijkstra is a plain O(n^2) single-source search over the raw connections.
func dijkstra(conns []Connection, src Location) map[Location]float64 {
	dist := map[Location]float64{}
	for _, c := range conns {
		dist[c.A] = math.Inf(1)
		dist[c.B] = math.Inf(1)
	}
	dist[src] = 0
	done := map[Location]bool{}
	for len(done) < len(dist) {
		var u Location
		best := math.Inf(1)
		found := false
		for l, d := range dist {
			if !done[l] && (!found || d < best) {
				u, best, found = l, d, true
			}
		}
		done[u] = true
		if math.IsInf(best, 1) {
			continue
		}
		for _, c := range conns {
			var v Location
			switch u {
			case c.A:
				v = c.B
			case c.B:
				v = c.A
			default:
				continue
			}
			if best+c.Fee < dist[v] {
				dist[v] = best + c.Fee
			}
		}
	}
	return dist
}

func TestMatchesSingleSourceSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 15; round++ {
		conns := randomConnections(rng, 12, 30)
		idx := Build(conns)
		require.NotZero(t, idx.Len())

		for _, a := range idx.Locations() {
			want := dijkstra(conns, a)
			require.Len(t, want, idx.Len())
			for _, b := range idx.Locations() {
				assert.Equal(t, want[b], idx.Lookup(a, b), "%s→%s", a, b)
			}
		}
	}
}
