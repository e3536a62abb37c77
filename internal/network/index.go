// Package network turns a station network into an all-pairs travel cost table.
package network

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Location names a station in the network.
type Location string

// Connection is an undirected edge between two stations with a non-negative fee.
type Connection struct {
	A, B Location
	Fee  float64
}

// CostIndex holds the minimum cumulative travel cost between every pair of
// stations that appear in at least one connection. It is read-only once built.
type CostIndex struct {
	ids   map[Location]int64
	locs  []Location
	paths path.AllShortest
}

var inf = math.Inf(1)

// Build collects the distinct stations as graph nodes, keeps the cheapest
// direct fee per pair as the edge weight and runs Floyd-Warshall over it.
// Self-loops only register their station.
func Build(conns []Connection) *CostIndex {
	c := &CostIndex{ids: make(map[Location]int64)}
	g := simple.NewWeightedUndirectedGraph(0, inf)
	for _, cn := range conns {
		a, b := c.intern(g, cn.A), c.intern(g, cn.B)
		if a == b {
			continue
		}
		if e := g.WeightedEdge(a, b); e != nil && e.Weight() <= cn.Fee {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(a), simple.Node(b), cn.Fee))
	}
	if len(c.locs) == 0 {
		return c
	}
	// Fees are validated non-negative, so there is no negative cycle to report.
	c.paths, _ = path.FloydWarshall(g)
	return c
}

func (c *CostIndex) intern(g *simple.WeightedUndirectedGraph, l Location) int64 {
	if id, ok := c.ids[l]; ok {
		return id
	}
	id := int64(len(c.locs))
	c.ids[l] = id
	c.locs = append(c.locs, l)
	g.AddNode(simple.Node(id))
	return id
}

// Lookup returns the minimum travel cost from a to b, or +Inf when either
// station is unknown or the pair is disconnected.
func (c *CostIndex) Lookup(a, b Location) float64 {
	if c == nil {
		return inf
	}
	i, ok := c.ids[a]
	if !ok {
		return inf
	}
	j, ok := c.ids[b]
	if !ok {
		return inf
	}
	return c.paths.Weight(i, j)
}

// Reachable reports whether b can be reached from a at finite cost.
func (c *CostIndex) Reachable(a, b Location) bool {
	return !math.IsInf(c.Lookup(a, b), 1)
}

// Contains reports whether l appears in any connection.
func (c *CostIndex) Contains(l Location) bool {
	if c == nil {
		return false
	}
	_, ok := c.ids[l]
	return ok
}

// Len is the number of distinct stations.
func (c *CostIndex) Len() int {
	if c == nil {
		return 0
	}
	return len(c.locs)
}

// Locations returns the stations in index order (first appearance).
func (c *CostIndex) Locations() []Location {
	if c == nil {
		return nil
	}
	return append([]Location(nil), c.locs...)
}
