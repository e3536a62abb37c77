package opt

import (
	"math"
	"sort"
	"time"

	"stationplan/internal/network"
)

// Task is a job at a station with a half-open time interval [Start, End).
type Task struct {
	Name     string
	Location network.Location
	Start    float64
	End      float64
	Score    float64
}

// Result is the chosen itinerary. MinFee includes the return to the origin.
type Result struct {
	MaxScore float64
	MinFee   float64
	Schedule []string
	Stats    Stats
}

// Stats describes how a result was produced.
type Stats struct {
	Tasks       int
	Stations    int
	Reachable   int // tasks reachable from the origin
	Transitions int // feasible task-to-task transitions examined
	Fallback    bool
	Duration    time.Duration
}

// Outcome labels a result for metrics and events.
func (s Stats) Outcome() string {
	switch {
	case s.Tasks == 0:
		return "empty"
	case s.Fallback:
		return "fallback"
	default:
		return "chain"
	}
}

// state is the best itinerary ending at a task. fee excludes the return leg.
type state struct {
	score float64
	fee   float64
	pred  int
	ok    bool
}

// dominates orders (score, fee) pairs: higher score first, then lower fee.
func dominates(score, fee, curScore, curFee float64) bool {
	return score > curScore || (score == curScore && fee < curFee)
}

// Plan builds a cost index over conns and optimizes tasks from origin.
func Plan(tasks []Task, conns []network.Connection, origin network.Location) Result {
	return Optimize(tasks, origin, network.Build(conns))
}

// Optimize selects the chain of non-overlapping tasks, starting and ending at
// origin, that maximizes total score and then minimizes total fee. A
// non-empty task list always yields a non-empty schedule.
func Optimize(tasks []Task, origin network.Location, idx *network.CostIndex) Result {
	began := time.Now()
	stats := Stats{Tasks: len(tasks), Stations: idx.Len()}
	if len(tasks) == 0 {
		stats.Duration = time.Since(began)
		return Result{Schedule: []string{}, Stats: stats}
	}

	sorted := append([]Task(nil), tasks...)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].End != sorted[b].End {
			return sorted[a].End < sorted[b].End
		}
		return sorted[a].Start < sorted[b].Start
	})

	n := len(sorted)
	startCost := make([]float64, n)
	returnCost := make([]float64, n)
	for i, t := range sorted {
		startCost[i] = idx.Lookup(origin, t.Location)
		returnCost[i] = idx.Lookup(t.Location, origin)
	}

	best := make([]state, n)
	winner := -1
	var winScore, winTotal float64
	for j := 0; j < n; j++ {
		tj := sorted[j]
		if !math.IsInf(startCost[j], 1) {
			best[j] = state{score: tj.Score, fee: startCost[j], pred: -1, ok: true}
			stats.Reachable++
		}
		for i := 0; i < j; i++ {
			if !best[i].ok || sorted[i].End > tj.Start {
				continue
			}
			travel := idx.Lookup(sorted[i].Location, tj.Location)
			if math.IsInf(travel, 1) {
				continue
			}
			stats.Transitions++
			score := best[i].score + tj.Score
			fee := best[i].fee + travel
			if !best[j].ok || dominates(score, fee, best[j].score, best[j].fee) {
				best[j] = state{score: score, fee: fee, pred: i, ok: true}
			}
		}
		if !best[j].ok {
			continue
		}
		total := best[j].fee + returnCost[j]
		if winner < 0 || dominates(best[j].score, total, winScore, winTotal) {
			winner, winScore, winTotal = j, best[j].score, total
		}
	}

	if winner < 0 {
		stats.Fallback = true
		pick := fallbackTask(sorted, startCost, returnCost)
		stats.Duration = time.Since(began)
		return Result{
			MaxScore: sorted[pick].Score,
			MinFee:   startCost[pick] + returnCost[pick],
			Schedule: []string{sorted[pick].Name},
			Stats:    stats,
		}
	}

	var chain []string
	for k := winner; k >= 0; k = best[k].pred {
		chain = append(chain, sorted[k].Name)
	}
	for a, b := 0, len(chain)-1; a < b; a, b = a+1, b-1 {
		chain[a], chain[b] = chain[b], chain[a]
	}
	stats.Duration = time.Since(began)
	return Result{MaxScore: winScore, MinFee: winTotal, Schedule: chain, Stats: stats}
}

// fallbackTask picks the task with the best net score after a round trip.
// When every round trip is infinite the first task in sorted order wins.
func fallbackTask(tasks []Task, startCost, returnCost []float64) int {
	pick := 0
	bestNet := tasks[0].Score - (startCost[0] + returnCost[0])
	for i := 1; i < len(tasks); i++ {
		net := tasks[i].Score - (startCost[i] + returnCost[i])
		if net > bestNet {
			pick, bestNet = i, net
		}
	}
	return pick
}
