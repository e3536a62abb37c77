package api

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"stationplan/internal/config"
	"stationplan/internal/model"
	"stationplan/internal/network"
	"stationplan/internal/opt"
)

// LimitError reports a request that is well formed but too large to serve.
type LimitError struct {
	What  string
	Count int
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %d exceeds limit %d", e.What, e.Count, e.Max)
}

func finite(v float64) bool { return !math.IsInf(v, 0) && !math.IsNaN(v) }

// ValidateSchedule checks a schedule request before it reaches the optimizer.
// Oversized requests return a *LimitError.
func ValidateSchedule(req model.ScheduleRequest, lim config.LimitsConfig) error {
	if strings.TrimSpace(string(req.StartingLocation)) == "" {
		return errors.New("startingLocation required")
	}
	hasInline := req.SubwayConnections != nil
	hasNetwork := strings.TrimSpace(req.NetworkID) != ""
	switch {
	case hasInline && hasNetwork:
		return errors.New("provide subwayConnections or networkId, not both")
	case !hasInline && !hasNetwork:
		return errors.New("subwayConnections or networkId required")
	}
	if lim.MaxTasks > 0 && len(req.Tasks) > lim.MaxTasks {
		return &LimitError{What: "tasks", Count: len(req.Tasks), Max: lim.MaxTasks}
	}
	for i, t := range req.Tasks {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("tasks[%d]: name required", i)
		}
		if strings.TrimSpace(string(t.Station)) == "" {
			return fmt.Errorf("tasks[%d]: station required", i)
		}
		if !finite(t.Start) || !finite(t.End) || !finite(t.Score) {
			return fmt.Errorf("tasks[%d]: start, end and score must be finite", i)
		}
		if t.End < t.Start {
			return fmt.Errorf("tasks[%d]: end must be >= start", i)
		}
		if t.Score < 0 {
			return fmt.Errorf("tasks[%d]: score must be >= 0", i)
		}
	}
	return ValidateConnections("subwayConnections", req.SubwayConnections, lim)
}

// ValidateConnections checks connection endpoints, fees and the connection
// and station counts.
func ValidateConnections(field string, conns []model.ConnectionIn, lim config.LimitsConfig) error {
	if lim.MaxConnections > 0 && len(conns) > lim.MaxConnections {
		return &LimitError{What: field, Count: len(conns), Max: lim.MaxConnections}
	}
	for i, c := range conns {
		if len(c.Connection) != 2 {
			return fmt.Errorf("%s[%d]: connection must have exactly two stations", field, i)
		}
		if strings.TrimSpace(string(c.Connection[0])) == "" || strings.TrimSpace(string(c.Connection[1])) == "" {
			return fmt.Errorf("%s[%d]: station names must be non-empty", field, i)
		}
		if !finite(c.Fee) || c.Fee < 0 {
			return fmt.Errorf("%s[%d]: fee must be finite and >= 0", field, i)
		}
	}
	if n := countStations(conns); lim.MaxStations > 0 && n > lim.MaxStations {
		return &LimitError{What: "stations", Count: n, Max: lim.MaxStations}
	}
	return nil
}

func countStations(conns []model.ConnectionIn) int {
	seen := make(map[model.LocationID]struct{}, len(conns))
	for _, c := range conns {
		for _, l := range c.Connection {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}

// ToConnections converts validated wire connections.
func ToConnections(in []model.ConnectionIn) []network.Connection {
	out := make([]network.Connection, 0, len(in))
	for _, c := range in {
		out = append(out, network.Connection{
			A:   network.Location(c.Connection[0]),
			B:   network.Location(c.Connection[1]),
			Fee: c.Fee,
		})
	}
	return out
}

// ToTasks converts validated wire tasks.
func ToTasks(in []model.TaskIn) []opt.Task {
	out := make([]opt.Task, 0, len(in))
	for _, t := range in {
		out = append(out, opt.Task{
			Name:     t.Name,
			Location: network.Location(t.Station),
			Start:    t.Start,
			End:      t.End,
			Score:    t.Score,
		})
	}
	return out
}
