package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// LocationID is a station identifier. Stations may be sent as JSON strings or
// numbers; numbers are kept as their shortest decimal text so 7, 7.0 and "7"
// match, the same way the YAML decoder spells them.
type LocationID string

func (l *LocationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LocationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("location id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*l = LocationID(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("location id %s out of range: %w", n, err)
	}
	*l = LocationID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// UnmarshalYAML accepts scalars of any kind for the offline solver input.
func (l *LocationID) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*l = ""
	case string:
		*l = LocationID(x)
	case int:
		*l = LocationID(strconv.Itoa(x))
	case float64:
		*l = LocationID(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		*l = LocationID(fmt.Sprint(x))
	}
	return nil
}

// Fee marshals like a float64 except that non-finite values become null.
type Fee float64

func (f Fee) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Schedule API

type TaskIn struct {
	Name    string     `json:"name" yaml:"name"`
	Station LocationID `json:"station" yaml:"station"`
	Start   float64    `json:"start" yaml:"start"`
	End     float64    `json:"end" yaml:"end"`
	Score   float64    `json:"score" yaml:"score"`
}

type ConnectionIn struct {
	Connection []LocationID `json:"connection" yaml:"connection"`
	Fee        float64      `json:"fee" yaml:"fee"`
}

type ScheduleRequest struct {
	Tasks             []TaskIn       `json:"tasks" yaml:"tasks"`
	SubwayConnections []ConnectionIn `json:"subwayConnections,omitempty" yaml:"subwayConnections"`
	NetworkID         string         `json:"networkId,omitempty" yaml:"networkId"`
	StartingLocation  LocationID     `json:"startingLocation" yaml:"startingLocation"`
}

type ScheduleResponse struct {
	MaxScore float64  `json:"max_score"`
	MinFee   Fee      `json:"min_fee"`
	Schedule []string `json:"schedule"`
}

// Saved station networks

type NetworkInput struct {
	Name        string         `json:"name"`
	Connections []ConnectionIn `json:"connections"`
}

type Network struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	Name        string         `json:"name,omitempty"`
	Stations    int            `json:"stations"`
	Connections []ConnectionIn `json:"connections"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type CostLookup struct {
	NetworkID string     `json:"networkId"`
	From      LocationID `json:"from"`
	To        LocationID `json:"to"`
	Cost      Fee        `json:"cost"`
	Reachable bool       `json:"reachable"`
}

// Webhooks

type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}

// ScheduleComputed is the payload of the schedule.computed event.
type ScheduleComputed struct {
	RunID      string  `json:"runId"`
	TenantID   string  `json:"tenantId"`
	Tasks      int     `json:"tasks"`
	Stations   int     `json:"stations"`
	Scheduled  int     `json:"scheduled"`
	MaxScore   float64 `json:"maxScore"`
	Fallback   bool    `json:"fallback"`
	DurationMs float64 `json:"durationMs"`
	TS         string  `json:"ts"`
}

const EventScheduleComputed = "schedule.computed"

// RunRecord is the retained summary of one optimizer run. It never holds
// task names or the chosen itinerary.
type RunRecord struct {
	ID         string
	TenantID   string
	NetworkID  string
	Tasks      int
	Stations   int
	Scheduled  int
	Outcome    string
	MaxScore   float64
	DurationMs float64
	CreatedAt  time.Time
}

type RunStats struct {
	Runs          int            `json:"runs"`
	ByOutcome     map[string]int `json:"byOutcome"`
	AvgTasks      float64        `json:"avgTasks"`
	AvgStations   float64        `json:"avgStations"`
	AvgDurationMs float64        `json:"avgDurationMs"`
	MaxDurationMs float64        `json:"maxDurationMs"`
}
