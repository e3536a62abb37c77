package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"
)

func TestLocationIDUnmarshalJSON(t *testing.T) {
	cases := map[string]LocationID{
		`"Central"`: "Central",
		`7`:         "7",
		`"7"`:       "7",
		`-3`:        "-3",
		`1.5`:       "1.5",
		`7.0`:       "7",
		`1e1`:       "10",
		`-2.50`:     "-2.5",
		`null`:      "",
	}
	for in, want := range cases {
		var got LocationID
		require.NoError(t, json.Unmarshal([]byte(in), &got), in)
		assert.Equal(t, want, got, in)
	}
	var bad LocationID
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`1e400`), &bad))
}

func TestLocationIDJSONMatchesYAML(t *testing.T) {
	for _, in := range []string{"7", "7.0", "1e1", "1.5", "-3", "0.25"} {
		var fromJSON, fromYAML LocationID
		require.NoError(t, json.Unmarshal([]byte(in), &fromJSON), in)
		require.NoError(t, yaml.Unmarshal([]byte(in), &fromYAML), in)
		assert.Equal(t, fromYAML, fromJSON, in)
	}
}

func TestLocationIDUnmarshalYAML(t *testing.T) {
	var conn ConnectionIn
	require.NoError(t, yaml.Unmarshal([]byte("connection: [1, Central]\nfee: 2\n"), &conn))
	assert.Equal(t, []LocationID{"1", "Central"}, conn.Connection)
	assert.Equal(t, 2.0, conn.Fee)
}

func TestFeeMarshalJSON(t *testing.T) {
	b, err := json.Marshal(ScheduleResponse{MaxScore: 3, MinFee: Fee(math.Inf(1)), Schedule: []string{"a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"max_score":3,"min_fee":null,"schedule":["a"]}`, string(b))

	b, err = json.Marshal(Fee(12.5))
	require.NoError(t, err)
	assert.Equal(t, "12.5", string(b))
}

func TestScheduleRequestDecode(t *testing.T) {
	var req ScheduleRequest
	require.NoError(t, json.Unmarshal([]byte(`{
	  "tasks":[{"name":"t1","station":1,"start":0,"end":10,"score":10}],
	  "subwayConnections":[],
	  "startingLocation":0}`), &req))
	require.Len(t, req.Tasks, 1)
	assert.Equal(t, LocationID("1"), req.Tasks[0].Station)
	assert.Equal(t, LocationID("0"), req.StartingLocation)
	assert.NotNil(t, req.SubwayConnections)
	assert.Empty(t, req.SubwayConnections)
}
