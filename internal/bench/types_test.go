package bench

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreClamping(t *testing.T) {
	assert.Equal(t, 0.0, ValidScore(-12).Value)
	assert.Equal(t, 100.0, ValidScore(250).Value)
	assert.Equal(t, 42.5, ValidScore(42.5).Value)
	assert.True(t, ValidScore(-12).Valid)
}

func TestScoreJSONAbsentIsNull(t *testing.T) {
	data, err := json.Marshal(AbsentScore())
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	// Absent survives a round-trip distinctly from zero.
	var s Score
	require.NoError(t, json.Unmarshal(data, &s))
	assert.False(t, s.Valid)

	data, err = json.Marshal(ValidScore(0))
	require.NoError(t, err)
	assert.Equal(t, "0", string(data))
	require.NoError(t, json.Unmarshal(data, &s))
	assert.True(t, s.Valid)
	assert.Equal(t, 0.0, s.Value)
}

func TestDimensionScoresRoundTrip(t *testing.T) {
	in := DimensionScores{
		Overall: ValidScore(70),
		Loading: ValidScore(80),
		Bundle:  ValidScore(60),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out DimensionScores
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
	assert.False(t, out.Runtime.Valid)
	assert.False(t, out.Memory.Valid)
}

func TestParseTestTypes(t *testing.T) {
	types, err := ParseTestTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, AllTestTypes(), types)

	types, err = ParseTestTypes([]string{"bundle", "runtime"})
	require.NoError(t, err)
	assert.Equal(t, []TestType{TestBundle, TestRuntime}, types)

	_, err = ParseTestTypes([]string{"lighthouse", "lintcheck"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lintcheck")
}

func TestNewRunIDSortsChronologically(t *testing.T) {
	a := NewRunID(time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC))
	b := NewRunID(time.Date(2026, 8, 29, 9, 30, 1, 0, time.UTC))
	c := NewRunID(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestRawMeasurementHelpers(t *testing.T) {
	m := RawMeasurement{
		Metrics: map[string]float64{"b": 1, "a": 2, "c": 3},
	}
	assert.False(t, m.Failed())
	assert.Equal(t, []string{"a", "b", "c"}, m.MetricNames())

	m.Error = "build exited 1"
	assert.True(t, m.Failed())
}

func TestScoreByName(t *testing.T) {
	d := DimensionScores{Bundle: ValidScore(33)}
	assert.Equal(t, ValidScore(33), d.ByName(DimBundle))
	assert.False(t, d.ByName(DimMemory).Valid)
	assert.False(t, d.ByName("nonsense").Valid)
}

func TestComparisonReportUsable(t *testing.T) {
	empty := ComparisonReport{Table: []TableRow{
		{Subject: "a", TestState: map[TestType]OutcomeStatus{TestBundle: OutcomeMissing}},
	}}
	assert.False(t, empty.Usable())

	some := ComparisonReport{Table: []TableRow{
		{Subject: "a", TestState: map[TestType]OutcomeStatus{TestBundle: OutcomeMissing}},
		{Subject: "b", TestState: map[TestType]OutcomeStatus{TestBundle: OutcomePartial}},
	}}
	assert.True(t, some.Usable())
}
