package compare

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwbench/internal/bench"
	"fwbench/internal/subject"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func subjectsNamed(ids ...string) []subject.Subject {
	out := make([]subject.Subject, 0, len(ids))
	for _, id := range ids {
		out = append(out, subject.Subject{ID: id})
	}
	return out
}

func summaryWith(id string, scores bench.DimensionScores) bench.ConsolidatedSummary {
	return bench.ConsolidatedSummary{
		Subject: id,
		RunID:   "r1",
		PerTest: map[bench.TestType]bench.TestOutcome{
			bench.TestBundle: {Status: bench.OutcomeOK},
		},
		Scores: scores,
	}
}

func TestRankingDescendingWithTieBreak(t *testing.T) {
	subjects := subjectsNamed("zeta", "alpha", "mid")
	summaries := map[string]bench.ConsolidatedSummary{
		"zeta":  summaryWith("zeta", bench.DimensionScores{Overall: bench.ValidScore(80)}),
		"alpha": summaryWith("alpha", bench.DimensionScores{Overall: bench.ValidScore(80)}),
		"mid":   summaryWith("mid", bench.DimensionScores{Overall: bench.ValidScore(50)}),
	}

	report := Compare("r1", subjects, summaries, testNow)
	overall := report.Rankings[bench.DimOverall]
	require.Len(t, overall, 3)
	// Ties break lexicographically by id.
	assert.Equal(t, "alpha", overall[0].Subject)
	assert.Equal(t, "zeta", overall[1].Subject)
	assert.Equal(t, "mid", overall[2].Subject)
}

func TestRankingOmitsUnmeasuredSubjects(t *testing.T) {
	subjects := subjectsNamed("a", "b", "c")
	summaries := map[string]bench.ConsolidatedSummary{
		"a": summaryWith("a", bench.DimensionScores{
			Overall: bench.ValidScore(70),
			Bundle:  bench.ValidScore(70),
		}),
		"b": summaryWith("b", bench.DimensionScores{Overall: bench.ValidScore(60)}),
		// c has no summary at all.
	}

	report := Compare("r1", subjects, summaries, testNow)
	// b is not penalized for its absent bundle dimension; it simply
	// does not appear in that ranking.
	assert.Len(t, report.Rankings[bench.DimBundle], 1)
	assert.Len(t, report.Rankings[bench.DimOverall], 2)

	// Every subject still has a table row.
	require.Len(t, report.Table, 3)
	last := report.Table[2]
	assert.Equal(t, "c", last.Subject)
	assert.False(t, last.Scores.Overall.Valid)
	for _, tt := range bench.AllTestTypes() {
		assert.Equal(t, bench.OutcomeMissing, last.TestState[tt])
	}
}

func TestTopPerformersWithinMargin(t *testing.T) {
	subjects := subjectsNamed("lead", "close", "far")
	summaries := map[string]bench.ConsolidatedSummary{
		"lead":  summaryWith("lead", bench.DimensionScores{Overall: bench.ValidScore(90), Bundle: bench.ValidScore(95)}),
		"close": summaryWith("close", bench.DimensionScores{Overall: bench.ValidScore(86), Loading: bench.ValidScore(99)}),
		"far":   summaryWith("far", bench.DimensionScores{Overall: bench.ValidScore(70)}),
	}

	report := Compare("r1", subjects, summaries, testNow)
	require.Len(t, report.TopPerformers, 2)
	assert.Equal(t, "lead", report.TopPerformers[0].Subject)
	assert.Equal(t, []string{bench.DimBundle}, report.TopPerformers[0].LeadingIn)
	assert.Equal(t, "close", report.TopPerformers[1].Subject)
	assert.Equal(t, []string{bench.DimLoading}, report.TopPerformers[1].LeadingIn)
}

func TestRecommendations(t *testing.T) {
	subjects := subjectsNamed("heavy")
	summaries := map[string]bench.ConsolidatedSummary{
		"heavy": summaryWith("heavy", bench.DimensionScores{
			Overall: bench.ValidScore(45),
			Bundle:  bench.ValidScore(30),
			Runtime: bench.ValidScore(55),
		}),
	}

	report := Compare("r1", subjects, summaries, testNow)
	require.Len(t, report.Insights.Recommendations, 1)
	rec := report.Insights.Recommendations[0]
	assert.Equal(t, "heavy", rec.Subject)
	assert.Equal(t, "bundle-optimization", rec.Kind)
}

func TestNotableSpread(t *testing.T) {
	subjects := subjectsNamed("fast", "slow")
	summaries := map[string]bench.ConsolidatedSummary{
		"fast": summaryWith("fast", bench.DimensionScores{Overall: bench.ValidScore(90)}),
		"slow": summaryWith("slow", bench.DimensionScores{Overall: bench.ValidScore(40)}),
	}

	report := Compare("r1", subjects, summaries, testNow)
	require.NotEmpty(t, report.Insights.Notable)
	assert.Contains(t, report.Insights.Notable[0], "overall spread is 50 points")
}

func TestCompareToleratesEmptyInput(t *testing.T) {
	report := Compare("r1", nil, nil, testNow)
	assert.Empty(t, report.Table)
	assert.Empty(t, report.TopPerformers)
	assert.False(t, report.Usable())
}

func TestCompareDeterministic(t *testing.T) {
	subjects := subjectsNamed("a", "b", "c")
	summaries := map[string]bench.ConsolidatedSummary{
		"a": summaryWith("a", bench.DimensionScores{Overall: bench.ValidScore(80), Bundle: bench.ValidScore(80)}),
		"b": summaryWith("b", bench.DimensionScores{Overall: bench.ValidScore(80), Bundle: bench.ValidScore(80)}),
		"c": summaryWith("c", bench.DimensionScores{Overall: bench.ValidScore(79)}),
	}

	first := Compare("r1", subjects, summaries, testNow)
	for i := 0; i < 10; i++ {
		again := Compare("r1", subjects, summaries, testNow)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("comparison not deterministic (-first +again):\n%s", diff)
		}
	}
}
