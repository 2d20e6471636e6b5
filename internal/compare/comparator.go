// Package compare builds cross-subject rankings, leaders, and
// rule-based recommendations from consolidated summaries.
package compare

import (
	"fmt"
	"sort"
	"time"

	"fwbench/internal/bench"
	"fwbench/internal/logging"
	"fwbench/internal/subject"
)

// leaderMargin is how close (in overall points) a subject must be to
// the observed maximum to count as a top performer.
const leaderMargin = 5.0

// recommendation score cutoffs per dimension.
var recommendationRules = []struct {
	dimension string
	below     float64
	kind      string
	detail    string
}{
	{bench.DimBundle, 40, "bundle-optimization", "compressed bundle is heavy; consider code splitting or dropping dependencies"},
	{bench.DimRuntime, 40, "runtime-optimization", "interaction latency is high; profile the search handler"},
	{bench.DimMemory, 40, "memory-optimization", "peak heap is high; look for retained DOM or listener leaks"},
	{bench.DimLoading, 50, "loading-optimization", "audit performance score is low; review render-blocking resources"},
}

// rankedDimensions are the dimensions rankings are produced for, in
// report order.
var rankedDimensions = []string{
	bench.DimOverall, bench.DimLoading, bench.DimRuntime, bench.DimBundle, bench.DimMemory,
}

// Compare derives the final report for one run. Every subject appears
// in the comparison table whether it was measured or not; rankings and
// percentile insights only ever count subjects that actually have the
// dimension measured.
func Compare(runID string, subjects []subject.Subject, summaries map[string]bench.ConsolidatedSummary, now time.Time) bench.ComparisonReport {
	timer := logging.StartTimer(logging.CategoryCompare, "compare "+runID)
	defer timer.Stop()

	report := bench.ComparisonReport{
		RunID:         runID,
		Rankings:      make(map[string][]bench.RankedSubject, len(rankedDimensions)),
		TopPerformers: []bench.TopPerformer{},
		Insights:      bench.Insights{Notable: []string{}, Recommendations: []bench.Recommendation{}},
		Table:         make([]bench.TableRow, 0, len(subjects)),
		GeneratedAt:   now,
	}

	for _, dim := range rankedDimensions {
		report.Rankings[dim] = rankDimension(dim, subjects, summaries)
	}
	report.TopPerformers = topPerformers(report.Rankings)
	report.Insights = insights(subjects, summaries, report.Rankings)
	report.Table = table(subjects, summaries)
	logging.Compare("%s: ranked %d subject(s), %d top performer(s)",
		runID, len(report.Rankings[bench.DimOverall]), len(report.TopPerformers))
	return report
}

// rankDimension ranks descending over subjects with the dimension
// measured; ties break by subject id so repeated runs order
// identically.
func rankDimension(dim string, subjects []subject.Subject, summaries map[string]bench.ConsolidatedSummary) []bench.RankedSubject {
	ranked := make([]bench.RankedSubject, 0, len(subjects))
	for _, s := range subjects {
		sum, ok := summaries[s.ID]
		if !ok {
			continue
		}
		score := sum.Scores.ByName(dim)
		if !score.Valid {
			continue
		}
		ranked = append(ranked, bench.RankedSubject{Subject: s.ID, Score: score.Value})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Subject < ranked[j].Subject
	})
	return ranked
}

func topPerformers(rankings map[string][]bench.RankedSubject) []bench.TopPerformer {
	overall := rankings[bench.DimOverall]
	if len(overall) == 0 {
		return []bench.TopPerformer{}
	}
	max := overall[0].Score

	out := make([]bench.TopPerformer, 0, len(overall))
	for _, r := range overall {
		if max-r.Score > leaderMargin {
			break
		}
		out = append(out, bench.TopPerformer{
			Subject:   r.Subject,
			Overall:   r.Score,
			LeadingIn: leadingDimensions(r.Subject, rankings),
		})
	}
	return out
}

// leadingDimensions lists the non-overall dimensions this subject
// ranks first in.
func leadingDimensions(id string, rankings map[string][]bench.RankedSubject) []string {
	leads := []string{}
	for _, dim := range rankedDimensions {
		if dim == bench.DimOverall {
			continue
		}
		ranked := rankings[dim]
		if len(ranked) > 0 && ranked[0].Subject == id {
			leads = append(leads, dim)
		}
	}
	return leads
}

func insights(subjects []subject.Subject, summaries map[string]bench.ConsolidatedSummary, rankings map[string][]bench.RankedSubject) bench.Insights {
	ins := bench.Insights{Notable: []string{}, Recommendations: []bench.Recommendation{}}

	// Notable spreads per dimension, computed only over the subjects
	// measured on that dimension.
	for _, dim := range rankedDimensions {
		ranked := rankings[dim]
		if len(ranked) < 2 {
			continue
		}
		best, worst := ranked[0], ranked[len(ranked)-1]
		if best.Score-worst.Score >= 25 {
			ins.Notable = append(ins.Notable, fmt.Sprintf(
				"%s spread is %.0f points across %d measured subjects (%s %.0f vs %s %.0f)",
				dim, best.Score-worst.Score, len(ranked), best.Subject, best.Score, worst.Subject, worst.Score))
		}
	}

	for _, s := range subjects {
		sum, ok := summaries[s.ID]
		if !ok {
			continue
		}
		for _, rule := range recommendationRules {
			score := sum.Scores.ByName(rule.dimension)
			if score.Valid && score.Value < rule.below {
				ins.Recommendations = append(ins.Recommendations, bench.Recommendation{
					Subject: s.ID,
					Kind:    rule.kind,
					Detail:  rule.detail,
				})
			}
		}
		if len(sum.Errors) > 0 {
			ins.Notable = append(ins.Notable, fmt.Sprintf("%s has %d measurement errors; its scores cover partial data", s.ID, len(sum.Errors)))
		}
	}
	return ins
}

// table includes every subject of the run. Unmeasured subjects get a
// row of absent scores and missing test states rather than being
// dropped.
func table(subjects []subject.Subject, summaries map[string]bench.ConsolidatedSummary) []bench.TableRow {
	rows := make([]bench.TableRow, 0, len(subjects))
	for _, s := range subjects {
		row := bench.TableRow{
			Subject:   s.ID,
			Display:   s.Name(),
			TestState: make(map[bench.TestType]bench.OutcomeStatus, 3),
			Errors:    []string{},
		}
		if sum, ok := summaries[s.ID]; ok {
			row.Scores = sum.Scores
			row.Errors = sum.Errors
			for tt, outcome := range sum.PerTest {
				row.TestState[tt] = outcome.Status
			}
		} else {
			for _, tt := range bench.AllTestTypes() {
				row.TestState[tt] = bench.OutcomeMissing
			}
		}
		rows = append(rows, row)
	}
	return rows
}
