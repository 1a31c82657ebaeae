// Package report aggregates worker reports and persists the combined summary.
package report

import (
	"sort"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
)

// Merge sums every counter and timing field of the given reports. Extra
// counters are summed by name; a counter absent from a report counts as zero.
// The Worker field of the result is zero. Merge is associative and
// commutative.
func Merge(reports ...crawler.WorkerReport) crawler.WorkerReport {
	var out crawler.WorkerReport
	for _, r := range reports {
		out.JobsTotal += r.JobsTotal
		out.JobsSuccess += r.JobsSuccess
		out.JobsFailed += r.JobsFailed
		out.Retries += r.Retries
		out.ParseErrors += r.ParseErrors
		out.TotalTimeS += r.TotalTimeS
		out.Samples += r.Samples
		for name, v := range r.Extra {
			out.Incr(name, v)
		}
	}
	return out
}

// Combine merges reports and derives the run-level average from the summed
// totals. Per-worker averages are never averaged.
func Combine(runID string, reports ...crawler.WorkerReport) crawler.CombinedReport {
	merged := Merge(reports...)
	return crawler.CombinedReport{
		RunID:       runID,
		Workers:     len(reports),
		JobsTotal:   merged.JobsTotal,
		JobsSuccess: merged.JobsSuccess,
		JobsFailed:  merged.JobsFailed,
		Retries:     merged.Retries,
		ParseErrors: merged.ParseErrors,
		TotalTimeS:  merged.TotalTimeS,
		AvgTimeS:    AverageTime(merged),
		Extra:       merged.Extra,
	}
}

// AverageTime returns total_time_s / jobs_total, or 0 without jobs.
func AverageTime(r crawler.WorkerReport) float64 {
	if r.JobsTotal == 0 {
		return 0
	}
	return r.TotalTimeS / float64(r.JobsTotal)
}

// ByRank returns the reports of a rank-keyed map ordered by rank.
func ByRank(reports map[int]crawler.WorkerReport) []crawler.WorkerReport {
	ranks := make([]int, 0, len(reports))
	for rank := range reports {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	out := make([]crawler.WorkerReport, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, reports[rank])
	}
	return out
}
