package pool

import "github.com/Fennzo/CourtScrapper/internal/courts"

// Aggregate flattens per-attorney results into one record slice, preserving
// the per-attorney ordering the pool established. Failed sessions still
// contribute whatever partial records they accumulated.
func Aggregate(results []courts.WorkerResult) []courts.CaseRecord {
	total := 0
	for _, res := range results {
		total += len(res.Records)
	}
	records := make([]courts.CaseRecord, 0, total)
	for _, res := range results {
		records = append(records, res.Records...)
	}
	return records
}

// Summarize folds results into a RunSummary for reporting and notification.
func Summarize(runID string, results []courts.WorkerResult) courts.RunSummary {
	summary := courts.RunSummary{RunID: runID, Attorneys: len(results)}
	for _, res := range results {
		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.TotalRecords += len(res.Records)
	}
	return summary
}
