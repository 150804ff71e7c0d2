package graph

import (
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
)

// computeSummary aggregates per-node run state. Nodes without runtime
// information stay out of the status counts; a definition-only graph
// reports Unknown with an empty tally.
//
// Overall status precedence: any failure dominates, then any step still
// in progress, then all-succeeded, else Unknown.
func computeSummary(nodes []*domain.Node) domain.Summary {
	summary := domain.Summary{NodeStatus: make(map[domain.Status]int)}

	var (
		anyRun       bool
		anyFailed    bool
		anyRunning   bool
		allSucceeded = true
		minStart     time.Time
		maxEnd       time.Time
	)

	for _, node := range nodes {
		run := node.Run
		if run == nil {
			continue
		}
		anyRun = true
		summary.NodeStatus[run.Status]++

		switch {
		case run.Status == domain.StatusFailed:
			anyFailed = true
			allSucceeded = false
		case run.Status.InProgress():
			anyRunning = true
			allSucceeded = false
		case run.Status != domain.StatusSucceeded:
			allSucceeded = false
		}

		if !run.StartTime.IsZero() && (minStart.IsZero() || run.StartTime.Before(minStart)) {
			minStart = run.StartTime
		}
		if !run.EndTime.IsZero() && run.EndTime.After(maxEnd) {
			maxEnd = run.EndTime
		}
	}

	switch {
	case anyFailed:
		summary.OverallStatus = domain.StatusFailed
	case anyRunning:
		summary.OverallStatus = domain.StatusExecuting
	case anyRun && allSucceeded:
		summary.OverallStatus = domain.StatusSucceeded
	default:
		summary.OverallStatus = domain.StatusUnknown
	}

	if !minStart.IsZero() && !maxEnd.IsZero() && !maxEnd.Before(minStart) {
		elapsed := int64(maxEnd.Sub(minStart).Seconds())
		summary.ElapsedSec = &elapsed
	}
	return summary
}
