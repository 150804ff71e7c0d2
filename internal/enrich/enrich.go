// Package enrich resolves the runtime side of a lineage graph: per-step
// status and timing from the most recent execution, job-backed metrics
// and IO, and evaluation-report metrics read from the object store.
// Secondary lookups are best-effort; one failing job description
// degrades that step to status-only and never aborts the batch.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

// Snapshot is the runtime state of one execution, keyed by step id.
type Snapshot struct {
	ExecutionARN string
	Steps        map[string]*domain.RunInfo
	IO           map[string]StepIO
	Warnings     []string
}

// StepIO carries the refreshed channel URIs a job lookup resolved.
type StepIO struct {
	Inputs  []domain.IOChannel
	Outputs []domain.IOChannel
}

type Enricher struct {
	pipelines   provider.PipelineAPI
	objects     provider.ObjectAPI
	concurrency int
	now         func() time.Time
}

func New(pipelines provider.PipelineAPI, objects provider.ObjectAPI, concurrency int) *Enricher {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Enricher{
		pipelines:   pipelines,
		objects:     objects,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (e *Enricher) WithClock(now func() time.Time) *Enricher {
	e.now = now
	return e
}

// Enrich selects the most recent execution of the pipeline and resolves
// per-step run info. A pipeline with no executions yields an empty
// snapshot, not an error.
func (e *Enricher) Enrich(ctx context.Context, pipelineName string) (Snapshot, error) {
	executions, err := e.pipelines.ListExecutions(ctx, pipelineName)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list executions: %w", err)
	}
	if len(executions) == 0 {
		return Snapshot{}, nil
	}
	latest := executions[0]

	records, err := e.pipelines.ListExecutionSteps(ctx, latest.ARN)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list execution steps: %w", err)
	}

	snap := Snapshot{
		ExecutionARN: latest.ARN,
		Steps:        make(map[string]*domain.RunInfo, len(records)),
		IO:           make(map[string]StepIO),
	}
	for _, rec := range records {
		run := &domain.RunInfo{
			Status:    rec.Status,
			StartTime: rec.StartTime,
			EndTime:   rec.EndTime,
		}
		run.ComputeElapsed(e.now())
		if rec.ModelPackageARN != "" {
			run.Registry = &domain.ModelRegistryRef{ModelPackageARN: rec.ModelPackageARN}
		}
		snap.Steps[rec.StepID] = run
	}

	e.describeJobs(ctx, records, &snap)
	return snap, nil
}

// describeJobs fans out the secondary job lookups under a bounded
// group. Results merge back keyed by step id, so completion order never
// changes the outcome.
func (e *Enricher) describeJobs(ctx context.Context, records []provider.StepRunRecord, snap *Snapshot) {
	type jobResult struct {
		stepID string
		detail provider.JobDetail
	}

	var (
		mu       sync.Mutex
		results  = make(map[string]jobResult)
		warnings []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, rec := range records {
		if rec.JobARN == "" {
			continue
		}
		g.Go(func() error {
			detail, err := e.pipelines.DescribeJob(gctx, rec.JobARN)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("step %s: describe job: %v", rec.StepID, err))
				return nil
			}
			results[rec.StepID] = jobResult{stepID: rec.StepID, detail: detail}
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		res, ok := results[rec.StepID]
		if !ok {
			continue
		}
		run := snap.Steps[rec.StepID]
		if run == nil {
			continue
		}
		run.JobARN = res.detail.ARN
		run.JobName = res.detail.Name
		if len(res.detail.Metrics) > 0 {
			run.Metrics = res.detail.Metrics
		}
		if len(res.detail.Inputs) > 0 || len(res.detail.Outputs) > 0 {
			snap.IO[rec.StepID] = StepIO{Inputs: res.detail.Inputs, Outputs: res.detail.Outputs}
		}
	}
	snap.Warnings = append(snap.Warnings, warnings...)
}

// reportCandidates are the well-known evaluation report names, in
// priority order; the first readable one wins.
var reportCandidates = []string{"report.json", "evaluation.json", "metrics.json"}

// EvalReportMetrics tries to read evaluation metrics from a step's
// declared outputs. Missing or malformed reports are swallowed; the
// returns are nil and empty when nothing was usable.
func (e *Enricher) EvalReportMetrics(ctx context.Context, outputs []domain.IOChannel) (map[string]float64, string) {
	for _, out := range outputs {
		bucket, key, ok := domain.SplitObjectURI(out.URI)
		if !ok {
			continue
		}

		var candidates []string
		if strings.HasSuffix(key, ".json") {
			candidates = append(candidates, key)
		}
		base := strings.TrimRight(key, "/")
		for _, name := range reportCandidates {
			candidates = append(candidates, base+"/"+name)
		}

		for _, candidate := range candidates {
			body, err := e.objects.GetObject(ctx, bucket, candidate)
			if err != nil {
				continue
			}
			metrics := parseReport(body)
			if len(metrics) == 0 {
				continue
			}
			return metrics, "s3://" + bucket + "/" + candidate
		}
	}
	return nil, ""
}

func parseReport(body []byte) map[string]float64 {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	source := doc
	if nested, ok := doc["metrics"].(map[string]any); ok {
		source = nested
	}
	out := make(map[string]float64)
	for k, v := range source {
		if num, ok := v.(float64); ok {
			out["eval."+k] = num
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
