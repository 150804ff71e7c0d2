package enrich

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/provider/providertest"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEnrichNoExecutions(t *testing.T) {
	pipelines := &providertest.PipelineFake{}
	snap, err := New(pipelines, &providertest.ObjectFake{}, 2).Enrich(context.Background(), "churn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ExecutionARN != "" || len(snap.Steps) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestEnrichResolvesStepsAndJobs(t *testing.T) {
	pipelines := &providertest.PipelineFake{
		Executions: map[string][]provider.ExecutionSummary{
			"churn": {
				{ARN: "exec-2", Status: domain.StatusExecuting, StartTime: t0},
				{ARN: "exec-1", Status: domain.StatusSucceeded, StartTime: t0.Add(-time.Hour)},
			},
		},
		Steps: map[string][]provider.StepRunRecord{
			"exec-2": {
				{StepID: "Preprocess", Status: domain.StatusSucceeded, StartTime: t0, EndTime: t0.Add(245 * time.Second), JobARN: "job-pre"},
				{StepID: "Train", Status: domain.StatusExecuting, StartTime: t0.Add(300 * time.Second)},
				{StepID: "Register", Status: domain.StatusSucceeded, StartTime: t0, EndTime: t0.Add(10 * time.Second), ModelPackageARN: "pkg-1"},
			},
		},
		Jobs: map[string]provider.JobDetail{
			"job-pre": {
				ARN:     "job-pre",
				Name:    "preprocess-job",
				Metrics: map[string]float64{"rows": 1200},
				Outputs: []domain.IOChannel{{Name: "train", URI: "s3://data/out/train"}},
			},
		},
	}

	snap, err := New(pipelines, &providertest.ObjectFake{}, 2).
		WithClock(func() time.Time { return t0.Add(400 * time.Second) }).
		Enrich(context.Background(), "churn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ExecutionARN != "exec-2" {
		t.Fatalf("expected most recent execution, got %q", snap.ExecutionARN)
	}

	pre := snap.Steps["Preprocess"]
	if pre == nil || pre.ElapsedSec == nil || *pre.ElapsedSec != 245 {
		t.Fatalf("unexpected preprocess run: %+v", pre)
	}
	if pre.JobName != "preprocess-job" || pre.Metrics["rows"] != 1200 {
		t.Fatalf("expected job detail merged, got %+v", pre)
	}
	if io := snap.IO["Preprocess"]; len(io.Outputs) != 1 || io.Outputs[0].URI != "s3://data/out/train" {
		t.Fatalf("expected refreshed IO, got %+v", io)
	}

	// still running: elapsed measured against the injected clock
	train := snap.Steps["Train"]
	if train == nil || train.ElapsedSec == nil || *train.ElapsedSec != 100 {
		t.Fatalf("unexpected train run: %+v", train)
	}

	if reg := snap.Steps["Register"]; reg == nil || reg.Registry == nil || reg.Registry.ModelPackageARN != "pkg-1" {
		t.Fatalf("expected registry ref, got %+v", snap.Steps["Register"])
	}
}

func TestEnrichJobFailureDegradesToStatusOnly(t *testing.T) {
	pipelines := &providertest.PipelineFake{
		Executions: map[string][]provider.ExecutionSummary{
			"churn": {{ARN: "exec-1", StartTime: t0}},
		},
		Steps: map[string][]provider.StepRunRecord{
			"exec-1": {
				{StepID: "Preprocess", Status: domain.StatusSucceeded, StartTime: t0, EndTime: t0.Add(time.Minute), JobARN: "job-a"},
				{StepID: "Train", Status: domain.StatusSucceeded, StartTime: t0, EndTime: t0.Add(time.Minute), JobARN: "job-b"},
			},
		},
		Jobs: map[string]provider.JobDetail{
			"job-b": {ARN: "job-b", Name: "train-job"},
		},
		Errs: map[string]error{
			"DescribeJob/job-a": fmt.Errorf("throttled: %w", provider.ErrTransient),
		},
	}

	snap, err := New(pipelines, &providertest.ObjectFake{}, 2).Enrich(context.Background(), "churn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pre := snap.Steps["Preprocess"]
	if pre == nil || pre.Status != domain.StatusSucceeded || pre.JobName != "" {
		t.Fatalf("expected status-only degradation, got %+v", pre)
	}
	if snap.Steps["Train"].JobName != "train-job" {
		t.Fatalf("expected unaffected sibling lookup")
	}
	if len(snap.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", snap.Warnings)
	}
}

func TestEvalReportMetricsPriorityOrder(t *testing.T) {
	objects := &providertest.ObjectFake{
		Objects: map[string][]byte{
			"data/eval/evaluation.json": []byte(`{"metrics":{"auc":0.91}}`),
			"data/eval/metrics.json":    []byte(`{"accuracy":0.88}`),
		},
	}
	e := New(&providertest.PipelineFake{}, objects, 2)

	metrics, report := e.EvalReportMetrics(context.Background(), []domain.IOChannel{
		{Name: "report", URI: "s3://data/eval"},
	})
	if metrics["eval.auc"] != 0.91 {
		t.Fatalf("unexpected metrics %v", metrics)
	}
	if report != "s3://data/eval/evaluation.json" {
		t.Fatalf("unexpected report object %q", report)
	}
}

func TestEvalReportMetricsMalformedSwallowed(t *testing.T) {
	objects := &providertest.ObjectFake{
		Objects: map[string][]byte{
			"data/eval/report.json": []byte("not json"),
		},
	}
	e := New(&providertest.PipelineFake{}, objects, 2)

	metrics, report := e.EvalReportMetrics(context.Background(), []domain.IOChannel{
		{Name: "report", URI: "s3://data/eval"},
	})
	if metrics != nil || report != "" {
		t.Fatalf("expected nothing, got %v %q", metrics, report)
	}
}
