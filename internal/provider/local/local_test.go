package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

const churnFixture = `name: churn
arn: arn:local:pipeline/churn
tags:
  DomainName: growth
steps:
  - id: Preprocess
    type: Processing
    outputs:
      - name: train
        uri: s3://data/out/train
  - id: Train
    type: Training
    dependsOn: [Preprocess]
    inputs:
      - name: training
        uri: s3://data/out/train
executions:
  - arn: exec-old
    status: Succeeded
    startTime: 2025-03-01T10:00:00Z
  - arn: exec-new
    status: Executing
    startTime: 2025-03-01T12:00:00Z
    steps:
      - stepId: Preprocess
        status: Succeeded
        startTime: 2025-03-01T12:00:00Z
        endTime: 2025-03-01T12:04:00Z
        jobArn: job-pre
jobs:
  job-pre:
    name: preprocess-job
    status: Completed
    metrics:
      rows: 1200
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "churn.yaml"), []byte(churnFixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	store, err := New(dir)
	if err != nil {
		t.Fatalf("load fixtures: %v", err)
	}
	return store
}

func TestDefinitionFromFixture(t *testing.T) {
	store := newTestStore(t)
	def, err := store.GetPipelineDefinition(context.Background(), "churn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.ARN != "arn:local:pipeline/churn" || def.Tags["DomainName"] != "growth" {
		t.Fatalf("unexpected definition %+v", def)
	}
	if len(def.Steps) != 2 || def.Steps[1].DependsOn[0] != "Preprocess" {
		t.Fatalf("unexpected steps %+v", def.Steps)
	}

	if _, err := store.GetPipelineDefinition(context.Background(), "absent"); !provider.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestExecutionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	execs, err := store.ListExecutions(context.Background(), "churn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(execs) != 2 || execs[0].ARN != "exec-new" {
		t.Fatalf("expected newest first, got %+v", execs)
	}
	if execs[0].Status != domain.StatusExecuting {
		t.Fatalf("unexpected status %s", execs[0].Status)
	}
}

func TestStepRecordsAndJobs(t *testing.T) {
	store := newTestStore(t)
	records, err := store.ListExecutionSteps(context.Background(), "exec-new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].JobARN != "job-pre" {
		t.Fatalf("unexpected records %+v", records)
	}

	job, err := store.DescribeJob(context.Background(), "job-pre")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Name != "preprocess-job" || job.Metrics["rows"] != 1200 {
		t.Fatalf("unexpected job %+v", job)
	}
	// free-form upstream statuses normalize to the known set
	if job.Status != domain.StatusUnknown {
		t.Fatalf("expected normalized status, got %s", job.Status)
	}

	if _, err := store.DescribeJob(context.Background(), "job-absent"); !provider.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListTagsByARN(t *testing.T) {
	store := newTestStore(t)
	tags, err := store.ListTags(context.Background(), "arn:local:pipeline/churn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tags["DomainName"] != "growth" {
		t.Fatalf("unexpected tags %v", tags)
	}
}
