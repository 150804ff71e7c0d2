package provider

import (
	"context"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
)

// PipelineSummary is one entry of a region's pipeline inventory.
type PipelineSummary struct {
	Name         string
	ARN          string
	LastModified time.Time
}

// ExecutionSummary identifies one concrete run of a pipeline.
type ExecutionSummary struct {
	ARN       string
	Status    domain.Status
	StartTime time.Time
}

// StepRunRecord is the per-step telemetry of one execution.
type StepRunRecord struct {
	StepID          string
	Status          domain.Status
	StartTime       time.Time
	EndTime         time.Time
	FailureReason   string
	JobARN          string
	ModelPackageARN string
}

// JobDetail is the secondary lookup result for a job-backed step.
type JobDetail struct {
	ARN     string
	Name    string
	Status  domain.Status
	Metrics map[string]float64
	Inputs  []domain.IOChannel
	Outputs []domain.IOChannel
}

// PipelineAPI is the read-only pipeline capability the engine consumes.
// Implementations return ErrNotFound, ErrDenied or ErrTransient wrapped
// with call context.
type PipelineAPI interface {
	GetPipelineDefinition(ctx context.Context, name string) (domain.PipelineDefinition, error)
	ListPipelines(ctx context.Context) ([]PipelineSummary, error)
	// ListExecutions returns executions ordered most recent first.
	ListExecutions(ctx context.Context, pipelineName string) ([]ExecutionSummary, error)
	ListExecutionSteps(ctx context.Context, executionARN string) ([]StepRunRecord, error)
	DescribeJob(ctx context.Context, jobARN string) (JobDetail, error)
	ListTags(ctx context.Context, resourceARN string) (map[string]string, error)
}

// ObjectInfo is one listed object under a prefix.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectAPI is the read-only object-store capability: object reads for
// reports and schema samples plus per-bucket security metadata lookups.
type ObjectAPI interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	// GetObjectHead reads at most maxBytes from the start of the object.
	GetObjectHead(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
	ListObjects(ctx context.Context, bucket, prefix string, max int) ([]ObjectInfo, error)
	BucketLocation(ctx context.Context, bucket string) (string, error)
	BucketEncryption(ctx context.Context, bucket string) (string, error)
	BucketVersioning(ctx context.Context, bucket string) (string, error)
	BucketPublicAccess(ctx context.Context, bucket string) (string, error)
	BucketTags(ctx context.Context, bucket string) (map[string]string, error)
}
