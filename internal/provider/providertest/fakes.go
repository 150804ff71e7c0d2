// Package providertest holds in-memory capability fakes shared by
// engine tests.
package providertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

// PipelineFake implements provider.PipelineAPI from plain maps. Zero
// value is usable; unset lookups return ErrNotFound.
type PipelineFake struct {
	Definitions map[string]domain.PipelineDefinition
	Executions  map[string][]provider.ExecutionSummary
	Steps       map[string][]provider.StepRunRecord
	Jobs        map[string]provider.JobDetail
	Tags        map[string]map[string]string

	// Errs forces an error for a call key like "DescribeJob/arn".
	Errs map[string]error

	mu    sync.Mutex
	Calls []string
}

func (f *PipelineFake) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, key)
	if f.Errs != nil {
		if err, ok := f.Errs[key]; ok {
			return err
		}
	}
	return nil
}

func (f *PipelineFake) GetPipelineDefinition(_ context.Context, name string) (domain.PipelineDefinition, error) {
	if err := f.record("GetPipelineDefinition/" + name); err != nil {
		return domain.PipelineDefinition{}, err
	}
	def, ok := f.Definitions[name]
	if !ok {
		return domain.PipelineDefinition{}, fmt.Errorf("pipeline %q: %w", name, provider.ErrNotFound)
	}
	return def, nil
}

func (f *PipelineFake) ListPipelines(_ context.Context) ([]provider.PipelineSummary, error) {
	if err := f.record("ListPipelines"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Definitions))
	for name := range f.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]provider.PipelineSummary, 0, len(names))
	for _, name := range names {
		def := f.Definitions[name]
		out = append(out, provider.PipelineSummary{Name: name, ARN: def.ARN, LastModified: def.LastModified})
	}
	return out, nil
}

func (f *PipelineFake) ListExecutions(_ context.Context, pipelineName string) ([]provider.ExecutionSummary, error) {
	if err := f.record("ListExecutions/" + pipelineName); err != nil {
		return nil, err
	}
	return f.Executions[pipelineName], nil
}

func (f *PipelineFake) ListExecutionSteps(_ context.Context, executionARN string) ([]provider.StepRunRecord, error) {
	if err := f.record("ListExecutionSteps/" + executionARN); err != nil {
		return nil, err
	}
	return f.Steps[executionARN], nil
}

func (f *PipelineFake) DescribeJob(_ context.Context, jobARN string) (provider.JobDetail, error) {
	if err := f.record("DescribeJob/" + jobARN); err != nil {
		return provider.JobDetail{}, err
	}
	job, ok := f.Jobs[jobARN]
	if !ok {
		return provider.JobDetail{}, fmt.Errorf("job %q: %w", jobARN, provider.ErrNotFound)
	}
	return job, nil
}

func (f *PipelineFake) ListTags(_ context.Context, resourceARN string) (map[string]string, error) {
	if err := f.record("ListTags/" + resourceARN); err != nil {
		return nil, err
	}
	return f.Tags[resourceARN], nil
}

// ObjectFake implements provider.ObjectAPI from plain maps keyed
// "bucket/key". Bucket metadata defaults to ErrNotFound per field.
type ObjectFake struct {
	Objects      map[string][]byte
	Locations    map[string]string
	Encryption   map[string]string
	Versioning   map[string]string
	PublicAccess map[string]string
	Tags         map[string]map[string]string

	// Errs forces an error for a call key like "BucketTags/bucket".
	Errs map[string]error

	mu    sync.Mutex
	Calls []string
}

func (f *ObjectFake) record(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, key)
	if f.Errs != nil {
		if err, ok := f.Errs[key]; ok {
			return err
		}
	}
	return nil
}

// CallCount counts recorded calls with the given prefix.
func (f *ObjectFake) CallCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *ObjectFake) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	if err := f.record("GetObject/" + bucket + "/" + key); err != nil {
		return nil, err
	}
	body, ok := f.Objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, provider.ErrNotFound)
	}
	return body, nil
}

func (f *ObjectFake) GetObjectHead(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	body, err := f.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		body = body[:maxBytes]
	}
	return body, nil
}

func (f *ObjectFake) ListObjects(_ context.Context, bucket, prefix string, max int) ([]provider.ObjectInfo, error) {
	if err := f.record("ListObjects/" + bucket + "/" + prefix); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(f.Objects))
	for full := range f.Objects {
		b, key, ok := strings.Cut(full, "/")
		if !ok || b != bucket {
			continue
		}
		if strings.HasPrefix(key, prefix) && !strings.HasSuffix(key, "/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]provider.ObjectInfo, 0, len(keys))
	for _, key := range keys {
		if max > 0 && len(out) >= max {
			break
		}
		out = append(out, provider.ObjectInfo{Key: key, Size: int64(len(f.Objects[bucket+"/"+key]))})
	}
	return out, nil
}

func (f *ObjectFake) bucketField(call, bucket string, values map[string]string) (string, error) {
	if err := f.record(call + "/" + bucket); err != nil {
		return "", err
	}
	v, ok := values[bucket]
	if !ok {
		return "", fmt.Errorf("%s %q: %w", call, bucket, provider.ErrNotFound)
	}
	return v, nil
}

func (f *ObjectFake) BucketLocation(_ context.Context, bucket string) (string, error) {
	return f.bucketField("BucketLocation", bucket, f.Locations)
}

func (f *ObjectFake) BucketEncryption(_ context.Context, bucket string) (string, error) {
	return f.bucketField("BucketEncryption", bucket, f.Encryption)
}

func (f *ObjectFake) BucketVersioning(_ context.Context, bucket string) (string, error) {
	return f.bucketField("BucketVersioning", bucket, f.Versioning)
}

func (f *ObjectFake) BucketPublicAccess(_ context.Context, bucket string) (string, error) {
	return f.bucketField("BucketPublicAccess", bucket, f.PublicAccess)
}

func (f *ObjectFake) BucketTags(_ context.Context, bucket string) (map[string]string, error) {
	if err := f.record("BucketTags/" + bucket); err != nil {
		return nil, err
	}
	tags, ok := f.Tags[bucket]
	if !ok {
		return nil, fmt.Errorf("bucket tags %q: %w", bucket, provider.ErrNotFound)
	}
	return tags, nil
}
