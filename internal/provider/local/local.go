// Package local implements the pipeline capability from YAML fixture
// files, one file per pipeline. It backs the dev mode of the harvester
// so graphs can be built without a control-plane connection.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

type channelDoc struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
	Ref  string `yaml:"ref"`
}

type stepDoc struct {
	ID            string       `yaml:"id"`
	Type          string       `yaml:"type"`
	DependsOn     []string     `yaml:"dependsOn"`
	ParameterRefs []string     `yaml:"parameterRefs"`
	Inputs        []channelDoc `yaml:"inputs"`
	Outputs       []channelDoc `yaml:"outputs"`
	SQL           string       `yaml:"sql"`
}

type stepRunDoc struct {
	StepID          string    `yaml:"stepId"`
	Status          string    `yaml:"status"`
	StartTime       time.Time `yaml:"startTime"`
	EndTime         time.Time `yaml:"endTime"`
	FailureReason   string    `yaml:"failureReason"`
	JobARN          string    `yaml:"jobArn"`
	ModelPackageARN string    `yaml:"modelPackageArn"`
}

type executionDoc struct {
	ARN       string       `yaml:"arn"`
	Status    string       `yaml:"status"`
	StartTime time.Time    `yaml:"startTime"`
	Steps     []stepRunDoc `yaml:"steps"`
}

type jobDoc struct {
	Name    string             `yaml:"name"`
	Status  string             `yaml:"status"`
	Metrics map[string]float64 `yaml:"metrics"`
	Inputs  []channelDoc       `yaml:"inputs"`
	Outputs []channelDoc       `yaml:"outputs"`
}

type pipelineDoc struct {
	Name         string            `yaml:"name"`
	ARN          string            `yaml:"arn"`
	Region       string            `yaml:"region"`
	LastModified time.Time         `yaml:"lastModified"`
	Tags         map[string]string `yaml:"tags"`
	Steps        []stepDoc         `yaml:"steps"`
	Executions   []executionDoc    `yaml:"executions"`
	Jobs         map[string]jobDoc `yaml:"jobs"`
}

// Store implements provider.PipelineAPI from fixtures loaded once at
// construction.
type Store struct {
	pipelines  map[string]pipelineDoc
	byARN      map[string]string
	executions map[string][]executionDoc
}

// New loads every *.yaml and *.yml file under dir. File name order is
// irrelevant; each file declares its pipeline name.
func New(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	s := &Store{
		pipelines:  make(map[string]pipelineDoc),
		byARN:      make(map[string]string),
		executions: make(map[string][]executionDoc),
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", entry.Name(), err)
		}
		var doc pipelineDoc
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", entry.Name(), err)
		}
		if doc.Name == "" {
			doc.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if doc.ARN == "" {
			doc.ARN = "arn:local:pipeline/" + doc.Name
		}
		s.pipelines[doc.Name] = doc
		s.byARN[doc.ARN] = doc.Name

		execs := append([]executionDoc(nil), doc.Executions...)
		sort.SliceStable(execs, func(i, j int) bool {
			return execs[i].StartTime.After(execs[j].StartTime)
		})
		s.executions[doc.Name] = execs
	}
	return s, nil
}

func (s *Store) GetPipelineDefinition(_ context.Context, name string) (domain.PipelineDefinition, error) {
	doc, ok := s.pipelines[name]
	if !ok {
		return domain.PipelineDefinition{}, fmt.Errorf("pipeline %q: %w", name, provider.ErrNotFound)
	}
	def := domain.PipelineDefinition{
		Name:         doc.Name,
		ARN:          doc.ARN,
		Region:       doc.Region,
		Tags:         doc.Tags,
		LastModified: doc.LastModified,
	}
	for _, step := range doc.Steps {
		def.Steps = append(def.Steps, domain.StepSpec{
			ID:            step.ID,
			Type:          step.Type,
			DependsOn:     step.DependsOn,
			ParameterRefs: step.ParameterRefs,
			Inputs:        channels(step.Inputs),
			Outputs:       channels(step.Outputs),
			SQL:           step.SQL,
		})
	}
	return def, nil
}

func (s *Store) ListPipelines(_ context.Context) ([]provider.PipelineSummary, error) {
	names := make([]string, 0, len(s.pipelines))
	for name := range s.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]provider.PipelineSummary, 0, len(names))
	for _, name := range names {
		doc := s.pipelines[name]
		out = append(out, provider.PipelineSummary{
			Name:         doc.Name,
			ARN:          doc.ARN,
			LastModified: doc.LastModified,
		})
	}
	return out, nil
}

func (s *Store) ListExecutions(_ context.Context, pipelineName string) ([]provider.ExecutionSummary, error) {
	if _, ok := s.pipelines[pipelineName]; !ok {
		return nil, fmt.Errorf("pipeline %q: %w", pipelineName, provider.ErrNotFound)
	}
	execs := s.executions[pipelineName]
	out := make([]provider.ExecutionSummary, 0, len(execs))
	for _, e := range execs {
		out = append(out, provider.ExecutionSummary{
			ARN:       e.ARN,
			Status:    domain.NormalizeStatus(e.Status),
			StartTime: e.StartTime,
		})
	}
	return out, nil
}

func (s *Store) ListExecutionSteps(_ context.Context, executionARN string) ([]provider.StepRunRecord, error) {
	for _, execs := range s.executions {
		for _, e := range execs {
			if e.ARN != executionARN {
				continue
			}
			out := make([]provider.StepRunRecord, 0, len(e.Steps))
			for _, rec := range e.Steps {
				out = append(out, provider.StepRunRecord{
					StepID:          rec.StepID,
					Status:          domain.NormalizeStatus(rec.Status),
					StartTime:       rec.StartTime,
					EndTime:         rec.EndTime,
					FailureReason:   rec.FailureReason,
					JobARN:          rec.JobARN,
					ModelPackageARN: rec.ModelPackageARN,
				})
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("execution %q: %w", executionARN, provider.ErrNotFound)
}

func (s *Store) DescribeJob(_ context.Context, jobARN string) (provider.JobDetail, error) {
	for _, doc := range s.pipelines {
		job, ok := doc.Jobs[jobARN]
		if !ok {
			continue
		}
		return provider.JobDetail{
			ARN:     jobARN,
			Name:    job.Name,
			Status:  domain.NormalizeStatus(job.Status),
			Metrics: job.Metrics,
			Inputs:  channels(job.Inputs),
			Outputs: channels(job.Outputs),
		}, nil
	}
	return provider.JobDetail{}, fmt.Errorf("job %q: %w", jobARN, provider.ErrNotFound)
}

func (s *Store) ListTags(_ context.Context, resourceARN string) (map[string]string, error) {
	name, ok := s.byARN[resourceARN]
	if !ok {
		return nil, fmt.Errorf("resource %q: %w", resourceARN, provider.ErrNotFound)
	}
	return s.pipelines[name].Tags, nil
}

func channels(docs []channelDoc) []domain.IOChannel {
	if len(docs) == 0 {
		return nil
	}
	out := make([]domain.IOChannel, 0, len(docs))
	for _, c := range docs {
		out = append(out, domain.IOChannel{Name: c.Name, URI: c.URI, Ref: c.Ref})
	}
	return out
}
