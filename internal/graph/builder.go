// Package graph builds the lineage graph for one pipeline: the
// step-dependency DAG from the static definition, merged with runtime
// state from the most recent execution, SQL-derived table
// relationships, and per-bucket artifact security metadata.
//
// Construction is deterministic: nodes follow definition order,
// artifacts get dense ids in first-seen order, and every concurrent
// merge is keyed by a stable id rather than completion order.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tracelight-labs/tracelight-go/internal/bucketmeta"
	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/enrich"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/sqllineage"
)

type View string

const (
	ViewDefinition View = "definition"
	ViewData       View = "data"
	ViewBoth       View = "both"
)

// NormalizeView maps a request parameter onto a known view, defaulting
// to both.
func NormalizeView(raw string) View {
	switch View(raw) {
	case ViewDefinition, ViewData, ViewBoth:
		return View(raw)
	default:
		return ViewBoth
	}
}

type Options struct {
	IncludeLatestExecution bool
	DomainFilter           string
	View                   View
}

type Builder struct {
	pipelines   provider.PipelineAPI
	objects     provider.ObjectAPI
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

func New(pipelines provider.PipelineAPI, objects provider.ObjectAPI, logger *slog.Logger, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		pipelines:   pipelines,
		objects:     objects,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build constructs the lineage graph for pipelineName. A missing
// pipeline or a domain-filter mismatch is terminal; every enrichment
// failure degrades to a warning on a best-effort graph.
func (b *Builder) Build(ctx context.Context, pipelineName string, opts Options) (*domain.LineageGraph, error) {
	def, err := b.pipelines.GetPipelineDefinition(ctx, pipelineName)
	if err != nil {
		return nil, fmt.Errorf("get pipeline definition: %w", err)
	}

	matchedDomain, err := b.checkDomainFilter(ctx, def, opts.DomainFilter)
	if err != nil {
		return nil, err
	}

	g := &domain.LineageGraph{
		Pipeline: domain.PipelineInfo{
			Name:         def.Name,
			ARN:          def.ARN,
			LastModified: def.LastModified,
		},
		Domain: matchedDomain,
	}

	sqlByStep := make(map[string]string)
	for _, step := range def.Steps {
		g.Nodes = append(g.Nodes, &domain.Node{
			ID:      step.ID,
			Type:    step.Type,
			Label:   step.ID,
			Inputs:  append([]domain.IOChannel(nil), step.Inputs...),
			Outputs: append([]domain.IOChannel(nil), step.Outputs...),
		})
		if strings.TrimSpace(step.SQL) != "" {
			sqlByStep[step.ID] = step.SQL
		}
	}

	b.buildEdges(g, def)

	enricher := enrich.New(b.pipelines, b.objects, b.concurrency).WithClock(b.now)
	if opts.IncludeLatestExecution {
		b.mergeLatestExecution(ctx, g, enricher, def.Name)
	}

	for _, node := range g.Nodes {
		if sql, ok := sqlByStep[node.ID]; ok {
			info := sqllineage.Extract(sql)
			node.SQL = &info
		}
	}

	b.mergeEvalMetrics(ctx, g, enricher)

	b.indexArtifacts(g)
	b.attachBucketMetadata(ctx, g)

	g.Summary = computeSummary(g.Nodes)

	if opts.View == ViewData || opts.View == ViewBoth {
		g.DataView = buildDataView(g)
	}
	return g, nil
}

// checkDomainFilter resolves the pipeline's domain tag. A filter that
// does not match yields NotFound with its own message; the pipeline
// exists but is outside the requested domain.
func (b *Builder) checkDomainFilter(ctx context.Context, def domain.PipelineDefinition, filter string) (string, error) {
	tags := def.Tags
	if len(tags) == 0 && def.ARN != "" {
		fetched, err := b.pipelines.ListTags(ctx, def.ARN)
		if err == nil {
			tags = fetched
		}
	}
	matched := tags["DomainName"]
	if filter == "" {
		return matched, nil
	}
	if matched != filter && tags["DomainId"] != filter {
		return "", fmt.Errorf("pipeline %q is not tagged for domain %q: %w", def.Name, filter, provider.ErrNotFound)
	}
	return filter, nil
}

// buildEdges emits dependsOn edges for declared prerequisites and ref
// edges for parameter references. Duplicate (from, to, via) triples are
// suppressed; a dependsOn and a ref edge between the same pair both
// survive because they carry different relations.
func (b *Builder) buildEdges(g *domain.LineageGraph, def domain.PipelineDefinition) {
	known := def.StepIDSet()
	seen := make(map[domain.Edge]struct{})

	add := func(from, to string, via domain.EdgeVia) {
		if _, ok := known[from]; !ok {
			g.Warnings = append(g.Warnings, fmt.Sprintf("edge dropped: unknown step %q referenced by %q", from, to))
			return
		}
		edge := domain.Edge{From: from, To: to, Via: via}
		if _, dup := seen[edge]; dup {
			return
		}
		seen[edge] = struct{}{}
		g.Edges = append(g.Edges, edge)
	}

	for _, step := range def.Steps {
		for _, dep := range step.DependsOn {
			add(dep, step.ID, domain.EdgeDependsOn)
		}
		for _, ref := range step.RefTargets() {
			add(ref, step.ID, domain.EdgeRef)
		}
	}

	labelEdges(g)
}

// labelEdges annotates each edge with the destination step's meaningful
// input names, skipping code channels and anonymous slots.
func labelEdges(g *domain.LineageGraph) {
	names := make(map[string][]string, len(g.Nodes))
	for _, node := range g.Nodes {
		var keep []string
		seen := make(map[string]struct{})
		for _, in := range node.Inputs {
			name := in.Name
			if name == "" || name == "code" || strings.HasPrefix(name, "input-") {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			keep = append(keep, name)
		}
		if len(keep) > 0 {
			names[node.ID] = keep
		}
	}

	for i := range g.Edges {
		labels := names[g.Edges[i].To]
		if len(labels) == 0 {
			continue
		}
		if len(labels) > 2 {
			labels = labels[:2]
		}
		g.Edges[i].Label = strings.Join(labels, ", ")
	}
}

// mergeLatestExecution joins runtime state onto nodes by step id. The
// definition stays authoritative for structure; the execution is
// authoritative for runtime fields. A step missing from the execution
// keeps a nil run, since the pipeline version may have moved on.
func (b *Builder) mergeLatestExecution(ctx context.Context, g *domain.LineageGraph, enricher *enrich.Enricher, pipelineName string) {
	snap, err := enricher.Enrich(ctx, pipelineName)
	if err != nil {
		b.logger.Warn("execution enrichment skipped", "pipeline", pipelineName, "error", err)
		g.Warnings = append(g.Warnings, fmt.Sprintf("execution enrichment skipped: %v", err))
		return
	}
	g.Warnings = append(g.Warnings, snap.Warnings...)

	for _, node := range g.Nodes {
		if run, ok := snap.Steps[node.ID]; ok {
			node.Run = run
		}
		if io, ok := snap.IO[node.ID]; ok {
			if len(io.Inputs) > 0 {
				node.Inputs = io.Inputs
			}
			if len(io.Outputs) > 0 {
				node.Outputs = io.Outputs
			}
		}
	}
}

// mergeEvalMetrics reads well-known report objects for evaluation steps.
func (b *Builder) mergeEvalMetrics(ctx context.Context, g *domain.LineageGraph, enricher *enrich.Enricher) {
	for _, node := range g.Nodes {
		if !isEvalStep(node) || len(node.Outputs) == 0 {
			continue
		}
		metrics, report := enricher.EvalReportMetrics(ctx, node.Outputs)
		if len(metrics) == 0 {
			continue
		}
		if node.Run == nil {
			node.Run = &domain.RunInfo{Status: domain.StatusUnknown}
		}
		if node.Run.Metrics == nil {
			node.Run.Metrics = make(map[string]float64, len(metrics))
		}
		for k, v := range metrics {
			node.Run.Metrics[k] = v
		}
		node.Run.ReportObject = report
	}
}

func isEvalStep(node *domain.Node) bool {
	id := strings.ToLower(node.ID)
	typ := strings.ToLower(node.Type)
	return strings.Contains(id, "evaluat") || strings.Contains(typ, "evaluat")
}

// indexArtifacts rebuilds the deduplicated artifact list from node IO,
// assigning dense ids in first-seen order.
func (b *Builder) indexArtifacts(g *domain.LineageGraph) {
	index := make(map[string]int)
	g.Artifacts = nil

	add := func(uri string) {
		if uri == "" {
			return
		}
		if _, ok := index[uri]; ok {
			return
		}
		bucket, key, _ := domain.SplitObjectURI(uri)
		ref := &domain.ArtifactRef{
			ID:     len(g.Artifacts),
			URI:    uri,
			Bucket: bucket,
			Key:    key,
		}
		index[uri] = ref.ID
		g.Artifacts = append(g.Artifacts, ref)
	}

	for _, node := range g.Nodes {
		for _, in := range node.Inputs {
			add(in.URI)
		}
		for _, out := range node.Outputs {
			add(out.URI)
		}
	}
}

// attachBucketMetadata fans out one metadata lookup per unique bucket
// and attaches the result to every artifact sharing the bucket. Results
// merge keyed by bucket name, so completion order is irrelevant.
func (b *Builder) attachBucketMetadata(ctx context.Context, g *domain.LineageGraph) {
	var buckets []string
	seen := make(map[string]struct{})
	for _, a := range g.Artifacts {
		if a.Bucket == "" {
			continue
		}
		if _, ok := seen[a.Bucket]; ok {
			continue
		}
		seen[a.Bucket] = struct{}{}
		buckets = append(buckets, a.Bucket)
	}
	if len(buckets) == 0 {
		return
	}

	collector := bucketmeta.New(b.objects)
	results := make([]domain.ArtifactSecurity, len(buckets))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.concurrency)
	for i, bucket := range buckets {
		grp.Go(func() error {
			results[i] = collector.Describe(gctx, bucket)
			return nil
		})
	}
	_ = grp.Wait()

	byBucket := make(map[string]domain.ArtifactSecurity, len(buckets))
	for i, bucket := range buckets {
		byBucket[bucket] = results[i]
	}
	for _, a := range g.Artifacts {
		if meta, ok := byBucket[a.Bucket]; ok {
			sec := meta
			a.Security = &sec
		}
	}
}
