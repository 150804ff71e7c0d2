package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

// CatalogEntry is one pipeline in the account-wide listing, annotated
// with the domain its tags claim.
type CatalogEntry struct {
	Name         string            `json:"name"`
	ARN          string            `json:"arn,omitempty"`
	LastModified time.Time         `json:"lastModifiedTime,omitzero"`
	Tags         map[string]string `json:"tags,omitempty"`
	Domain       string            `json:"domain,omitempty"`
}

// Catalog lists every visible pipeline with its tags. Tag lookups are
// best-effort; a pipeline whose tags cannot be read is listed untagged.
func (b *Builder) Catalog(ctx context.Context) ([]CatalogEntry, error) {
	summaries, err := b.pipelines.ListPipelines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(summaries))
	for _, s := range summaries {
		entry := CatalogEntry{Name: s.Name, ARN: s.ARN, LastModified: s.LastModified}
		if s.ARN != "" {
			tags, err := b.pipelines.ListTags(ctx, s.ARN)
			if err != nil {
				b.logger.Warn("pipeline tags unavailable", "pipeline", s.Name, "error", err)
			} else {
				entry.Tags = tags
				entry.Domain = tags["DomainName"]
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DomainResult is one per-pipeline outcome of a by-domain batch build.
// A pipeline that fails to build records the error and leaves the batch
// intact.
type DomainResult struct {
	Pipeline string               `json:"pipeline"`
	Graph    *domain.LineageGraph `json:"graph,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// BuildByDomain builds the lineage graph of every pipeline tagged with
// the given domain. No matching pipeline at all is NotFound.
func (b *Builder) BuildByDomain(ctx context.Context, domainName string, opts Options) ([]DomainResult, error) {
	entries, err := b.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	var matched []CatalogEntry
	for _, entry := range entries {
		if entry.Tags["DomainName"] == domainName || entry.Tags["DomainId"] == domainName {
			matched = append(matched, entry)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no pipelines tagged for domain %q: %w", domainName, provider.ErrNotFound)
	}

	opts.DomainFilter = domainName
	results := make([]DomainResult, 0, len(matched))
	for _, entry := range matched {
		g, err := b.Build(ctx, entry.Name, opts)
		if err != nil {
			b.logger.Warn("domain build failed", "pipeline", entry.Name, "domain", domainName, "error", err)
			results = append(results, DomainResult{Pipeline: entry.Name, Error: err.Error()})
			continue
		}
		results = append(results, DomainResult{Pipeline: entry.Name, Graph: g})
	}
	return results, nil
}
