package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider/providertest"
)

func TestDataViewBipartiteProjection(t *testing.T) {
	pipelines := &providertest.PipelineFake{
		Definitions: map[string]domain.PipelineDefinition{"churn": churnDefinition()},
	}
	b := newTestBuilder(pipelines, &providertest.ObjectFake{})

	g, err := b.Build(context.Background(), "churn", Options{View: ViewData})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.DataView == nil {
		t.Fatalf("expected data view attached")
	}

	var data, process int
	for _, n := range g.DataView.Nodes {
		switch n.Type {
		case "data":
			data++
			if !strings.HasPrefix(n.ID, "data:") || n.URI == "" {
				t.Fatalf("malformed data node %+v", n)
			}
		case "process":
			process++
			if !strings.HasPrefix(n.ID, "process:") || n.StepID == "" {
				t.Fatalf("malformed process node %+v", n)
			}
		default:
			t.Fatalf("unexpected node type %q", n.Type)
		}
	}
	if data != 5 || process != 3 {
		t.Fatalf("expected 5 data and 3 process nodes, got %d and %d", data, process)
	}

	for _, e := range g.DataView.Edges {
		switch e.Kind {
		case "read":
			if !strings.HasPrefix(e.Source, "data:") || !strings.HasPrefix(e.Target, "process:") {
				t.Fatalf("read edge must flow data to process: %+v", e)
			}
		case "write":
			if !strings.HasPrefix(e.Source, "process:") || !strings.HasPrefix(e.Target, "data:") {
				t.Fatalf("write edge must flow process to data: %+v", e)
			}
		default:
			t.Fatalf("unexpected edge kind %q", e.Kind)
		}
	}
}

func TestDataViewCollapsesEquivalentURIs(t *testing.T) {
	def := domain.PipelineDefinition{
		Name: "dedup",
		Steps: []domain.StepSpec{
			{
				ID:      "A",
				Type:    "Processing",
				Outputs: []domain.IOChannel{{Name: "out", URI: "s3://data/Out/Train/"}},
			},
			{
				ID:     "B",
				Type:   "Training",
				Inputs: []domain.IOChannel{{Name: "training", URI: "s3://data/out/train"}},
			},
		},
	}
	pipelines := &providertest.PipelineFake{
		Definitions: map[string]domain.PipelineDefinition{"dedup": def},
	}
	b := newTestBuilder(pipelines, &providertest.ObjectFake{})

	g, err := b.Build(context.Background(), "dedup", Options{View: ViewData})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var data int
	for _, n := range g.DataView.Nodes {
		if n.Type == "data" {
			data++
		}
	}
	if data != 1 {
		t.Fatalf("expected case and slash variants to collapse, got %d data nodes", data)
	}
	if len(g.DataView.Edges) != 2 {
		t.Fatalf("expected a write and a read edge, got %+v", g.DataView.Edges)
	}
}

func TestDataViewCarriesRunAndMeta(t *testing.T) {
	pipelines := &providertest.PipelineFake{
		Definitions: map[string]domain.PipelineDefinition{"churn": churnDefinition()},
	}
	objects := &providertest.ObjectFake{
		Locations: map[string]string{"data": "eu-west-1"},
	}
	b := newTestBuilder(pipelines, objects)

	g, err := b.Build(context.Background(), "churn", Options{View: ViewBoth})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, n := range g.DataView.Nodes {
		if n.Type == "data" && strings.HasPrefix(n.URI, "s3://data/") {
			if n.Meta == nil || n.Meta.Region != "eu-west-1" {
				t.Fatalf("expected bucket metadata on data node, got %+v", n.Meta)
			}
		}
	}
}
