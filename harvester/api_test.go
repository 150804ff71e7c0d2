package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/graph"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/provider/providertest"
	"github.com/tracelight-labs/tracelight-go/internal/schema"
)

type fakeStore struct {
	saved    []domain.SchemaSnapshot
	versions map[string][]domain.SchemaSnapshot
}

func (f *fakeStore) Save(_ context.Context, snap domain.SchemaSnapshot) (domain.SchemaSnapshot, bool, error) {
	snap.Version = int64(len(f.saved) + 1)
	f.saved = append(f.saved, snap)
	return snap, true, nil
}

func (f *fakeStore) Latest(_ context.Context, datasetID string) (domain.SchemaSnapshot, error) {
	versions := f.versions[datasetID]
	if len(versions) == 0 {
		return domain.SchemaSnapshot{}, fmt.Errorf("dataset %q: %w", datasetID, provider.ErrNotFound)
	}
	return versions[0], nil
}

func (f *fakeStore) ListVersions(_ context.Context, datasetID string) ([]domain.SchemaSnapshot, error) {
	return f.versions[datasetID], nil
}

func newTestServer(t *testing.T, store *fakeStore) *httptest.Server {
	t.Helper()
	pipelines := &providertest.PipelineFake{
		Definitions: map[string]domain.PipelineDefinition{
			"churn": {
				Name: "churn",
				ARN:  "arn:pipeline/churn",
				Tags: map[string]string{"DomainName": "growth"},
				Steps: []domain.StepSpec{
					{
						ID:      "Preprocess",
						Type:    "Processing",
						Outputs: []domain.IOChannel{{Name: "train", URI: "s3://data/out/train"}},
					},
					{
						ID:        "Train",
						Type:      "Training",
						DependsOn: []string{"Preprocess"},
						Inputs:    []domain.IOChannel{{Name: "training", URI: "s3://data/out/train"}},
					},
				},
			},
		},
	}
	objects := &providertest.ObjectFake{
		Objects: map[string][]byte{
			"data/sets/train/part-0.csv": []byte("user_id,score\n1,0.5\n2,0.9\n"),
		},
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	builder := graph.New(pipelines, objects, logger, 2).
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) })
	api := newHarvesterAPI(logger, builder, schema.NewSampler(objects), store)

	mux := http.NewServeMux()
	api.register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestLineageEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, err := http.Get(srv.URL + "/lineage?pipeline=churn&view=definition")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var g domain.LineageGraph
	decodeBody(t, resp, &g)
	if len(g.Nodes) != 2 || g.Nodes[0].ID != "Preprocess" {
		t.Fatalf("unexpected graph %+v", g.Nodes)
	}
	if g.Domain != "growth" {
		t.Fatalf("unexpected domain %q", g.Domain)
	}
}

func TestLineageEndpointValidation(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, err := http.Get(srv.URL + "/lineage")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/lineage?pipeline=absent")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCatalogEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, err := http.Get(srv.URL + "/catalog")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Pipelines []graph.CatalogEntry `json:"pipelines"`
	}
	decodeBody(t, resp, &body)
	if len(body.Pipelines) != 1 || body.Pipelines[0].Name != "churn" {
		t.Fatalf("unexpected catalog %+v", body.Pipelines)
	}
}

func TestSQLExtractEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, err := http.Post(
		srv.URL+"/sql/extract",
		"application/json",
		strings.NewReader(`{"sql":"CREATE TABLE features AS SELECT id FROM events"}`),
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var info domain.SQLInfo
	decodeBody(t, resp, &info)
	if !info.HasSQL || info.DestinationTable != "features" {
		t.Fatalf("unexpected sql info %+v", info)
	}
}

func TestSchemaSampleEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeStore{})

	resp, err := http.Post(
		srv.URL+"/schema/sample",
		"application/json",
		strings.NewReader(`{"uri":"s3://data/sets/train/"}`),
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var snap domain.SchemaSnapshot
	decodeBody(t, resp, &snap)
	if snap.Fields["user_id"] != "int" || snap.Fields["score"] != "float" {
		t.Fatalf("unexpected fields %v", snap.Fields)
	}

	resp, err = http.Post(srv.URL+"/schema/sample", "application/json", strings.NewReader(`{"uri":"not-a-uri"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed uri, got %d", resp.StatusCode)
	}
}

func TestSchemaSaveEndpoint(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store)

	resp, err := http.Post(
		srv.URL+"/schema/save",
		"application/json",
		strings.NewReader(`{"uri":"s3://data/sets/train/","policy":{"pii":false}}`),
	)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		Snapshot domain.SchemaSnapshot `json:"snapshot"`
		Created  bool                  `json:"created"`
	}
	decodeBody(t, resp, &body)
	if !body.Created || body.Snapshot.Version != 1 || body.Snapshot.PolicyHash == "" {
		t.Fatalf("unexpected save result %+v", body)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one stored snapshot, got %d", len(store.saved))
	}
}

func TestSchemaVersionsEndpoint(t *testing.T) {
	store := &fakeStore{
		versions: map[string][]domain.SchemaSnapshot{
			"s3://data/sets::train": {
				{DatasetID: "s3://data/sets::train", Version: 2},
				{DatasetID: "s3://data/sets::train", Version: 1},
			},
		},
	}
	srv := newTestServer(t, store)

	resp, err := http.Get(srv.URL + "/schema/versions?dataset=" + "s3%3A%2F%2Fdata%2Fsets%3A%3Atrain")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Versions []domain.SchemaSnapshot `json:"versions"`
	}
	decodeBody(t, resp, &body)
	if len(body.Versions) != 2 || body.Versions[0].Version != 2 {
		t.Fatalf("unexpected versions %+v", body.Versions)
	}

	resp, err = http.Get(srv.URL + "/schema/versions?dataset=absent")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
