package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tracelight-labs/tracelight-go/internal/graph"
	"github.com/tracelight-labs/tracelight-go/internal/platform/httpserver"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/schema"
	"github.com/tracelight-labs/tracelight-go/internal/schemastore"
	"github.com/tracelight-labs/tracelight-go/internal/sqllineage"
)

type harvesterAPI struct {
	logger  *slog.Logger
	builder *graph.Builder
	sampler *schema.Sampler
	store   schemastore.Store
}

func newHarvesterAPI(logger *slog.Logger, builder *graph.Builder, sampler *schema.Sampler, store schemastore.Store) *harvesterAPI {
	return &harvesterAPI{
		logger:  logger,
		builder: builder,
		sampler: sampler,
		store:   store,
	}
}

func (api *harvesterAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /lineage", api.handleLineage)
	mux.HandleFunc("GET /lineage/by-domain", api.handleLineageByDomain)
	mux.HandleFunc("GET /catalog", api.handleCatalog)

	mux.HandleFunc("POST /sql/extract", api.handleSQLExtract)

	mux.HandleFunc("POST /schema/sample", api.handleSchemaSample)
	mux.HandleFunc("POST /schema/save", api.handleSchemaSave)
	mux.HandleFunc("GET /schema/versions", api.handleSchemaVersions)
}

func (api *harvesterAPI) handleLineage(w http.ResponseWriter, r *http.Request) {
	pipeline := strings.TrimSpace(r.URL.Query().Get("pipeline"))
	if pipeline == "" {
		httpserver.WriteError(w, r, http.StatusBadRequest, "pipeline_required", "")
		return
	}
	opts := graph.Options{
		IncludeLatestExecution: parseBoolQuery(r, "latest", true),
		DomainFilter:           strings.TrimSpace(r.URL.Query().Get("domain")),
		View:                   graph.NormalizeView(r.URL.Query().Get("view")),
	}

	g, err := api.builder.Build(r.Context(), pipeline, opts)
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, g)
}

func (api *harvesterAPI) handleLineageByDomain(w http.ResponseWriter, r *http.Request) {
	domainName := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domainName == "" {
		httpserver.WriteError(w, r, http.StatusBadRequest, "domain_required", "")
		return
	}
	opts := graph.Options{
		IncludeLatestExecution: parseBoolQuery(r, "latest", true),
		View:                   graph.NormalizeView(r.URL.Query().Get("view")),
	}

	results, err := api.builder.BuildByDomain(r.Context(), domainName, opts)
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"domain":    domainName,
		"pipelines": results,
	})
}

func (api *harvesterAPI) handleCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := api.builder.Catalog(r.Context())
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"pipelines": entries})
}

func (api *harvesterAPI) handleSQLExtract(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SQL string `json:"sql"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(body.SQL) == "" {
		httpserver.WriteError(w, r, http.StatusBadRequest, "sql_required", "")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, sqllineage.Extract(body.SQL))
}

func (api *harvesterAPI) handleSchemaSample(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(body.URI) == "" {
		httpserver.WriteError(w, r, http.StatusBadRequest, "uri_required", "")
		return
	}

	snap, err := api.sampler.Sample(r.Context(), body.URI)
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, snap)
}

func (api *harvesterAPI) handleSchemaSave(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URI    string         `json:"uri"`
		Policy map[string]any `json:"policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if strings.TrimSpace(body.URI) == "" {
		httpserver.WriteError(w, r, http.StatusBadRequest, "uri_required", "")
		return
	}

	snap, err := api.sampler.Sample(r.Context(), body.URI)
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	snap.PolicyHash, err = schema.PolicyHash(body.Policy)
	if err != nil {
		httpserver.WriteError(w, r, http.StatusBadRequest, "invalid_policy", err.Error())
		return
	}

	saved, created, err := api.store.Save(r.Context(), snap)
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpserver.WriteJSON(w, status, map[string]any{
		"snapshot": saved,
		"created":  created,
	})
}

func (api *harvesterAPI) handleSchemaVersions(w http.ResponseWriter, r *http.Request) {
	datasetID := strings.TrimSpace(r.URL.Query().Get("dataset"))
	if datasetID == "" {
		httpserver.WriteError(w, r, http.StatusBadRequest, "dataset_required", "")
		return
	}

	versions, err := api.store.ListVersions(r.Context(), datasetID)
	if err != nil {
		api.writeProviderError(w, r, err)
		return
	}
	if len(versions) == 0 {
		httpserver.WriteError(w, r, http.StatusNotFound, "dataset_not_found", "")
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{
		"dataset":  datasetID,
		"versions": versions,
	})
}

// writeProviderError maps the error taxonomy onto HTTP statuses.
// NotFound and Malformed describe the request; everything else is an
// upstream fault.
func (api *harvesterAPI) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case provider.IsNotFound(err):
		httpserver.WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case provider.IsMalformed(err):
		httpserver.WriteError(w, r, http.StatusBadRequest, "malformed", err.Error())
	case provider.IsDenied(err):
		httpserver.WriteError(w, r, http.StatusBadGateway, "upstream_denied", err.Error())
	default:
		api.logger.Error("request failed", "path", r.URL.Path, "error", err)
		httpserver.WriteError(w, r, http.StatusInternalServerError, "internal_error", "")
	}
}

func parseBoolQuery(r *http.Request, key string, def bool) bool {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
