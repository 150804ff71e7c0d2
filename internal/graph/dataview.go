package graph

import (
	"strings"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
)

// buildDataView projects the step graph onto a bipartite process/data
// graph. Data vertices are keyed by normalized artifact URI so the same
// location referenced with differing case or a trailing slash collapses
// into one vertex. Ordering follows first appearance in node IO, which
// keeps repeated builds byte-identical.
func buildDataView(g *domain.LineageGraph) *domain.DataViewGraph {
	view := &domain.DataViewGraph{}

	secByURI := make(map[string]*domain.ArtifactSecurity, len(g.Artifacts))
	for _, a := range g.Artifacts {
		secByURI[normURI(a.URI)] = a.Security
	}

	dataIDs := make(map[string]string)
	var processNodes []domain.DataViewNode

	dataID := func(uri string) string {
		norm := normURI(uri)
		if id, ok := dataIDs[norm]; ok {
			return id
		}
		id := "data:" + norm
		dataIDs[norm] = id
		view.Nodes = append(view.Nodes, domain.DataViewNode{
			ID:    id,
			Type:  "data",
			Label: uri,
			URI:   uri,
			Meta:  secByURI[norm],
		})
		return id
	}

	edgeSeen := make(map[string]struct{})
	addEdge := func(source, target, kind string) {
		id := "e:" + source + "->" + target + ":" + kind
		if _, dup := edgeSeen[id]; dup {
			return
		}
		edgeSeen[id] = struct{}{}
		view.Edges = append(view.Edges, domain.DataViewEdge{
			ID:     id,
			Source: source,
			Target: target,
			Kind:   kind,
		})
	}

	for _, node := range g.Nodes {
		procID := "process:" + node.ID
		processNodes = append(processNodes, domain.DataViewNode{
			ID:       procID,
			Type:     "process",
			Label:    node.Label,
			StepID:   node.ID,
			StepType: node.Type,
			Run:      node.Run,
		})
		for _, in := range node.Inputs {
			if in.URI == "" {
				continue
			}
			addEdge(dataID(in.URI), procID, "read")
		}
		for _, out := range node.Outputs {
			if out.URI == "" {
				continue
			}
			addEdge(procID, dataID(out.URI), "write")
		}
	}

	view.Nodes = append(view.Nodes, processNodes...)
	return view
}

func normURI(uri string) string {
	return strings.TrimRight(strings.ToLower(uri), "/")
}
