package domain

import "time"

// EdgeVia distinguishes the semantic relation an edge represents:
// declared control order versus implicit data order.
type EdgeVia string

const (
	EdgeDependsOn EdgeVia = "dependsOn"
	EdgeRef       EdgeVia = "ref"
)

// Edge connects two step nodes. Duplicate edges with the same
// (From, To, Via) are suppressed; a dependsOn and a ref edge between the
// same pair are both kept because they mean different things.
type Edge struct {
	From  string  `json:"from"`
	To    string  `json:"to"`
	Via   EdgeVia `json:"via"`
	Label string  `json:"label,omitempty"`
}

// Node is one graph vertex per step spec. Enrichment passes mutate it in
// place; it is never removed within a single build.
type Node struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Label   string      `json:"label"`
	Inputs  []IOChannel `json:"inputs"`
	Outputs []IOChannel `json:"outputs"`
	Run     *RunInfo    `json:"run,omitempty"`
	SQL     *SQLInfo    `json:"sql,omitempty"`
}

// SQLInfo records table/column relationships extracted from a step's
// SQL text. HasSQL is false when extraction found nothing usable.
type SQLInfo struct {
	HasSQL           bool              `json:"hasSql"`
	DestinationTable string            `json:"destinationTable,omitempty"`
	SourceTables     []string          `json:"sourceTables,omitempty"`
	ColumnMapping    map[string]string `json:"columnMapping,omitempty"`
}

// Summary aggregates the run state of a graph.
type Summary struct {
	OverallStatus Status         `json:"overallStatus"`
	NodeStatus    map[Status]int `json:"nodeStatus"`
	ElapsedSec    *int64         `json:"elapsedSec"`
}

// PipelineInfo identifies the pipeline a graph was built from.
type PipelineInfo struct {
	Name         string    `json:"name"`
	ARN          string    `json:"arn,omitempty"`
	LastModified time.Time `json:"lastModifiedTime,omitzero"`
}

// LineageGraph is the combined node/edge/artifact structure describing
// data flow and execution state for one pipeline.
type LineageGraph struct {
	Pipeline  PipelineInfo   `json:"pipeline"`
	Domain    string         `json:"domain,omitempty"`
	Nodes     []*Node        `json:"nodes"`
	Edges     []Edge         `json:"edges"`
	Artifacts []*ArtifactRef `json:"artifacts"`
	Summary   Summary        `json:"summary"`
	DataView  *DataViewGraph `json:"graphData,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// Node looks a vertex up by step id.
func (g *LineageGraph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// DataViewGraph is the bipartite process/data projection of a lineage
// graph: data vertices for unique artifacts, process vertices for steps,
// and read/write edges between them.
type DataViewGraph struct {
	Nodes []DataViewNode `json:"nodes"`
	Edges []DataViewEdge `json:"edges"`
}

type DataViewNode struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Label    string            `json:"label"`
	URI      string            `json:"uri,omitempty"`
	StepID   string            `json:"stepId,omitempty"`
	StepType string            `json:"stepType,omitempty"`
	Run      *RunInfo          `json:"run,omitempty"`
	Meta     *ArtifactSecurity `json:"meta,omitempty"`
}

type DataViewEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}
