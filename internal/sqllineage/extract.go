// Package sqllineage extracts table and column relationships from the
// two statement shapes that matter for lineage: CREATE TABLE ... AS
// SELECT and INSERT INTO ... SELECT. It is a deliberate best-effort
// token scan, not a SQL parser; anything it cannot read yields
// HasSQL=false instead of an error.
package sqllineage

import (
	"regexp"
	"strings"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
)

var (
	ctasRe = regexp.MustCompile(`(?is)create\s+table\s+(?:if\s+not\s+exists\s+)?([A-Za-z0-9_.]+)\s*(?:\(([^)]*)\))?\s+as\s+select\s+(.*?)\s+from\s+(.+)`)
	insRe  = regexp.MustCompile(`(?is)insert\s+into\s+([A-Za-z0-9_.]+)\s*(?:\(([^)]*)\))?\s*select\s+(.*?)\s+from\s+(.+)`)

	aliasRe     = regexp.MustCompile(`(?i)\s+as\s+([A-Za-z0-9_]+)\s*$`)
	identRe     = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	fromStopRe  = regexp.MustCompile(`(?is)\b(where|group\s+by|order\s+by|limit|having|union)\b|;`)
	fromTableRe = regexp.MustCompile(`(?is)(?:\A|,|\bjoin\b)\s*([A-Za-z0-9_.]+)`)
)

// Extract parses sql into a SQLInfo. Multiple source tables (joins) are
// all recorded; only the first-listed table is assumed for unqualified
// column resolution, a known limitation.
func Extract(sql string) domain.SQLInfo {
	m := ctasRe.FindStringSubmatch(sql)
	if m == nil {
		m = insRe.FindStringSubmatch(sql)
	}
	if m == nil {
		return domain.SQLInfo{HasSQL: false}
	}

	dst, dstCols, selectList, fromClause := m[1], m[2], m[3], m[4]

	sources := sourceTables(fromClause)
	if len(sources) == 0 {
		return domain.SQLInfo{HasSQL: false}
	}

	return domain.SQLInfo{
		HasSQL:           true,
		DestinationTable: dst,
		SourceTables:     sources,
		ColumnMapping:    columnMapping(selectList, dstCols),
	}
}

func sourceTables(fromClause string) []string {
	if loc := fromStopRe.FindStringIndex(fromClause); loc != nil {
		fromClause = fromClause[:loc[0]]
	}
	seen := make(map[string]struct{})
	var out []string
	for _, m := range fromTableRe.FindAllStringSubmatch(fromClause, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// columnMapping aligns selected expressions with destination columns.
// A wildcard select makes no column-level claim at all.
func columnMapping(selectList, dstCols string) map[string]string {
	sel := strings.TrimSpace(selectList)
	if sel == "*" || strings.HasSuffix(sel, ".*") {
		return nil
	}

	var explicit []string
	if strings.TrimSpace(dstCols) != "" {
		for _, c := range strings.Split(dstCols, ",") {
			explicit = append(explicit, strings.TrimSpace(c))
		}
	}

	mapping := make(map[string]string)
	for i, raw := range strings.Split(sel, ",") {
		expr := strings.TrimSpace(raw)
		if expr == "" {
			continue
		}

		alias := ""
		if am := aliasRe.FindStringSubmatch(expr); am != nil {
			alias = am[1]
			expr = strings.TrimSpace(expr[:len(expr)-len(am[0])])
		}

		dst := ""
		switch {
		case i < len(explicit):
			dst = explicit[i]
		case alias != "":
			dst = alias
		case identRe.MatchString(expr):
			parts := strings.Split(expr, ".")
			dst = parts[len(parts)-1]
		default:
			// expression with no destination name; no claim to make
			continue
		}
		if dst == "" {
			continue
		}
		mapping[expr] = dst
	}
	if len(mapping) == 0 {
		return nil
	}
	return mapping
}
