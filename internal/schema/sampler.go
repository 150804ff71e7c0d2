// Package schema infers field-name to type mappings from sampled data
// objects and fingerprints schema policies. Columnar formats are read
// from structural metadata; row formats are inferred from a bounded head
// sample with majority-vote typing.
package schema

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

const (
	FormatParquet = "parquet"
	FormatJSON    = "json"
	FormatCSV     = "csv"
)

const (
	defaultMaxObjects = 5
	defaultMaxBytes   = 256 * 1024
	maxSampleRecords  = 500
)

// Sampler reads a bounded sample under an object-store prefix and
// infers an unsaved schema snapshot.
type Sampler struct {
	Objects    provider.ObjectAPI
	MaxObjects int
	MaxBytes   int64
	Now        func() time.Time
}

func NewSampler(objects provider.ObjectAPI) *Sampler {
	return &Sampler{Objects: objects}
}

// Sample infers the schema of the dataset at uri. Unreadable or
// unrecognized objects are skipped; the result can legitimately carry an
// empty field set when nothing under the prefix was usable.
func (s *Sampler) Sample(ctx context.Context, uri string) (domain.SchemaSnapshot, error) {
	bucket, prefix, ok := domain.SplitObjectURI(uri)
	if !ok {
		return domain.SchemaSnapshot{}, fmt.Errorf("dataset uri %q: %w", uri, provider.ErrMalformed)
	}
	datasetID, _ := domain.DatasetIDFromURI(uri)

	maxObjects := s.MaxObjects
	if maxObjects <= 0 {
		maxObjects = defaultMaxObjects
	}
	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}

	objects, err := s.Objects.ListObjects(ctx, bucket, prefix, maxObjects)
	if err != nil {
		return domain.SchemaSnapshot{}, fmt.Errorf("list sample objects: %w", err)
	}

	votes := newFieldVotes()
	format := ""
	for _, obj := range objects {
		objFormat, err := s.sampleObject(ctx, bucket, obj.Key, maxBytes, votes)
		if err != nil || objFormat == "" {
			continue
		}
		if format == "" {
			format = objFormat
		}
	}

	return domain.SchemaSnapshot{
		DatasetID: datasetID,
		Fields:    votes.resolve(),
		Format:    format,
		SampledAt: now().UTC(),
	}, nil
}

func (s *Sampler) sampleObject(ctx context.Context, bucket, key string, maxBytes int64, votes fieldVotes) (string, error) {
	format := formatFromName(key)

	// Parquet keeps its schema in the footer, so the whole object is
	// needed; row formats only need the head.
	if format == FormatParquet {
		body, err := s.Objects.GetObject(ctx, bucket, key)
		if err != nil {
			return "", err
		}
		return FormatParquet, parquetFields(body, votes)
	}

	head, err := s.Objects.GetObjectHead(ctx, bucket, key, maxBytes)
	if err != nil {
		return "", err
	}
	if format == "" {
		format = sniffFormat(head)
	}

	switch format {
	case FormatParquet:
		body, err := s.Objects.GetObject(ctx, bucket, key)
		if err != nil {
			return "", err
		}
		return FormatParquet, parquetFields(body, votes)
	case FormatJSON:
		jsonFields(head, votes)
		return FormatJSON, nil
	case FormatCSV:
		csvFields(head, votes)
		return FormatCSV, nil
	default:
		return "", nil
	}
}

func formatFromName(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".parquet", ".pq":
		return FormatParquet
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON
	case ".csv":
		return FormatCSV
	default:
		return ""
	}
}

func sniffFormat(head []byte) string {
	if bytes.HasPrefix(head, []byte("PAR1")) {
		return FormatParquet
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	if line, _, _ := bytes.Cut(head, []byte("\n")); bytes.Contains(line, []byte(",")) {
		return FormatCSV
	}
	return ""
}

func parquetFields(body []byte, votes fieldVotes) error {
	file, err := parquet.OpenFile(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return fmt.Errorf("open parquet: %w", provider.ErrMalformed)
	}
	for _, field := range file.Schema().Fields() {
		if !field.Leaf() {
			votes.add(field.Name(), "group")
			continue
		}
		votes.add(field.Name(), strings.ToLower(field.Type().String()))
	}
	return nil
}

func jsonFields(head []byte, votes fieldVotes) {
	records := 0
	for line := range strings.Lines(string(head)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			continue
		}
		for k, v := range obj {
			if t := jsonType(v); t != "" {
				votes.add(k, t)
			}
		}
		records++
		if records >= maxSampleRecords {
			break
		}
	}
	if records > 0 {
		return
	}
	// not JSONL; try the buffer as one document
	var obj map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(head), &obj); err != nil {
		return
	}
	for k, v := range obj {
		if t := jsonType(v); t != "" {
			votes.add(k, t)
		}
	}
}

func jsonType(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		return "bool"
	case string:
		return "string"
	case float64:
		if val == math.Trunc(val) {
			return "int"
		}
		return "float"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return "string"
	}
}

func csvFields(head []byte, votes fieldVotes) {
	reader := csv.NewReader(bytes.NewReader(head))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return
	}
	rows := 0
	for rows < maxSampleRecords {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		for i, h := range headers {
			if i >= len(record) {
				continue
			}
			if t := guessScalar(record[i]); t != "" {
				votes.add(h, t)
			}
		}
		rows++
	}
	if rows == 0 {
		for _, h := range headers {
			votes.add(h, "string")
		}
	}
}

func guessScalar(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return "int"
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return "float"
	}
	switch strings.ToLower(v) {
	case "true", "false":
		return "bool"
	}
	return "string"
}

// fieldVotes counts observed types per field; resolve picks the winner
// by count, breaking ties toward the wider type.
type fieldVotes map[string]map[string]int

func newFieldVotes() fieldVotes { return make(fieldVotes) }

func (v fieldVotes) add(field, typ string) {
	if field == "" || typ == "" {
		return
	}
	if v[field] == nil {
		v[field] = make(map[string]int)
	}
	v[field][typ]++
}

var typeWidth = map[string]int{
	"string": 6,
	"object": 5,
	"array":  4,
	"float":  3,
	"int":    2,
	"bool":   1,
}

func (v fieldVotes) resolve() map[string]string {
	out := make(map[string]string, len(v))
	for field, counts := range v {
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool {
			if counts[types[i]] != counts[types[j]] {
				return counts[types[i]] > counts[types[j]]
			}
			if typeWidth[types[i]] != typeWidth[types[j]] {
				return typeWidth[types[i]] > typeWidth[types[j]]
			}
			return types[i] < types[j]
		})
		out[field] = types[0]
	}
	return out
}
