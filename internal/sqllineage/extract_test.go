package sqllineage

import (
	"reflect"
	"testing"
)

func TestExtractCreateTableAsSelect(t *testing.T) {
	info := Extract("CREATE TABLE out AS SELECT a,b FROM src")
	if !info.HasSQL {
		t.Fatalf("expected HasSQL")
	}
	if info.DestinationTable != "out" {
		t.Fatalf("expected destination out, got %q", info.DestinationTable)
	}
	if want := []string{"src"}; !reflect.DeepEqual(info.SourceTables, want) {
		t.Fatalf("expected sources %v, got %v", want, info.SourceTables)
	}
	if want := map[string]string{"a": "a", "b": "b"}; !reflect.DeepEqual(info.ColumnMapping, want) {
		t.Fatalf("expected mapping %v, got %v", want, info.ColumnMapping)
	}
}

func TestExtractInsertSelectExplicitColumns(t *testing.T) {
	info := Extract("INSERT INTO reports.daily (day, total) SELECT dt, sum(amount) AS amount_sum FROM sales.orders WHERE dt > '2024-01-01'")
	if !info.HasSQL {
		t.Fatalf("expected HasSQL")
	}
	if info.DestinationTable != "reports.daily" {
		t.Fatalf("unexpected destination %q", info.DestinationTable)
	}
	if want := []string{"sales.orders"}; !reflect.DeepEqual(info.SourceTables, want) {
		t.Fatalf("unexpected sources %v", info.SourceTables)
	}
	if want := map[string]string{"dt": "day", "sum(amount)": "total"}; !reflect.DeepEqual(info.ColumnMapping, want) {
		t.Fatalf("unexpected mapping %v", info.ColumnMapping)
	}
}

func TestExtractJoinRecordsAllSources(t *testing.T) {
	info := Extract("create table wide as select o.id, c.name from orders o join customers c on o.cid = c.id")
	if !info.HasSQL {
		t.Fatalf("expected HasSQL")
	}
	if want := []string{"orders", "customers"}; !reflect.DeepEqual(info.SourceTables, want) {
		t.Fatalf("unexpected sources %v", info.SourceTables)
	}
}

func TestExtractWildcardMakesNoColumnClaim(t *testing.T) {
	info := Extract("INSERT INTO copy SELECT * FROM original")
	if !info.HasSQL {
		t.Fatalf("expected HasSQL")
	}
	if len(info.ColumnMapping) != 0 {
		t.Fatalf("expected empty mapping, got %v", info.ColumnMapping)
	}
}

func TestExtractAliasNamesDestination(t *testing.T) {
	info := Extract("CREATE TABLE t AS SELECT a AS x FROM s")
	if want := map[string]string{"a": "x"}; !reflect.DeepEqual(info.ColumnMapping, want) {
		t.Fatalf("unexpected mapping %v", info.ColumnMapping)
	}
}

func TestExtractUnparseable(t *testing.T) {
	for _, sql := range []string{
		"",
		"SELECT a FROM b",
		"DROP TABLE x",
		"not sql at all",
	} {
		if info := Extract(sql); info.HasSQL {
			t.Fatalf("expected HasSQL=false for %q", sql)
		}
	}
}
