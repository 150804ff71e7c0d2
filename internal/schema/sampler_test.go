package schema

import (
	"context"
	"testing"
	"time"

	"github.com/tracelight-labs/tracelight-go/internal/provider"
	"github.com/tracelight-labs/tracelight-go/internal/provider/providertest"
)

func TestSampleCSV(t *testing.T) {
	objects := &providertest.ObjectFake{
		Objects: map[string][]byte{
			"data/sets/train/part-0.csv": []byte("id,score,active\n1,0.5,true\n2,0.75,false\n3,1.25,true\n"),
		},
	}
	s := NewSampler(objects)
	s.Now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	snap, err := s.Sample(context.Background(), "s3://data/sets/train/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.DatasetID != "s3://data/sets::train" {
		t.Fatalf("unexpected dataset id %q", snap.DatasetID)
	}
	if snap.Format != FormatCSV {
		t.Fatalf("unexpected format %q", snap.Format)
	}
	want := map[string]string{"id": "int", "score": "float", "active": "bool"}
	for field, typ := range want {
		if snap.Fields[field] != typ {
			t.Fatalf("field %s: expected %s, got %s (all: %v)", field, typ, snap.Fields[field], snap.Fields)
		}
	}
}

func TestSampleJSONLMajorityVote(t *testing.T) {
	objects := &providertest.ObjectFake{
		Objects: map[string][]byte{
			"data/events/part-0.jsonl": []byte(
				`{"user":"a","count":1}` + "\n" +
					`{"user":"b","count":2}` + "\n" +
					`{"user":"c","count":"n/a"}` + "\n"),
		},
	}
	snap, err := NewSampler(objects).Sample(context.Background(), "s3://data/events")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Fields["user"] != "string" {
		t.Fatalf("expected user string, got %q", snap.Fields["user"])
	}
	// two int votes beat one string vote
	if snap.Fields["count"] != "int" {
		t.Fatalf("expected count int, got %q", snap.Fields["count"])
	}
}

func TestSampleSkipsUnreadableObjects(t *testing.T) {
	objects := &providertest.ObjectFake{
		Objects: map[string][]byte{
			"data/mixed/bad.csv":  []byte("a,b\n1,2\n"),
			"data/mixed/good.csv": []byte("a,b\n3,4\n"),
		},
		Errs: map[string]error{
			"GetObject/data/mixed/bad.csv": provider.ErrTransient,
		},
	}
	snap, err := NewSampler(objects).Sample(context.Background(), "s3://data/mixed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Fields["a"] != "int" || snap.Fields["b"] != "int" {
		t.Fatalf("unexpected fields %v", snap.Fields)
	}
}

func TestSampleRejectsNonObjectURI(t *testing.T) {
	_, err := NewSampler(&providertest.ObjectFake{}).Sample(context.Background(), "not-a-uri")
	if !provider.IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestPolicyHashDeterministic(t *testing.T) {
	a := map[string]any{"mask": []string{"email"}, "retention": 30}
	b := map[string]any{"retention": 30, "mask": []string{"email"}}

	ha, err := PolicyHash(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hb, err := PolicyHash(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected equal hashes, got %s vs %s", ha, hb)
	}
	if len(ha) != 16 {
		t.Fatalf("expected 16-char hash, got %q", ha)
	}

	hc, err := PolicyHash(map[string]any{"retention": 31})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hc == ha {
		t.Fatalf("expected different hash for different policy")
	}
}
