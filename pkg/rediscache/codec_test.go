package rediscache

import (
	"reflect"
	"testing"

	"github.com/openpersist/l2cache/pkg/cache"
)

func TestCodec_RoundTrip(t *testing.T) {
	pc := cache.NewCachedPC("app.Customer",
		[]any{"alice", "30", nil, nil},
		[]bool{true, true, false, true},
		map[int]cache.Relation{
			2: cache.RelationTo(cache.NewOID("app.Account", "9")),
			3: cache.RelationToAll([]cache.OID{
				cache.NewOID("app.Order", "1"),
				cache.NewOID("app.Order", "2"),
			}),
		},
		"v7")

	data, err := marshalPC(pc)
	if err != nil {
		t.Fatalf("marshalPC failed: %v", err)
	}
	got, err := unmarshalPC(data)
	if err != nil {
		t.Fatalf("unmarshalPC failed: %v", err)
	}

	if got.Class() != pc.Class() {
		t.Errorf("Class = %q, want %q", got.Class(), pc.Class())
	}
	if got.Version() != pc.Version() {
		t.Errorf("Version = %v, want %v", got.Version(), pc.Version())
	}
	if !reflect.DeepEqual(got.LoadedFields(), pc.LoadedFields()) {
		t.Errorf("LoadedFields = %v, want %v", got.LoadedFields(), pc.LoadedFields())
	}
	if v, ok := got.FieldValue(0); !ok || v != "alice" {
		t.Errorf("FieldValue(0) = %v, %v", v, ok)
	}

	rel, ok := got.Relation(2)
	if !ok {
		t.Fatal("Relation(2) missing after round trip")
	}
	if oid, _ := rel.Single(); oid != cache.NewOID("app.Account", "9") {
		t.Errorf("Relation(2) = %v", oid)
	}

	rel, ok = got.Relation(3)
	if !ok {
		t.Fatal("Relation(3) missing after round trip")
	}
	oids, _ := rel.All()
	want := []cache.OID{cache.NewOID("app.Order", "1"), cache.NewOID("app.Order", "2")}
	if !reflect.DeepEqual(oids, want) {
		t.Errorf("Relation(3) = %v, want %v (order preserved)", oids, want)
	}
}

func TestCodec_NoneRelation(t *testing.T) {
	pc := cache.NewCachedPC("app.Customer",
		[]any{nil},
		[]bool{true},
		map[int]cache.Relation{0: cache.NoRelation()},
		nil)

	data, err := marshalPC(pc)
	if err != nil {
		t.Fatalf("marshalPC failed: %v", err)
	}
	got, err := unmarshalPC(data)
	if err != nil {
		t.Fatalf("unmarshalPC failed: %v", err)
	}

	rel, ok := got.Relation(0)
	if !ok {
		t.Fatal("loaded-but-empty relation must survive the round trip")
	}
	if rel.IsSet() {
		t.Error("none relation should not carry a value")
	}
}

func TestCodec_InvalidData(t *testing.T) {
	if _, err := unmarshalPC([]byte("{not json")); err == nil {
		t.Error("unmarshalPC should fail on invalid JSON")
	}
	if _, err := unmarshalPC([]byte(`{"class":"c","fields":[],"loaded":[],"relations":{"x":{"kind":"none"}}}`)); err == nil {
		t.Error("unmarshalPC should fail on a non-numeric relation index")
	}
}
