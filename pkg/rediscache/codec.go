package rediscache

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/openpersist/l2cache/pkg/cache"
)

// wireOID is the JSON form of a cache.OID.
type wireOID struct {
	Class string `json:"class"`
	Key   string `json:"key"`
}

// wireRelation is the JSON form of a cache.Relation. Kind is "none",
// "single" or "many".
type wireRelation struct {
	Kind string    `json:"kind"`
	OID  *wireOID  `json:"oid,omitempty"`
	OIDs []wireOID `json:"oids,omitempty"`
}

// wirePC is the JSON form of a cache.CachedPC. Relation map keys are
// stringified field indexes (JSON object keys must be strings).
type wirePC struct {
	Class     string                  `json:"class"`
	Version   any                     `json:"version,omitempty"`
	Fields    []any                   `json:"fields"`
	Loaded    []bool                  `json:"loaded"`
	Relations map[string]wireRelation `json:"relations,omitempty"`
}

// marshalPC encodes a snapshot for storage.
//
// Scalar field values round-trip through JSON, so numeric values come back
// as float64 regardless of the Go type that was stored. Callers that need
// exact numeric types should store them in string form.
func marshalPC(pc *cache.CachedPC) ([]byte, error) {
	w := wirePC{
		Class:   pc.Class(),
		Version: pc.Version(),
		Fields:  pc.Fields(),
		Loaded:  pc.LoadedFields(),
	}
	if rels := pc.Relations(); len(rels) > 0 {
		w.Relations = make(map[string]wireRelation, len(rels))
		for i, r := range rels {
			w.Relations[strconv.Itoa(i)] = toWireRelation(r)
		}
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// unmarshalPC decodes a stored snapshot.
func unmarshalPC(data []byte) (*cache.CachedPC, error) {
	var w wirePC
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	var rels map[int]cache.Relation
	if len(w.Relations) > 0 {
		rels = make(map[int]cache.Relation, len(w.Relations))
		for k, wr := range w.Relations {
			i, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("invalid relation index %q: %w", k, err)
			}
			rels[i] = fromWireRelation(wr)
		}
	}
	return cache.NewCachedPC(w.Class, w.Fields, w.Loaded, rels, w.Version), nil
}

func toWireRelation(r cache.Relation) wireRelation {
	if oid, ok := r.Single(); ok {
		return wireRelation{Kind: "single", OID: &wireOID{Class: oid.Class, Key: oid.Key}}
	}
	if oids, ok := r.All(); ok {
		ws := make([]wireOID, len(oids))
		for i, oid := range oids {
			ws[i] = wireOID{Class: oid.Class, Key: oid.Key}
		}
		return wireRelation{Kind: "many", OIDs: ws}
	}
	return wireRelation{Kind: "none"}
}

func fromWireRelation(w wireRelation) cache.Relation {
	switch w.Kind {
	case "single":
		if w.OID == nil {
			return cache.NoRelation()
		}
		return cache.RelationTo(cache.NewOID(w.OID.Class, w.OID.Key))
	case "many":
		oids := make([]cache.OID, len(w.OIDs))
		for i, wo := range w.OIDs {
			oids[i] = cache.NewOID(wo.Class, wo.Key)
		}
		return cache.RelationToAll(oids)
	default:
		return cache.NoRelation()
	}
}
