package cache

import "hash/fnv"

// OID uniquely identifies one persistent object across the whole cache.
// It is supplied by the caller, never generated internally. Two OIDs that
// compare equal refer to the same cached entry.
type OID struct {
	// Class is the fully qualified name of the persistable type.
	Class string

	// Key is the stringified primary key, unique within Class.
	Key string
}

// NewOID creates an OID for the given class and key.
func NewOID(class, key string) OID {
	return OID{Class: class, Key: key}
}

// IsZero returns true if the OID carries no identity.
func (o OID) IsZero() bool {
	return o.Class == "" && o.Key == ""
}

// String returns the canonical "class:key" form of the OID.
func (o OID) String() string {
	return o.Class + ":" + o.Key
}

// shardIndex maps the OID onto one of n shards. n must be a power of two.
func (o OID) shardIndex(n uint32) uint32 {
	h := fnv.New32a()
	h.Write([]byte(o.Class))
	h.Write([]byte{0})
	h.Write([]byte(o.Key))
	return h.Sum32() & (n - 1)
}
