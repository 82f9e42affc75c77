package cache

import "errors"

// Common errors returned by cache implementations.
var (
	// ErrCacheMiss indicates the requested OID was not found in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheClosed is returned by any operation invoked after Close.
	ErrCacheClosed = errors.New("cache closed")

	// ErrInvalidOID indicates a zero OID was passed where an identity is
	// required. The violating operation fails fast with no partial mutation.
	ErrInvalidOID = errors.New("invalid oid")

	// ErrNilSnapshot indicates a nil CachedPC was passed to Put.
	ErrNilSnapshot = errors.New("nil snapshot")
)
