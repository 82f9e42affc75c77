package cache

import "sync"

// PinRegistry tracks which individual OIDs and which classes must be treated
// as pinned. It is pure bookkeeping: it holds no snapshots and makes no
// storage decisions. The store consults it at Put time to decide the initial
// partition of a new entry, and during pin/unpin sweeps.
//
// A PinRegistry is safe for concurrent use.
type PinRegistry struct {
	mu     sync.RWMutex
	oids   map[OID]struct{}
	rules  map[PinnedClass]struct{}
	oracle TypeOracle
}

// NewPinRegistry creates an empty registry. oracle may be nil, in which case
// subclass rules match only their exact class.
func NewPinRegistry(oracle TypeOracle) *PinRegistry {
	return &PinRegistry{
		oids:   make(map[OID]struct{}),
		rules:  make(map[PinnedClass]struct{}),
		oracle: oracle,
	}
}

// AddOID records a pin intent for a single identity.
func (r *PinRegistry) AddOID(oid OID) {
	r.mu.Lock()
	r.oids[oid] = struct{}{}
	r.mu.Unlock()
}

// RemoveOID clears the pin intent for a single identity, if recorded.
func (r *PinRegistry) RemoveOID(oid OID) {
	r.mu.Lock()
	delete(r.oids, oid)
	r.mu.Unlock()
}

// HasOID reports whether a pin intent is recorded for the identity.
func (r *PinRegistry) HasOID(oid OID) bool {
	r.mu.RLock()
	_, ok := r.oids[oid]
	r.mu.RUnlock()
	return ok
}

// AddRule registers a class-level pin rule. Rules are deduplicated by their
// structural equality: class name plus subclasses flag.
func (r *PinRegistry) AddRule(rule PinnedClass) {
	r.mu.Lock()
	r.rules[rule] = struct{}{}
	r.mu.Unlock()
}

// RemoveRule removes a class-level pin rule. Only the rule with the exact
// same subclasses flag is removed; the sibling rule, if registered, stays.
func (r *PinRegistry) RemoveRule(rule PinnedClass) {
	r.mu.Lock()
	delete(r.rules, rule)
	r.mu.Unlock()
}

// ClassMatches reports whether any registered rule covers the given class.
func (r *PinRegistry) ClassMatches(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for rule := range r.rules {
		if rule.Matches(class, r.oracle) {
			return true
		}
	}
	return false
}

// Covers reports whether the identity must be pinned, either through a
// recorded single-OID intent or through a class-level rule.
func (r *PinRegistry) Covers(oid OID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.oids[oid]; ok {
		return true
	}
	for rule := range r.rules {
		if rule.Matches(oid.Class, r.oracle) {
			return true
		}
	}
	return false
}

// Rules returns the currently registered class-level rules in unspecified
// order.
func (r *PinRegistry) Rules() []PinnedClass {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules := make([]PinnedClass, 0, len(r.rules))
	for rule := range r.rules {
		rules = append(rules, rule)
	}
	return rules
}
