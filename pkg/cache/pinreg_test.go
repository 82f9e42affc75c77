package cache

import "testing"

// hierarchy is a map-backed TypeOracle: child class -> parent class.
type hierarchy map[string]string

func (h hierarchy) IsSubtypeOf(class, ancestor string) bool {
	for c := class; c != ""; c = h[c] {
		if c == ancestor {
			return true
		}
	}
	return false
}

func TestPinRegistry_OIDs(t *testing.T) {
	r := NewPinRegistry(nil)
	oid := NewOID("app.Customer", "1")

	if r.HasOID(oid) {
		t.Error("empty registry should not cover any OID")
	}

	r.AddOID(oid)
	if !r.HasOID(oid) || !r.Covers(oid) {
		t.Error("added OID should be covered")
	}

	r.RemoveOID(oid)
	if r.HasOID(oid) || r.Covers(oid) {
		t.Error("removed OID should not be covered")
	}

	// Removing an absent OID is a no-op.
	r.RemoveOID(oid)
}

func TestPinRegistry_RulesAreDistinctBySubclassFlag(t *testing.T) {
	r := NewPinRegistry(nil)

	r.AddRule(PinnedClass{Class: "app.Base", Subclasses: true})
	r.AddRule(PinnedClass{Class: "app.Base", Subclasses: false})
	if got := len(r.Rules()); got != 2 {
		t.Fatalf("Rules() len = %d, want 2 (flag variants are distinct)", got)
	}

	// Removing one variant must keep the other.
	r.RemoveRule(PinnedClass{Class: "app.Base", Subclasses: false})
	rules := r.Rules()
	if len(rules) != 1 || !rules[0].Subclasses {
		t.Errorf("Rules() = %v, want only the subclasses=true variant", rules)
	}

	// Re-adding an existing rule deduplicates.
	r.AddRule(PinnedClass{Class: "app.Base", Subclasses: true})
	if got := len(r.Rules()); got != 1 {
		t.Errorf("Rules() len = %d after duplicate add, want 1", got)
	}
}

func TestPinRegistry_ClassMatches(t *testing.T) {
	oracle := hierarchy{
		"app.Premium": "app.Customer",
		"app.VIP":     "app.Premium",
	}

	tests := []struct {
		name  string
		rule  PinnedClass
		class string
		want  bool
	}{
		{"exact match", PinnedClass{Class: "app.Customer"}, "app.Customer", true},
		{"no match", PinnedClass{Class: "app.Customer"}, "app.Order", false},
		{"subtype without flag", PinnedClass{Class: "app.Customer"}, "app.Premium", false},
		{"subtype with flag", PinnedClass{Class: "app.Customer", Subclasses: true}, "app.Premium", true},
		{"transitive subtype", PinnedClass{Class: "app.Customer", Subclasses: true}, "app.VIP", true},
		{"supertype is not covered", PinnedClass{Class: "app.Premium", Subclasses: true}, "app.Customer", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPinRegistry(oracle)
			r.AddRule(tt.rule)
			if got := r.ClassMatches(tt.class); got != tt.want {
				t.Errorf("ClassMatches(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestPinRegistry_SubclassRuleWithoutOracle(t *testing.T) {
	r := NewPinRegistry(nil)
	r.AddRule(PinnedClass{Class: "app.Customer", Subclasses: true})

	if !r.ClassMatches("app.Customer") {
		t.Error("exact class should match without an oracle")
	}
	if r.ClassMatches("app.Premium") {
		t.Error("subtype cannot match without an oracle")
	}
}

func TestPinRegistry_CoversThroughRule(t *testing.T) {
	r := NewPinRegistry(hierarchy{"app.Premium": "app.Customer"})
	r.AddRule(PinnedClass{Class: "app.Customer", Subclasses: true})

	if !r.Covers(NewOID("app.Premium", "1")) {
		t.Error("subtype instance should be covered by the class rule")
	}
	if r.Covers(NewOID("app.Order", "1")) {
		t.Error("unrelated class should not be covered")
	}
}
