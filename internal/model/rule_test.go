package model

import "testing"

func TestAppliesTo(t *testing.T) {
	rule := SecurityRule{FileExtensions: []string{"js", "ts"}}
	if !rule.AppliesTo("js") {
		t.Fatal("expected js to apply")
	}
	if rule.AppliesTo("py") {
		t.Fatal("py should not apply")
	}

	wildcard := SecurityRule{FileExtensions: []string{"*"}}
	if !wildcard.AppliesTo("anything") {
		t.Fatal("wildcard should apply to every extension")
	}

	empty := SecurityRule{}
	if empty.AppliesTo("js") {
		t.Fatal("empty extension list should never match")
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory("injection-prevention") {
		t.Fatal("injection-prevention is part of the closed set")
	}
	if IsCategory("networking") {
		t.Fatal("networking is not part of the closed set")
	}
}
