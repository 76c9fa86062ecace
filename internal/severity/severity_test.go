package severity

import "testing"

func TestNormalizeRejectsUnknownLevel(t *testing.T) {
	if _, err := Normalize("urgent"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	got, err := Normalize("medium")
	if err != nil {
		t.Fatal(err)
	}
	if got != "medium" {
		t.Fatalf("unexpected level: %s", got)
	}
}

func TestMeetsOrAbove(t *testing.T) {
	cases := []struct {
		level, threshold string
		want             bool
	}{
		{"critical", "high", true},
		{"high", "high", true},
		{"medium", "high", false},
		{"info", "low", false},
		{"bogus", "low", false},
		{"low", "bogus", false},
	}
	for _, tc := range cases {
		if got := MeetsOrAbove(tc.level, tc.threshold); got != tc.want {
			t.Fatalf("MeetsOrAbove(%s, %s) = %t", tc.level, tc.threshold, got)
		}
	}
}

func TestMaxIgnoresInvalidLevels(t *testing.T) {
	if got := Max("low", "bogus", "high", "medium"); got != "high" {
		t.Fatalf("unexpected max: %s", got)
	}
	if got := Max(); got != "" {
		t.Fatalf("expected empty max, got %s", got)
	}
}

func TestWeightLadder(t *testing.T) {
	levels := []string{"info", "low", "medium", "high", "critical"}
	prev := 0.0
	for _, l := range levels {
		w := Weight(l)
		if w <= prev {
			t.Fatalf("weight for %s (%f) not above previous (%f)", l, w, prev)
		}
		prev = w
	}
	if Weight("bogus") != 0 {
		t.Fatal("unknown severity should weigh zero")
	}
}

func TestConfidenceScale(t *testing.T) {
	if ConfidenceScale(ConfidenceHigh) != 1.2 {
		t.Fatal("high confidence should scale up 20%")
	}
	if ConfidenceScale(ConfidenceLow) != 0.8 {
		t.Fatal("low confidence should scale down 20%")
	}
	if ConfidenceScale("anything-else") != 1.0 {
		t.Fatal("unrecognized confidence should be neutral")
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1) != 0 {
		t.Fatal("negative score should clamp to zero")
	}
	if Clamp(12) != MaxRiskScore {
		t.Fatalf("score above max should clamp to %f", MaxRiskScore)
	}
	if Clamp(5.5) != 5.5 {
		t.Fatal("in-range score should pass through")
	}
}
