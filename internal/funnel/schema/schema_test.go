package schema

import (
	"testing"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
)

func TestFieldCounts(t *testing.T) {
	cases := map[graph.SectionID]int{
		graph.SectionIdealClient:  8,
		graph.SectionOffer:        8,
		graph.SectionMessage:      6,
		graph.SectionSalesPage:    78,
		graph.SectionEmails:       18,
		graph.SectionSetterScript: 10,
		graph.SectionWebinar:      15,
	}
	for id, want := range cases {
		if got := len(Fields(id)); got != want {
			t.Fatalf("section %s: %d fields, want %d", id, got, want)
		}
	}
}

func TestEverySectionDeclaresFields(t *testing.T) {
	for _, id := range graph.AllSections() {
		fields := Fields(id)
		if len(fields) == 0 {
			t.Fatalf("section %s declares no fields", id)
		}
		seen := map[FieldPath]bool{}
		for _, f := range fields {
			if seen[f] {
				t.Fatalf("section %s declares field %s twice", id, f)
			}
			seen[f] = true
		}
	}
}

func TestLookupAndSetNested(t *testing.T) {
	doc := map[string]any{}
	Set(doc, "hero.headline", "Stop guessing")
	v, ok := Lookup(doc, "hero.headline")
	if !ok || v != "Stop guessing" {
		t.Fatalf("Lookup after Set = %v, %v", v, ok)
	}
	if _, ok := Lookup(doc, "hero.missing"); ok {
		t.Fatalf("Lookup should miss on absent leaf")
	}
	if _, ok := Lookup(doc, "hero.headline.deeper"); ok {
		t.Fatalf("Lookup should miss when traversing through a string")
	}
}

func TestIsEmptyValue(t *testing.T) {
	if !IsEmptyValue("") || !IsEmptyValue("   ") || !IsEmptyValue(nil) || !IsEmptyValue([]any{}) {
		t.Fatalf("blank values should count as empty")
	}
	if IsEmptyValue("x") || IsEmptyValue([]any{"a"}) {
		t.Fatalf("populated values should not count as empty")
	}
}

func TestNormalizeStripsUnknownFields(t *testing.T) {
	parsed := map[string]any{
		"hook":        "The hook",
		"bigIdea":     "One big idea",
		"enemy":       "The old way",
		"beliefShift": "It is not your fault",
		"proofAngle":  "Case studies",
		"tagline":     "Better funnels, faster",
		"extraneous":  "should be dropped",
		"nested":      map[string]any{"junk": "also dropped"},
	}
	res, err := Normalize(graph.SectionMessage, parsed)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Populated != 6 {
		t.Fatalf("populated = %d, want 6", res.Populated)
	}
	if len(res.Stripped) != 2 {
		t.Fatalf("stripped = %v, want 2 entries", res.Stripped)
	}
	if _, ok := res.Content["extraneous"]; ok {
		t.Fatalf("unknown field survived normalization")
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("stripping must produce a warning")
	}
}

func TestNormalizeCountsMissingAndEmpty(t *testing.T) {
	parsed := map[string]any{
		"hook":    "present",
		"bigIdea": "   ",
	}
	res, err := Normalize(graph.SectionMessage, parsed)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Populated != 1 || res.Empty != 1 || res.Missing != 4 {
		t.Fatalf("populated/empty/missing = %d/%d/%d, want 1/1/4", res.Populated, res.Empty, res.Missing)
	}
}

func TestNormalizeUnknownSection(t *testing.T) {
	if _, err := Normalize("nonsense", map[string]any{}); err == nil {
		t.Fatalf("expected error for unknown section")
	}
}
