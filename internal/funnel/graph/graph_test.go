package graph

import (
	"reflect"
	"testing"
)

func TestValidate(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("graph config invalid: %v", err)
	}
}

func TestEverySectionHasDeclaredDeps(t *testing.T) {
	for _, id := range AllSections() {
		if !Known(id) {
			t.Fatalf("section %q listed but unknown", id)
		}
	}
}

func TestAffectedSectionsDirectOnly(t *testing.T) {
	// socialPosts has no direct answer deps; only its upstream (message)
	// pulls it in.
	got := AffectedSections([]string{AnswerTone})
	want := []SectionID{
		SectionMessage,
		SectionSalesPage,
		SectionAdCopy,
		SectionLeadMagnet,
		SectionVideoScript,
		SectionSocialPosts,
		SectionWebinar,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("AffectedSections(tone) = %v, want %v", got, want)
	}
}

func TestAffectedSectionsTransitiveClosure(t *testing.T) {
	// productDescription hits offer directly; everything except idealClient
	// sits downstream of offer.
	got := AffectedSections([]string{AnswerProductDescription})
	if len(got) != len(AllSections())-1 {
		t.Fatalf("expected %d affected sections, got %d: %v", len(AllSections())-1, len(got), got)
	}
	for _, id := range got {
		if id == SectionIdealClient {
			t.Fatalf("idealClient should not be affected by productDescription")
		}
	}
}

func TestAffectedSectionsFullInvalidation(t *testing.T) {
	got := AffectedSections([]string{AnswerIndustry})
	if !reflect.DeepEqual(got, AllSections()) {
		t.Fatalf("industry should invalidate every section, got %v", got)
	}
}

func TestAffectedSectionsUnknownKeys(t *testing.T) {
	if got := AffectedSections([]string{"favoriteColor", ""}); len(got) != 0 {
		t.Fatalf("unknown keys should affect nothing, got %v", got)
	}
	if got := AffectedSections(nil); got != nil {
		t.Fatalf("nil keys should return nil, got %v", got)
	}
}

func TestAffectedSectionsStableOrder(t *testing.T) {
	a := AffectedSections([]string{AnswerGoals, AnswerPricePoint})
	b := AffectedSections([]string{AnswerPricePoint, AnswerGoals})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("affected set depends on key order: %v vs %v", a, b)
	}
}

func TestUpstreamSectionsCopies(t *testing.T) {
	up := UpstreamSections(SectionSalesPage)
	if len(up) != 3 {
		t.Fatalf("salesPage should have 3 upstream sections, got %v", up)
	}
	up[0] = "mutated"
	if UpstreamSections(SectionSalesPage)[0] == "mutated" {
		t.Fatalf("UpstreamSections returned internal slice")
	}
}

func TestAnswerKeysIncludesFallbackKey(t *testing.T) {
	found := false
	for _, k := range AnswerKeys() {
		if k == AnswerBusinessName {
			found = true
		}
	}
	if !found {
		t.Fatalf("AnswerKeys must list businessName")
	}
}
