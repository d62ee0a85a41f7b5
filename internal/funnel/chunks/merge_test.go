package chunks

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
)

// fullOutcomes builds one successful outcome per chunk with every owned field
// populated.
func fullOutcomes(t *testing.T, sectionID graph.SectionID) []ChunkOutcome {
	t.Helper()
	plan := PlanFor(sectionID)
	outcomes := make([]ChunkOutcome, 0, len(plan))
	for _, spec := range plan {
		parsed := map[string]any{}
		for i, f := range spec.OwnedFields {
			schema.Set(parsed, f, fmt.Sprintf("%s value %d", spec.Name, i))
		}
		outcomes = append(outcomes, ChunkOutcome{Name: spec.Name, Parsed: parsed})
	}
	return outcomes
}

func TestMergeDeterministic(t *testing.T) {
	outcomes := fullOutcomes(t, graph.SectionSalesPage)

	a, err := Merge(graph.SectionSalesPage, outcomes)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	b, err := Merge(graph.SectionSalesPage, outcomes)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !bytes.Equal(a.Canonical, b.Canonical) {
		t.Fatalf("identical outcomes produced different canonical bytes")
	}
	if a.Populated != 78 || a.Expected != 78 {
		t.Fatalf("populated/expected = %d/%d, want 78/78", a.Populated, a.Expected)
	}
	if len(a.Warnings) != 0 {
		t.Fatalf("clean merge produced warnings: %v", a.Warnings)
	}
}

func TestMergeWithFailedChunk(t *testing.T) {
	outcomes := fullOutcomes(t, graph.SectionSalesPage)
	// closing owns 28 of the 78 fields.
	outcomes[3] = ChunkOutcome{Name: "closing", Err: fmt.Errorf("timeout")}

	res, err := Merge(graph.SectionSalesPage, outcomes)
	if err != nil {
		t.Fatalf("partial merge should succeed: %v", err)
	}
	if res.Populated != 50 {
		t.Fatalf("populated = %d, want 50", res.Populated)
	}
	if _, ok := schema.Lookup(res.Content, "closing.recap"); ok {
		t.Fatalf("failed chunk's fields must stay absent")
	}
	if _, ok := schema.Lookup(res.Content, "hero.headline"); !ok {
		t.Fatalf("successful chunk's fields missing")
	}
	joined := WarningSummary(res.Warnings)
	if !strings.Contains(joined, "closing") {
		t.Fatalf("warnings should name the failed chunk: %v", res.Warnings)
	}
}

func TestMergeAllChunksFailed(t *testing.T) {
	plan := PlanFor(graph.SectionEmails)
	outcomes := make([]ChunkOutcome, len(plan))
	for i, spec := range plan {
		outcomes[i] = ChunkOutcome{Name: spec.Name, Err: fmt.Errorf("boom")}
	}
	_, err := Merge(graph.SectionEmails, outcomes)
	if err == nil {
		t.Fatalf("merge must fail when every chunk failed")
	}
	var mvErr *MergeValidationError
	if !asMergeErr(err, &mvErr) {
		t.Fatalf("expected MergeValidationError, got %T", err)
	}
}

func TestMergeIgnoresUnownedFields(t *testing.T) {
	outcomes := fullOutcomes(t, graph.SectionEmails)
	// welcome tries to smuggle in a field the close chunk owns.
	schema.Set(outcomes[0].Parsed, "email9.subject", "hijacked")
	schema.Set(outcomes[2].Parsed, "email9.subject", "legitimate")

	res, err := Merge(graph.SectionEmails, outcomes)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	v, _ := schema.Lookup(res.Content, "email9.subject")
	if v != "legitimate" {
		t.Fatalf("email9.subject = %v, owning chunk must win", v)
	}
}

func TestMergeOutcomeCountMismatch(t *testing.T) {
	outcomes := fullOutcomes(t, graph.SectionWebinar)
	if _, err := Merge(graph.SectionWebinar, outcomes[:2]); err == nil {
		t.Fatalf("merge must reject a short outcome list")
	}
}

func TestMergeUnchunkedSection(t *testing.T) {
	if _, err := Merge(graph.SectionFAQ, nil); err == nil {
		t.Fatalf("merge must reject sections without a chunk plan")
	}
}

func asMergeErr(err error, target **MergeValidationError) bool {
	e, ok := err.(*MergeValidationError)
	if ok {
		*target = e
	}
	return ok
}
