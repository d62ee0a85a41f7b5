package chunks

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/prompts"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
)

func TestPlansCoverSchemaExactly(t *testing.T) {
	for _, id := range ChunkedSections() {
		plan := PlanFor(id)
		if len(plan) < 2 {
			t.Fatalf("section %s: chunk plan must split work, got %d chunk(s)", id, len(plan))
		}

		declared := schema.Fields(id)
		owned := map[schema.FieldPath]string{}
		var flat []schema.FieldPath
		for _, spec := range plan {
			if len(spec.OwnedFields) == 0 {
				t.Fatalf("section %s chunk %s owns no fields", id, spec.Name)
			}
			for _, f := range spec.OwnedFields {
				if prev, dup := owned[f]; dup {
					t.Fatalf("section %s: field %s owned by both %s and %s", id, f, prev, spec.Name)
				}
				owned[f] = spec.Name
				flat = append(flat, f)
			}
		}
		if len(flat) != len(declared) {
			t.Fatalf("section %s: plan owns %d fields, schema declares %d", id, len(flat), len(declared))
		}
		for i, f := range declared {
			if flat[i] != f {
				t.Fatalf("section %s: plan order diverges from schema at %d: %s vs %s", id, i, flat[i], f)
			}
		}
	}
}

func TestSalesPagePlanShape(t *testing.T) {
	plan := PlanFor(graph.SectionSalesPage)
	if len(plan) != 4 {
		t.Fatalf("salesPage should have 4 chunks, got %d", len(plan))
	}
	wantSizes := map[string]int{"hero": 4, "narrative": 23, "offerStack": 23, "closing": 28}
	for _, spec := range plan {
		if got := len(spec.OwnedFields); got != wantSizes[spec.Name] {
			t.Fatalf("chunk %s owns %d fields, want %d", spec.Name, got, wantSizes[spec.Name])
		}
		if spec.MaxTokens <= 0 || spec.Timeout <= 0 {
			t.Fatalf("chunk %s has no budget configured", spec.Name)
		}
	}
}

func TestPlanForUnchunkedSection(t *testing.T) {
	if plan := PlanFor(graph.SectionAdCopy); plan != nil {
		t.Fatalf("adCopy should not be chunked, got %d chunks", len(plan))
	}
}

func TestChunkPromptsNameOwnedFieldsOnly(t *testing.T) {
	fctx := &prompts.FunnelContext{
		FunnelID:  uuid.New(),
		Answers:   map[string]string{"industry": "coaching"},
		Sections:  map[graph.SectionID]map[string]any{},
		OfferName: "The Accelerator",
	}
	plan := PlanFor(graph.SectionEmails)
	for _, spec := range plan {
		prompt := spec.BuildPrompt(fctx, "")
		for _, f := range spec.OwnedFields {
			if !strings.Contains(prompt, string(f)) {
				t.Fatalf("chunk %s prompt does not name owned field %s", spec.Name, f)
			}
		}
	}
	// welcome owns email1-3; its prompt must not ask for email9.
	welcome := plan[0].BuildPrompt(fctx, "")
	if strings.Contains(welcome, "email9.subject") {
		t.Fatalf("welcome chunk prompt lists a field owned by the close chunk")
	}
}
