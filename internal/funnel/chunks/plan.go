package chunks

import (
	"time"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/prompts"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
)

// ChunkSpec describes one independently-generated slice of a large section.
// The union of OwnedFields across a section's chunks equals the section's
// declared schema exactly, and no field is owned twice; that invariant is
// what makes Merge deterministic.
type ChunkSpec struct {
	Name        string
	OwnedFields []schema.FieldPath
	BuildPrompt func(fctx *prompts.FunnelContext, feedback string) string
	MaxTokens   int
	Timeout     time.Duration
}

type chunkDef struct {
	name      string
	directive string
	maxTokens int
	timeout   time.Duration
	// fields is a closed range over the section's schema order: [from, to).
	from, to int
}

// Budgets are fixed configuration sized to expected output, not computed.
var chunkDefs = map[graph.SectionID][]chunkDef{
	graph.SectionSalesPage: {
		{name: "hero", directive: "Write only the hero block.", maxTokens: 800, timeout: 45 * time.Second, from: 0, to: 4},
		{name: "narrative", directive: "Write only the problem/story/mechanism narrative.", maxTokens: 3500, timeout: 120 * time.Second, from: 4, to: 27},
		{name: "offerStack", directive: "Write only the offer stack and pricing block.", maxTokens: 3500, timeout: 120 * time.Second, from: 27, to: 50},
		{name: "closing", directive: "Write only the FAQ, objection handling and closing block.", maxTokens: 4000, timeout: 150 * time.Second, from: 50, to: 78},
	},
	graph.SectionEmails: {
		{name: "welcome", directive: "Write only emails 1-3 (welcome arc).", maxTokens: 2500, timeout: 90 * time.Second, from: 0, to: 6},
		{name: "nurture", directive: "Write only emails 4-6 (belief-shift arc).", maxTokens: 2500, timeout: 90 * time.Second, from: 6, to: 12},
		{name: "close", directive: "Write only emails 7-9 (urgency close arc).", maxTokens: 2500, timeout: 90 * time.Second, from: 12, to: 18},
	},
	graph.SectionWebinar: {
		{name: "opening", directive: "Write only the webinar opening.", maxTokens: 1500, timeout: 60 * time.Second, from: 0, to: 5},
		{name: "teaching", directive: "Write only the teaching body.", maxTokens: 3000, timeout: 120 * time.Second, from: 5, to: 11},
		{name: "pitch", directive: "Write only the pitch and Q&A transition.", maxTokens: 2000, timeout: 90 * time.Second, from: 11, to: 15},
	},
	graph.SectionSetterScript: {
		{name: "discovery", directive: "Write only the discovery half of the call.", maxTokens: 2000, timeout: 90 * time.Second, from: 0, to: 6},
		{name: "commitment", directive: "Write only the commitment half of the call.", maxTokens: 1500, timeout: 60 * time.Second, from: 6, to: 10},
	},
}

// ChunkedSections lists the sections that fan out, in graph order.
func ChunkedSections() []graph.SectionID {
	out := make([]graph.SectionID, 0, len(chunkDefs))
	for _, id := range graph.AllSections() {
		if _, ok := chunkDefs[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// PlanFor returns the chunk plan for a section, or nil when the section is
// small enough for a single generation call.
func PlanFor(sectionID graph.SectionID) []ChunkSpec {
	defs, ok := chunkDefs[sectionID]
	if !ok {
		return nil
	}
	fields := schema.Fields(sectionID)
	specs := make([]ChunkSpec, 0, len(defs))
	for _, def := range defs {
		owned := make([]schema.FieldPath, def.to-def.from)
		copy(owned, fields[def.from:def.to])
		directive := def.directive
		id := sectionID
		specs = append(specs, ChunkSpec{
			Name:        def.name,
			OwnedFields: owned,
			BuildPrompt: func(fctx *prompts.FunnelContext, feedback string) string {
				return prompts.ChunkPrompt(id, directive, owned, fctx, feedback)
			},
			MaxTokens: def.maxTokens,
			Timeout:   def.timeout,
		})
	}
	return specs
}
