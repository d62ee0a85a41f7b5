package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
)

// SystemPreamble is shared by every generation call, single-shot or chunked.
const SystemPreamble = "You are an elite marketing strategist who writes high-converting funnel copy. " +
	"You ground everything in the business context you are given and you return ONLY valid JSON — " +
	"no markdown fences, no commentary, no fields beyond the requested ones."

// FunnelContext is the enriched context the resolver assembles for one
// generation: approved upstream section content keyed by section id, the
// funnel's intake answers (updated answers already overlaid), and the
// canonical offer name resolved by the documented fallback chain.
type FunnelContext struct {
	FunnelID  uuid.UUID
	Sections  map[graph.SectionID]map[string]any
	Answers   map[string]string
	OfferName string
}

var sectionDirectives = map[graph.SectionID]string{
	graph.SectionIdealClient:  "Build a vivid ideal client profile for this business.",
	graph.SectionOffer:        "Design an irresistible core offer for this ideal client.",
	graph.SectionMessage:      "Distill the core marketing message that positions this offer.",
	graph.SectionSalesPage:    "Write the long-form sales page for this offer.",
	graph.SectionEmails:       "Write a nine-email launch sequence for this offer.",
	graph.SectionAdCopy:       "Write paid ad copy that stops the scroll for this ideal client.",
	graph.SectionSetterScript: "Write an appointment setter call script.",
	graph.SectionCloserScript: "Write a sales closer call script.",
	graph.SectionObjections:   "Write rebuttals for the six most common objections to this offer.",
	graph.SectionFAQ:          "Write the frequently-asked-questions block for this offer.",
	graph.SectionLeadMagnet:   "Design a lead magnet that attracts this ideal client.",
	graph.SectionVideoScript:  "Write a direct-response video sales script.",
	graph.SectionSocialPosts:  "Write a week of organic social posts promoting this message.",
	graph.SectionWebinar:      "Write a webinar presentation script that sells this offer.",
}

// SectionPrompt builds the user prompt for a single-call section.
func SectionPrompt(sectionID graph.SectionID, fctx *FunnelContext, feedback string) string {
	directive := sectionDirectives[sectionID]
	if directive == "" {
		directive = fmt.Sprintf("Generate the %q content section.", sectionID)
	}
	var b strings.Builder
	b.WriteString(directive)
	b.WriteString("\n\n")
	b.WriteString(ContextBlock(fctx))
	b.WriteString("\n")
	writeFieldList(&b, schema.Fields(sectionID))
	appendFeedback(&b, feedback)
	return b.String()
}

// ChunkPrompt builds the user prompt for one chunk of a chunked section. The
// chunk owns exactly the listed fields; the prompt names them so merge never
// sees fields another chunk owns.
func ChunkPrompt(sectionID graph.SectionID, chunkDirective string, owned []schema.FieldPath, fctx *FunnelContext, feedback string) string {
	var b strings.Builder
	b.WriteString(sectionDirectives[sectionID])
	b.WriteString(" ")
	b.WriteString(chunkDirective)
	b.WriteString("\n\n")
	b.WriteString(ContextBlock(fctx))
	b.WriteString("\n")
	writeFieldList(&b, owned)
	appendFeedback(&b, feedback)
	return b.String()
}

// ContextBlock renders the resolved context: offer name, intake answers, then
// each upstream section's content as JSON, in stable order.
func ContextBlock(fctx *FunnelContext) string {
	var b strings.Builder
	b.WriteString("BUSINESS CONTEXT\n")
	b.WriteString(fmt.Sprintf("Offer name: %s\n", fctx.OfferName))

	if len(fctx.Answers) > 0 {
		keys := make([]string, 0, len(fctx.Answers))
		for k := range fctx.Answers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Intake answers:\n")
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("- %s: %s\n", k, fctx.Answers[k]))
		}
	}

	if len(fctx.Sections) > 0 {
		for _, id := range graph.AllSections() {
			content, ok := fctx.Sections[id]
			if !ok {
				continue
			}
			raw, err := json.Marshal(content)
			if err != nil {
				continue
			}
			b.WriteString(fmt.Sprintf("Approved %s:\n%s\n", id, string(raw)))
		}
	}
	return b.String()
}

func writeFieldList(b *strings.Builder, fields []schema.FieldPath) {
	b.WriteString("Return a JSON object with exactly these fields (use nested objects for dotted paths; values are strings, or arrays of strings where a list reads naturally):\n")
	for _, f := range fields {
		b.WriteString("- ")
		b.WriteString(string(f))
		b.WriteString("\n")
	}
}

func appendFeedback(b *strings.Builder, feedback string) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return
	}
	b.WriteString("\nThe user reviewed a previous version and gave this feedback. Incorporate it strictly and exactly:\n")
	b.WriteString(feedback)
	b.WriteString("\n")
}
