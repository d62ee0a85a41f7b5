package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
)

// FieldPath is a dotted path to one leaf field of a section document, e.g.
// "hero.headline". A leaf value is a string or a list of strings.
type FieldPath string

func salesPageFields() []FieldPath {
	fields := []FieldPath{
		// hero
		"hero.headline", "hero.subheadline", "hero.ctaText", "hero.urgencyBanner",
		// narrative
		"problem.opening", "problem.agitation", "problem.cost", "problem.empathy", "problem.transition",
		"story.origin", "story.struggle", "story.discovery", "story.transformation", "story.proofPoint", "story.bridge",
		"mechanism.name", "mechanism.summary", "mechanism.steps", "mechanism.differentiator", "mechanism.analogy",
		"benefits.primary", "benefits.secondary", "benefits.emotional", "benefits.bullets",
		"socialProof.testimonialIntro", "socialProof.caseStudy", "socialProof.statLine",
	}
	// offer stack
	for _, f := range []string{
		"coreOffer", "valueStatement", "deliverables", "bonuses", "bonusValues",
		"totalValue", "priceAnchor", "priceReveal", "paymentOptions", "scarcity",
		"deadline", "guaranteeName", "guaranteeTerms", "riskReversal", "whoItsFor",
		"whoItsNotFor", "comparison", "roiCase", "enrollSteps", "ctaPrimary",
		"ctaSecondary", "checkoutBullets", "psLine",
	} {
		fields = append(fields, FieldPath("offerStack."+f))
	}
	// closing: faq pairs, objection pairs, wrap-up
	for i := 1; i <= 8; i++ {
		fields = append(fields, FieldPath(fmt.Sprintf("faq.q%d", i)))
	}
	for i := 1; i <= 8; i++ {
		fields = append(fields, FieldPath(fmt.Sprintf("faq.a%d", i)))
	}
	for i := 1; i <= 4; i++ {
		fields = append(fields, FieldPath(fmt.Sprintf("objections.concern%d", i)))
	}
	for i := 1; i <= 4; i++ {
		fields = append(fields, FieldPath(fmt.Sprintf("objections.response%d", i)))
	}
	fields = append(fields,
		"closing.recap", "closing.finalCta", "closing.signoff", "closing.psUrgency",
	)
	return fields
}

func emailFields() []FieldPath {
	fields := make([]FieldPath, 0, 18)
	for i := 1; i <= 9; i++ {
		fields = append(fields,
			FieldPath(fmt.Sprintf("email%d.subject", i)),
			FieldPath(fmt.Sprintf("email%d.body", i)),
		)
	}
	return fields
}

var sectionFields = map[graph.SectionID][]FieldPath{
	graph.SectionIdealClient: {
		"demographics", "psychographics", "painPoints", "desires",
		"objections", "wateringHoles", "buyingTriggers", "summary",
	},
	graph.SectionOffer: {
		"name", "promise", "deliverables", "pricingDisplay",
		"bonuses", "guarantee", "scarcity", "positioning",
	},
	graph.SectionMessage: {
		"hook", "bigIdea", "enemy", "beliefShift", "proofAngle", "tagline",
	},
	graph.SectionSalesPage: salesPageFields(),
	graph.SectionEmails:    emailFields(),
	graph.SectionAdCopy: {
		"primaryText", "headline", "description", "hookVariations", "ctaText", "complianceNotes",
	},
	graph.SectionSetterScript: {
		"discovery.opening", "discovery.rapport", "discovery.situationQuestions",
		"discovery.problemQuestions", "discovery.implicationQuestions", "discovery.gapSummary",
		"commitment.pitchBridge", "commitment.bookingAsk",
		"commitment.objectionResponses", "commitment.confirmation",
	},
	graph.SectionCloserScript: {
		"opening", "recap", "gapReview", "pitch",
		"priceDrop", "objectionHandling", "closeSequence", "followUp",
	},
	graph.SectionObjections: {
		"moneyObjection", "timeObjection", "trustObjection",
		"spouseObjection", "diyObjection", "urgencyObjection",
	},
	graph.SectionFAQ: {
		"intro", "items", "policies", "support", "closing",
	},
	graph.SectionLeadMagnet: {
		"title", "subtitle", "outline", "deliveryFormat", "ctaBridge", "emailTeaser",
	},
	graph.SectionVideoScript: {
		"hook", "intro", "story", "teaching", "transition", "pitch", "outro",
	},
	graph.SectionSocialPosts: {
		"authorityPost", "storyPost", "valuePost", "proofPost",
		"ctaPost", "hashtags", "postingCadence",
	},
	graph.SectionWebinar: {
		"opening.title", "opening.promise", "opening.hook", "opening.credibility", "opening.roadmap",
		"teaching.secret1", "teaching.secret2", "teaching.secret3",
		"teaching.beliefBreaks", "teaching.demos", "teaching.recap",
		"pitch.transition", "pitch.stack", "pitch.close", "pitch.qna",
	},
}

// Fields returns the declared output fields of a section in schema order.
func Fields(sectionID graph.SectionID) []FieldPath {
	fields, ok := sectionFields[sectionID]
	if !ok {
		return nil
	}
	out := make([]FieldPath, len(fields))
	copy(out, fields)
	return out
}

// Lookup resolves a dotted path inside a nested document.
func Lookup(doc map[string]any, path FieldPath) (any, bool) {
	parts := strings.Split(string(path), ".")
	cur := any(doc)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes a value at a dotted path, creating intermediate objects.
func Set(doc map[string]any, path FieldPath, val any) {
	parts := strings.Split(string(path), ".")
	cur := doc
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = val
			return
		}
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
}

// IsEmptyValue reports whether a present leaf value counts as blank: empty or
// whitespace strings, and empty lists.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

// Result describes a normalized document.
type Result struct {
	Content   map[string]any
	Populated int
	Empty     int
	Missing   int
	Stripped  []string
	Warnings  []string
}

// Normalize projects a parsed generation output onto the section's declared
// schema: known fields are copied in schema order, unknown fields are stripped
// with a warning, and blank/missing known fields are counted and warned. It
// never rejects a near-miss document outright; callers decide what a zero
// populated count means.
func Normalize(sectionID graph.SectionID, parsed map[string]any) (*Result, error) {
	fields := sectionFields[sectionID]
	if fields == nil {
		return nil, fmt.Errorf("no schema declared for section %q", sectionID)
	}

	res := &Result{Content: map[string]any{}}
	known := map[FieldPath]bool{}
	for _, f := range fields {
		known[f] = true
	}

	for _, f := range fields {
		v, ok := Lookup(parsed, f)
		if !ok {
			res.Missing++
			continue
		}
		if IsEmptyValue(v) {
			res.Empty++
			Set(res.Content, f, v)
			continue
		}
		res.Populated++
		Set(res.Content, f, v)
	}

	for _, leaf := range flatten(parsed) {
		if !known[leaf] {
			res.Stripped = append(res.Stripped, string(leaf))
		}
	}
	sort.Strings(res.Stripped)

	if len(res.Stripped) > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("stripped %d unknown field(s): %s", len(res.Stripped), strings.Join(res.Stripped, ", ")))
	}
	if res.Missing > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d declared field(s) missing from output", res.Missing))
	}
	if res.Empty > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d declared field(s) empty", res.Empty))
	}
	return res, nil
}

func flatten(doc map[string]any) []FieldPath {
	out := make([]FieldPath, 0, len(doc))
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		m, ok := v.(map[string]any)
		if !ok {
			out = append(out, FieldPath(prefix))
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			p := k
			if prefix != "" {
				p = prefix + "." + k
			}
			walk(p, m[k])
		}
	}
	walk("", doc)
	return out
}
