package graph

import (
	"fmt"
	"sort"
	"strings"
)

// SectionID names one unit of generated funnel content.
type SectionID string

const (
	SectionIdealClient  SectionID = "idealClient"
	SectionOffer        SectionID = "offer"
	SectionMessage      SectionID = "message"
	SectionSalesPage    SectionID = "salesPage"
	SectionEmails       SectionID = "emails"
	SectionAdCopy       SectionID = "adCopy"
	SectionSetterScript SectionID = "setterScript"
	SectionCloserScript SectionID = "closerScript"
	SectionObjections   SectionID = "objections"
	SectionFAQ          SectionID = "faq"
	SectionLeadMagnet   SectionID = "leadMagnet"
	SectionVideoScript  SectionID = "videoScript"
	SectionSocialPosts  SectionID = "socialPosts"
	SectionWebinar      SectionID = "webinar"
)

// Intake answer keys the graph knows about. Changed keys outside this list are
// tolerated and simply map to no sections.
const (
	AnswerIndustry           = "industry"
	AnswerTargetAudience     = "targetAudience"
	AnswerPainPoints         = "painPoints"
	AnswerProductDescription = "productDescription"
	AnswerProductName        = "productName"
	AnswerPricePoint         = "pricePoint"
	AnswerBusinessName       = "businessName"
	AnswerTone               = "tone"
	AnswerGoals              = "goals"
	AnswerUniqueMechanism    = "uniqueMechanism"
)

type sectionDeps struct {
	Answers  []string
	Upstream []SectionID
}

// Declaration order is the stable order used everywhere sections are listed.
var sectionOrder = []SectionID{
	SectionIdealClient,
	SectionOffer,
	SectionMessage,
	SectionSalesPage,
	SectionEmails,
	SectionAdCopy,
	SectionSetterScript,
	SectionCloserScript,
	SectionObjections,
	SectionFAQ,
	SectionLeadMagnet,
	SectionVideoScript,
	SectionSocialPosts,
	SectionWebinar,
}

var deps = map[SectionID]sectionDeps{
	SectionIdealClient: {
		Answers: []string{AnswerIndustry, AnswerTargetAudience, AnswerPainPoints},
	},
	SectionOffer: {
		Answers:  []string{AnswerProductDescription, AnswerProductName, AnswerPricePoint, AnswerUniqueMechanism},
		Upstream: []SectionID{SectionIdealClient},
	},
	SectionMessage: {
		Answers:  []string{AnswerIndustry, AnswerTone, AnswerGoals},
		Upstream: []SectionID{SectionIdealClient, SectionOffer},
	},
	SectionSalesPage: {
		Upstream: []SectionID{SectionIdealClient, SectionOffer, SectionMessage},
	},
	SectionEmails: {
		Upstream: []SectionID{SectionIdealClient, SectionOffer},
	},
	SectionAdCopy: {
		Upstream: []SectionID{SectionMessage, SectionOffer},
	},
	SectionSetterScript: {
		Upstream: []SectionID{SectionIdealClient, SectionOffer},
	},
	SectionCloserScript: {
		Upstream: []SectionID{SectionOffer, SectionObjections},
	},
	SectionObjections: {
		Upstream: []SectionID{SectionIdealClient, SectionOffer},
	},
	SectionFAQ: {
		Upstream: []SectionID{SectionOffer},
	},
	SectionLeadMagnet: {
		Upstream: []SectionID{SectionIdealClient, SectionMessage},
	},
	SectionVideoScript: {
		Upstream: []SectionID{SectionMessage, SectionOffer},
	},
	SectionSocialPosts: {
		Upstream: []SectionID{SectionMessage},
	},
	SectionWebinar: {
		Upstream: []SectionID{SectionIdealClient, SectionOffer, SectionMessage},
	},
}

// AllSections returns every known section in stable declaration order.
func AllSections() []SectionID {
	out := make([]SectionID, len(sectionOrder))
	copy(out, sectionOrder)
	return out
}

// AnswerKeys returns every intake answer key referenced by at least one section.
func AnswerKeys() []string {
	seen := map[string]bool{}
	for _, id := range sectionOrder {
		for _, k := range deps[id].Answers {
			seen[k] = true
		}
	}
	// businessName is only used by the context resolver's fallback chain,
	// but clients still need it listed.
	seen[AnswerBusinessName] = true
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Known reports whether id names a section the graph defines.
func Known(id SectionID) bool {
	_, ok := deps[id]
	return ok
}

// UpstreamSections returns the sections whose approved content id consumes as
// generation context.
func UpstreamSections(id SectionID) []SectionID {
	d, ok := deps[id]
	if !ok {
		return nil
	}
	out := make([]SectionID, len(d.Upstream))
	copy(out, d.Upstream)
	return out
}

// AnswerDependencies returns the intake answer keys id directly references.
func AnswerDependencies(id SectionID) []string {
	d, ok := deps[id]
	if !ok {
		return nil
	}
	out := make([]string, len(d.Answers))
	copy(out, d.Answers)
	return out
}

// AffectedSections computes the transitive closure of sections invalidated by
// the changed answer keys: every section directly referencing a changed key,
// plus every section downstream of one that is regenerated. Unknown keys
// contribute nothing. The result preserves stable section order.
func AffectedSections(changedKeys []string) []SectionID {
	changed := map[string]bool{}
	for _, k := range changedKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			changed[k] = true
		}
	}
	if len(changed) == 0 {
		return nil
	}

	affected := map[SectionID]bool{}
	for _, id := range sectionOrder {
		for _, k := range deps[id].Answers {
			if changed[k] {
				affected[id] = true
				break
			}
		}
	}

	// The graph is a DAG, so a fixpoint over at most len(sectionOrder)
	// passes covers any chain of downstream edges.
	for {
		grew := false
		for _, id := range sectionOrder {
			if affected[id] {
				continue
			}
			for _, up := range deps[id].Upstream {
				if affected[up] {
					affected[id] = true
					grew = true
					break
				}
			}
		}
		if !grew {
			break
		}
	}

	out := make([]SectionID, 0, len(affected))
	for _, id := range sectionOrder {
		if affected[id] {
			out = append(out, id)
		}
	}
	return out
}

// Validate rejects configuration errors: sections depending on unknown
// sections, and dependency cycles. Called once at startup and from tests;
// runtime lookups can then assume a well-formed DAG.
func Validate() error {
	for _, id := range sectionOrder {
		if _, ok := deps[id]; !ok {
			return fmt.Errorf("section %q listed but has no dependency entry", id)
		}
	}
	for id, d := range deps {
		for _, up := range d.Upstream {
			if _, ok := deps[up]; !ok {
				return fmt.Errorf("section %q depends on unknown section %q", id, up)
			}
			if up == id {
				return fmt.Errorf("section %q depends on itself", id)
			}
		}
	}

	// Kahn topological sort; leftover nodes mean a cycle.
	deg := map[SectionID]int{}
	out := map[SectionID][]SectionID{}
	for _, id := range sectionOrder {
		deg[id] = len(deps[id].Upstream)
		for _, up := range deps[id].Upstream {
			out[up] = append(out[up], id)
		}
	}
	resolved := 0
	queue := make([]SectionID, 0, len(sectionOrder))
	for _, id := range sectionOrder {
		if deg[id] == 0 {
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		resolved++
		for _, next := range out[id] {
			deg[next]--
			if deg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if resolved != len(sectionOrder) {
		remaining := make([]string, 0)
		for _, id := range sectionOrder {
			if deg[id] > 0 {
				remaining = append(remaining, string(id))
			}
		}
		return fmt.Errorf("dependency cycle involving sections: %s", strings.Join(remaining, ", "))
	}
	return nil
}
