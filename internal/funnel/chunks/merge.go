package chunks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
)

// ChunkOutcome is one chunk's settled result: parsed JSON on success, the
// terminal error otherwise. Exactly one of Parsed/Err is set.
type ChunkOutcome struct {
	Name   string
	Parsed map[string]any
	Err    error
}

// MergeValidationError means a chunked section produced zero usable content.
type MergeValidationError struct {
	Section graph.SectionID
	Reason  string
}

func (e *MergeValidationError) Error() string {
	return fmt.Sprintf("merge validation failed for section %q: %s", e.Section, e.Reason)
}

// MergeResult is the combined document plus the field accounting the caller
// surfaces as warnings.
type MergeResult struct {
	Content   map[string]any
	Canonical []byte
	Expected  int
	Populated int
	Empty     int
	Warnings  []string
}

// Merge combines settled chunk outcomes into the section's canonical document.
// Every successful chunk contributes only the fields it owns, assigned in
// declared schema order; an errored chunk leaves its fields absent so the
// shortfall is visible in the counts. Identical outcomes always produce
// byte-identical Canonical output: assignment order is fixed by the plan and
// encoding/json writes object keys sorted.
func Merge(sectionID graph.SectionID, outcomes []ChunkOutcome) (*MergeResult, error) {
	specs := PlanFor(sectionID)
	if specs == nil {
		return nil, &MergeValidationError{Section: sectionID, Reason: "section has no chunk plan"}
	}
	if len(outcomes) != len(specs) {
		return nil, &MergeValidationError{
			Section: sectionID,
			Reason:  fmt.Sprintf("expected %d chunk outcomes, got %d", len(specs), len(outcomes)),
		}
	}

	res := &MergeResult{
		Content:  map[string]any{},
		Expected: len(schema.Fields(sectionID)),
	}

	succeeded := 0
	for i, spec := range specs {
		outcome := outcomes[i]
		if outcome.Err != nil {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("chunk %q failed, %d field(s) missing: %v", spec.Name, len(spec.OwnedFields), outcome.Err))
			continue
		}
		succeeded++
		missing := 0
		for _, f := range spec.OwnedFields {
			v, ok := schema.Lookup(outcome.Parsed, f)
			if !ok {
				missing++
				continue
			}
			schema.Set(res.Content, f, v)
			if schema.IsEmptyValue(v) {
				res.Empty++
			} else {
				res.Populated++
			}
		}
		if missing > 0 {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("chunk %q omitted %d of its %d owned field(s)", spec.Name, missing, len(spec.OwnedFields)))
		}
	}

	if succeeded == 0 {
		return nil, &MergeValidationError{Section: sectionID, Reason: "all chunks failed"}
	}
	if res.Populated == 0 {
		return nil, &MergeValidationError{Section: sectionID, Reason: "merged document has no populated fields"}
	}
	if res.Populated+res.Empty < res.Expected {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("merged document has %d of %d expected field(s)", res.Populated+res.Empty, res.Expected))
	}

	canonical, err := json.Marshal(res.Content)
	if err != nil {
		return nil, &MergeValidationError{Section: sectionID, Reason: "merged document not serializable: " + err.Error()}
	}
	res.Canonical = canonical
	return res, nil
}

// WarningSummary joins merge warnings into a single diagnostic line.
func WarningSummary(warnings []string) string {
	return strings.Join(warnings, "; ")
}
