package services

import (
	"fmt"
	"strings"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
)

// Generation phases, used to classify failures in reports and logs.
const (
	PhaseResolvingContext = "resolving_context"
	PhaseGenerating       = "generating"
	PhaseParsing          = "parsing"
	PhaseValidating       = "validating"
)

// MissingDependencyError means a section cannot be generated because one or
// more of its upstream sections has no approved current version. The request
// that triggered it is rejected up front, before any generation starts.
type MissingDependencyError struct {
	Section graph.SectionID
	Missing []graph.SectionID
}

func (e *MissingDependencyError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, string(m))
	}
	return fmt.Sprintf("section %s is missing approved dependencies: %s",
		e.Section, strings.Join(parts, ", "))
}

// GenerationError wraps a failure inside one section's generation pipeline
// so the orchestrator can report which phase broke.
type GenerationError struct {
	Section graph.SectionID
	Phase   string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("section %s failed while %s: %v", e.Section, e.Phase, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// LockConflictError means another job holds the section's generation lock.
type LockConflictError struct {
	Section graph.SectionID
}

func (e *LockConflictError) Error() string {
	return fmt.Sprintf("section %s is locked by another regeneration job", e.Section)
}
