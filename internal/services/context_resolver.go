package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/prompts"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

// ContextResolver assembles the upstream context a section's prompt needs:
// the funnel's intake answers plus the approved content of every dependency
// section. Unapproved or absent dependencies are a hard failure, collected in
// full rather than reported one at a time.
type ContextResolver interface {
	Resolve(ctx context.Context, funnel *types.Funnel, sectionID graph.SectionID, updatedAnswers map[string]string) (*prompts.FunnelContext, error)
}

type contextResolver struct {
	sectionRepo repos.SectionDocumentRepo
	log         *logger.Logger
}

func NewContextResolver(sectionRepo repos.SectionDocumentRepo, log *logger.Logger) ContextResolver {
	return &contextResolver{
		sectionRepo: sectionRepo,
		log:         log.With("service", "ContextResolver"),
	}
}

func (r *contextResolver) Resolve(ctx context.Context, funnel *types.Funnel, sectionID graph.SectionID, updatedAnswers map[string]string) (*prompts.FunnelContext, error) {
	answers := map[string]string{}
	if len(funnel.Answers) > 0 {
		if err := json.Unmarshal(funnel.Answers, &answers); err != nil {
			return nil, fmt.Errorf("decode funnel answers: %w", err)
		}
	}
	// In-flight answer changes win over what is stored.
	for k, v := range updatedAnswers {
		answers[k] = v
	}

	fctx := &prompts.FunnelContext{
		FunnelID: funnel.ID,
		Answers:  answers,
		Sections: map[graph.SectionID]map[string]any{},
	}

	var missing []graph.SectionID
	for _, dep := range graph.UpstreamSections(sectionID) {
		content, err := r.approvedContent(ctx, funnel.ID, dep)
		if err != nil {
			return nil, err
		}
		if content == nil {
			missing = append(missing, dep)
			continue
		}
		fctx.Sections[dep] = content
	}
	if len(missing) > 0 {
		return nil, &MissingDependencyError{Section: sectionID, Missing: missing}
	}

	fctx.OfferName = resolveOfferName(fctx)
	return fctx, nil
}

// approvedContent returns the current version of dep only when it is
// approved. A generated-but-unapproved version counts as missing.
func (r *contextResolver) approvedContent(ctx context.Context, funnelID uuid.UUID, dep graph.SectionID) (map[string]any, error) {
	doc, err := r.sectionRepo.GetCurrent(ctx, nil, funnelID, string(dep))
	if err != nil {
		return nil, fmt.Errorf("load dependency %s: %w", dep, err)
	}
	if doc == nil || doc.Status == types.SectionStatusGenerated {
		return nil, nil
	}
	content := map[string]any{}
	if len(doc.Content) > 0 {
		if err := json.Unmarshal(doc.Content, &content); err != nil {
			return nil, fmt.Errorf("decode %s content: %w", dep, err)
		}
	}
	return content, nil
}

// resolveOfferName picks the best available product name: the approved offer
// section's name field first, then the intake answers, then a neutral
// placeholder so prompts never render an empty reference.
func resolveOfferName(fctx *prompts.FunnelContext) string {
	if offer, ok := fctx.Sections[graph.SectionOffer]; ok {
		if name, ok := offer["name"].(string); ok && name != "" {
			return name
		}
	}
	if name := fctx.Answers[graph.AnswerProductName]; name != "" {
		return name
	}
	if name := fctx.Answers[graph.AnswerBusinessName]; name != "" {
		return name
	}
	return "your offer"
}
