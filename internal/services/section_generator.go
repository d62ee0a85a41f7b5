package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/funnel/chunks"
	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/prompts"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

const (
	chunkMaxRetries    = 2
	chunkRetryBase     = 2 * time.Second
	singleMaxTokens    = 3000
	singleTimeout      = 120 * time.Second
	defaultTemperature = 0.7
)

// GeneratedSection is the outcome of one section's generation pipeline,
// ready to be persisted as a new version.
type GeneratedSection struct {
	Section    graph.SectionID
	Content    map[string]any
	Canonical  []byte
	PromptUsed string
	Warnings   []string
	Populated  int
	Empty      int
}

// SectionGenerator turns resolved funnel context into validated section
// content. Large sections fan out into fixed chunk plans generated
// concurrently; everything else is a single call.
type SectionGenerator interface {
	GenerateSection(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, fctx *prompts.FunnelContext, feedback string) (*GeneratedSection, error)
}

type sectionGenerator struct {
	ai       AIClient
	callLogs repos.AICallLogRepo
	log      *logger.Logger
}

func NewSectionGenerator(ai AIClient, callLogs repos.AICallLogRepo, log *logger.Logger) SectionGenerator {
	return &sectionGenerator{
		ai:       ai,
		callLogs: callLogs,
		log:      log.With("service", "SectionGenerator"),
	}
}

func (g *sectionGenerator) GenerateSection(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, fctx *prompts.FunnelContext, feedback string) (*GeneratedSection, error) {
	if plan := chunks.PlanFor(sectionID); plan != nil {
		return g.generateChunked(ctx, funnelID, sectionID, plan, fctx, feedback)
	}
	return g.generateSingle(ctx, funnelID, sectionID, fctx, feedback)
}

func (g *sectionGenerator) generateSingle(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, fctx *prompts.FunnelContext, feedback string) (*GeneratedSection, error) {
	prompt := prompts.SectionPrompt(sectionID, fctx, feedback)

	raw, err := g.callWithRetry(ctx, funnelID, sectionID, "", prompt, AIOptions{
		MaxTokens:   singleMaxTokens,
		Temperature: defaultTemperature,
		JSONMode:    true,
		Timeout:     singleTimeout,
	})
	if err != nil {
		return nil, &GenerationError{Section: sectionID, Phase: PhaseGenerating, Err: err}
	}

	parsed, err := extractJSON(raw)
	if err != nil {
		return nil, &GenerationError{Section: sectionID, Phase: PhaseParsing, Err: err}
	}

	res, err := schema.Normalize(sectionID, parsed)
	if err != nil {
		return nil, &GenerationError{Section: sectionID, Phase: PhaseValidating, Err: err}
	}
	if res.Populated == 0 {
		return nil, &GenerationError{
			Section: sectionID,
			Phase:   PhaseValidating,
			Err:     fmt.Errorf("output has no populated fields"),
		}
	}

	canonical, err := json.Marshal(res.Content)
	if err != nil {
		return nil, &GenerationError{Section: sectionID, Phase: PhaseValidating, Err: err}
	}

	return &GeneratedSection{
		Section:    sectionID,
		Content:    res.Content,
		Canonical:  canonical,
		PromptUsed: prompt,
		Warnings:   res.Warnings,
		Populated:  res.Populated,
		Empty:      res.Empty,
	}, nil
}

func (g *sectionGenerator) generateChunked(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, plan []chunks.ChunkSpec, fctx *prompts.FunnelContext, feedback string) (*GeneratedSection, error) {
	outcomes := make([]chunks.ChunkOutcome, len(plan))
	chunkPrompts := make([]string, len(plan))

	// One failing chunk must not cancel its siblings, so workers always
	// return nil and report through their outcome slot.
	eg, gctx := errgroup.WithContext(ctx)
	for i, spec := range plan {
		i, spec := i, spec
		prompt := spec.BuildPrompt(fctx, feedback)
		chunkPrompts[i] = prompt
		eg.Go(func() error {
			parsed, err := g.runChunk(gctx, funnelID, sectionID, spec, prompt)
			outcomes[i] = chunks.ChunkOutcome{Name: spec.Name, Parsed: parsed, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	merged, err := chunks.Merge(sectionID, outcomes)
	if err != nil {
		return nil, &GenerationError{Section: sectionID, Phase: PhaseValidating, Err: err}
	}

	return &GeneratedSection{
		Section:    sectionID,
		Content:    merged.Content,
		Canonical:  merged.Canonical,
		PromptUsed: joinChunkPrompts(plan, chunkPrompts),
		Warnings:   merged.Warnings,
		Populated:  merged.Populated,
		Empty:      merged.Empty,
	}, nil
}

func (g *sectionGenerator) runChunk(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, spec chunks.ChunkSpec, prompt string) (map[string]any, error) {
	raw, err := g.callWithRetry(ctx, funnelID, sectionID, spec.Name, prompt, AIOptions{
		MaxTokens:   spec.MaxTokens,
		Temperature: defaultTemperature,
		JSONMode:    true,
		Timeout:     spec.Timeout,
	})
	if err != nil {
		return nil, err
	}
	parsed, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("chunk %q output not parseable: %w", spec.Name, err)
	}
	return parsed, nil
}

// callWithRetry wraps one AI call with the section-level retry policy:
// up to chunkMaxRetries extra attempts, delay doubling from chunkRetryBase
// with jitter. Every attempt is logged to ai_call_log best-effort.
func (g *sectionGenerator) callWithRetry(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, chunkName, prompt string, opts AIOptions) (string, error) {
	var lastErr error
	delay := chunkRetryBase

	for attempt := 0; attempt <= chunkMaxRetries; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(jitterSleep(delay)):
			}
			delay *= 2
		}

		raw, err := g.ai.Generate(ctx, prompts.SystemPreamble, prompt, opts)
		g.logCall(ctx, funnelID, sectionID, chunkName, prompt, raw, err)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		g.log.Warn("section generation attempt failed",
			"funnel_id", funnelID,
			"section", sectionID,
			"chunk", chunkName,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}
	return "", lastErr
}

func (g *sectionGenerator) logCall(ctx context.Context, funnelID uuid.UUID, sectionID graph.SectionID, chunkName, prompt, response string, callErr error) {
	entry := &types.AICallLog{
		ID:        uuid.New(),
		FunnelID:  funnelID,
		SectionID: string(sectionID),
		ChunkName: chunkName,
		Prompt:    prompt,
		Response:  response,
		Success:   callErr == nil,
		CreatedAt: time.Now(),
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if _, err := g.callLogs.Create(ctx, nil, []*types.AICallLog{entry}); err != nil {
		g.log.Warn("failed to record ai call log", "section", sectionID, "error", err.Error())
	}
}

// extractJSON parses the outermost {...} span of a model response, tolerating
// markdown fences and prose around the object.
func extractJSON(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}
	return parsed, nil
}

func joinChunkPrompts(plan []chunks.ChunkSpec, chunkPrompts []string) string {
	var b strings.Builder
	for i, spec := range plan {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("=== chunk: ")
		b.WriteString(spec.Name)
		b.WriteString(" ===\n")
		b.WriteString(chunkPrompts[i])
	}
	return b.String()
}
