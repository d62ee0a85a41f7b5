package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/prompts"
	"github.com/yungbote/funnelforge-backend/internal/funnel/schema"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

func testFunnelContext() *prompts.FunnelContext {
	return &prompts.FunnelContext{
		FunnelID:  uuid.New(),
		Sections:  map[graph.SectionID]map[string]any{},
		Answers:   map[string]string{"industry": "coaching"},
		OfferName: "The Accelerator",
	}
}

func newTestGenerator(t *testing.T, ai AIClient) SectionGenerator {
	t.Helper()
	db := openTestDB(t)
	return NewSectionGenerator(ai, repos.NewAICallLogRepo(db, logger.NewNop()), logger.NewNop())
}

func TestGenerateSingleSection(t *testing.T) {
	response := universalResponse(t)
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return response, nil
	}}
	gen := newTestGenerator(t, ai)

	out, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionMessage, testFunnelContext(), "")
	require.NoError(t, err)
	require.Equal(t, 6, out.Populated)
	require.Equal(t, "generated copy for hook", out.Content["hook"])
	require.NotEmpty(t, out.Canonical)
	require.NotEmpty(t, out.PromptUsed)
	// Fields from other sections got stripped, which surfaces as a warning.
	require.NotEmpty(t, out.Warnings)
}

func TestGenerateSingleSectionToleratesFencedJSON(t *testing.T) {
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return "Sure! Here is the content:\n```json\n{\"hook\":\"h\",\"bigIdea\":\"b\",\"enemy\":\"e\",\"beliefShift\":\"s\",\"proofAngle\":\"p\",\"tagline\":\"t\"}\n```", nil
	}}
	gen := newTestGenerator(t, ai)

	out, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionMessage, testFunnelContext(), "")
	require.NoError(t, err)
	require.Equal(t, 6, out.Populated)
	require.Empty(t, out.Warnings)
}

func TestGenerateSingleSectionParseFailure(t *testing.T) {
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return "I could not produce JSON today.", nil
	}}
	gen := newTestGenerator(t, ai)

	_, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionFAQ, testFunnelContext(), "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, PhaseParsing, genErr.Phase)
}

func TestGenerateSingleSectionProviderFailure(t *testing.T) {
	calls := 0
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		calls++
		return "", fmt.Errorf("provider unavailable")
	}}
	gen := newTestGenerator(t, ai)

	_, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionFAQ, testFunnelContext(), "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, PhaseGenerating, genErr.Phase)
	require.Equal(t, 1+chunkMaxRetries, calls, "provider errors are retried")
}

func TestGenerateSectionFeedbackReachesPrompt(t *testing.T) {
	response := universalResponse(t)
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return response, nil
	}}
	gen := newTestGenerator(t, ai)

	_, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionMessage, testFunnelContext(), "Make it punchier")
	require.NoError(t, err)
	require.Len(t, ai.seenPrompts(), 1)
	require.Contains(t, ai.seenPrompts()[0], "Make it punchier")
}

func TestGenerateChunkedSection(t *testing.T) {
	response := universalResponse(t)
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return response, nil
	}}
	gen := newTestGenerator(t, ai)

	out, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionEmails, testFunnelContext(), "")
	require.NoError(t, err)
	require.Equal(t, 18, out.Populated)
	require.Len(t, ai.seenPrompts(), 3, "emails fan out into three chunk calls")
	require.Contains(t, out.PromptUsed, "=== chunk: welcome ===")
	v, ok := schema.Lookup(out.Content, "email9.body")
	require.True(t, ok)
	require.NotEmpty(t, v)
}

func TestGenerateChunkedSectionPartialChunkFailure(t *testing.T) {
	response := universalResponse(t)
	ai := &fakeAI{handler: func(_, user string, _ AIOptions) (string, error) {
		if strings.Contains(user, "urgency close arc") {
			return "", fmt.Errorf("model overloaded")
		}
		return response, nil
	}}
	gen := newTestGenerator(t, ai)

	out, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionEmails, testFunnelContext(), "")
	require.NoError(t, err, "one failed chunk must not sink the section")
	require.Equal(t, 12, out.Populated)
	if _, ok := schema.Lookup(out.Content, "email8.subject"); ok {
		t.Fatalf("failed chunk's fields must be absent")
	}
	require.Contains(t, strings.Join(out.Warnings, "; "), "close")
}

func TestGenerateChunkedSectionAllChunksFail(t *testing.T) {
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return "", fmt.Errorf("hard outage")
	}}
	gen := newTestGenerator(t, ai)

	_, err := gen.GenerateSection(context.Background(), uuid.New(), graph.SectionSetterScript, testFunnelContext(), "")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, PhaseValidating, genErr.Phase)
}

func TestGenerateSectionLogsCalls(t *testing.T) {
	db := openTestDB(t)
	response := universalResponse(t)
	ai := &fakeAI{handler: func(_, _ string, _ AIOptions) (string, error) {
		return response, nil
	}}
	gen := NewSectionGenerator(ai, repos.NewAICallLogRepo(db, logger.NewNop()), logger.NewNop())

	funnelID := uuid.New()
	_, err := gen.GenerateSection(context.Background(), funnelID, graph.SectionMessage, testFunnelContext(), "")
	require.NoError(t, err)

	var logs []types.AICallLog
	require.NoError(t, db.Where("funnel_id = ?", funnelID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.True(t, logs[0].Success)
	require.Equal(t, "message", logs[0].SectionID)
}
