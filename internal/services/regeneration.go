package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/funnelforge-backend/internal/errs"
	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/funnel/prompts"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/sse"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

const lockStaleAfter = 10 * time.Minute

// Failure kinds surfaced in regeneration reports.
const (
	FailureKindMissingDependency = "missing_dependency"
	FailureKindLockConflict      = "lock_conflict"
	FailureKindGeneration        = "generation"
	FailureKindPersistence       = "persistence"
)

// RegenerateInput describes one regeneration request. Exactly one targeting
// mode applies: an explicit SectionKey wins over RegenerateAll, which wins
// over the set derived from ChangedAnswers.
type RegenerateInput struct {
	FunnelID       uuid.UUID         `json:"funnel_id"`
	ChangedAnswers map[string]string `json:"changed_answers,omitempty"`
	SectionKey     string            `json:"section_key,omitempty"`
	Feedback       string            `json:"feedback,omitempty"`
	RegenerateAll  bool              `json:"regenerate_all,omitempty"`
	Async          bool              `json:"async,omitempty"`
}

// SectionFailure records one section that did not produce a new version.
type SectionFailure struct {
	Section graph.SectionID `json:"section"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

// RegenerationReport is the batch outcome. Partial success is the normal
// shape: some sections succeed, some fail, some are skipped because the user
// locked them, and the caller sees all three lists.
type RegenerationReport struct {
	JobID     uuid.UUID         `json:"job_id"`
	Succeeded []graph.SectionID `json:"succeeded"`
	Failed    []SectionFailure  `json:"failed"`
	Skipped   []graph.SectionID `json:"skipped"`
	NoOp      bool              `json:"no_op,omitempty"`
}

type RegenerationService interface {
	// Regenerate validates the request, persists any changed answers, then
	// regenerates the target sections. With Async the work continues in the
	// background and the returned report is nil; callers follow the job.
	Regenerate(ctx context.Context, userID uuid.UUID, input RegenerateInput) (*types.GenerationJob, *RegenerationReport, error)
}

type regenerationService struct {
	funnelRepo  repos.FunnelRepo
	sectionRepo repos.SectionDocumentRepo
	lockRepo    repos.SectionLockRepo
	jobRepo     repos.GenerationJobRepo
	resolver    ContextResolver
	generator   SectionGenerator
	hub         *sse.SSEHub
	bus         sse.Bus
	log         *logger.Logger
}

func NewRegenerationService(
	funnelRepo repos.FunnelRepo,
	sectionRepo repos.SectionDocumentRepo,
	lockRepo repos.SectionLockRepo,
	jobRepo repos.GenerationJobRepo,
	resolver ContextResolver,
	generator SectionGenerator,
	hub *sse.SSEHub,
	bus sse.Bus,
	log *logger.Logger,
) RegenerationService {
	return &regenerationService{
		funnelRepo:  funnelRepo,
		sectionRepo: sectionRepo,
		lockRepo:    lockRepo,
		jobRepo:     jobRepo,
		resolver:    resolver,
		generator:   generator,
		hub:         hub,
		bus:         bus,
		log:         log.With("service", "RegenerationService"),
	}
}

func (s *regenerationService) Regenerate(ctx context.Context, userID uuid.UUID, input RegenerateInput) (*types.GenerationJob, *RegenerationReport, error) {
	if input.FunnelID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: funnel id required", errs.ErrInvalidArgument)
	}
	funnel, err := s.funnelRepo.GetByID(ctx, nil, input.FunnelID)
	if err != nil {
		return nil, nil, err
	}
	if funnel == nil {
		return nil, nil, errs.ErrNotFound
	}
	if funnel.UserID != userID {
		return nil, nil, errs.ErrUnauthorized
	}

	targets, err := resolveTargets(input)
	if err != nil {
		return nil, nil, err
	}
	if len(targets) == 0 {
		s.log.Info("regeneration no-op, no sections affected",
			"funnel_id", input.FunnelID, "changed_keys", len(input.ChangedAnswers))
		return nil, &RegenerationReport{NoOp: true, Succeeded: []graph.SectionID{}, Failed: []SectionFailure{}, Skipped: []graph.SectionID{}}, nil
	}

	// Dependency availability cannot change mid-batch: new versions start
	// unapproved, so the approved upstream set each target sees now is the
	// set it would see later. Resolve everything up front and reject the
	// request whole when a target's dependencies are not in place.
	contexts := make(map[graph.SectionID]*prompts.FunnelContext, len(targets))
	for _, target := range targets {
		fctx, rErr := s.resolver.Resolve(ctx, funnel, target, input.ChangedAnswers)
		if rErr != nil {
			var missing *MissingDependencyError
			if errors.As(rErr, &missing) {
				return nil, nil, rErr
			}
			return nil, nil, &GenerationError{Section: target, Phase: PhaseResolvingContext, Err: rErr}
		}
		contexts[target] = fctx
	}

	// Changed answers are committed before any generation so a later crash
	// never leaves the intake out of sync with what the prompts saw.
	if len(input.ChangedAnswers) > 0 {
		if err := s.persistAnswers(ctx, funnel, input.ChangedAnswers); err != nil {
			return nil, nil, fmt.Errorf("persist answers: %w", err)
		}
	}

	job, err := s.createJob(ctx, funnel, userID, targets)
	if err != nil {
		return nil, nil, err
	}

	// The batch never inherits the caller's cancellation: once started it runs
	// to completion server-side, and sections that finish must persist even if
	// the connection that requested them is gone.
	bg := context.WithoutCancel(ctx)
	if input.Async {
		go func() {
			report := s.run(bg, funnel, job, targets, contexts, input.Feedback)
			_ = report
		}()
		return job, nil, nil
	}

	report := s.run(bg, funnel, job, targets, contexts, input.Feedback)
	return job, report, nil
}

// resolveTargets applies the targeting precedence and returns the sections to
// regenerate in stable graph order.
func resolveTargets(input RegenerateInput) ([]graph.SectionID, error) {
	if input.SectionKey != "" {
		id := graph.SectionID(input.SectionKey)
		if !graph.Known(id) {
			return nil, fmt.Errorf("%w: unknown section %q", errs.ErrInvalidArgument, input.SectionKey)
		}
		return []graph.SectionID{id}, nil
	}
	if input.RegenerateAll {
		return graph.AllSections(), nil
	}
	if len(input.ChangedAnswers) == 0 {
		return nil, fmt.Errorf("%w: request targets nothing", errs.ErrInvalidArgument)
	}
	keys := make([]string, 0, len(input.ChangedAnswers))
	for k := range input.ChangedAnswers {
		keys = append(keys, k)
	}
	return graph.AffectedSections(keys), nil
}

func (s *regenerationService) persistAnswers(ctx context.Context, funnel *types.Funnel, changed map[string]string) error {
	merged := map[string]string{}
	if len(funnel.Answers) > 0 {
		if err := json.Unmarshal(funnel.Answers, &merged); err != nil {
			return fmt.Errorf("decode stored answers: %w", err)
		}
	}
	for k, v := range changed {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if err := s.funnelRepo.UpdateAnswers(ctx, nil, funnel.ID, datatypes.JSON(raw)); err != nil {
		return err
	}
	funnel.Answers = datatypes.JSON(raw)
	return nil
}

func (s *regenerationService) createJob(ctx context.Context, funnel *types.Funnel, userID uuid.UUID, targets []graph.SectionID) (*types.GenerationJob, error) {
	requested, err := json.Marshal(targets)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	job := &types.GenerationJob{
		ID:                uuid.New(),
		FunnelID:          funnel.ID,
		UserID:            userID,
		SectionsRequested: datatypes.JSON(requested),
		Status:            types.JobStatusQueued,
		Progress:          0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	created, err := s.jobRepo.Create(ctx, nil, []*types.GenerationJob{job})
	if err != nil {
		return nil, fmt.Errorf("create generation job: %w", err)
	}
	return created[0], nil
}

// run processes the batch: all target sections generate concurrently and each
// one persists as soon as it settles. One section's failure never aborts the
// rest; the report is assembled in stable target order after everything joins.
func (s *regenerationService) run(ctx context.Context, funnel *types.Funnel, job *types.GenerationJob, targets []graph.SectionID, contexts map[graph.SectionID]*prompts.FunnelContext, feedback string) *RegenerationReport {
	report := &RegenerationReport{
		JobID:     job.ID,
		Succeeded: []graph.SectionID{},
		Failed:    []SectionFailure{},
		Skipped:   []graph.SectionID{},
	}

	s.setJobFields(ctx, job.ID, map[string]interface{}{
		"status":     types.JobStatusProcessing,
		"progress":   5,
		"updated_at": time.Now(),
	})
	s.broadcast(funnel.ID, sse.SSEEventRegenerationProgress, map[string]any{
		"job_id":   job.ID,
		"status":   types.JobStatusProcessing,
		"progress": 5,
	})

	total := len(targets)
	outcomes := make([]sectionOutcome, total)
	var settled atomic.Int64

	var g errgroup.Group
	for i, target := range targets {
		g.Go(func() error {
			outcome := s.regenerateSection(ctx, funnel, job, target, contexts[target], feedback)
			outcomes[i] = outcome
			if !outcome.skipped && outcome.failure == nil {
				s.broadcast(funnel.ID, sse.SSEEventFunnelSectionUpdated, map[string]any{
					"job_id":   job.ID,
					"section":  target,
					"version":  outcome.version,
					"warnings": outcome.warnings,
				})
			}
			done := int(settled.Add(1))
			s.progress(ctx, funnel.ID, job.ID, 5+(done*90)/total, string(target))
			return nil
		})
	}
	_ = g.Wait()

	for i, target := range targets {
		switch {
		case outcomes[i].skipped:
			report.Skipped = append(report.Skipped, target)
		case outcomes[i].failure != nil:
			report.Failed = append(report.Failed, *outcomes[i].failure)
		default:
			report.Succeeded = append(report.Succeeded, target)
		}
	}

	s.finishJob(ctx, funnel.ID, job, report)
	return report
}

type sectionOutcome struct {
	skipped  bool
	failure  *SectionFailure
	version  int
	warnings []string
}

func (s *regenerationService) regenerateSection(ctx context.Context, funnel *types.Funnel, job *types.GenerationJob, target graph.SectionID, fctx *prompts.FunnelContext, feedback string) sectionOutcome {
	current, err := s.sectionRepo.GetCurrent(ctx, nil, funnel.ID, string(target))
	if err != nil {
		return sectionOutcome{failure: &SectionFailure{Section: target, Error: err.Error(), Kind: FailureKindPersistence}}
	}
	// User-locked sections are pinned: never regenerated, never an error.
	if current != nil && current.Status == types.SectionStatusLocked {
		s.log.Info("section pinned by user, skipping", "funnel_id", funnel.ID, "section", target)
		return sectionOutcome{skipped: true}
	}

	if err := s.lockRepo.Claim(ctx, funnel.ID, string(target), job.ID, lockStaleAfter); err != nil {
		if errors.Is(err, repos.ErrLockHeld) {
			return sectionOutcome{failure: &SectionFailure{
				Section: target,
				Error:   (&LockConflictError{Section: target}).Error(),
				Kind:    FailureKindLockConflict,
			}}
		}
		return sectionOutcome{failure: &SectionFailure{Section: target, Error: err.Error(), Kind: FailureKindPersistence}}
	}
	defer func() {
		if err := s.lockRepo.Release(ctx, funnel.ID, string(target)); err != nil {
			s.log.Warn("failed to release section lock", "funnel_id", funnel.ID, "section", target, "error", err.Error())
		}
	}()

	generated, err := s.generator.GenerateSection(ctx, funnel.ID, target, fctx, feedback)
	if err != nil {
		s.log.Warn("section regeneration failed",
			"funnel_id", funnel.ID, "section", target, "error", err.Error())
		return sectionOutcome{failure: &SectionFailure{Section: target, Error: err.Error(), Kind: FailureKindGeneration}}
	}

	var warningsJSON datatypes.JSON
	if len(generated.Warnings) > 0 {
		raw, mErr := json.Marshal(generated.Warnings)
		if mErr == nil {
			warningsJSON = datatypes.JSON(raw)
		}
	}
	doc, err := s.sectionRepo.CreateNewVersion(ctx, funnel.ID, string(target), datatypes.JSON(generated.Canonical), generated.PromptUsed, warningsJSON)
	if err != nil {
		return sectionOutcome{failure: &SectionFailure{Section: target, Error: err.Error(), Kind: FailureKindPersistence}}
	}

	s.log.Info("section regenerated",
		"funnel_id", funnel.ID,
		"section", target,
		"version", doc.Version,
		"populated", generated.Populated,
		"warnings", len(generated.Warnings),
	)
	return sectionOutcome{version: doc.Version, warnings: generated.Warnings}
}

func (s *regenerationService) finishJob(ctx context.Context, funnelID uuid.UUID, job *types.GenerationJob, report *RegenerationReport) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		s.log.Error("failed to encode regeneration report", "job_id", job.ID, "error", err.Error())
		reportJSON = []byte(`{}`)
	}

	// The batch only counts as failed when nothing at all succeeded or was
	// intentionally skipped.
	status := types.JobStatusCompleted
	event := sse.SSEEventRegenerationCompleted
	jobErr := ""
	if len(report.Succeeded) == 0 && len(report.Skipped) == 0 && len(report.Failed) > 0 {
		status = types.JobStatusFailed
		event = sse.SSEEventRegenerationFailed
		jobErr = fmt.Sprintf("all %d section(s) failed", len(report.Failed))
	}

	s.setJobFields(ctx, job.ID, map[string]interface{}{
		"status":          status,
		"progress":        100,
		"current_section": "",
		"error":           jobErr,
		"report":          datatypes.JSON(reportJSON),
		"updated_at":      time.Now(),
	})
	s.broadcast(funnelID, event, map[string]any{
		"job_id": job.ID,
		"status": status,
		"report": report,
	})
}

func (s *regenerationService) progress(ctx context.Context, funnelID, jobID uuid.UUID, pct int, section string) {
	if err := s.jobRepo.SetProgress(ctx, nil, jobID, pct, section); err != nil {
		s.log.Warn("failed to update job progress", "job_id", jobID, "error", err.Error())
	}
	s.broadcast(funnelID, sse.SSEEventRegenerationProgress, map[string]any{
		"job_id":          jobID,
		"progress":        pct,
		"current_section": section,
	})
}

func (s *regenerationService) setJobFields(ctx context.Context, jobID uuid.UUID, updates map[string]interface{}) {
	if err := s.jobRepo.UpdateFields(ctx, nil, jobID, updates); err != nil {
		s.log.Warn("failed to update job", "job_id", jobID, "error", err.Error())
	}
}

func (s *regenerationService) broadcast(funnelID uuid.UUID, event sse.SSEEvent, data any) {
	msg := sse.SSEMessage{
		Channel: fmt.Sprintf("funnel:%s", funnelID),
		Event:   event,
		Data:    data,
	}
	if s.bus != nil {
		if err := s.bus.Publish(context.Background(), msg); err != nil {
			s.log.Warn("bus publish failed, falling back to local hub", "error", err.Error())
			s.hub.Broadcast(msg)
		}
		return
	}
	s.hub.Broadcast(msg)
}
