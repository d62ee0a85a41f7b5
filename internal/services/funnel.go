package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/funnelforge-backend/internal/errs"
	"github.com/yungbote/funnelforge-backend/internal/funnel/graph"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

// FunnelService owns funnel CRUD and the section-status transitions that the
// regeneration pipeline reads: approving a version makes it usable as
// downstream context, locking pins it against regeneration.
type FunnelService interface {
	Create(ctx context.Context, userID uuid.UUID, name string, answers map[string]string) (*types.Funnel, error)
	Get(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) (*types.Funnel, error)
	UpdateAnswers(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, changed map[string]string) (*types.Funnel, error)
	ListCurrentSections(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) ([]*types.SectionDocument, error)
	History(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string) ([]*types.SectionDocument, error)
	Approve(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string) error
	SetLocked(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string, locked bool) error
}

type funnelService struct {
	funnelRepo  repos.FunnelRepo
	sectionRepo repos.SectionDocumentRepo
	log         *logger.Logger
}

func NewFunnelService(funnelRepo repos.FunnelRepo, sectionRepo repos.SectionDocumentRepo, log *logger.Logger) FunnelService {
	return &funnelService{
		funnelRepo:  funnelRepo,
		sectionRepo: sectionRepo,
		log:         log.With("service", "FunnelService"),
	}
}

func (s *funnelService) Create(ctx context.Context, userID uuid.UUID, name string, answers map[string]string) (*types.Funnel, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: funnel name required", errs.ErrInvalidArgument)
	}
	if answers == nil {
		answers = map[string]string{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	funnel := &types.Funnel{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Answers:   datatypes.JSON(raw),
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.funnelRepo.Create(ctx, nil, []*types.Funnel{funnel})
	if err != nil {
		return nil, err
	}
	s.log.Info("funnel created", "funnel_id", funnel.ID, "user_id", userID)
	return created[0], nil
}

func (s *funnelService) Get(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) (*types.Funnel, error) {
	return s.owned(ctx, userID, funnelID)
}

func (s *funnelService) UpdateAnswers(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, changed map[string]string) (*types.Funnel, error) {
	funnel, err := s.owned(ctx, userID, funnelID)
	if err != nil {
		return nil, err
	}
	merged := map[string]string{}
	if len(funnel.Answers) > 0 {
		if err := json.Unmarshal(funnel.Answers, &merged); err != nil {
			return nil, fmt.Errorf("decode stored answers: %w", err)
		}
	}
	for k, v := range changed {
		merged[k] = v
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err := s.funnelRepo.UpdateAnswers(ctx, nil, funnelID, datatypes.JSON(raw)); err != nil {
		return nil, err
	}
	funnel.Answers = datatypes.JSON(raw)
	return funnel, nil
}

func (s *funnelService) ListCurrentSections(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) ([]*types.SectionDocument, error) {
	if _, err := s.owned(ctx, userID, funnelID); err != nil {
		return nil, err
	}
	return s.sectionRepo.GetCurrentByFunnelID(ctx, nil, funnelID)
}

func (s *funnelService) History(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string) ([]*types.SectionDocument, error) {
	if !graph.Known(graph.SectionID(sectionKey)) {
		return nil, fmt.Errorf("%w: unknown section %q", errs.ErrInvalidArgument, sectionKey)
	}
	if _, err := s.owned(ctx, userID, funnelID); err != nil {
		return nil, err
	}
	return s.sectionRepo.GetHistory(ctx, nil, funnelID, sectionKey)
}

func (s *funnelService) Approve(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string) error {
	current, err := s.currentOwned(ctx, userID, funnelID, sectionKey)
	if err != nil {
		return err
	}
	if current.Status == types.SectionStatusLocked {
		return fmt.Errorf("%w: section %s is locked", errs.ErrInvalidArgument, sectionKey)
	}
	if err := s.sectionRepo.UpdateCurrentStatus(ctx, nil, funnelID, sectionKey, types.SectionStatusApproved); err != nil {
		return err
	}
	s.log.Info("section approved", "funnel_id", funnelID, "section", sectionKey, "version", current.Version)
	return nil
}

// SetLocked pins or unpins the current version. Unlocking returns the section
// to approved: only an approved version can be locked in the first place.
func (s *funnelService) SetLocked(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string, locked bool) error {
	current, err := s.currentOwned(ctx, userID, funnelID, sectionKey)
	if err != nil {
		return err
	}
	if locked {
		if current.Status != types.SectionStatusApproved {
			return fmt.Errorf("%w: only an approved section can be locked", errs.ErrInvalidArgument)
		}
		return s.sectionRepo.UpdateCurrentStatus(ctx, nil, funnelID, sectionKey, types.SectionStatusLocked)
	}
	if current.Status != types.SectionStatusLocked {
		return fmt.Errorf("%w: section %s is not locked", errs.ErrInvalidArgument, sectionKey)
	}
	return s.sectionRepo.UpdateCurrentStatus(ctx, nil, funnelID, sectionKey, types.SectionStatusApproved)
}

func (s *funnelService) currentOwned(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID, sectionKey string) (*types.SectionDocument, error) {
	if !graph.Known(graph.SectionID(sectionKey)) {
		return nil, fmt.Errorf("%w: unknown section %q", errs.ErrInvalidArgument, sectionKey)
	}
	if _, err := s.owned(ctx, userID, funnelID); err != nil {
		return nil, err
	}
	current, err := s.sectionRepo.GetCurrent(ctx, nil, funnelID, sectionKey)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: section %s has no current version", errs.ErrNotFound, sectionKey)
	}
	return current, nil
}

func (s *funnelService) owned(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) (*types.Funnel, error) {
	funnel, err := s.funnelRepo.GetByID(ctx, nil, funnelID)
	if err != nil {
		return nil, err
	}
	if funnel == nil {
		return nil, errs.ErrNotFound
	}
	if funnel.UserID != userID {
		return nil, errs.ErrUnauthorized
	}
	return funnel, nil
}
