package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/funnelforge-backend/internal/errs"
	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/repos"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

type JobService interface {
	GetByID(ctx context.Context, userID uuid.UUID, jobID uuid.UUID) (*types.GenerationJob, error)
	GetLatestForFunnel(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) (*types.GenerationJob, error)
}

type jobService struct {
	jobRepo    repos.GenerationJobRepo
	funnelRepo repos.FunnelRepo
	log        *logger.Logger
}

func NewJobService(jobRepo repos.GenerationJobRepo, funnelRepo repos.FunnelRepo, log *logger.Logger) JobService {
	return &jobService{
		jobRepo:    jobRepo,
		funnelRepo: funnelRepo,
		log:        log.With("service", "JobService"),
	}
}

func (s *jobService) GetByID(ctx context.Context, userID uuid.UUID, jobID uuid.UUID) (*types.GenerationJob, error) {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errs.ErrNotFound
	}
	if job.UserID != userID {
		return nil, errs.ErrUnauthorized
	}
	return job, nil
}

func (s *jobService) GetLatestForFunnel(ctx context.Context, userID uuid.UUID, funnelID uuid.UUID) (*types.GenerationJob, error) {
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
	job, err := s.jobRepo.GetLatestByFunnelID(ctx, nil, funnelID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errs.ErrNotFound
	}
	return job, nil
}
