package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

type GenerationJobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, jobs []*types.GenerationJob) ([]*types.GenerationJob, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationJob, error)
	GetLatestByFunnelID(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID) (*types.GenerationJob, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error

	// SetProgress raises progress, never lowers it; section workers racing to
	// report completion can apply their updates in any order.
	SetProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress int, currentSection string) error
}

type generationJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationJobRepo(db *gorm.DB, baseLog *logger.Logger) GenerationJobRepo {
	return &generationJobRepo{db: db, log: baseLog.With("repo", "GenerationJobRepo")}
}

func (r *generationJobRepo) Create(ctx context.Context, tx *gorm.DB, jobs []*types.GenerationJob) ([]*types.GenerationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(jobs) == 0 {
		return []*types.GenerationJob{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *generationJobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.GenerationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.GenerationJob
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *generationJobRepo) GetLatestByFunnelID(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID) (*types.GenerationJob, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if funnelID == uuid.Nil {
		return nil, nil
	}
	var job types.GenerationJob
	err := transaction.WithContext(ctx).
		Where("funnel_id = ?", funnelID).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, nil
	}
	return &job, nil
}

func (r *generationJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.GenerationJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *generationJobRepo) SetProgress(ctx context.Context, tx *gorm.DB, id uuid.UUID, progress int, currentSection string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.GenerationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"progress":        gorm.Expr("CASE WHEN progress < ? THEN ? ELSE progress END", progress, progress),
			"current_section": currentSection,
			"updated_at":      time.Now(),
		}).Error
}
