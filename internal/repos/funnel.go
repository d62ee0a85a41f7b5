package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

type FunnelRepo interface {
	Create(ctx context.Context, tx *gorm.DB, funnels []*types.Funnel) ([]*types.Funnel, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Funnel, error)
	UpdateAnswers(ctx context.Context, tx *gorm.DB, id uuid.UUID, answers datatypes.JSON) error
}

type funnelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFunnelRepo(db *gorm.DB, baseLog *logger.Logger) FunnelRepo {
	return &funnelRepo{db: db, log: baseLog.With("repo", "FunnelRepo")}
}

func (r *funnelRepo) Create(ctx context.Context, tx *gorm.DB, funnels []*types.Funnel) ([]*types.Funnel, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(funnels) == 0 {
		return []*types.Funnel{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&funnels).Error; err != nil {
		return nil, err
	}
	return funnels, nil
}

func (r *funnelRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Funnel, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var funnel types.Funnel
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&funnel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &funnel, nil
}

func (r *funnelRepo) UpdateAnswers(ctx context.Context, tx *gorm.DB, id uuid.UUID, answers datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.Funnel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"answers":    answers,
			"updated_at": time.Now(),
		}).Error
}
