package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

type SectionDocumentRepo interface {
	GetCurrent(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID, sectionID string) (*types.SectionDocument, error)
	GetCurrentByFunnelID(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID) ([]*types.SectionDocument, error)
	GetHistory(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID, sectionID string) ([]*types.SectionDocument, error)

	// CreateNewVersion appends a new current version: the prior current row is
	// flipped to is_current=false and the new row gets version=max+1, both in
	// one transaction.
	CreateNewVersion(ctx context.Context, funnelID uuid.UUID, sectionID string, content datatypes.JSON, promptUsed string, warnings datatypes.JSON) (*types.SectionDocument, error)

	UpdateCurrentStatus(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID, sectionID string, status string) error
}

type sectionDocumentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionDocumentRepo(db *gorm.DB, baseLog *logger.Logger) SectionDocumentRepo {
	return &sectionDocumentRepo{db: db, log: baseLog.With("repo", "SectionDocumentRepo")}
}

func (r *sectionDocumentRepo) GetCurrent(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID, sectionID string) (*types.SectionDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var doc types.SectionDocument
	err := transaction.WithContext(ctx).
		Where("funnel_id = ? AND section_id = ? AND is_current = ?", funnelID, sectionID, true).
		First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *sectionDocumentRepo) GetCurrentByFunnelID(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID) ([]*types.SectionDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*types.SectionDocument
	if err := transaction.WithContext(ctx).
		Where("funnel_id = ? AND is_current = ?", funnelID, true).
		Order("section_id ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *sectionDocumentRepo) GetHistory(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID, sectionID string) ([]*types.SectionDocument, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var docs []*types.SectionDocument
	if err := transaction.WithContext(ctx).
		Where("funnel_id = ? AND section_id = ?", funnelID, sectionID).
		Order("version DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *sectionDocumentRepo) CreateNewVersion(ctx context.Context, funnelID uuid.UUID, sectionID string, content datatypes.JSON, promptUsed string, warnings datatypes.JSON) (*types.SectionDocument, error) {
	var created *types.SectionDocument

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var maxVersion int
		if err := tx.Model(&types.SectionDocument{}).
			Where("funnel_id = ? AND section_id = ?", funnelID, sectionID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error; err != nil {
			return fmt.Errorf("read max version: %w", err)
		}

		if err := tx.Model(&types.SectionDocument{}).
			Where("funnel_id = ? AND section_id = ? AND is_current = ?", funnelID, sectionID, true).
			Updates(map[string]interface{}{
				"is_current": false,
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("demote current version: %w", err)
		}

		doc := &types.SectionDocument{
			ID:         uuid.New(),
			FunnelID:   funnelID,
			SectionID:  sectionID,
			Content:    content,
			Status:     types.SectionStatusGenerated,
			Version:    maxVersion + 1,
			IsCurrent:  true,
			PromptUsed: promptUsed,
			Warnings:   warnings,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("insert new version: %w", err)
		}
		created = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *sectionDocumentRepo) UpdateCurrentStatus(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID, sectionID string, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.SectionDocument{}).
		Where("funnel_id = ? AND section_id = ? AND is_current = ?", funnelID, sectionID, true).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
