package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/funnelforge-backend/internal/logger"
	"github.com/yungbote/funnelforge-backend/internal/types"
)

// ErrLockHeld means another regeneration currently owns the section.
var ErrLockHeld = errors.New("section lock held")

type SectionLockRepo interface {
	// Claim takes the (funnel, section) lock, stealing it only when the
	// existing holder is older than staleAfter. Returns ErrLockHeld when a
	// fresh lock exists.
	Claim(ctx context.Context, funnelID uuid.UUID, sectionID string, jobID uuid.UUID, staleAfter time.Duration) error
	Release(ctx context.Context, funnelID uuid.UUID, sectionID string) error
}

type sectionLockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectionLockRepo(db *gorm.DB, baseLog *logger.Logger) SectionLockRepo {
	return &sectionLockRepo{db: db, log: baseLog.With("repo", "SectionLockRepo")}
}

func (r *sectionLockRepo) Claim(ctx context.Context, funnelID uuid.UUID, sectionID string, jobID uuid.UUID, staleAfter time.Duration) error {
	now := time.Now()

	lock := &types.SectionLock{
		ID:        uuid.New(),
		FunnelID:  funnelID,
		SectionID: sectionID,
		JobID:     jobID,
		LockedAt:  now,
	}
	err := r.db.WithContext(ctx).Create(lock).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return err
	}

	// A lock row exists. Steal it only if stale; the conditional UPDATE is the
	// race arbiter — RowsAffected 0 means someone else holds a fresh lock.
	cutoff := now.Add(-staleAfter)
	res := r.db.WithContext(ctx).
		Model(&types.SectionLock{}).
		Where("funnel_id = ? AND section_id = ? AND locked_at < ?", funnelID, sectionID, cutoff).
		Updates(map[string]interface{}{
			"job_id":    jobID,
			"locked_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrLockHeld
	}
	r.log.Warn("Reclaimed stale section lock", "funnel_id", funnelID, "section_id", sectionID)
	return nil
}

func (r *sectionLockRepo) Release(ctx context.Context, funnelID uuid.UUID, sectionID string) error {
	return r.db.WithContext(ctx).
		Where("funnel_id = ? AND section_id = ?", funnelID, sectionID).
		Delete(&types.SectionLock{}).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
