package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	SectionStatusGenerated = "generated"
	SectionStatusApproved  = "approved"
	SectionStatusLocked    = "locked"
)

// SectionDocument is one version of one content section for one funnel.
// Versions are append-only; exactly one row per (funnel, section) carries
// is_current=true.
type SectionDocument struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FunnelID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_section_document_current,priority:1" json:"funnel_id"`
	SectionID  string         `gorm:"column:section_id;not null;index:idx_section_document_current,priority:2" json:"section_id"`
	Content    datatypes.JSON `gorm:"type:jsonb;column:content" json:"content"`
	Status     string         `gorm:"column:status;not null;index" json:"status"` // generated|approved|locked
	Version    int            `gorm:"column:version;not null;default:1" json:"version"`
	IsCurrent  bool           `gorm:"column:is_current;not null;index:idx_section_document_current,priority:3" json:"is_current"`
	PromptUsed string         `gorm:"column:prompt_used" json:"prompt_used,omitempty"`
	Warnings   datatypes.JSON `gorm:"type:jsonb;column:warnings" json:"warnings,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SectionDocument) TableName() string { return "section_document" }

// SectionLock serializes regenerations of one (funnel, section). A row is the
// lock; a row older than the stale cutoff is reclaimable, so a crash cannot
// wedge a section forever.
type SectionLock struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FunnelID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_section_lock_target,priority:1" json:"funnel_id"`
	SectionID string    `gorm:"column:section_id;not null;uniqueIndex:idx_section_lock_target,priority:2" json:"section_id"`
	JobID     uuid.UUID `gorm:"type:uuid;column:job_id" json:"job_id"`
	LockedAt  time.Time `gorm:"column:locked_at;not null;index" json:"locked_at"`
}

func (SectionLock) TableName() string { return "section_lock" }
