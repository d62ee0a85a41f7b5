package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// GenerationJob tracks one regeneration batch. Callers poll it (or follow SSE)
// while the batch runs server-side; the final report lands on the row.
type GenerationJob struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FunnelID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"funnel_id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SectionsRequested datatypes.JSON `gorm:"type:jsonb;column:sections_requested" json:"sections_requested"`
	Status            string         `gorm:"column:status;not null;index" json:"status"` // queued|processing|completed|failed
	Progress          int            `gorm:"column:progress;not null;default:0" json:"progress"`
	CurrentSection    string         `gorm:"column:current_section" json:"current_section"`
	Error             string         `gorm:"column:error" json:"error"`
	Report            datatypes.JSON `gorm:"type:jsonb;column:report" json:"report,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (GenerationJob) TableName() string { return "generation_job" }
