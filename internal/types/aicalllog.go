package types

import (
	"time"

	"github.com/google/uuid"
)

// AICallLog records one provider call for diagnostics: the exact prompt sent
// per section or chunk, and what came back.
type AICallLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FunnelID  uuid.UUID `gorm:"type:uuid;index" json:"funnel_id"`
	SectionID string    `gorm:"column:section_id;index" json:"section_id"`
	ChunkName string    `gorm:"column:chunk_name" json:"chunk_name,omitempty"`
	Prompt    string    `gorm:"column:prompt" json:"prompt"`
	Response  string    `gorm:"column:response" json:"response"`
	Success   bool      `gorm:"column:success;not null" json:"success"`
	Error     string    `gorm:"column:error" json:"error"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AICallLog) TableName() string { return "ai_call_log" }
