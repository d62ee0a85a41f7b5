package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Funnel struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Answers   datatypes.JSON `gorm:"type:jsonb;column:answers" json:"answers"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Funnel) TableName() string { return "funnel" }
