package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Board belongs to a workspace and holds columns and tasks.
type Board struct {
	ID          string    `gorm:"type:varchar(36);primarykey" json:"id"`
	WorkspaceID string    `gorm:"type:varchar(36);not null;index" json:"workspaceId"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Slug        string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   string    `gorm:"type:varchar(36);not null" json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	// Relations
	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"-"`
	Columns   []Column  `gorm:"foreignKey:BoardID" json:"columns,omitempty"`
}

// BeforeCreate assigns a UUID when the ID is empty.
func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
