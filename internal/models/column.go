package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Column is an ordered lane on a board.
type Column struct {
	ID        string    `gorm:"type:varchar(36);primarykey" json:"id"`
	BoardID   string    `gorm:"type:varchar(36);not null;index" json:"boardId"`
	Title     string    `gorm:"type:varchar(100);not null" json:"title"`
	Order     int       `gorm:"column:sort_order;not null;default:0" json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Board Board  `gorm:"foreignKey:BoardID" json:"-"`
	Tasks []Task `gorm:"foreignKey:ColumnID" json:"tasks,omitempty"`
}

// BeforeCreate assigns a UUID when the ID is empty.
func (c *Column) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
