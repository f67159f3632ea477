package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the progress label of a task. It is independent of the column.
type TaskStatus string

const (
	TaskStatusBacklog    TaskStatus = "Backlog"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusBacklog, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task status is not tied to its column; moving a task never changes it.
type Task struct {
	ID          string     `gorm:"type:varchar(36);primarykey" json:"id"`
	BoardID     string     `gorm:"type:varchar(36);not null;index" json:"boardId"`
	ColumnID    string     `gorm:"type:varchar(36);not null;index" json:"columnId"`
	Title       string     `gorm:"type:varchar(200);not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;default:'Backlog'" json:"status"`
	CreatedBy   string     `gorm:"type:varchar(36);not null" json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Relations
	Board   Board  `gorm:"foreignKey:BoardID" json:"-"`
	Column  Column `gorm:"foreignKey:ColumnID" json:"-"`
	Creator User   `gorm:"foreignKey:CreatedBy" json:"-"`
}

// BeforeCreate assigns a UUID and the default status.
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TaskStatusBacklog
	}
	return nil
}
