package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kanban-realtime-api/internal/database/dbtest"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
)

func TestMigrate_CreatesTables(t *testing.T) {
	db := dbtest.Open(t)

	for _, model := range []interface{}{
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Board{},
		&models.Column{},
		&models.Task{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}

	assert.True(t, db.Migrator().HasColumn(&models.Column{}, "sort_order"))
}

func TestMigrate_SlugsAreUnique(t *testing.T) {
	db := dbtest.Open(t)

	owner := &models.User{Email: "owner@example.com", Name: "Owner", PasswordHash: "x"}
	require.NoError(t, db.Create(owner).Error)

	first := &models.Workspace{Name: "Team", Slug: "team", OwnerID: owner.ID}
	require.NoError(t, db.Create(first).Error)

	dup := &models.Workspace{Name: "Team", Slug: "team", OwnerID: owner.ID}
	err := db.Create(dup).Error
	require.Error(t, err)
}

func TestTask_DefaultsToBacklog(t *testing.T) {
	db := dbtest.Open(t)

	task := &models.Task{BoardID: "b", ColumnID: "c", Title: "Write docs", CreatedBy: "u"}
	require.NoError(t, db.Create(task).Error)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.TaskStatusBacklog, task.Status)
}
