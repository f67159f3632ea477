package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"gorm.io/gorm"
)

func TestUpdateMemberRole_UnchangedRoleSucceeds(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewWorkspaceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "workspace_members" SET "role"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "workspace_members"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := repo.UpdateMemberRole(context.Background(), "ws-1", "user-1", models.RoleAdmin)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberRole_MissingMember(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewWorkspaceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "workspace_members" SET "role"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "workspace_members"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := repo.UpdateMemberRole(context.Background(), "ws-1", "missing", models.RoleAdmin)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
