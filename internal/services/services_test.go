package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	"github.com/yukikurage/kanban-realtime-api/internal/database/dbtest"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/repository"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
	"github.com/yukikurage/kanban-realtime-api/internal/utils"
	"gorm.io/gorm"
)

type ServicesTestSuite struct {
	suite.Suite
	ctx        context.Context
	db         *gorm.DB
	tokens     *auth.TokenService
	auth       *services.AuthService
	workspaces *services.WorkspaceService
	boards     *services.BoardService
	columns    *services.ColumnService
	tasks      *services.TaskService

	owner  *models.User
	member *models.User
}

func (s *ServicesTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = dbtest.Open(s.T())

	userRepo := repository.NewUserRepository(s.db)
	workspaceRepo := repository.NewWorkspaceRepository(s.db)
	boardRepo := repository.NewBoardRepository(s.db)
	columnRepo := repository.NewColumnRepository(s.db)
	taskRepo := repository.NewTaskRepository(s.db)
	resolver := rbac.NewResolver(workspaceRepo)

	s.tokens = auth.NewTokenService("test-secret", time.Hour)
	s.auth = services.NewAuthService(userRepo, s.tokens)
	s.workspaces = services.NewWorkspaceService(workspaceRepo, userRepo, resolver)
	s.boards = services.NewBoardService(boardRepo, workspaceRepo, resolver)
	s.columns = services.NewColumnService(columnRepo, boardRepo, resolver)
	s.tasks = services.NewTaskService(taskRepo, columnRepo, boardRepo, resolver)

	s.owner = s.signup("owner@example.com", "Owner")
	s.member = s.signup("member@example.com", "Member")
}

func (s *ServicesTestSuite) signup(email, name string) *models.User {
	user, err := s.auth.Signup(s.ctx, services.SignupInput{Email: email, Name: name, Password: "password123"})
	s.Require().NoError(err)
	return user
}

// seedBoard creates workspace "team", board "roadmap" with columns todo/done
// and invites s.member as MEMBER.
func (s *ServicesTestSuite) seedBoard() (*models.Workspace, *models.Board, *models.Column, *models.Column) {
	workspace, err := s.workspaces.CreateWorkspace(s.ctx, services.CreateWorkspaceInput{OwnerID: s.owner.ID, Name: "Team"})
	s.Require().NoError(err)

	_, err = s.workspaces.InviteMember(s.ctx, s.owner.ID, workspace.Slug, services.InviteInput{Email: s.member.Email})
	s.Require().NoError(err)

	board, err := s.boards.CreateBoard(s.ctx, s.owner.ID, services.CreateBoardInput{WorkspaceSlug: workspace.Slug, Name: "Roadmap"})
	s.Require().NoError(err)

	todo, err := s.columns.CreateColumn(s.ctx, s.owner.ID, services.CreateColumnInput{BoardSlug: board.Slug, Title: "Todo"})
	s.Require().NoError(err)
	done, err := s.columns.CreateColumn(s.ctx, s.owner.ID, services.CreateColumnInput{BoardSlug: board.Slug, Title: "Done"})
	s.Require().NoError(err)

	return workspace, board, todo, done
}

func (s *ServicesTestSuite) TestSignup_Validation() {
	_, err := s.auth.Signup(s.ctx, services.SignupInput{Email: "owner@example.com", Name: "Again", Password: "password123"})
	s.ErrorIs(err, services.ErrEmailTaken)

	_, err = s.auth.Signup(s.ctx, services.SignupInput{Email: "short@example.com", Name: "Short", Password: "short"})
	s.ErrorIs(err, services.ErrPasswordTooShort)

	_, err = s.auth.Signup(s.ctx, services.SignupInput{Email: "nope", Name: "Nope", Password: "password123"})
	s.ErrorIs(err, services.ErrInvalidEmail)
}

func (s *ServicesTestSuite) TestLogin_IssuesVerifiableToken() {
	result, err := s.auth.Login(s.ctx, services.LoginInput{Email: "OWNER@example.com", Password: "password123"})
	s.Require().NoError(err)

	identity, err := s.tokens.Verify(result.Token)
	s.Require().NoError(err)
	s.Equal(s.owner.ID, identity.UserID)
	s.Equal(s.owner.Email, identity.Email)

	_, err = s.auth.Login(s.ctx, services.LoginInput{Email: s.owner.Email, Password: "wrong-password"})
	s.ErrorIs(err, services.ErrInvalidCredentials)
}

func (s *ServicesTestSuite) TestCreateWorkspace_SlugIsUnique() {
	workspace, err := s.workspaces.CreateWorkspace(s.ctx, services.CreateWorkspaceInput{OwnerID: s.owner.ID, Name: "Product Team!"})
	s.Require().NoError(err)
	s.Equal("product-team", workspace.Slug)

	_, err = s.workspaces.CreateWorkspace(s.ctx, services.CreateWorkspaceInput{OwnerID: s.member.ID, Name: "product team"})
	s.ErrorIs(err, services.ErrWorkspaceSlugTaken)

	_, err = s.workspaces.CreateWorkspace(s.ctx, services.CreateWorkspaceInput{OwnerID: s.owner.ID, Name: "!!!"})
	s.ErrorIs(err, services.ErrValidation)
}

func (s *ServicesTestSuite) TestInviteAndChangeRole() {
	workspace, _, _, _ := s.seedBoard()

	_, err := s.workspaces.InviteMember(s.ctx, s.owner.ID, workspace.Slug, services.InviteInput{Email: s.member.Email})
	s.ErrorIs(err, services.ErrAlreadyWorkspaceMember)

	_, err = s.workspaces.InviteMember(s.ctx, s.owner.ID, workspace.Slug, services.InviteInput{Email: s.owner.Email})
	s.ErrorIs(err, services.ErrAlreadyWorkspaceMember)

	_, err = s.workspaces.InviteMember(s.ctx, s.owner.ID, workspace.Slug, services.InviteInput{Email: "ghost@example.com"})
	s.ErrorIs(err, services.ErrUserNotFound)

	_, err = s.workspaces.InviteMember(s.ctx, s.member.ID, workspace.Slug, services.InviteInput{Email: s.owner.Email})
	s.ErrorIs(err, services.ErrForbidden)

	err = s.workspaces.ChangeMemberRole(s.ctx, s.owner.ID, workspace.Slug, services.ChangeRoleInput{Email: s.member.Email, Role: "OWNER"})
	s.ErrorIs(err, services.ErrInvalidRole)

	err = s.workspaces.ChangeMemberRole(s.ctx, s.owner.ID, workspace.Slug, services.ChangeRoleInput{Email: s.member.Email, Role: "admin"})
	s.Require().NoError(err)

	role, err := s.workspaces.RoleIn(s.ctx, s.member.ID, workspace.Slug)
	s.Require().NoError(err)
	s.Equal(rbac.RoleAdmin, role)

	memberships, err := s.workspaces.ListMemberships(s.ctx, s.member.ID)
	s.Require().NoError(err)
	s.Require().Len(memberships, 1)
	s.Equal(workspace.Slug, memberships[0].Workspace.Slug)
}

func (s *ServicesTestSuite) TestGetWorkspace_HiddenFromOutsiders() {
	workspace, _, _, _ := s.seedBoard()
	outsider := s.signup("outsider@example.com", "Outsider")

	_, _, err := s.workspaces.GetWorkspace(s.ctx, outsider.ID, workspace.Slug)
	s.ErrorIs(err, services.ErrWorkspaceNotFound)

	_, role, err := s.workspaces.GetWorkspace(s.ctx, s.member.ID, workspace.Slug)
	s.Require().NoError(err)
	s.Equal(rbac.RoleMember, role)
}

func (s *ServicesTestSuite) TestBoardManagement_OwnerOnly() {
	workspace, board, _, _ := s.seedBoard()

	_, err := s.boards.CreateBoard(s.ctx, s.member.ID, services.CreateBoardInput{WorkspaceSlug: workspace.Slug, Name: "Side"})
	s.ErrorIs(err, services.ErrForbidden)

	_, err = s.boards.DeleteBoard(s.ctx, s.member.ID, board.Slug)
	s.ErrorIs(err, services.ErrForbidden)

	other, err := s.workspaces.CreateWorkspace(s.ctx, services.CreateWorkspaceInput{OwnerID: s.member.ID, Name: "Other"})
	s.Require().NoError(err)
	_, err = s.boards.CreateBoard(s.ctx, s.member.ID, services.CreateBoardInput{WorkspaceSlug: other.Slug, Name: "Roadmap"})
	s.ErrorIs(err, services.ErrBoardSlugTaken)

	boards, err := s.boards.ListBoards(s.ctx, s.member.ID, workspace.Slug)
	s.Require().NoError(err)
	s.Len(boards, 1)
}

func (s *ServicesTestSuite) TestResolveBoard_IDOrSlug() {
	workspace, board, _, _ := s.seedBoard()

	byID, err := s.boards.ResolveBoard(s.ctx, board.ID)
	s.Require().NoError(err)
	s.Equal(board.Slug, byID.Slug)

	bySlug, err := s.boards.ResolveBoard(s.ctx, board.Slug)
	s.Require().NoError(err)
	s.Equal(board.ID, bySlug.ID)

	_, err = s.boards.ResolveBoard(s.ctx, "3f2b8c1e-9d4a-4e6f-8a7b-1c2d3e4f5a6b")
	s.ErrorIs(err, services.ErrBoardNotFound)

	// a board named after another board's ID would be unreachable by slug
	_, err = s.boards.CreateBoard(s.ctx, s.owner.ID, services.CreateBoardInput{WorkspaceSlug: workspace.Slug, Name: board.ID})
	s.ErrorIs(err, services.ErrValidation)
}

func (s *ServicesTestSuite) TestColumnOrderDefaultsToAppend() {
	_, board, todo, done := s.seedBoard()
	s.Equal(0, todo.Order)
	s.Equal(1, done.Order)

	explicit := 7
	col, err := s.columns.CreateColumn(s.ctx, s.owner.ID, services.CreateColumnInput{BoardSlug: board.Slug, Title: "Later", Order: &explicit})
	s.Require().NoError(err)
	s.Equal(7, col.Order)

	next, err := s.columns.CreateColumn(s.ctx, s.owner.ID, services.CreateColumnInput{BoardSlug: board.Slug, Title: "After"})
	s.Require().NoError(err)
	s.Equal(8, next.Order)

	columns, err := s.columns.ListColumns(s.ctx, s.member.ID, board.ID)
	s.Require().NoError(err)
	s.Require().Len(columns, 4)
	s.Equal("Todo", columns[0].Title)
	s.Equal("After", columns[3].Title)
}

func (s *ServicesTestSuite) TestCreateTask_CreatorIsCaller() {
	_, board, todo, _ := s.seedBoard()

	task, err := s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.Slug, ColumnID: todo.ID, Title: "Draft release notes"})
	s.Require().NoError(err)
	s.NotEmpty(task.ID)
	s.Equal(s.owner.ID, task.CreatedBy)
	s.Equal(board.ID, task.BoardID)
	s.Equal(models.TaskStatusBacklog, task.Status)

	_, err = s.tasks.CreateTask(s.ctx, s.member.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: todo.ID, Title: "Sneaky"})
	s.ErrorIs(err, services.ErrForbidden)

	_, err = s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: todo.ID, Title: "  "})
	s.ErrorIs(err, services.ErrValidation)

	tasks, total, err := s.tasks.ListTasks(s.ctx, s.member.ID, board.ID, utils.PaginationParams{})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal("Draft release notes", tasks[0].Title)
}

func (s *ServicesTestSuite) TestMoveTask_StaysOnBoard() {
	workspace, board, todo, done := s.seedBoard()

	task, err := s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: todo.ID, Title: "Ship", Status: "In Progress"})
	s.Require().NoError(err)

	moved, err := s.tasks.MoveTask(s.ctx, s.owner.ID, task.ID, done.ID)
	s.Require().NoError(err)
	s.Equal(done.ID, moved.ColumnID)
	s.Equal(models.TaskStatusInProgress, moved.Status)

	otherBoard, err := s.boards.CreateBoard(s.ctx, s.owner.ID, services.CreateBoardInput{WorkspaceSlug: workspace.Slug, Name: "Other"})
	s.Require().NoError(err)
	foreign, err := s.columns.CreateColumn(s.ctx, s.owner.ID, services.CreateColumnInput{BoardSlug: otherBoard.Slug, Title: "Elsewhere"})
	s.Require().NoError(err)

	_, err = s.tasks.MoveTask(s.ctx, s.owner.ID, task.ID, foreign.ID)
	s.ErrorIs(err, services.ErrColumnNotInBoard)

	err = s.tasks.PersistMove(s.ctx, otherBoard.ID, task.ID, foreign.ID)
	s.ErrorIs(err, services.ErrTaskNotFound)

	_, err = s.tasks.MoveTask(s.ctx, s.member.ID, task.ID, todo.ID)
	s.ErrorIs(err, services.ErrForbidden)
}

func (s *ServicesTestSuite) TestPersistDelete() {
	_, board, todo, _ := s.seedBoard()

	task, err := s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: todo.ID, Title: "Drop"})
	s.Require().NoError(err)

	s.Require().NoError(s.tasks.PersistDelete(s.ctx, board.ID, task.ID))
	s.ErrorIs(s.tasks.PersistDelete(s.ctx, board.ID, task.ID), services.ErrTaskNotFound)
}

func (s *ServicesTestSuite) TestDeleteWorkspace_Cascades() {
	workspace, board, todo, _ := s.seedBoard()

	_, err := s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: todo.ID, Title: "Orphan?"})
	s.Require().NoError(err)

	_, err = s.workspaces.DeleteWorkspace(s.ctx, s.member.ID, workspace.Slug)
	s.ErrorIs(err, services.ErrForbidden)

	_, err = s.workspaces.DeleteWorkspace(s.ctx, s.owner.ID, workspace.Slug)
	s.Require().NoError(err)

	for _, model := range []interface{}{&models.WorkspaceMember{}, &models.Board{}, &models.Column{}, &models.Task{}} {
		var count int64
		s.Require().NoError(s.db.Model(model).Count(&count).Error)
		s.Zero(count)
	}
}

func (s *ServicesTestSuite) TestDeleteColumn_RemovesItsTasks() {
	_, board, todo, done := s.seedBoard()

	_, err := s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: todo.ID, Title: "A"})
	s.Require().NoError(err)
	kept, err := s.tasks.CreateTask(s.ctx, s.owner.ID, services.CreateTaskInput{BoardRef: board.ID, ColumnID: done.ID, Title: "B"})
	s.Require().NoError(err)

	_, err = s.columns.DeleteColumn(s.ctx, s.owner.ID, todo.ID)
	s.Require().NoError(err)

	tasks, _, err := s.tasks.ListTasks(s.ctx, s.owner.ID, board.Slug, utils.PaginationParams{})
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Equal(kept.ID, tasks[0].ID)
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}
