package dto

import (
	"time"

	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// MemberDTO is one row of a workspace member listing
type MemberDTO struct {
	UserID   string               `json:"userId"`
	Name     string               `json:"name"`
	Email    string               `json:"email"`
	Role     models.WorkspaceRole `json:"role"`
	JoinedAt time.Time            `json:"joinedAt"`
}

// MembershipDTO is a workspace the caller was invited into
type MembershipDTO struct {
	Role models.WorkspaceRole `json:"role"`
	Name string               `json:"name"`
	Slug string               `json:"slug"`
}

// WorkspaceDetailDTO is a workspace with the caller's role in it
type WorkspaceDetailDTO struct {
	models.Workspace
	Role rbac.Role `json:"role"`
}

// Pagination is included in task listings when the client asked for a page
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// ToUserDTO converts a User model to a UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

// ToMemberDTO converts a WorkspaceMember with its preloaded User to a MemberDTO
func ToMemberDTO(member models.WorkspaceMember) MemberDTO {
	return MemberDTO{
		UserID:   member.UserID,
		Name:     member.User.Name,
		Email:    member.User.Email,
		Role:     member.Role,
		JoinedAt: member.JoinedAt,
	}
}

// ToMemberDTOs converts a slice of WorkspaceMember models to MemberDTOs
func ToMemberDTOs(members []models.WorkspaceMember) []MemberDTO {
	out := make([]MemberDTO, len(members))
	for i, member := range members {
		out[i] = ToMemberDTO(member)
	}
	return out
}

// ToMembershipDTOs drops memberships whose workspace no longer loads.
func ToMembershipDTOs(memberships []models.WorkspaceMember) []MembershipDTO {
	out := make([]MembershipDTO, 0, len(memberships))
	for _, membership := range memberships {
		if membership.Workspace.ID == "" {
			continue
		}
		out = append(out, MembershipDTO{
			Role: membership.Role,
			Name: membership.Workspace.Name,
			Slug: membership.Workspace.Slug,
		})
	}
	return out
}

// ToPagination returns nil for unbounded listings.
func ToPagination(params utils.PaginationParams, total int64) *Pagination {
	if params.Unbounded() {
		return nil
	}
	return &Pagination{Page: params.Page, Limit: params.Limit, Total: total}
}
