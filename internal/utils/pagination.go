package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kanban-realtime-api/internal/constants"
)

// PaginationParams holds the pagination parameters
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// Unbounded reports whether the caller asked for the whole list.
func (p PaginationParams) Unbounded() bool {
	return p.Limit == 0
}

// GetPaginationParams extracts pagination parameters from the request. Without
// a page or limit query the whole list is returned, which is what board views
// expect.
func GetPaginationParams(c *gin.Context) PaginationParams {
	if c.Query("page") == "" && c.Query("limit") == "" {
		return PaginationParams{}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(constants.MinPageSize)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(constants.DefaultPageSize)))

	if page < constants.MinPageSize {
		page = constants.MinPageSize
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
