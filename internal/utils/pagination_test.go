package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func paginationFor(target string) PaginationParams {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", target, nil)
	return GetPaginationParams(c)
}

func TestGetPaginationParams(t *testing.T) {
	p := paginationFor("/tasks")
	assert.True(t, p.Unbounded())

	p = paginationFor("/tasks?page=3&limit=20")
	assert.Equal(t, PaginationParams{Page: 3, Limit: 20, Offset: 40}, p)

	p = paginationFor("/tasks?page=0&limit=100000")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 0, p.Offset)
}
