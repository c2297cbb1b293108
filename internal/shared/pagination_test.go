package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationDefaults(t *testing.T) {
	p := NewPagination(0, 0, 45)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
	assert.Equal(t, 45, p.Total)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, p.Offset())
}

func TestPaginationOffset(t *testing.T) {
	p := NewPagination(3, 10, 100)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 10, p.TotalPages)
}

func TestPaginationNegativePage(t *testing.T) {
	p := NewPagination(-5, 10, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.TotalPages)
	assert.Equal(t, 0, p.Offset())
}
