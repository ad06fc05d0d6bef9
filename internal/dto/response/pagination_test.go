package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 1, 2, 5)
	assert.Equal(t, 3, p.Pagination.TotalPages)
	assert.True(t, p.Pagination.HasNext)

	last := NewPage([]int{5}, 3, 2, 5)
	assert.False(t, last.Pagination.HasNext)

	empty := NewPage[int](nil, 1, 10, 0)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 0, empty.Pagination.TotalPages)
	assert.False(t, empty.Pagination.HasNext)
}
