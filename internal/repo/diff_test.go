package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffIDs(t *testing.T) {
	d := diffIDs([]int64{1, 2, 3}, []int64{3, 4, 5})
	assert.Equal(t, []int64{4, 5}, d.Added)
	assert.Equal(t, []int64{1, 2}, d.Removed)

	d = diffIDs([]int64{1, 2}, []int64{2, 1})
	assert.True(t, d.Empty())

	d = diffIDs(nil, nil)
	assert.True(t, d.Empty())
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 7}, uniqueIDs([]int64{7, 1, 2, 7, 1}))
	assert.Empty(t, uniqueIDs(nil))
}
