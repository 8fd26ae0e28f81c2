package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePartitionOffset(t *testing.T) {
	partition, offset, err := parsePartitionOffset("2:1234")
	require.NoError(t, err)
	assert.Equal(t, int32(2), partition)
	assert.Equal(t, int64(1234), offset)

	for _, bad := range []string{"", "1", "a:1", "1:b", "-1:5", "1:2:3"} {
		_, _, err := parsePartitionOffset(bad)
		assert.Error(t, err, bad)
	}
}
