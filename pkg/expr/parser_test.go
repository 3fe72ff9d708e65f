package expr

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CacheIsBounded(t *testing.T) {
	for i := range ParseCacheSize + 100 {
		_, err := Parse("x + " + strconv.Itoa(i))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, parseCache.Len(), ParseCacheSize)
	assert.False(t, parseCache.Contains("x + 0"), "oldest text is evicted")
	assert.True(t, parseCache.Contains("x + "+strconv.Itoa(ParseCacheSize+99)))
}

func TestParse_FailuresAreNotCached(t *testing.T) {
	_, err := Parse("1 +")
	require.Error(t, err)
	assert.False(t, parseCache.Contains("1 +"))
}
