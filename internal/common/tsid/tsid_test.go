package tsid

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateIsSortedAndUnique(t *testing.T) {
	const n = 200
	ids := make([]string, n)
	for i := range ids {
		ids[i] = Generate()
	}

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		require.Len(t, id, 13)
		_, dup := seen[id]
		require.False(t, dup, "id %q generated twice", id)
		seen[id] = struct{}{}
	}

	require.True(t, sort.StringsAreSorted(ids), "ids must sort in generation order")
}
