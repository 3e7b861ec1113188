package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailLevelRankOrdering(t *testing.T) {
	assert.Less(t, DetailMinimal.Rank(), DetailSignature.Rank())
	assert.Less(t, DetailSignature.Rank(), DetailDeps.Rank())
	assert.Less(t, DetailDeps.Rank(), DetailFull.Rank())
}

func TestCompactAliasesDepsRank(t *testing.T) {
	assert.Equal(t, DetailDeps.Rank(), DetailCompact.Rank())
}

func TestAtLeast(t *testing.T) {
	assert.True(t, DetailFull.AtLeast(DetailMinimal))
	assert.False(t, DetailMinimal.AtLeast(DetailFull))
	assert.True(t, DetailCompact.AtLeast(DetailDeps))
}

func TestSortedUniqueStrings(t *testing.T) {
	out := SortedUniqueStrings([]string{"b", "a", "b", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestSortedUniqueStringsEmpty(t *testing.T) {
	assert.Nil(t, SortedUniqueStrings(nil))
}
