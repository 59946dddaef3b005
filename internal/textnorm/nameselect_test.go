package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBestEmpty(t *testing.T) {
	got, ok := SelectBest(nil)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestSelectBestSingle(t *testing.T) {
	got, ok := SelectBest([]string{"anything goes"})
	require.True(t, ok)
	assert.Equal(t, "anything goes", got)
}

func TestSelectBestPrefersPunctuation(t *testing.T) {
	got, ok := SelectBest([]string{
		"booker t and the mgs",
		"Booker T & The MG's",
	})
	require.True(t, ok)
	assert.Equal(t, "Booker T & The MG's", got)
}

func TestSelectBestDeterministic(t *testing.T) {
	candidates := []string{
		"Booker T & The MG's",
		"booker t and the mgs",
		"Booker T and The MG's",
	}
	first, ok := SelectBest(candidates)
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := SelectBest(candidates)
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestSelectBestPenalizesDoubledSpaces(t *testing.T) {
	got, ok := SelectBest([]string{
		"sly  and the family stone",
		"sly and the family stone",
	})
	require.True(t, ok)
	assert.Equal(t, "sly and the family stone", got)
}

func TestSelectBestPrefersCorrectSmallWordCase(t *testing.T) {
	got, ok := SelectBest([]string{
		"Sly And The Family Stone",
		"Sly and the Family Stone",
	})
	require.True(t, ok)
	assert.Equal(t, "Sly and the Family Stone", got)
}

func TestTitleize(t *testing.T) {
	assert.Equal(t, "The Family Stone", Titleize("the family stone"))
	assert.Equal(t, "Sly and the Family Stone", Titleize("SLY AND THE FAMILY STONE"))
	assert.Equal(t, "", Titleize("   "))
}
