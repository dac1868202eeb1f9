package preset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownPreset(t *testing.T) {
	p, err := Resolve(Social)
	require.NoError(t, err)
	assert.Equal(t, Social, p.ID)
	assert.Equal(t, 85, p.Quality)
	assert.Equal(t, 1200, p.MaxWidth)
	assert.Equal(t, 1200, p.MaxHeight)
	assert.Equal(t, "jpg", p.Format)
}

func TestResolveArchiveHasNoDimensionLimits(t *testing.T) {
	p, err := Resolve(Archive)
	require.NoError(t, err)
	assert.Zero(t, p.MaxWidth)
	assert.Zero(t, p.MaxHeight)
}

func TestResolveUnknownPreset(t *testing.T) {
	_, err := Resolve("print")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestAllListsEveryPresetInOrder(t *testing.T) {
	all := All()
	require.Len(t, all, len(order))
	for i, p := range all {
		assert.Equal(t, order[i], p.ID)
		assert.NotEmpty(t, p.Name)
		assert.GreaterOrEqual(t, p.Quality, 1)
		assert.LessOrEqual(t, p.Quality, 100)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Quality = 1

	p, err := Resolve(all[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, 1, p.Quality)
}
