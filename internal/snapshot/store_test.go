package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadMetaRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())
	m := Meta{ID: 7, Name: "myGame", Definition: "game.json", Created: 1234}
	require.NoError(t, s.WriteMeta(m))

	got, err := s.ReadMeta(7)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestNextSlotStartsAtZero(t *testing.T) {
	s := NewStore(t.TempDir())
	slot, err := s.NextSlot(1)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
}

func TestRetentionKeepsMostRecentSlots(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 5; i++ {
		slot, err := s.NextSlot(1)
		require.NoError(t, err)
		require.NoError(t, s.WriteSlot(1, slot, int64(i), "json", []byte("{}")))
		require.NoError(t, s.EnforceRetention(1, 2))
	}

	slots, err := s.ExistingSlots(1)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, slots)
}

func TestReadSlotMissingReturnsNotOK(t *testing.T) {
	s := NewStore(t.TempDir())
	_, _, ok, err := s.ReadSlot(1, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGameIDsListsOnDiskGames(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.WriteMeta(Meta{ID: 3}))
	require.NoError(t, s.WriteMeta(Meta{ID: 1}))

	ids, err := s.GameIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, ids)
}
