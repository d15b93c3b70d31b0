package fleet

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/simulation/memgame"
	"github.com/dungeongate/adventured/internal/snapshot"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestFleet(t *testing.T) (*Container, string) {
	t.Helper()
	defsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "game.json"), []byte(`{
		"start_room": "foyer",
		"rooms": [{"name": "foyer"}]
	}`), 0o644))

	c := NewContainer(memgame.NewFactory(), defsDir, iodriver.NewLocalOutput(), iodriver.NewLocalInput(), discardLogger())
	return c, defsDir
}

func TestCreateDestroyGame(t *testing.T) {
	c, _ := newTestFleet(t)

	id, err := c.Create("castle", "game.json", nil)
	require.NoError(t, err)

	w, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "castle", w.Name())

	c.Destroy(id, false)
	_, err = c.Get(id)
	require.Error(t, err)
}

func TestCreateRejectsAbsoluteDefinitionPath(t *testing.T) {
	c, _ := newTestFleet(t)
	_, err := c.Create("castle", "/etc/passwd", nil)
	require.Error(t, err)
}

func TestCreatePlayerAndRemovePlayer(t *testing.T) {
	c, _ := newTestFleet(t)
	id, err := c.Create("castle", "game.json", nil)
	require.NoError(t, err)

	require.NoError(t, c.CreatePlayer(id, "alice"))
	assert.Equal(t, 1, c.NumPlayers())

	err = c.CreatePlayer(id, "alice")
	require.Error(t, err)

	require.NoError(t, c.RemovePlayer(id, "alice", ""))
	assert.Equal(t, 0, c.NumPlayers())

	err = c.RemovePlayer(id, "alice", "")
	require.Error(t, err)
}

func TestIDsAreNotReusedAfterDestroy(t *testing.T) {
	c, _ := newTestFleet(t)
	first, err := c.Create("a", "game.json", nil)
	require.NoError(t, err)
	c.Destroy(first, false)

	second, err := c.Create("b", "game.json", nil)
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestDumpAndRestoreGameRoundTrip(t *testing.T) {
	c, _ := newTestFleet(t)
	id, err := c.Create("castle", "game.json", nil)
	require.NoError(t, err)
	require.NoError(t, c.CreatePlayer(id, "alice"))

	store := snapshot.NewStore(t.TempDir())
	c.ConfigureState(store, true, "json", 5)

	slot, err := c.DumpGame(id)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)

	c.Destroy(id, false)
	_, err = c.Get(id)
	require.Error(t, err)

	restoredSlot, err := c.RestoreGame(id, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, restoredSlot)

	w, err := c.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "castle", w.Name())
}

func TestIDsAreNotReusedAcrossRestore(t *testing.T) {
	c, _ := newTestFleet(t)
	id, err := c.Create("castle", "game.json", nil)
	require.NoError(t, err)

	store := snapshot.NewStore(t.TempDir())
	c.ConfigureState(store, true, "json", 5)
	_, err = c.DumpGame(id)
	require.NoError(t, err)
	c.Destroy(id, false)

	require.NoError(t, c.RestoreAll())

	next, err := c.Create("another", "game.json", nil)
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestRetentionEnforcedAcrossRepeatedDumps(t *testing.T) {
	c, _ := newTestFleet(t)
	id, err := c.Create("castle", "game.json", nil)
	require.NoError(t, err)

	store := snapshot.NewStore(t.TempDir())
	c.ConfigureState(store, true, "json", 2)

	for i := 0; i < 4; i++ {
		_, err := c.DumpGame(id)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	slots, err := c.DumpList(id)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}
