package memgame

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/adventured/internal/simulation"
)

func writeDefinition(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCreateFromDefinitionSeedsEntitiesAndStartRoom(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "game.json", `{
		"start_room": "foyer",
		"rooms": [{"name": "foyer"}],
		"objects": [{"name": "lamp", "attributes": {"lit": false}}]
	}`)

	factory := NewFactory()
	game, err := factory.CreateFromDefinition(path)
	require.NoError(t, err)

	entity, ok := game.Entity("foyer")
	require.True(t, ok)
	assert.Equal(t, simulation.TypeRoom, entity.Type)

	entity, ok = game.Entity("lamp")
	require.True(t, ok)
	assert.Equal(t, simulation.TypeObject, entity.Type)

	assert.Equal(t, "foyer", game.Meta([]string{"start_room"})["start_room"])
}

func TestCreatePlayerPlacesInStartRoom(t *testing.T) {
	dir := t.TempDir()
	path := writeDefinition(t, dir, "game.json", `{"start_room": "foyer", "rooms": [{"name": "foyer"}]}`)

	factory := NewFactory()
	game, err := factory.CreateFromDefinition(path)
	require.NoError(t, err)

	require.NoError(t, game.CreatePlayer("alice"))
	err = game.CreatePlayer("alice")
	assert.ErrorIs(t, err, simulation.ErrEntityExists)

	entity, ok := game.Entity("alice")
	require.True(t, ok)
	assert.Equal(t, "foyer", entity.Attributes["room"])
}

func TestRemovePlayerNotFound(t *testing.T) {
	game := newGame()
	err := game.RemovePlayer("nobody")
	assert.ErrorIs(t, err, simulation.ErrEntityNotFound)
}

func TestProcessCommandAdvancesClockAndRecordsLastCommand(t *testing.T) {
	game := newGame()
	require.NoError(t, game.CreatePlayer("alice"))

	require.NoError(t, game.ProcessCommand(context.Background(), "alice", "look"))
	assert.Equal(t, uint64(1), game.CurrentTime())

	entity, ok := game.Entity("alice")
	require.True(t, ok)
	assert.Equal(t, "look", entity.Attributes["last_command"])
}

func TestEntitiesFiltersByHierarchy(t *testing.T) {
	game := newGame()
	require.NoError(t, game.CreatePlayer("alice"))
	game.entities["foyer"] = record{entityType: simulation.TypeRoom}
	game.entities["lamp"] = record{entityType: simulation.TypeObject}

	beings := game.Entities(simulation.TypeBeing)
	require.Len(t, beings, 1)
	assert.Equal(t, "alice", beings[0].Name)

	tangibles := game.Entities(simulation.TypeTangible)
	assert.Len(t, tangibles, 3)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	game := newGame()
	require.NoError(t, game.CreatePlayer("alice"))
	game.SetMeta(map[string]string{"start_room": "foyer"})
	game.Start()

	payload, err := game.Serialize("json")
	require.NoError(t, err)

	factory := NewFactory()
	restored, err := factory.Deserialize("json", payload)
	require.NoError(t, err)

	assert.True(t, restored.IsRunning())
	entity, ok := restored.Entity("alice")
	require.True(t, ok)
	assert.Equal(t, simulation.TypePlayer, entity.Type)
}

func TestDeserializeRejectsUnsupportedFormat(t *testing.T) {
	factory := NewFactory()
	_, err := factory.Deserialize("xml", []byte("<game/>"))
	require.Error(t, err)
}
