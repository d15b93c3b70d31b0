package scopes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/adventured/internal/config"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/fleet"
	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/simulation/memgame"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestDaemon(t *testing.T) (*dispatch.Dispatcher, *fleet.Container) {
	t.Helper()
	defsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(defsDir, "game.json"), []byte(`{
		"start_room": "foyer",
		"rooms": [{"name": "foyer"}]
	}`), 0o644))

	cfg := config.Default()
	cfg.Resources.DefinitionsPath = defsDir

	drivers := iodriver.NewRegistry()
	drivers.RegisterOutput(iodriver.NewLocalOutput())
	drivers.RegisterInput(iodriver.NewLocalInput())

	container := fleet.NewContainer(memgame.NewFactory(), defsDir, mustOutput(t, drivers), mustInput(t, drivers), discardLogger())

	d := dispatch.New(discardLogger())
	require.NoError(t, RegisterBuiltins(d, cfg, container, drivers))
	return d, container
}

func mustOutput(t *testing.T, r *iodriver.Registry) iodriver.OutputDriver {
	t.Helper()
	d, err := r.Output("local")
	require.NoError(t, err)
	return d
}

func mustInput(t *testing.T, r *iodriver.Registry) iodriver.InputDriver {
	t.Helper()
	d, err := r.Input("local")
	require.NoError(t, err)
	return d
}

func send(t *testing.T, d *dispatch.Dispatcher, req map[string]interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	resp := d.Dispatch(context.Background(), nil, string(raw))
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp), &out))
	return out
}

// S1: create a game, then fetch it back by id.
func TestScenarioCreateThenGetGame(t *testing.T) {
	d, _ := newTestDaemon(t)

	created := send(t, d, map[string]interface{}{
		"method": "post", "scope": "game",
		"args": map[string]interface{}{"name": "castle", "definition": "game.json"},
	})
	assert.Equal(t, float64(200), created["status"])
	id := created["id"]

	got := send(t, d, map[string]interface{}{
		"method": "get", "scope": "game",
		"args": map[string]interface{}{"id": id},
	})
	assert.Equal(t, float64(200), got["status"])
	assert.Equal(t, "castle", got["name"])
}

// S2: creating a player, then listing entities under the being sub-scope,
// finds it.
func TestScenarioCreatePlayerAppearsInBeingList(t *testing.T) {
	d, _ := newTestDaemon(t)

	created := send(t, d, map[string]interface{}{
		"method": "post", "scope": "game",
		"args": map[string]interface{}{"name": "castle", "definition": "game.json"},
	})
	id := created["id"]

	playerResp := send(t, d, map[string]interface{}{
		"method": "post", "scope": "player",
		"args": map[string]interface{}{"game_id": id, "name": "alice"},
	})
	assert.Equal(t, float64(200), playerResp["status"])

	list := send(t, d, map[string]interface{}{
		"method": "get", "scope": "being", "action": "list",
		"args": map[string]interface{}{"game_id": id},
	})
	assert.Equal(t, float64(200), list["status"])
	entities, ok := list["entities"].([]interface{})
	require.True(t, ok)
	require.Len(t, entities, 1)
}

// S3: getting an unknown scope/action returns the documented 404s.
func TestScenarioUnknownScopeAndAction(t *testing.T) {
	d, _ := newTestDaemon(t)

	resp := send(t, d, map[string]interface{}{"method": "get", "scope": "nope"})
	assert.Equal(t, float64(404), resp["status"])

	resp = send(t, d, map[string]interface{}{"method": "get", "scope": "game", "action": "nonexistent"})
	assert.Equal(t, float64(404), resp["status"])
}

// S4: removing a player that was never created returns not-found.
func TestScenarioRemoveUnknownPlayerNotFound(t *testing.T) {
	d, _ := newTestDaemon(t)

	created := send(t, d, map[string]interface{}{
		"method": "post", "scope": "game",
		"args": map[string]interface{}{"name": "castle", "definition": "game.json"},
	})
	id := created["id"]

	resp := send(t, d, map[string]interface{}{
		"method": "delete", "scope": "player",
		"args": map[string]interface{}{"game_id": id, "name": "ghost"},
	})
	assert.Equal(t, float64(404), resp["status"])
}

// S5: posting player input gets the command processed by the game's
// listener, which advances the simulation clock.
func TestScenarioPlayerInputIsProcessed(t *testing.T) {
	d, container := newTestDaemon(t)

	created := send(t, d, map[string]interface{}{
		"method": "post", "scope": "game",
		"args": map[string]interface{}{"name": "castle", "definition": "game.json"},
	})
	id := created["id"]
	idFloat := id.(float64)

	playerResp := send(t, d, map[string]interface{}{
		"method": "post", "scope": "player",
		"args": map[string]interface{}{"game_id": id, "name": "alice"},
	})
	require.Equal(t, float64(200), playerResp["status"])

	inputResp := send(t, d, map[string]interface{}{
		"method": "post", "scope": "player", "action": "input",
		"args": map[string]interface{}{"game_id": id, "name": "alice", "command": "look"},
	})
	require.Equal(t, float64(200), inputResp["status"])

	require.Eventually(t, func() bool {
		w, err := container.Get(uint64(idFloat))
		if err != nil {
			return false
		}
		return w.CurrentTime() > 0
	}, time.Second, 5*time.Millisecond)
}

// S6: destroying a game, then looking it up again, returns not-found.
func TestScenarioDestroyedGameIsGone(t *testing.T) {
	d, _ := newTestDaemon(t)

	created := send(t, d, map[string]interface{}{
		"method": "post", "scope": "game",
		"args": map[string]interface{}{"name": "castle", "definition": "game.json"},
	})
	id := created["id"]

	destroyResp := send(t, d, map[string]interface{}{
		"method": "delete", "scope": "game",
		"args": map[string]interface{}{"id": id},
	})
	assert.Equal(t, float64(200), destroyResp["status"])

	got := send(t, d, map[string]interface{}{
		"method": "get", "scope": "game",
		"args": map[string]interface{}{"id": id},
	})
	assert.Equal(t, float64(404), got["status"])
}
