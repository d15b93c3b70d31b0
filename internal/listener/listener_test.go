package listener

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/adventured/internal/simulation"
)

// fakeGame records the order in which commands are processed, per player,
// and can optionally block a named player's in-flight command until
// released -- used to exercise cross-player independence and the
// unblocking of an in-flight command on unsubscribe.
type fakeGame struct {
	mu      sync.Mutex
	order   []string
	block   map[string]chan struct{}
	blocked map[string]chan struct{}
}

func newFakeGame() *fakeGame {
	return &fakeGame{
		block:   make(map[string]chan struct{}),
		blocked: make(map[string]chan struct{}),
	}
}

func (g *fakeGame) blockPlayer(player string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.block[player] = make(chan struct{})
	g.blocked[player] = make(chan struct{})
}

func (g *fakeGame) waitBlocked(t *testing.T, player string) {
	t.Helper()
	g.mu.Lock()
	ch := g.blocked[player]
	g.mu.Unlock()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("player %s never entered blocked command", player)
	}
}

func (g *fakeGame) release(player string) {
	g.mu.Lock()
	ch, ok := g.block[player]
	g.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (g *fakeGame) CurrentTime() uint64 { return 0 }
func (g *fakeGame) IsRunning() bool     { return true }
func (g *fakeGame) Start()              {}
func (g *fakeGame) Stop()               {}
func (g *fakeGame) Meta(keys []string) map[string]string { return nil }
func (g *fakeGame) SetMeta(kv map[string]string)         {}
func (g *fakeGame) CreatePlayer(name string) error       { return nil }
func (g *fakeGame) RemovePlayer(name string) error       { return nil }

func (g *fakeGame) ProcessCommand(ctx context.Context, player, command string) error {
	g.mu.Lock()
	block, hasBlock := g.block[player]
	blocked := g.blocked[player]
	g.mu.Unlock()

	if hasBlock {
		close(blocked)
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.mu.Lock()
	g.order = append(g.order, player+":"+command)
	g.mu.Unlock()
	return nil
}

func (g *fakeGame) Entity(name string) (simulation.Entity, bool)       { return simulation.Entity{}, false }
func (g *fakeGame) Entities(want simulation.EntityType) []simulation.Entity { return nil }
func (g *fakeGame) Statistics() map[string]interface{}                 { return nil }
func (g *fakeGame) Serialize(format string) ([]byte, error)            { return nil, nil }

// fakeInput is a minimal InputDriver backed by per-(game,player) queues.
type fakeInput struct {
	mu     sync.Mutex
	queues map[string][]string
}

func newFakeInput() *fakeInput {
	return &fakeInput{queues: make(map[string][]string)}
}

func key(gameID uint64, player string) string {
	return player
}

func (f *fakeInput) Name() string { return "fake" }

func (f *fakeInput) push(gameID uint64, player, command string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(gameID, player)
	f.queues[k] = append(f.queues[k], command)
}

func (f *fakeInput) IsSet(gameID uint64, player string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[key(gameID, player)]) > 0, nil
}

func (f *fakeInput) Set(gameID uint64, player, command string) error {
	f.push(gameID, player, command)
	return nil
}

func (f *fakeInput) Consume(gameID uint64, player string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(gameID, player)
	q := f.queues[k]
	if len(q) == 0 {
		return "", false, nil
	}
	cmd := q[0]
	f.queues[k] = q[1:]
	return cmd, true, nil
}

func (f *fakeInput) Destroy(gameID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.queues {
		delete(f.queues, k)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestListenerProcessesQueuedCommandsInOrderPerPlayer(t *testing.T) {
	game := newFakeGame()
	input := newFakeInput()
	l := New(1, game, input, discardLogger(), nil)
	l.Subscribe("alice")
	l.Start()
	defer l.Stop()

	input.push(1, "alice", "north")
	input.push(1, "alice", "south")

	require.Eventually(t, func() bool {
		game.mu.Lock()
		defer game.mu.Unlock()
		return len(game.order) == 2
	}, time.Second, 5*time.Millisecond)

	game.mu.Lock()
	defer game.mu.Unlock()
	assert.Equal(t, []string{"alice:north", "alice:south"}, game.order)
}

func TestListenerCommandsAcrossPlayersAreIndependent(t *testing.T) {
	game := newFakeGame()
	game.blockPlayer("alice")
	input := newFakeInput()
	l := New(1, game, input, discardLogger(), nil)
	l.Subscribe("alice")
	l.Subscribe("bob")
	l.Start()
	defer l.Stop()

	input.push(1, "alice", "wait")
	game.waitBlocked(t, "alice")

	input.push(1, "bob", "look")
	require.Eventually(t, func() bool {
		game.mu.Lock()
		defer game.mu.Unlock()
		for _, entry := range game.order {
			if entry == "bob:look" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	game.release("alice")
}

func TestUnsubscribeCancelsInFlightCommandAndRunsCallback(t *testing.T) {
	game := newFakeGame()
	game.blockPlayer("alice")
	input := newFakeInput()
	l := New(1, game, input, discardLogger(), nil)
	l.Subscribe("alice")
	l.Start()
	defer l.Stop()

	input.push(1, "alice", "wait")
	game.waitBlocked(t, "alice")

	done := make(chan struct{})
	l.Unsubscribe("alice", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe callback never ran; in-flight command was not unblocked")
	}
}
