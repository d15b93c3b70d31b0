// Package fleet implements the Game Container and Game Wrapper: fleet-wide
// lifecycle, id allocation, indices and filter resolution, per-game mutex,
// creation from definition, destruction.
package fleet

import (
	"fmt"
	"sync"
	"time"

	"github.com/dungeongate/adventured/internal/simulation"
)

// Wrapper is the unit of a hosted simulation: its identity, mutex, and
// lifecycle. Every public operation that touches the simulation or the
// player count acquires mu for the full duration; the identity accessors
// (ID, Name, Definition, CreatedAt) and Game do not lock.
type Wrapper struct {
	mu sync.Mutex

	id               uint64
	name             string
	definition       string
	createdAt        int64
	restoredFromSlot *int

	game       simulation.Game
	numPlayers int
}

func newWrapper(id uint64, name, definition string, game simulation.Game) *Wrapper {
	return &Wrapper{
		id:         id,
		name:       name,
		definition: definition,
		createdAt:  time.Now().Unix(),
		game:       game,
	}
}

func (w *Wrapper) ID() uint64         { return w.id }
func (w *Wrapper) Name() string       { return w.name }
func (w *Wrapper) Definition() string { return w.definition }
func (w *Wrapper) CreatedAt() int64   { return w.createdAt }

// RestoredFromSlot returns the slot this wrapper was restored from, if any.
func (w *Wrapper) RestoredFromSlot() (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.restoredFromSlot == nil {
		return 0, false
	}
	return *w.restoredFromSlot, true
}

func (w *Wrapper) setRestoredFromSlot(slot int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restoredFromSlot = &slot
}

// CurrentTime returns the underlying simulation's clock.
func (w *Wrapper) CurrentTime() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.game.CurrentTime()
}

// IsRunning reports whether the underlying simulation is ticking.
func (w *Wrapper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.game.IsRunning()
}

// Start starts the simulation.
func (w *Wrapper) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.game.Start()
}

// Stop stops the simulation.
func (w *Wrapper) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.game.Stop()
}

// Meta reads the named meta keys, or all of them if keys is nil.
func (w *Wrapper) Meta(keys []string) map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.game.Meta(keys)
}

// SetMeta writes the given meta key/value pairs.
func (w *Wrapper) SetMeta(kv map[string]string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.game.SetMeta(kv)
}

// NumPlayers returns the wrapper's current player count.
func (w *Wrapper) NumPlayers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.numPlayers
}

// Statistics returns the underlying simulation's opaque statistics object.
func (w *Wrapper) Statistics() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.game.Statistics()
}

// Game returns the underlying simulation, for callers (the Input Listener)
// that need direct access across the wrapper's mutex boundary; callers must
// not mutate game.meta/player lifecycle directly — only ProcessCommand is
// safe to call concurrently with other wrapper operations, since it is
// expected to do its own synchronisation against the player's input stream.
func (w *Wrapper) Game() simulation.Game {
	return w.game
}

// Entity looks up a single entity.
func (w *Wrapper) Entity(name string) (simulation.Entity, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.game.Entity(name)
}

// Entities lists every entity of the given subtype.
func (w *Wrapper) Entities(want simulation.EntityType) []simulation.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.game.Entities(want)
}

// CreatePlayer adds a player and increments the wrapper's player count.
func (w *Wrapper) CreatePlayer(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.game.CreatePlayer(name); err != nil {
		return err
	}
	w.numPlayers++
	return nil
}

// RemovePlayer removes a player and decrements the wrapper's player count.
func (w *Wrapper) RemovePlayer(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.game.RemovePlayer(name); err != nil {
		return err
	}
	if w.numPlayers > 0 {
		w.numPlayers--
	}
	return nil
}

// Serialize encodes the underlying simulation payload for the snapshot
// subsystem; the wrapper's identity is not part of it.
func (w *Wrapper) Serialize(format string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	payload, err := w.game.Serialize(format)
	if err != nil {
		return nil, fmt.Errorf("fleet: serialize game %d: %w", w.id, err)
	}
	return payload, nil
}
