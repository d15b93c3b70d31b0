// Package memgame is the in-memory reference implementation of
// simulation.Game/simulation.Factory: enough of an interactive-fiction
// engine to make the daemon runnable end to end without an external engine
// dependency. Definitions are small JSON documents naming the starting
// room and any pre-placed objects/creatures.
package memgame

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dungeongate/adventured/internal/simulation"
)

// Definition is the on-disk shape of a definition file consumed by
// CreateFromDefinition.
type Definition struct {
	StartRoom string               `json:"start_room"`
	Rooms     []DefinitionEntity   `json:"rooms"`
	Objects   []DefinitionEntity   `json:"objects"`
	Creatures []DefinitionEntity   `json:"creatures"`
	Resources []DefinitionEntity   `json:"resources"`
}

// DefinitionEntity seeds one non-player entity.
type DefinitionEntity struct {
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

type record struct {
	entityType simulation.EntityType
	attributes map[string]interface{}
}

// Game is the in-memory simulation instance.
type Game struct {
	mu          sync.RWMutex
	running     atomic.Bool
	currentTime uint64

	meta     map[string]string
	entities map[string]record
}

// snapshot is the JSON-serialized payload shape Serialize/Deserialize uses.
type snapshot struct {
	CurrentTime uint64                    `json:"current_time"`
	Running     bool                      `json:"running"`
	Meta        map[string]string         `json:"meta"`
	Entities    map[string]recordSnapshot `json:"entities"`
}

type recordSnapshot struct {
	Type       simulation.EntityType  `json:"type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func newGame() *Game {
	return &Game{
		meta:     make(map[string]string),
		entities: make(map[string]record),
	}
}

// Factory constructs and deserializes memgame instances.
type Factory struct{}

// NewFactory returns the in-memory reference factory.
func NewFactory() *Factory { return &Factory{} }

// CreateFromDefinition reads a JSON definition file and seeds a fresh Game.
func (f *Factory) CreateFromDefinition(definitionPath string) (simulation.Game, error) {
	data, err := os.ReadFile(definitionPath)
	if err != nil {
		return nil, fmt.Errorf("memgame: read definition %s: %w", definitionPath, err)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("memgame: parse definition %s: %w", definitionPath, err)
	}

	g := newGame()
	for _, r := range def.Rooms {
		g.entities[r.Name] = record{simulation.TypeRoom, r.Attributes}
	}
	for _, o := range def.Objects {
		g.entities[o.Name] = record{simulation.TypeObject, o.Attributes}
	}
	for _, c := range def.Creatures {
		g.entities[c.Name] = record{simulation.TypeCreature, c.Attributes}
	}
	for _, res := range def.Resources {
		g.entities[res.Name] = record{simulation.TypeResource, res.Attributes}
	}
	if def.StartRoom != "" {
		if _, ok := g.entities[def.StartRoom]; !ok {
			g.entities[def.StartRoom] = record{simulation.TypeRoom, nil}
		}
		g.meta["start_room"] = def.StartRoom
	}

	return g, nil
}

// Deserialize reconstructs a Game from a payload produced by Game.Serialize.
func (f *Factory) Deserialize(format string, payload []byte) (simulation.Game, error) {
	if format != "json" {
		return nil, fmt.Errorf("memgame: unsupported serialization format %q", format)
	}

	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("memgame: deserialize: %w", err)
	}

	g := newGame()
	g.currentTime = snap.CurrentTime
	g.running.Store(snap.Running)
	for k, v := range snap.Meta {
		g.meta[k] = v
	}
	for name, rs := range snap.Entities {
		g.entities[name] = record{rs.Type, rs.Attributes}
	}
	return g, nil
}

func (g *Game) CurrentTime() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.currentTime
}

func (g *Game) IsRunning() bool { return g.running.Load() }

func (g *Game) Start() { g.running.Store(true) }
func (g *Game) Stop()  { g.running.Store(false) }

func (g *Game) Meta(keys []string) map[string]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if keys == nil {
		out := make(map[string]string, len(g.meta))
		for k, v := range g.meta {
			out[k] = v
		}
		return out
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = g.meta[k]
	}
	return out
}

func (g *Game) SetMeta(kv map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range kv {
		g.meta[k] = v
	}
}

func (g *Game) CreatePlayer(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.entities[name]; exists {
		return simulation.ErrEntityExists
	}

	room := g.meta["start_room"]
	g.entities[name] = record{
		entityType: simulation.TypePlayer,
		attributes: map[string]interface{}{"room": room},
	}
	return nil
}

func (g *Game) RemovePlayer(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, exists := g.entities[name]
	if !exists || r.entityType != simulation.TypePlayer {
		return simulation.ErrEntityNotFound
	}
	delete(g.entities, name)
	return nil
}

// ProcessCommand records command as the named player's "last_command"
// attribute and advances the simulation clock by one tick. It interprets
// no verbs: the player's room and every other entity are left unchanged.
func (g *Game) ProcessCommand(ctx context.Context, player, command string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.entities[player]
	if !ok || r.entityType != simulation.TypePlayer {
		return simulation.ErrEntityNotFound
	}
	if r.attributes == nil {
		r.attributes = make(map[string]interface{})
	}
	r.attributes["last_command"] = command
	g.entities[player] = r
	g.currentTime++
	return nil
}

func (g *Game) Entity(name string) (simulation.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.entities[name]
	if !ok {
		return simulation.Entity{}, false
	}
	return simulation.Entity{Name: name, Type: r.entityType, Attributes: r.attributes}, true
}

func (g *Game) Entities(want simulation.EntityType) []simulation.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []simulation.Entity
	for name, r := range g.entities {
		if simulation.IsA(r.entityType, want) {
			out = append(out, simulation.Entity{Name: name, Type: r.entityType, Attributes: r.attributes})
		}
	}
	return out
}

func (g *Game) Statistics() map[string]interface{} {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return map[string]interface{}{
		"entity_count": len(g.entities),
		"current_time": g.currentTime,
		"sampled_at":   time.Now().Unix(),
	}
}

func (g *Game) Serialize(format string) ([]byte, error) {
	if format != "json" {
		return nil, fmt.Errorf("memgame: unsupported serialization format %q", format)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := snapshot{
		CurrentTime: g.currentTime,
		Running:     g.running.Load(),
		Meta:        make(map[string]string, len(g.meta)),
		Entities:    make(map[string]recordSnapshot, len(g.entities)),
	}
	for k, v := range g.meta {
		snap.Meta[k] = v
	}
	for name, r := range g.entities {
		snap.Entities[name] = recordSnapshot{Type: r.entityType, Attributes: r.attributes}
	}

	return json.Marshal(snap)
}
