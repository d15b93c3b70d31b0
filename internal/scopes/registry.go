package scopes

import (
	"github.com/dungeongate/adventured/internal/config"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/fleet"
	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/simulation"
)

// RegisterBuiltins wires every built-in scope controller (global, game,
// entity, and entity's sub-scopes) into d.
func RegisterBuiltins(d *dispatch.Dispatcher, cfg config.Config, container *fleet.Container, drivers *iodriver.Registry) error {
	outputDriverName := cfg.Output.Driver

	builtins := map[string]dispatch.ScopeController{
		"global": NewGlobal(cfg, container),
		"game":   NewGame(cfg, container),
	}

	entityScope := NewEntity(simulation.TypeEntity, "entity not found", container)
	entityScope.RegisterOutputOps(drivers, outputDriverName)
	builtins["entity"] = entityScope

	builtins["tangible"] = NewEntity(simulation.TypeTangible, "tangible not found", container)
	builtins["place"] = NewEntity(simulation.TypePlace, "place not found", container)
	builtins["thing"] = NewEntity(simulation.TypeThing, "thing not found", container)
	builtins["being"] = NewEntity(simulation.TypeBeing, "being not found", container)
	builtins["room"] = NewEntity(simulation.TypeRoom, "room not found", container)
	builtins["object"] = NewEntity(simulation.TypeObject, "object not found", container)
	builtins["creature"] = NewEntity(simulation.TypeCreature, "creature not found", container)
	builtins["resource"] = NewEntity(simulation.TypeResource, "resource not found", container)

	playerScope := NewEntity(simulation.TypePlayer, "player not found", container)
	inputDriverName := "local"
	if len(cfg.Input.Listeners) > 0 {
		inputDriverName = cfg.Input.Listeners[0]
	}
	playerScope.RegisterPlayerOps(drivers, inputDriverName)
	builtins["player"] = playerScope

	for name, controller := range builtins {
		if err := d.RegisterScope(name, controller, true); err != nil {
			return err
		}
	}
	return nil
}
