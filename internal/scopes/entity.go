package scopes

import (
	"context"
	"encoding/json"
	"regexp"
	"time"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/fleet"
	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/simulation"
)

// Entity implements the entity scope and every entity sub-scope
// (tangible, place, thing, being, room, object, creature, player,
// resource): each shares "get (default)" and "get list" filtered by
// simulation.IsA(entityType, want), with entity and player adding the
// output/input operations described in §4.2.3.
type Entity struct {
	*Base
	want         simulation.EntityType
	notFoundMsg  string
	container    *fleet.Container
}

// NewEntity registers the shared get/get-list handlers for one node of the
// entity hierarchy.
func NewEntity(want simulation.EntityType, notFoundMessage string, container *fleet.Container) *Entity {
	e := &Entity{Base: NewBase(), want: want, notFoundMsg: notFoundMessage, container: container}
	e.Register("get", DefaultAction, e.getDefault)
	e.Register("get", "list", e.getList)
	return e
}

func (e *Entity) lookupGame(args map[string]interface{}) (*fleet.Wrapper, error) {
	id, err := requireUint(args, "game_id")
	if err != nil {
		return nil, err
	}
	return e.container.Get(id)
}

func (e *Entity) getDefault(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	w, err := e.lookupGame(args)
	if err != nil {
		return renderError(err)
	}
	name, err := requireString(args, "name")
	if err != nil {
		return renderError(err)
	}

	entity, found := w.Entity(name)
	if !found || !simulation.IsA(entity.Type, e.want) {
		return renderError(apierr.NotFound(e.notFoundMsg))
	}
	return ok(dispatch.Response{"entity": toEntityResponse(entity)})
}

func (e *Entity) getList(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	w, err := e.lookupGame(args)
	if err != nil {
		return renderError(err)
	}

	entities := w.Entities(e.want)
	out := make([]dispatch.Response, 0, len(entities))
	for _, ent := range entities {
		out = append(out, toEntityResponse(ent))
	}
	return ok(dispatch.Response{"entities": out})
}

func toEntityResponse(e simulation.Entity) dispatch.Response {
	resp := dispatch.Response{"name": e.Name, "type": e.Type}
	for k, v := range e.Attributes {
		resp[k] = v
	}
	return resp
}

// RegisterOutputOps adds "get output" / "post output" to the entity
// (top-level, unrestricted) scope.
func (e *Entity) RegisterOutputOps(outputs *iodriver.Registry, driverName string) {
	e.Register("get", "output", func(ctx context.Context, raw json.RawMessage) dispatch.Response {
		args, err := parseArgs(raw)
		if err != nil {
			return renderError(err)
		}
		gameID, err := requireUint(args, "game_id")
		if err != nil {
			return renderError(err)
		}
		name, err := requireString(args, "name")
		if err != nil {
			return renderError(err)
		}
		channel, err := requireString(args, "channel")
		if err != nil {
			return renderError(err)
		}

		driver, err := outputs.Output(driverName)
		if err != nil {
			return renderError(err)
		}

		var messages []iodriver.Message
		for {
			msg, found, err := driver.Pop(gameID, name, channel)
			if err != nil {
				return renderError(err)
			}
			if !found {
				break
			}
			messages = append(messages, msg)
		}
		return ok(dispatch.Response{"messages": messages})
	})

	e.Register("post", "output", func(ctx context.Context, raw json.RawMessage) dispatch.Response {
		args, err := parseArgs(raw)
		if err != nil {
			return renderError(err)
		}
		gameID, err := requireUint(args, "game_id")
		if err != nil {
			return renderError(err)
		}
		name, err := requireString(args, "name")
		if err != nil {
			return renderError(err)
		}
		channel, err := optionalString(args, "channel", "notifications")
		if err != nil {
			return renderError(err)
		}
		rawMessage, present := args["message"]
		if !present {
			return renderError(apierr.Invalid("missing required message"))
		}
		content, err := scalarString(rawMessage)
		if err != nil {
			return renderError(err)
		}

		driver, err := outputs.Output(driverName)
		if err != nil {
			return renderError(err)
		}
		if err := driver.Push(gameID, name, channel, iodriver.Message{
			Timestamp: time.Now().Unix(),
			Content:   content + "\n",
		}); err != nil {
			return renderError(err)
		}
		return ok(nil)
	})
}

var playerNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RegisterPlayerOps adds "post (create)" / "delete" / "post input" to the
// player sub-scope.
func (e *Entity) RegisterPlayerOps(drivers *iodriver.Registry, inputDriverName string) {
	e.Register("post", DefaultAction, func(ctx context.Context, raw json.RawMessage) dispatch.Response {
		args, err := parseArgs(raw)
		if err != nil {
			return renderError(err)
		}
		gameID, err := requireUint(args, "game_id")
		if err != nil {
			return renderError(err)
		}
		name, err := requireString(args, "name")
		if err != nil {
			return renderError(err)
		}
		if !playerNamePattern.MatchString(name) {
			return renderError(apierr.Invalid("invalid player name"))
		}

		if err := e.container.CreatePlayer(gameID, name); err != nil {
			return renderError(err)
		}
		return ok(dispatch.Response{"player": dispatch.Response{"name": name, "type": simulation.TypePlayer}})
	})

	e.Register("delete", DefaultAction, func(ctx context.Context, raw json.RawMessage) dispatch.Response {
		args, err := parseArgs(raw)
		if err != nil {
			return renderError(err)
		}
		gameID, err := requireUint(args, "game_id")
		if err != nil {
			return renderError(err)
		}
		name, err := requireString(args, "name")
		if err != nil {
			return renderError(err)
		}
		message, err := optionalString(args, "message", "")
		if err != nil {
			return renderError(err)
		}

		if err := e.container.RemovePlayer(gameID, name, message); err != nil {
			return renderError(err)
		}
		return ok(nil)
	})

	e.Register("post", "input", func(ctx context.Context, raw json.RawMessage) dispatch.Response {
		args, err := parseArgs(raw)
		if err != nil {
			return renderError(err)
		}
		gameID, err := requireUint(args, "game_id")
		if err != nil {
			return renderError(err)
		}
		name, err := requireString(args, "name")
		if err != nil {
			return renderError(err)
		}
		command, err := requireString(args, "command")
		if err != nil {
			return renderError(err)
		}

		driver, err := drivers.Input(inputDriverName)
		if err != nil {
			return renderError(err)
		}
		if err := driver.Set(gameID, name, command); err != nil {
			return renderError(err)
		}
		return ok(nil)
	})
}
