package scopes

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/config"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/fleet"
)

// Game implements the game scope: per-game lifecycle, meta, dumps.
type Game struct {
	*Base
	cfg       config.Config
	container *fleet.Container
}

// NewGame registers the game scope's action table.
func NewGame(cfg config.Config, container *fleet.Container) *Game {
	g := &Game{Base: NewBase(), cfg: cfg, container: container}

	g.Register("get", DefaultAction, g.getDefault)
	g.Register("get", "list", g.getList)
	g.Register("get", "definitions", g.getDefinitions)
	g.Register("get", "statistics", g.getStatistics)
	g.Register("get", "meta", g.getMeta)
	g.Register("set", "meta", g.setMeta)
	g.Register("set", "start", g.setStart)
	g.Register("set", "stop", g.setStop)
	g.Register("get", "time", g.getTime)
	g.Register("get", "is_running", g.getIsRunning)
	g.Register("get", "dumplist", g.getDumplist)
	g.Register("post", "dump", g.postDump)
	g.Register("post", "restore", g.postRestore)
	g.Register("delete", DefaultAction, g.deleteDefault)
	g.Register("delete", "dump", g.deleteDump)
	g.Register("post", DefaultAction, g.postDefault)

	return g
}

func (g *Game) getDefault(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{
		"id":           w.ID(),
		"name":         w.Name(),
		"definition":   w.Definition(),
		"current_time": w.CurrentTime(),
		"is_running":   w.IsRunning(),
	})
}

func (g *Game) getList(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}

	includeMeta, _, err := optionalStringSlice(args, "include_meta")
	if err != nil {
		return renderError(err)
	}

	union, err := parseFilters(args["filters"])
	if err != nil {
		return renderError(err)
	}

	ids, err := g.container.GetGames(union)
	if err != nil {
		return renderError(err)
	}

	games := make([]dispatch.Response, 0, len(ids))
	for _, id := range ids {
		w, err := g.container.Get(id)
		if err != nil {
			continue
		}
		entry := dispatch.Response{"id": w.ID(), "name": w.Name()}
		if len(includeMeta) > 0 {
			meta := w.Meta(includeMeta)
			for k, v := range meta {
				entry[k] = v
			}
		}
		games = append(games, entry)
	}

	return ok(dispatch.Response{"games": games})
}

// parseFilters accepts either a single group (object) or a union (array
// of objects), per §4.2.2.
func parseFilters(raw interface{}) (fleet.Union, error) {
	if raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		group, err := decodeGroup(v)
		if err != nil {
			return nil, err
		}
		return fleet.Union{group}, nil
	case []interface{}:
		union := make(fleet.Union, 0, len(v))
		for _, elem := range v {
			obj, ok := elem.(map[string]interface{})
			if !ok {
				return nil, apierr.Invalid("filters must be expressed as a JSON object or array")
			}
			group, err := decodeGroup(obj)
			if err != nil {
				return nil, err
			}
			union = append(union, group)
		}
		return union, nil
	default:
		return nil, apierr.Invalid("filters must be expressed as a JSON object or array")
	}
}

func decodeGroup(obj map[string]interface{}) (fleet.Group, error) {
	group := make(fleet.Group, 0, len(obj))
	for k, v := range obj {
		group = append(group, fleet.Filter{Type: k, Value: v})
	}
	return group, nil
}

func (g *Game) getDefinitions(ctx context.Context, raw json.RawMessage) dispatch.Response {
	root := g.cfg.Resources.DefinitionsPath
	entries, err := os.ReadDir(root)
	if err != nil {
		return renderError(apierr.Internal(err))
	}

	defs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		defs = append(defs, filepath.Base(e.Name()))
	}
	return ok(dispatch.Response{"definitions": defs})
}

func (g *Game) getStatistics(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}

	resp := ok(nil)
	for k, v := range w.Statistics() {
		resp[k] = v
	}
	return resp
}

func (g *Game) getMeta(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	keys, _, err := optionalStringSlice(args, "meta")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"meta": w.Meta(keys)})
}

func (g *Game) setMeta(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	meta, err := scalarMeta(args, "meta")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	w.SetMeta(meta)
	return ok(nil)
}

func (g *Game) setStart(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	w.Start()
	g.container.SetRunning(id, true)
	return ok(nil)
}

func (g *Game) setStop(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	w.Stop()
	g.container.SetRunning(id, false)
	return ok(nil)
}

func (g *Game) getTime(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"current_time": w.CurrentTime()})
}

func (g *Game) getIsRunning(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	w, err := g.container.Get(id)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"is_running": w.IsRunning()})
}

func (g *Game) getDumplist(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, hasID, err := optionalUintErr(args, "id")
	if err != nil {
		return renderError(err)
	}

	if !hasID {
		ids, err := g.container.DumpedGameIDs()
		if err != nil {
			return renderError(err)
		}
		return ok(dispatch.Response{"games": ids})
	}

	slots, err := g.container.DumpList(*id)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"slots": slots})
}

func optionalUintErr(m map[string]interface{}, key string) (*uint64, bool, error) {
	v, err := optionalUint(m, key)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (g *Game) postDump(ctx context.Context, raw json.RawMessage) dispatch.Response {
	if !g.cfg.State.Enabled {
		return renderError(apierr.Unsupported("state feature is disabled"))
	}
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	slot, err := g.container.DumpGame(id)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"slot": slot})
}

func (g *Game) postRestore(ctx context.Context, raw json.RawMessage) dispatch.Response {
	if !g.cfg.State.Enabled {
		return renderError(apierr.Unsupported("state feature is disabled"))
	}
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	slot, err := optionalUint(args, "slot")
	if err != nil {
		return renderError(err)
	}
	var slotInt *int
	if slot != nil {
		s := int(*slot)
		slotInt = &s
	}
	restoredSlot, err := g.container.RestoreGame(id, slotInt)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"slot": restoredSlot})
}

func (g *Game) deleteDefault(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	destroyDump, err := optionalBool(args, "delete_dump", false)
	if err != nil {
		return renderError(err)
	}
	if _, err := g.container.Get(id); err != nil {
		return renderError(err)
	}
	g.container.Destroy(id, destroyDump)
	return ok(nil)
}

func (g *Game) deleteDump(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	id, err := requireUint(args, "id")
	if err != nil {
		return renderError(err)
	}
	slot, err := optionalUint(args, "slot")
	if err != nil {
		return renderError(err)
	}
	var slotInt *int
	if slot != nil {
		s := int(*slot)
		slotInt = &s
	}
	if err := g.container.DestroyDump(id, slotInt); err != nil {
		return renderError(err)
	}
	return ok(nil)
}

var createReserved = map[string]bool{"name": true, "definition": true}

func (g *Game) postDefault(ctx context.Context, raw json.RawMessage) dispatch.Response {
	args, err := parseArgs(raw)
	if err != nil {
		return renderError(err)
	}
	name, err := requireString(args, "name")
	if err != nil {
		return renderError(err)
	}
	definition, err := requireString(args, "definition")
	if err != nil {
		return renderError(err)
	}
	meta, err := extraScalarMeta(args, createReserved)
	if err != nil {
		return renderError(err)
	}

	id, err := g.container.Create(name, definition, meta)
	if err != nil {
		return renderError(err)
	}
	return ok(dispatch.Response{"id": id})
}
