package scopes

import (
	"context"
	"encoding/json"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/config"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/fleet"
)

// Version is the daemon's own semantic version, surfaced by
// "global get statistics".
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// DaemonVersion and CoreVersion are reported under "version" and
// "lib_version" respectively.
var (
	DaemonVersion = Version{Major: 1, Minor: 0, Patch: 0}
	CoreVersion   = Version{Major: 1, Minor: 0, Patch: 0}
)

// Global implements the global scope: config introspection, fleet-wide
// statistics, and fleet dump/restore.
type Global struct {
	*Base
	cfg       config.Config
	container *fleet.Container
}

// NewGlobal registers the global scope's action table.
func NewGlobal(cfg config.Config, container *fleet.Container) *Global {
	g := &Global{Base: NewBase(), cfg: cfg, container: container}

	g.Register("get", "config", g.getConfig)
	g.Register("get", "statistics", g.getStatistics)
	g.Register("post", "dump", g.postDump)
	g.Register("post", "restore", g.postRestore)

	return g
}

func (g *Global) getConfig(ctx context.Context, args json.RawMessage) dispatch.Response {
	return ok(dispatch.Response{"config": g.cfg.Settings()})
}

func (g *Global) getStatistics(ctx context.Context, args json.RawMessage) dispatch.Response {
	running, stopped := g.container.Count()
	return ok(dispatch.Response{
		"players":       g.container.NumPlayers(),
		"games_running": running,
		"games_stopped": stopped,
		"version":       DaemonVersion,
		"lib_version":   CoreVersion,
	})
}

func (g *Global) postDump(ctx context.Context, args json.RawMessage) dispatch.Response {
	if !g.cfg.State.Enabled {
		return renderError(apierr.Unsupported("state feature is disabled"))
	}
	if err := g.container.DumpAll(); err != nil {
		return renderError(err)
	}
	return ok(nil)
}

func (g *Global) postRestore(ctx context.Context, args json.RawMessage) dispatch.Response {
	if !g.cfg.State.Enabled {
		return renderError(apierr.Unsupported("state feature is disabled"))
	}
	if err := g.container.RestoreAll(); err != nil {
		return renderError(err)
	}
	return ok(nil)
}
