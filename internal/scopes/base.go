// Package scopes implements the scope controllers: global, game, entity,
// and entity's sub-scopes (tangible, place, thing, being, room, object,
// creature, player, resource). Each registers a (method, action) table and
// renders responses through dispatch.Response.
package scopes

import (
	"context"
	"encoding/json"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/dispatch"
)

// DefaultAction is substituted for an empty action in the request envelope.
const DefaultAction = "default"

// Handler processes one (method, action) request.
type Handler func(ctx context.Context, args json.RawMessage) dispatch.Response

// Base implements the resolve discipline from the reference dispatcher:
// method not found → 404, method found but action not found → 404 (with a
// "no default action" message when the missing action was the default),
// otherwise invoke the registered handler.
type Base struct {
	actions map[string]map[string]Handler
}

// NewBase returns an empty action table.
func NewBase() *Base {
	return &Base{actions: make(map[string]map[string]Handler)}
}

// Register adds a (method, action) handler.
func (b *Base) Register(method, action string, h Handler) {
	if b.actions[method] == nil {
		b.actions[method] = make(map[string]Handler)
	}
	b.actions[method][action] = h
}

// Resolve implements dispatch.ScopeController.
func (b *Base) Resolve(ctx context.Context, method, action string, args json.RawMessage) dispatch.Response {
	if action == "" {
		action = DefaultAction
	}

	methodTable, ok := b.actions[method]
	if !ok {
		return dispatch.Response{"status": apierr.StatusNotFound, "message": "method not found"}
	}

	handler, ok := methodTable[action]
	if !ok {
		message := "action not found"
		if action == DefaultAction {
			message = "no default action for method " + method
		}
		return dispatch.Response{"status": apierr.StatusNotFound, "message": message}
	}

	return handler(ctx, args)
}

// renderError converts an apierr.Error (or any other error, defaulting to
// 500) into a dispatch.Response.
func renderError(err error) dispatch.Response {
	apiErr := apierr.AsAPIError(err)
	return dispatch.Response{"status": apiErr.Status, "message": apiErr.Message}
}

func ok(fields dispatch.Response) dispatch.Response {
	if fields == nil {
		fields = dispatch.Response{}
	}
	fields["status"] = apierr.StatusOK
	return fields
}
