// Package dispatch implements the Request Dispatcher: envelope validation,
// scope lookup, and response rendering. Dispatch is a pure function —
// (connection log handle, request string) → response string — matching
// the source contract literally.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/pkg/logging"
	"github.com/google/uuid"
)

// Response is the wire-level JSON object every handler returns. It always
// carries "status"; non-200 responses also carry "message".
type Response map[string]interface{}

// envelope is the parsed request shape: { method, scope, action?, args? }.
// method/scope/action are decoded as raw JSON rather than string so a
// present-but-wrong-type value (e.g. method: 1) can be told apart from a
// missing one and rejected with the documented message instead of
// tripping the top-level JSON parse.
type envelope struct {
	Method json.RawMessage `json:"method"`
	Scope  json.RawMessage `json:"scope"`
	Action json.RawMessage `json:"action"`
	Args   json.RawMessage `json:"args"`
}

// decodeField reports whether raw was present in the request and, if so,
// whether it decodes as a JSON string — along with that string's value.
func decodeField(raw json.RawMessage) (value string, present, isString bool) {
	if len(raw) == 0 {
		return "", false, false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true, false
	}
	return value, true, true
}

// validMethods is the fixed method vocabulary, case-insensitive on input.
var validMethods = map[string]bool{
	"get": true, "post": true, "put": true, "set": true, "delete": true,
}

// ScopeController resolves (method, action) against its registered action
// table and returns a response. See scopes.Base for the canonical
// implementation of the method-not-found/action-not-found/default-action
// rules.
type ScopeController interface {
	Resolve(ctx context.Context, method, action string, args json.RawMessage) Response
}

// Dispatcher owns the scope registry: mutated only at startup and
// extension load/unload, read on every request.
type Dispatcher struct {
	mu       sync.RWMutex
	scopes   map[string]ScopeController
	builtin  map[string]bool
	logger   *slog.Logger
	observer func(scope, method, action string, status int, d time.Duration)
}

// SetObserver installs a callback invoked after every resolved request with
// its scope/method/action/status and resolution latency, for metrics.
// Passing nil disables observation.
func (d *Dispatcher) SetObserver(fn func(scope, method, action string, status int, d time.Duration)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = fn
}

// New returns an empty Dispatcher; callers register built-in scopes
// immediately after construction.
func New(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		scopes:  make(map[string]ScopeController),
		builtin: make(map[string]bool),
		logger:  logger,
	}
}

// RegisterScope adds name to the registry. Registering a duplicate name is
// rejected.
func (d *Dispatcher) RegisterScope(name string, controller ScopeController, builtin bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.scopes[name]; exists {
		return apierr.Conflict("scope already registered: " + name)
	}
	d.scopes[name] = controller
	d.builtin[name] = builtin
	return nil
}

// UnregisterScope removes an extension-loaded scope. Built-in scopes
// cannot be unregistered.
func (d *Dispatcher) UnregisterScope(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.builtin[name] {
		return apierr.Invalid("cannot unregister built-in scope: " + name)
	}
	if _, exists := d.scopes[name]; !exists {
		return apierr.NotFound("scope not found")
	}
	delete(d.scopes, name)
	delete(d.builtin, name)
	return nil
}

func (d *Dispatcher) scope(name string) (ScopeController, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.scopes[name]
	return c, ok
}

// Dispatch parses raw, validates the envelope per §4.1, resolves the
// scope, and renders the handler's response as a JSON string. It never
// panics or returns a non-JSON string.
func (d *Dispatcher) Dispatch(ctx context.Context, logger *slog.Logger, raw string) (out string) {
	if logger == nil {
		logger = d.logger
	}
	requestID := uuid.NewString()
	logger = logging.WithRequest(logger, requestID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("request handler panicked", "panic", r)
			out = `{"status":500,"message":"An internal error occurred"}`
		}
	}()

	resp := d.resolve(ctx, logger, raw)
	return renderOrFallback(resp)
}

func (d *Dispatcher) resolve(ctx context.Context, logger *slog.Logger, raw string) Response {
	start := time.Now()
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return d.fail(logger, "", "", "", start, apierr.StatusInvalid, "request must be valid JSON")
	}

	methodVal, methodPresent, methodIsString := decodeField(env.Method)
	if !methodPresent {
		return d.fail(logger, "", "", "", start, apierr.StatusInvalid, "missing required method")
	}
	if !methodIsString {
		return d.fail(logger, "", "", "", start, apierr.StatusInvalid, "invalid method")
	}
	if strings.TrimSpace(methodVal) == "" {
		return d.fail(logger, "", "", "", start, apierr.StatusInvalid, "missing required method")
	}
	method := strings.ToLower(methodVal)
	if !validMethods[method] {
		return d.fail(logger, method, "", "", start, apierr.StatusInvalid, "invalid method")
	}

	scopeVal, scopePresent, scopeIsString := decodeField(env.Scope)
	if !scopePresent {
		return d.fail(logger, method, "", "", start, apierr.StatusInvalid, "missing required scope")
	}
	if !scopeIsString {
		return d.fail(logger, method, "", "", start, apierr.StatusInvalid, "invalid scope")
	}
	if strings.TrimSpace(scopeVal) == "" {
		return d.fail(logger, method, "", "", start, apierr.StatusInvalid, "missing required scope")
	}
	scopeName := strings.ToLower(scopeVal)

	controller, ok := d.scope(scopeName)
	if !ok {
		return d.fail(logger, method, scopeName, "", start, apierr.StatusNotFound, "scope not found")
	}

	actionVal, _, actionIsString := decodeField(env.Action)
	action := "default"
	if actionIsString && strings.TrimSpace(actionVal) != "" {
		action = strings.ToLower(actionVal)
	}

	resp := controller.Resolve(ctx, method, action, env.Args)
	d.logResponse(logger, resp)
	d.observe(scopeName, method, action, resp, start)
	return resp
}

func (d *Dispatcher) fail(logger *slog.Logger, method, scope, action string, start time.Time, status int, message string) Response {
	resp := Response{"status": status, "message": message}
	d.logResponse(logger, resp)
	d.observe(scope, method, action, resp, start)
	return resp
}

func (d *Dispatcher) observe(scope, method, action string, resp Response, start time.Time) {
	d.mu.RLock()
	obs := d.observer
	d.mu.RUnlock()
	if obs == nil {
		return
	}
	status, _ := resp["status"].(int)
	obs(scope, method, action, status, time.Since(start))
}

func (d *Dispatcher) logResponse(logger *slog.Logger, resp Response) {
	status, _ := resp["status"].(int)
	if message, ok := resp["message"].(string); ok {
		logger.Info("request resolved", "status", status, "message", message)
	} else {
		logger.Info("request resolved", "status", status)
	}
}

func renderOrFallback(resp Response) string {
	data, err := json.Marshal(resp)
	if err != nil {
		return `{"status":500,"message":"An internal error occurred"}`
	}
	return string(data)
}
