// Package extension implements the in-process extension loader
// (component J): a name-keyed registry for additional scope controllers
// and I/O drivers, loaded after the built-ins at startup. Real .so plugin
// loading is out of scope — see DESIGN.md — this only formalizes the
// load/unload discipline the built-in registries already follow.
package extension

import (
	"sync"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/iodriver"
)

// Loader tracks which scope names were loaded as extensions (as opposed
// to built-in), so Unload can refuse to touch a built-in scope and
// Dispatcher.UnregisterScope's own guard is never the only line of
// defense.
type Loader struct {
	mu         sync.Mutex
	dispatcher *dispatch.Dispatcher
	drivers    *iodriver.Registry
	loaded     map[string]bool
}

// New binds a Loader to the dispatcher and driver registry it extends.
func New(d *dispatch.Dispatcher, drivers *iodriver.Registry) *Loader {
	return &Loader{dispatcher: d, drivers: drivers, loaded: make(map[string]bool)}
}

// LoadScope registers a new scope controller as an extension (not
// built-in); rejected if the name is already registered (built-in or
// otherwise extension-loaded).
func (l *Loader) LoadScope(name string, controller dispatch.ScopeController) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.dispatcher.RegisterScope(name, controller, false); err != nil {
		return err
	}
	l.loaded[name] = true
	return nil
}

// UnloadScope removes a previously extension-loaded scope.
func (l *Loader) UnloadScope(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded[name] {
		return apierr.Invalid("scope not loaded as an extension: " + name)
	}
	if err := l.dispatcher.UnregisterScope(name); err != nil {
		return err
	}
	delete(l.loaded, name)
	return nil
}

// LoadOutputDriver registers an additional named output driver.
func (l *Loader) LoadOutputDriver(d iodriver.OutputDriver) {
	l.drivers.RegisterOutput(d)
}

// LoadInputDriver registers an additional named input driver.
func (l *Loader) LoadInputDriver(d iodriver.InputDriver) {
	l.drivers.RegisterInput(d)
}
