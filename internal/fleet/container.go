package fleet

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/dungeongate/adventured/internal/apierr"
	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/listener"
	"github.com/dungeongate/adventured/internal/simulation"
	"github.com/dungeongate/adventured/internal/snapshot"
	"github.com/dungeongate/adventured/pkg/metrics"
)

// Container is the one-per-process fleet registry: the mapping
// id → Wrapper, a running total numPlayers, and the indices allIds,
// byName, byRunning. The indices and the primary map are mutated only
// under idxMu.
type Container struct {
	idxMu sync.Mutex

	games      map[uint64]*Wrapper
	allIDs     map[uint64]bool
	byName     map[string]map[uint64]bool
	byRunning  map[bool]map[uint64]bool
	numPlayers int
	nextID     uint64

	predicates map[string]Predicate

	factory    simulation.Factory
	defsPath   string
	outDriver  iodriver.OutputDriver
	inDriver   iodriver.InputDriver
	logger     *slog.Logger

	listeners map[uint64]*listener.Listener

	store           *snapshot.Store
	stateEnabled    bool
	format          string
	maxDumpsPerGame int

	metrics *metrics.Registry
}

// SetMetrics wires the daemon's Prometheus registry into the container; the
// fleet-size gauges and per-command/driver-error counters are updated only
// when this has been called. Safe to call at most once, before the fleet
// serves traffic.
func (c *Container) SetMetrics(m *metrics.Registry) {
	c.metrics = m
}

// updateGaugesLocked refreshes the fleet-size gauges from the current
// indices. Callers must hold idxMu.
func (c *Container) updateGaugesLocked() {
	if c.metrics == nil {
		return
	}
	c.metrics.GamesRunning.Set(float64(len(c.byRunning[true])))
	c.metrics.GamesStopped.Set(float64(len(c.byRunning[false])))
	c.metrics.PlayersOnline.Set(float64(c.numPlayers))
}

// NewContainer constructs an empty container wired to factory for game
// creation/restore and to the given drivers for every hosted game's I/O.
func NewContainer(factory simulation.Factory, definitionsPath string, outDriver iodriver.OutputDriver, inDriver iodriver.InputDriver, logger *slog.Logger) *Container {
	return &Container{
		games:      make(map[uint64]*Wrapper),
		allIDs:     make(map[uint64]bool),
		byName:     make(map[string]map[uint64]bool),
		byRunning:  map[bool]map[uint64]bool{true: {}, false: {}},
		predicates: registerPredicates(),
		factory:    factory,
		defsPath:   definitionsPath,
		outDriver:  outDriver,
		inDriver:   inDriver,
		logger:     logger,
		listeners:  make(map[uint64]*listener.Listener),
	}
}

// ConfigureState wires the snapshot subsystem. Must be called before any
// dump/restore operation; the master switch mirrors state.enabled.
func (c *Container) ConfigureState(store *snapshot.Store, enabled bool, format string, maxDumpsPerGame int) {
	c.store = store
	c.stateEnabled = enabled
	c.format = format
	c.maxDumpsPerGame = maxDumpsPerGame
}

// NumPlayers returns the fleet-wide player total.
func (c *Container) NumPlayers() int {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	return c.numPlayers
}

// Count returns the number of live games, split by running state.
func (c *Container) Count() (running, stopped int) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	return len(c.byRunning[true]), len(c.byRunning[false])
}

// Create resolves definition against the definitions directory, instantiates
// a Wrapper, assigns the next free id, indexes it, starts its Input
// Listener, and returns the id.
func (c *Container) Create(name, definition string, meta map[string]string) (uint64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, apierr.Invalid("missing required name")
	}
	if filepath.IsAbs(definition) {
		return 0, apierr.Invalid("definition path must be relative")
	}

	game, err := c.factory.CreateFromDefinition(filepath.Join(c.defsPath, definition))
	if err != nil {
		return 0, apierr.Internal(fmt.Errorf("create game from %s: %w", definition, err))
	}
	if len(meta) > 0 {
		game.SetMeta(meta)
	}

	c.idxMu.Lock()
	id := c.nextID
	c.nextID++
	w := newWrapper(id, name, definition, game)
	c.games[id] = w
	c.allIDs[id] = true
	c.indexName(id, name)
	c.byRunning[false][id] = true
	c.updateGaugesLocked()
	c.idxMu.Unlock()

	c.startListener(id, w)
	return id, nil
}

// insertWrapper is used by restore to insert an already-constructed wrapper
// under its original id, reserving that id against future Create calls.
func (c *Container) insertWrapper(id uint64, w *Wrapper) {
	c.idxMu.Lock()
	if old, exists := c.games[id]; exists {
		c.removeIndicesLocked(id, old.Name(), old.IsRunning())
		c.numPlayers -= old.NumPlayers()
	}
	c.games[id] = w
	c.allIDs[id] = true
	c.indexName(id, w.Name())
	c.byRunning[w.IsRunning()][id] = true
	c.numPlayers += w.NumPlayers()
	if id >= c.nextID {
		c.nextID = id + 1
	}
	c.updateGaugesLocked()
	c.idxMu.Unlock()

	c.startListener(id, w)
}

func (c *Container) indexName(id uint64, name string) {
	if c.byName[name] == nil {
		c.byName[name] = make(map[uint64]bool)
	}
	c.byName[name][id] = true
}

func (c *Container) removeIndicesLocked(id uint64, name string, running bool) {
	delete(c.allIDs, id)
	delete(c.byRunning[running], id)
	if names := c.byName[name]; names != nil {
		delete(names, id)
		if len(names) == 0 {
			delete(c.byName, name)
		}
	}
}

func (c *Container) startListener(id uint64, w *Wrapper) {
	var onCommand func(player, command string)
	if c.metrics != nil {
		idLabel := strconv.FormatUint(id, 10)
		onCommand = func(player, command string) {
			c.metrics.CommandsHandled.WithLabelValues(idLabel).Inc()
		}
	}

	l := listener.New(id, w.Game(), c.inDriver, c.logger, onCommand)
	if c.metrics != nil {
		l.SetErrorHook(func(op string) {
			c.metrics.DriverErrors.WithLabelValues(c.inDriver.Name(), op).Inc()
		})
	}

	c.idxMu.Lock()
	c.listeners[id] = l
	c.idxMu.Unlock()
	l.Start()
}

// Get returns the wrapper for id, or apierr.NotFound("game not found").
func (c *Container) Get(id uint64) (*Wrapper, error) {
	c.idxMu.Lock()
	w, ok := c.games[id]
	c.idxMu.Unlock()
	if !ok {
		return nil, apierr.NotFound("game not found")
	}
	return w, nil
}

// Destroy stops id's Input Listener, subtracts its players from the
// fleet total, removes it from every index, and drops the wrapper. If
// destroyDump and state is enabled, the on-disk game directory is also
// removed. A missing id is a no-op at this layer (the controller boundary
// renders the 404).
func (c *Container) Destroy(id uint64, destroyDump bool) {
	c.idxMu.Lock()
	w, ok := c.games[id]
	if !ok {
		c.idxMu.Unlock()
		return
	}
	delete(c.games, id)
	c.removeIndicesLocked(id, w.Name(), w.IsRunning())
	c.numPlayers -= w.NumPlayers()
	l := c.listeners[id]
	delete(c.listeners, id)
	c.updateGaugesLocked()
	c.idxMu.Unlock()

	if l != nil {
		l.Stop()
	}
	c.outDriver.Destroy(id)
	c.inDriver.Destroy(id)

	if destroyDump && c.stateEnabled {
		if err := c.store.DeleteGame(id); err != nil {
			c.logger.Error("destroy: failed to remove on-disk game", "game_id", id, "error", err)
		}
	}
}

// SetRunning re-indexes id under byRunning after its wrapper's Start/Stop
// has been called.
func (c *Container) SetRunning(id uint64, running bool) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	delete(c.byRunning[!running], id)
	c.byRunning[running][id] = true
	c.updateGaugesLocked()
}

// CreatePlayer asks the simulation to create the player, subscribes it to
// the Input Listener, and increments numPlayers. The player's I/O buffers
// are not created here; the drivers create them on first write.
func (c *Container) CreatePlayer(gameID uint64, name string) error {
	w, err := c.Get(gameID)
	if err != nil {
		return err
	}
	if err := w.CreatePlayer(name); err != nil {
		if err == simulation.ErrEntityExists {
			return apierr.Conflict(fmt.Sprintf("player %q already exists", name))
		}
		return apierr.Internal(err)
	}

	c.idxMu.Lock()
	c.numPlayers++
	l := c.listeners[gameID]
	c.updateGaugesLocked()
	c.idxMu.Unlock()

	if l != nil {
		l.Subscribe(name)
	}
	return nil
}

// RemovePlayer unsubscribes the player from the listener, optionally
// delivers message to its default channel, removes it from the simulation,
// and decrements numPlayers.
func (c *Container) RemovePlayer(gameID uint64, name string, message string) error {
	w, err := c.Get(gameID)
	if err != nil {
		return err
	}

	c.idxMu.Lock()
	l := c.listeners[gameID]
	c.idxMu.Unlock()

	done := make(chan struct{})
	if l != nil {
		l.Unsubscribe(name, func() { close(done) })
	} else {
		close(done)
	}
	<-done

	if message != "" {
		_ = c.outDriver.Push(gameID, name, "notifications", iodriver.Message{Content: message})
	}

	if err := w.RemovePlayer(name); err != nil {
		if err == simulation.ErrEntityNotFound {
			return apierr.NotFound("player not found")
		}
		return apierr.Internal(err)
	}

	c.idxMu.Lock()
	if c.numPlayers > 0 {
		c.numPlayers--
	}
	c.updateGaugesLocked()
	c.idxMu.Unlock()
	return nil
}

// GetGames evaluates the filter union against the indices and returns an
// ordered set of matching ids. An empty union (no filters supplied) matches
// every live game.
func (c *Container) GetGames(u Union) ([]uint64, error) {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()

	var matched map[uint64]bool
	if len(u) == 0 {
		matched = c.allIDs
	} else {
		var err error
		matched, err = c.evaluate(u)
		if err != nil {
			return nil, apierr.Invalid(err.Error())
		}
	}

	ids := make([]uint64, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	sortUint64(ids)
	return ids, nil
}

// AllIDs returns every live game id, ordered.
func (c *Container) AllIDs() []uint64 {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	ids := make([]uint64, 0, len(c.allIDs))
	for id := range c.allIDs {
		ids = append(ids, id)
	}
	sortUint64(ids)
	return ids
}

func sortUint64(ids []uint64) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
