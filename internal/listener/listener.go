// Package listener implements the per-game Input Listener: the concurrency
// engine that drives each game's players. One long-lived coordinator
// goroutine polls a per-player task map; each player's pending command is
// handed to the simulation as an independent, cancellable in-flight task.
package listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/simulation"
	"github.com/dungeongate/adventured/pkg/logging"
)

// PollInterval is the coordinator's tick period.
const PollInterval = 10 * time.Millisecond

// playerTask tracks one player's in-flight command state. active is nil
// until the first command task is issued; after that it is the latest
// task's done channel, closed once that task completes.
type playerTask struct {
	name        string
	unsubscribed bool
	afterCommand func()
	active       chan struct{} // closed when the in-flight task completes
	cancel       context.CancelFunc
}

// Listener is the per-game input coordinator.
type Listener struct {
	gameID uint64
	game   simulation.Game
	input  iodriver.InputDriver
	logger *slog.Logger

	onCommand func(player, command string)
	onError   func(op string)

	mu      sync.Mutex
	tasks   map[string]*playerTask
	on      bool
	stopCh  chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

// New builds a listener for gameID, driving commands through game and
// reading them from input. onCommand, if non-nil, is called synchronously
// after each processed command (used for metrics).
func New(gameID uint64, game simulation.Game, input iodriver.InputDriver, logger *slog.Logger, onCommand func(player, command string)) *Listener {
	return &Listener{
		gameID:    gameID,
		game:      game,
		input:     input,
		logger:    logger,
		onCommand: onCommand,
		tasks:     make(map[string]*playerTask),
	}
}

// SetErrorHook installs a callback invoked whenever the input driver's
// Consume fails, for metrics. Passing nil disables it. Safe to call before
// or after Start.
func (l *Listener) SetErrorHook(fn func(op string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onError = fn
}

// Subscribe inserts a player into the listener's rotation. Safe to call
// before or after Start.
func (l *Listener) Subscribe(player string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.tasks[player]; exists {
		return
	}
	l.tasks[player] = &playerTask{name: player}
}

// Unsubscribe marks player for removal. It does not remove the entry
// immediately; the coordinator tears it down once any in-flight command
// finishes. afterCommand, if non-nil, runs once that happens.
func (l *Listener) Unsubscribe(player string, afterCommand func()) {
	l.mu.Lock()
	task, ok := l.tasks[player]
	l.mu.Unlock()
	if !ok {
		if afterCommand != nil {
			afterCommand()
		}
		return
	}

	l.mu.Lock()
	task.unsubscribed = true
	task.afterCommand = afterCommand
	cancel := task.cancel
	l.mu.Unlock()

	// Unblock any in-flight read so the coordinator can drain and remove
	// this entry within a bounded number of poll intervals.
	if cancel != nil {
		cancel()
	}
}

// Start is idempotent; on first call it launches the coordinator goroutine.
func (l *Listener) Start() {
	l.mu.Lock()
	if l.on {
		l.mu.Unlock()
		return
	}
	l.on = true
	l.stopCh = make(chan struct{})
	l.stopped = make(chan struct{})
	l.mu.Unlock()

	go l.coordinate()
}

// Stop sets on=false and joins the coordinator, which waits for every
// in-flight command goroutine to finish before it exits; in-flight
// commands are not cancelled. Safe to call when never started and safe to
// call twice.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.on {
		l.mu.Unlock()
		return
	}
	l.on = false
	stopCh := l.stopCh
	stopped := l.stopped
	l.mu.Unlock()

	close(stopCh)
	<-stopped
}

func (l *Listener) coordinate() {
	defer close(l.stopped)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			l.wg.Wait()
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Listener) tick() {
	l.mu.Lock()
	names := make([]string, 0, len(l.tasks))
	for name := range l.tasks {
		names = append(names, name)
	}
	l.mu.Unlock()

	for _, name := range names {
		l.mu.Lock()
		task, ok := l.tasks[name]
		if !ok {
			l.mu.Unlock()
			continue
		}

		if task.unsubscribed {
			if task.active != nil {
				active := task.active
				l.mu.Unlock()
				<-active
				l.mu.Lock()
			}
			delete(l.tasks, name)
			cb := task.afterCommand
			l.mu.Unlock()
			if cb != nil {
				cb()
			}
			continue
		}

		ready := task.active == nil
		if task.active != nil {
			select {
			case <-task.active:
				ready = true
			default:
			}
		}

		if !ready {
			l.mu.Unlock()
			continue
		}

		ctx, cancel := context.WithCancel(logging.WithGameID(context.Background(), l.gameID))
		done := make(chan struct{})
		task.active = done
		task.cancel = cancel
		l.mu.Unlock()

		l.wg.Add(1)
		go l.runCommand(ctx, name, done)
	}
}

func (l *Listener) runCommand(ctx context.Context, player string, done chan struct{}) {
	defer l.wg.Done()
	defer close(done)

	logger := logging.ContextLogger(ctx, l.logger)

	cmd, ok, err := l.input.Consume(l.gameID, player)
	if err != nil {
		logger.Error("input driver consume failed", "player", player, "error", err)
		l.mu.Lock()
		onError := l.onError
		l.mu.Unlock()
		if onError != nil {
			onError("consume")
		}
		return
	}
	if !ok {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	if err := l.game.ProcessCommand(ctx, player, cmd); err != nil {
		logger.Error("command processing failed", "player", player, "error", err)
	}
	if l.onCommand != nil {
		l.onCommand(player, cmd)
	}
}
