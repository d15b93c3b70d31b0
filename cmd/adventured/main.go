// Command adventured is the daemon entrypoint: it loads configuration,
// builds the fleet and its scope controllers, starts the metrics server
// and the NUL-framed TCP listener, and shuts down gracefully on SIGINT/
// SIGTERM.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dungeongate/adventured/internal/config"
	"github.com/dungeongate/adventured/internal/dispatch"
	"github.com/dungeongate/adventured/internal/extension"
	"github.com/dungeongate/adventured/internal/fleet"
	"github.com/dungeongate/adventured/internal/iodriver"
	"github.com/dungeongate/adventured/internal/scopes"
	"github.com/dungeongate/adventured/internal/simulation/memgame"
	"github.com/dungeongate/adventured/internal/snapshot"
	"github.com/dungeongate/adventured/pkg/logging"
	"github.com/dungeongate/adventured/pkg/metrics"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adventured: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger("adventured", logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		LogTo:  cfg.Logging.LogTo,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	drivers := iodriver.NewRegistry()
	drivers.RegisterOutput(iodriver.NewLocalOutput())
	drivers.RegisterInput(iodriver.NewLocalInput())

	if cfg.Output.Driver == "redis" || containsString(cfg.Input.Listeners, "redis") {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
		})
		drivers.RegisterOutput(iodriver.NewRedisOutput(client, cfg.Redis.OutputChannel))
		drivers.RegisterInput(iodriver.NewRedisInput(client))
	}

	factory := memgame.NewFactory()
	outDriver, err := drivers.Output(cfg.Output.Driver)
	if err != nil {
		return err
	}
	inputDriverName := "local"
	if len(cfg.Input.Listeners) > 0 {
		inputDriverName = cfg.Input.Listeners[0]
	}
	inDriver, err := drivers.Input(inputDriverName)
	if err != nil {
		return err
	}

	container := fleet.NewContainer(factory, cfg.Resources.DefinitionsPath, outDriver, inDriver, logger.With("component", "fleet"))
	store := snapshot.NewStore(cfg.State.SavePath)
	container.ConfigureState(store, cfg.State.Enabled, cfg.State.Format, cfg.State.MaxDumpsPerGame)

	reg := metrics.NewRegistry("adventured", version, buildTime, gitCommit, logger.With("component", "metrics"))
	container.SetMetrics(reg)

	if cfg.State.Enabled && cfg.State.AutoRestore {
		if err := container.RestoreAll(); err != nil {
			logger.Error("startup restore failed", "error", err)
		}
	}

	d := dispatch.New(logger.With("component", "dispatch"))
	d.SetObserver(reg.ObserveRequest)
	if err := scopes.RegisterBuiltins(d, cfg, container, drivers); err != nil {
		return fmt.Errorf("register builtin scopes: %w", err)
	}
	_ = extension.New(d, drivers) // extension loading point; no extensions configured by default

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.StartServer(cfg.Metrics.Port); err != nil && ctx.Err() == nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	listenAddr := fmt.Sprintf(":%d", cfg.Network.Port)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		cancel()
		return fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	logger.Info("listening", "addr", listenAddr)

	wg.Add(1)
	go func() {
		defer wg.Done()
		serveConnections(ctx, ln, d, logger)
	}()

	waitForShutdown(logger)

	cancel()
	ln.Close()
	if cfg.Metrics.Enabled {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = reg.StopServer(shutdownCtx)
	}

	if cfg.State.Enabled && cfg.State.DumpOnShutdown {
		if err := container.DumpAll(); err != nil {
			logger.Error("shutdown dump failed", "error", err)
		}
	}

	// Destroying each live game stops its Input Listener; on-disk dumps are kept.
	for _, id := range container.AllIDs() {
		container.Destroy(id, false)
	}

	wg.Wait()
	return nil
}

func serveConnections(ctx context.Context, ln net.Listener, d *dispatch.Dispatcher, logger *slog.Logger) {
	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConnection(ctx, conn, d, logger)
		}()
	}
	wg.Wait()
}

// handleConnection frames requests and responses on 0x00, matching the
// wire format in spec §6. The accept/read/write plumbing itself is thin
// and intentionally untested; Dispatch is the tested core.
func handleConnection(ctx context.Context, conn net.Conn, d *dispatch.Dispatcher, logger *slog.Logger) {
	defer conn.Close()
	connLogger := logger.With("remote_addr", conn.RemoteAddr().String())

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString(0x00)
		if err != nil {
			return
		}
		raw = raw[:len(raw)-1]

		resp := d.Dispatch(ctx, connLogger, raw)
		if _, err := conn.Write(append([]byte(resp), 0x00)); err != nil {
			return
		}
	}
}

func waitForShutdown(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
}

func containsString(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
