// Package config loads the daemon's read-once settings: YAML on disk,
// environment-variable expansion inside the file, and namespaced
// environment-variable overrides applied after unmarshal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dungeongate/adventured/pkg/logging"
)

// Network holds the TCP listener settings.
type Network struct {
	Port          int      `yaml:"port"`
	Listen        []string `yaml:"listen"`
	ReuseAddress  bool     `yaml:"reuse_address"`
	SendKeepalive bool     `yaml:"send_keepalive"`
}

// Logging mirrors logging.Config plus the wire-level option name (logto).
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	LogTo  string `yaml:"logto"`
}

// Input configures which input listener drivers are active.
type Input struct {
	Listeners []string `yaml:"listeners"`
}

// Output selects the active output driver.
type Output struct {
	Driver string `yaml:"driver"`
}

// Redis wires the optional pub/sub I/O driver.
type Redis struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	Username                string `yaml:"username"`
	Password                string `yaml:"password"`
	ConnectionTimeout       string `yaml:"connection_timeout"`
	ConnectionRetryInterval string `yaml:"connection_retry_interval"`
	OutputChannel           string `yaml:"output_channel"`
	InputChannel            string `yaml:"input_channel"`
}

// Resources locates definition files on disk.
type Resources struct {
	DefinitionsPath string `yaml:"definitions_path"`
}

// State configures the snapshot/restore subsystem.
type State struct {
	Enabled         bool   `yaml:"enabled"`
	AutoRestore     bool   `yaml:"auto_restore"`
	DumpOnShutdown  bool   `yaml:"dump_on_shutdown"`
	CrashRecovery   bool   `yaml:"crash_recovery"`
	Format          string `yaml:"format"`
	SavePath        string `yaml:"save_path"`
	MaxDumpsPerGame int    `yaml:"max_dumps_per_game"`
}

// Extensions configures the in-process extension loader.
type Extensions struct {
	Path string   `yaml:"path"`
	Load []string `yaml:"load"`
}

// Metrics configures the Prometheus HTTP endpoint.
type Metrics struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Config is the full daemon configuration, read once at startup.
type Config struct {
	Network    Network    `yaml:"network"`
	Logging    Logging    `yaml:"logging"`
	Input      Input      `yaml:"input"`
	Output     Output     `yaml:"output"`
	Redis      Redis      `yaml:"redis"`
	Resources  Resources  `yaml:"resources"`
	State      State      `yaml:"state"`
	Extensions Extensions `yaml:"extensions"`
	Metrics    Metrics    `yaml:"metrics"`
}

// hiddenFields lists dotted option paths elided by "global get config".
var hiddenFields = map[string]bool{
	"redis.password": true,
	"redis.username": true,
}

// Default returns the configuration defaults applied before a file is loaded.
func Default() Config {
	return Config{
		Network: Network{
			Port:   4040,
			Listen: []string{"127.0.0.1", "::1"},
		},
		Logging: Logging{Level: "info", Format: "json", LogTo: "stdout"},
		Input:   Input{Listeners: []string{"local"}},
		Output:  Output{Driver: "local"},
		Redis: Redis{
			ConnectionTimeout:       "5s",
			ConnectionRetryInterval: "1s",
			OutputChannel:           "adventured:output",
			InputChannel:            "adventured:input",
		},
		Resources: Resources{DefinitionsPath: "./definitions"},
		State: State{
			Format:          "json",
			SavePath:        "./state",
			MaxDumpsPerGame: 5,
		},
		Metrics: Metrics{Enabled: true, Port: 9090},
	}
}

// Load reads path as env-expanded YAML on top of Default(), then applies
// namespaced environment-variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Network.Port = logging.GetEnvIntOrDefault("NETWORK_PORT", cfg.Network.Port)
	cfg.Logging.LogTo = logging.GetEnvOrDefault("LOGGING_LOGTO", cfg.Logging.LogTo)
	cfg.Output.Driver = logging.GetEnvOrDefault("OUTPUT_DRIVER", cfg.Output.Driver)
	cfg.Redis.Host = logging.GetEnvOrDefault("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = logging.GetEnvIntOrDefault("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = logging.GetEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Resources.DefinitionsPath = logging.GetEnvOrDefault("RESOURCES_DEFINITIONS_PATH", cfg.Resources.DefinitionsPath)
	cfg.State.SavePath = logging.GetEnvOrDefault("STATE_SAVE_PATH", cfg.State.SavePath)
	cfg.State.MaxDumpsPerGame = logging.GetEnvIntOrDefault("STATE_MAX_DUMPS_PER_GAME", cfg.State.MaxDumpsPerGame)
	cfg.Metrics.Port = logging.GetEnvIntOrDefault("METRICS_PORT", cfg.Metrics.Port)

	if v, ok := envBool("STATE_ENABLED"); ok {
		cfg.State.Enabled = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Setting is one entry of the "global get config" response.
type Setting struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Settings flattens Config into the non-hidden (name, type, value) triples
// that "global get config" returns.
func (c Config) Settings() []Setting {
	all := []Setting{
		{"network.port", "int", c.Network.Port},
		{"network.listen", "string", strings.Join(c.Network.Listen, ",")},
		{"network.reuse_address", "bool", c.Network.ReuseAddress},
		{"network.send_keepalive", "bool", c.Network.SendKeepalive},
		{"logging.logto", "string", c.Logging.LogTo},
		{"input.listeners", "string", strings.Join(c.Input.Listeners, ",")},
		{"output.driver", "string", c.Output.Driver},
		{"redis.host", "string", c.Redis.Host},
		{"redis.port", "int", c.Redis.Port},
		{"redis.username", "string", c.Redis.Username},
		{"redis.password", "string", c.Redis.Password},
		{"redis.output_channel", "string", c.Redis.OutputChannel},
		{"redis.input_channel", "string", c.Redis.InputChannel},
		{"resources.definitions_path", "string", c.Resources.DefinitionsPath},
		{"state.enabled", "bool", c.State.Enabled},
		{"state.auto_restore", "bool", c.State.AutoRestore},
		{"state.dump_on_shutdown", "bool", c.State.DumpOnShutdown},
		{"state.crash_recovery", "bool", c.State.CrashRecovery},
		{"state.format", "string", c.State.Format},
		{"state.save_path", "string", c.State.SavePath},
		{"state.max_dumps_per_game", "int", c.State.MaxDumpsPerGame},
		{"extensions.path", "string", c.Extensions.Path},
	}

	visible := all[:0]
	for _, s := range all {
		if hiddenFields[s.Name] {
			continue
		}
		visible = append(visible, s)
	}
	return visible
}
