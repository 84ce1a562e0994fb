package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for brobbot.
type Config struct {
	Robot      RobotConfig      `json:"robot"`
	HTTP       HTTPConfig       `json:"http"`
	Adapters   AdaptersConfig   `json:"adapters"`
	Transcript TranscriptConfig `json:"transcript"`
	Metrics    MetricsConfig    `json:"metrics"`
	HTTPClient HTTPClientConfig `json:"httpClient"`
}

// RobotConfig names the bot and picks its transport and scripts.
type RobotConfig struct {
	Name       string   `json:"name"`
	Alias      string   `json:"alias,omitempty"`   // optional command prefix, e.g. "!"
	Adapter    string   `json:"adapter"`           // shell | telegram | discord | slack | websocket
	LogLevel   string   `json:"logLevel"`          // debug | info | warn | error
	Scripts    []string `json:"scripts,omitempty"` // built-in scripts to load; empty = all
	ScriptsDir string   `json:"scriptsDir,omitempty"`
}

// HTTPConfig configures the robot's HTTP router (help page, metrics).
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type AdaptersConfig struct {
	Shell     ShellConfig     `json:"shell"`
	Telegram  TelegramConfig  `json:"telegram"`
	Discord   DiscordConfig   `json:"discord,omitempty"`
	Slack     SlackConfig     `json:"slack,omitempty"`
	WebSocket WebSocketConfig `json:"websocket,omitempty"`
}

type ShellConfig struct {
	User string `json:"user"` // name shown for the local user
}

type TelegramConfig struct {
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

type DiscordConfig struct {
	Token   string `json:"token"`
	GuildID string `json:"guildId,omitempty"` // optional: restrict to specific guild
}

type SlackConfig struct {
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"` // required for Socket Mode
}

type WebSocketConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// TranscriptConfig configures the SQLite archive of conversations.
type TranscriptConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

// MetricsConfig exposes Prometheus metrics on the robot router.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// HTTPClientConfig tunes the client scripts get from Response.HTTP.
type HTTPClientConfig struct {
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxRetries     int    `json:"maxRetries"`
	UserAgent      string `json:"userAgent,omitempty"`
}

// DefaultConfigDir returns the default config directory (~/.brobbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".brobbot"
	}
	return filepath.Join(home, ".brobbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the config at path, expands ${VAR} references and ~/ paths,
// and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	return resolve(path, []byte(ExpandEnvVars(string(data))))
}

// LoadRaw reads the config at path as written: ${VAR} references and ~/
// paths are kept and nothing is validated. Use it for edits that are saved
// back to the same file.
func LoadRaw(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve returns the expanded, validated form of a config obtained from LoadRaw.
// raw is not modified.
func Resolve(raw *Config) (*Config, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal config: %w", err)
	}
	return resolve("(in memory)", []byte(ExpandEnvVars(string(data))))
}

func resolve(path string, data []byte) (*Config, error) {
	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Transcript.DBPath = ExpandPath(cfg.Transcript.DBPath)
	cfg.Robot.ScriptsDir = ExpandPath(cfg.Robot.ScriptsDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// namePattern keeps robot.name usable as one URL path segment (GET /<name>/help).
var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var knownAdapters = map[string]bool{
	"shell": true, "telegram": true, "discord": true, "slack": true, "websocket": true,
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.Robot.Name) == "" {
		errs = append(errs, "robot.name is required")
	}
	if cfg.Robot.Name != "" && !namePattern.MatchString(cfg.Robot.Name) {
		errs = append(errs, "robot.name may only contain letters, digits, '.', '_' and '-'")
	}
	if !knownAdapters[cfg.Robot.Adapter] {
		errs = append(errs, fmt.Sprintf("robot.adapter must be one of: shell, telegram, discord, slack, websocket (got %q)", cfg.Robot.Adapter))
	}
	if _, err := ParseLogLevel(cfg.Robot.LogLevel); err != nil {
		errs = append(errs, "robot.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, "http.port must be between 0 and 65535")
	}
	if cfg.Adapters.WebSocket.Port < 0 || cfg.Adapters.WebSocket.Port > 65535 {
		errs = append(errs, "adapters.websocket.port must be between 0 and 65535")
	}

	switch cfg.Robot.Adapter {
	case "telegram":
		if cfg.Adapters.Telegram.Token == "" {
			errs = append(errs, "adapters.telegram.token is required for the telegram adapter")
		}
	case "discord":
		if cfg.Adapters.Discord.Token == "" {
			errs = append(errs, "adapters.discord.token is required for the discord adapter")
		}
	case "slack":
		if cfg.Adapters.Slack.BotToken == "" || cfg.Adapters.Slack.AppToken == "" {
			errs = append(errs, "adapters.slack.botToken and adapters.slack.appToken are required for the slack adapter")
		}
	}

	if cfg.Transcript.Enabled && cfg.Transcript.RetentionDays < 1 {
		errs = append(errs, "transcript.retentionDays must be >= 1")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}
	if cfg.HTTPClient.TimeoutSeconds < 1 {
		errs = append(errs, "httpClient.timeoutSeconds must be >= 1")
	}
	if cfg.HTTPClient.MaxRetries < 0 || cfg.HTTPClient.MaxRetries > 10 {
		errs = append(errs, "httpClient.maxRetries must be between 0 and 10")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLogLevel maps robot.logLevel to a slog level. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
