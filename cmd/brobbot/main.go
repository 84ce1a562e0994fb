package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"brobbot/internal/config"
	"brobbot/internal/help"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	logLevel   = new(slog.LevelVar)
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// A local .env may supply the ${VAR} references in config.json.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("cannot read .env", "err", err)
	}

	root := &cobra.Command{
		Use:   "brobbot",
		Short: "brobbot: a scriptable chat bot",
		Long:  "brobbot listens on a chat service and answers with scripts. Shell, Telegram, Discord, Slack and WebSocket adapters are built in.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.brobbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(commandsCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}
	level, _ := config.ParseLogLevel(cfg.Robot.LogLevel)
	logLevel.Set(level)
	return cfg, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config and an example script",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}

			scriptsDir := config.ExpandPath(cfg.Robot.ScriptsDir)
			if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
				return err
			}
			example := filepath.Join(scriptsDir, "greetings.yaml")
			if _, err := os.Stat(example); errors.Is(err, fs.ErrNotExist) {
				if err := os.WriteFile(example, []byte(exampleScript), 0o644); err != nil {
					return err
				}
			}
			logger.Info("initialized", "config", cfgPath, "scripts", scriptsDir)
			return nil
		},
	}
}

const exampleScript = `name: greetings
help:
  - "brobbot hello - Says hello back"
listeners:
  - respond: "(?i)^(hello|hi)$"
    method: reply
    replies: ["Hi!", "Hello there", "Hey"]
    finish: true
`

func commandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands [filter]",
		Short: "Print the help lines of the configured scripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			r, err := buildRobot(cfg, nil, nil)
			if err != nil {
				return err
			}
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			fmt.Println(help.ChatReply(r.Commands().List(), filter, r.Name(), r.Alias()))
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. robot.name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. robot.adapter slack)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if err := setConfigValue(cfgPath, args[0], args[1]); err != nil {
				return err
			}
			logger.Info("config updated", "path", args[0], "file", cfgPath)
			return nil
		},
	})

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List all config values as settable dot paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return printConfig(cmd.OutOrStdout(), config.Sanitize(cfg), asJSON)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print the whole document as JSON")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

// setConfigValue edits one path in the file at cfgPath. The file is edited as
// written so ${VAR} references survive; only the expanded copy is validated.
func setConfigValue(cfgPath, path, value string) error {
	raw, err := config.LoadRaw(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.SetByPath(raw, path, value); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	if _, err := config.Resolve(raw); err != nil {
		return err
	}
	if err := config.Save(cfgPath, raw); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// printConfig writes cfg as "path = value" lines, or as indented JSON.
func printConfig(w io.Writer, cfg *config.Config, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	settings, err := config.ListPaths(cfg)
	if err != nil {
		return err
	}
	for _, st := range settings {
		value, _ := json.Marshal(st.Value)
		fmt.Fprintf(w, "%s = %s\n", st.Path, value)
	}
	return nil
}
