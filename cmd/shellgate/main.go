// Package main implements the shellgate CLI.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/gateway"
	"github.com/Use-Tusk/shellgate/internal/shell"
	"github.com/Use-Tusk/shellgate/internal/templates"
	"github.com/spf13/cobra"
)

// Build-time variables (set via -ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var (
	debug        bool
	settingsPath string
	templateName string
	builtins     []string
	cli          config.CLIOverrides
	exitCode     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shellgate",
		Short: "Validate and run shell commands under a configurable policy",
		Long: `shellgate runs command lines in a configured shell (cmd, powershell,
Git Bash, bash, WSL or a custom one) after checking them against a policy:
length limits, blocked commands, arguments and operators, and an
allow-list of working directories.

Configuration is read from ~/.shellgate.json (JSON with comments), or from
the file given with --config (.jsonc, .toml or .yaml), or from a built-in
preset given with --template.

Examples:
  shellgate exec -- git status
  shellgate --shell bash exec -w /home/me/src -c "ls -la"
  shellgate --template strict exec -- dir
  shellgate validate-dirs /tmp C:\work
  shellgate config
  shellgate templates`,
		Version:       fmt.Sprintf("%s (built %s, commit %s)", version, buildTime, gitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	flags.StringVar(&settingsPath, "config", "", "Path to config file (default: ~/.shellgate.json)")
	flags.StringVarP(&templateName, "template", "t", "", "Use built-in preset (e.g., strict, development)")
	flags.StringVarP(&cli.Shell, "shell", "s", "", "Enable only this shell")
	flags.StringSliceVar(&builtins, "builtin", nil, "Register only these built-in shells (default: all)")
	flags.StringArrayVar(&cli.AllowedDirs, "allowed-dir", nil, "Allowed working directory (can be used multiple times)")
	flags.StringVar(&cli.InitialDir, "initial-dir", "", "Working directory used when a command names none")
	flags.StringVar(&cli.MountPoint, "mount-point", "", "Mount point of Windows drives in WSL (e.g., /mnt/)")
	flags.IntVar(&cli.CommandTimeout, "timeout", 0, "Command timeout in seconds")
	flags.IntVar(&cli.MaxCommandLength, "max-command-length", 0, "Maximum command length in characters")
	flags.IntVar(&cli.MaxOutputLines, "max-output-lines", 0, "Maximum output lines returned")

	rootCmd.AddCommand(newExecCmd(), newValidateDirsCmd(), newConfigCmd(), newTemplatesCmd(), newOutputCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if exitCode == 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

func newExecCmd() *cobra.Command {
	var (
		cmdString string
		workDir   string
		maxLines  int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "exec [flags] -- [command...]",
		Short: "Validate and run a command",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var command string
			switch {
			case cmdString != "":
				command = cmdString
			case len(args) > 0:
				command = strings.Join(args, " ")
			default:
				return errors.New("no command specified. Use -c <command> or provide command arguments")
			}

			manager, err := newManager()
			if err != nil {
				return err
			}
			defer manager.Cleanup()

			shellID := cli.Shell
			if shellID == "" {
				ids, err := manager.Shells()
				if err != nil {
					return err
				}
				shellID = ids[0]
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := manager.ExecuteCommand(ctx, shellID, command, workDir, maxLines)
			if err != nil {
				exitCode = 2
				return err
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), result.Output)
				if result.Output != "" && !strings.HasSuffix(result.Output, "\n") {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				if result.Truncated {
					fmt.Fprintf(cmd.ErrOrStderr(), "[shellgate] %s\n", result.TruncationNotice)
				}
				if result.TimedOut {
					fmt.Fprintf(cmd.ErrOrStderr(), "[shellgate] command timed out after %s\n", result.Duration.Round(time.Millisecond))
				}
			}
			exitCode = result.ExitCode
			return nil
		},
	}
	cmd.Flags().StringVarP(&cmdString, "c", "c", "", "Run command string directly")
	cmd.Flags().StringVarP(&workDir, "workdir", "w", "", "Working directory")
	cmd.Flags().IntVarP(&maxLines, "lines", "n", 0, "Maximum output lines for this command")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func newValidateDirsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-dirs [paths...]",
		Short: "Report which paths are usable working directories",
		Long: `Report which paths are usable working directories. With --shell the
paths are checked for that shell only; otherwise a path is valid when any
enabled shell accepts it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			defer manager.Cleanup()

			report, err := manager.ValidateDirectories(args, cli.Shell)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Invalid) > 0 {
				exitCode = 1
			}
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration of every enabled shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			defer manager.Cleanup()

			snapshot, err := manager.ResolvedConfig()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snapshot)
		},
	}
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List built-in presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printTemplates(cmd.OutOrStdout())
		},
	}
}

func newOutputCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "output <execution-id>",
		Short: "Print the full stored output of an execution",
		Long: `Print the full stored output of an execution. Output is only kept
across invocations when global.logging.storePath points at a database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager()
			if err != nil {
				return err
			}
			defer manager.Cleanup()

			entry, err := manager.Output(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), entry.Output)
			return nil
		},
	}
}

// newManager loads the configuration (template > config file > default
// path) and returns an initialized manager.
func newManager() (*gateway.Manager, error) {
	logger := newLogger(os.Stderr)

	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, err
	}

	manager := gateway.NewManager(cfg, &cli, gateway.Options{
		Logger:        logger,
		Personalities: shell.Filter(shell.Builtins(), builtins...),
	})
	if err := manager.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return manager, nil
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	switch {
	case templateName != "":
		cfg, err := templates.Load(templateName)
		if err != nil {
			return nil, fmt.Errorf("failed to load template: %w\nRun 'shellgate templates' to see available presets", err)
		}
		logger.Debug("using template", "template", templateName)
		return cfg, nil
	case settingsPath != "":
		cfg, err := config.Load(settingsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if cfg == nil {
			return nil, fmt.Errorf("config file %q is missing or empty", settingsPath)
		}
		absPath, _ := filepath.Abs(settingsPath)
		cfg, err = templates.ResolveExtendsWithBaseDir(cfg, filepath.Dir(absPath))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve extends: %w", err)
		}
		return cfg, nil
	default:
		configPath := config.DefaultConfigPath()
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if cfg == nil {
			logger.Debug("no config found, using defaults", "path", configPath)
			return config.Default(), nil
		}
		cfg, err = templates.ResolveExtendsWithBaseDir(cfg, filepath.Dir(configPath))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve extends: %w", err)
		}
		return cfg, nil
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTemplates prints all available presets.
func printTemplates(w io.Writer) {
	fmt.Fprintln(w, "Available templates:")
	fmt.Fprintln(w)
	for _, t := range templates.List() {
		fmt.Fprintf(w, "  %-20s %s\n", t.Name, t.Description)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: shellgate -t <template> exec -- <command>")
	fmt.Fprintln(w, "Example: shellgate -t strict exec -- git status")
}
