// Package shellgate provides a public API for validating and running shell
// commands under a configured policy.
package shellgate

import (
	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/executor"
	"github.com/Use-Tusk/shellgate/internal/gateway"
	"github.com/Use-Tusk/shellgate/internal/validate"
)

// Config is the configuration for shellgate.
type Config = config.Config

// CLIOverrides are settings layered on top of every enabled shell.
type CLIOverrides = config.CLIOverrides

// ResolvedShellConfig is the effective configuration of one shell.
type ResolvedShellConfig = config.ResolvedShellConfig

// Manager validates and executes commands.
type Manager = gateway.Manager

// Options configure a Manager.
type Options = gateway.Options

// Result is the outcome of an executed command.
type Result = executor.Result

// DirectoryReport is the outcome of Manager.ValidateDirectories.
type DirectoryReport = gateway.DirectoryReport

// ValidationError is returned when a command or directory is rejected.
type ValidationError = validate.Error

// Sentinels for errors.Is on validation failures.
var (
	ErrCommandTooLong    = validate.ErrCommandTooLong
	ErrEmptyCommand      = validate.ErrEmptyCommand
	ErrCommandBlocked    = validate.ErrCommandBlocked
	ErrArgumentBlocked   = validate.ErrArgumentBlocked
	ErrOperatorBlocked   = validate.ErrOperatorBlocked
	ErrInvalidPathFormat = validate.ErrInvalidPathFormat
	ErrPathNotAllowed    = validate.ErrPathNotAllowed
	ErrShellNotFound     = validate.ErrShellNotFound
	ErrMalformedCommand  = validate.ErrMalformedCommand

	ErrWorkingDirectoryUndefined = validate.ErrWorkingDirectoryUndefined
)

// NewManager creates a new manager. cfg and cli may be nil.
func NewManager(cfg *Config, cli *CLIOverrides, opts Options) *Manager {
	return gateway.NewManager(cfg, cli, opts)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig loads configuration from a file.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return config.DefaultConfigPath()
}
