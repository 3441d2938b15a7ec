// Package gateway wires the shell registry, resolved configuration,
// validator and execution engine into the operations exposed to callers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Use-Tusk/shellgate/internal/config"
	"github.com/Use-Tusk/shellgate/internal/executor"
	"github.com/Use-Tusk/shellgate/internal/logstore"
	"github.com/Use-Tusk/shellgate/internal/resolve"
	"github.com/Use-Tusk/shellgate/internal/shell"
	"github.com/Use-Tusk/shellgate/internal/validate"
)

// Options configure a Manager. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// Store overrides the log store chosen from the config.
	Store logstore.Store
	// CurrentDir supplies the directory used when neither a request nor the
	// shell names one. Defaults to os.Getwd.
	CurrentDir func() (string, error)
	// Personalities replaces the built-in shells.
	Personalities []shell.Personality
}

// DirectoryReport is the result of ValidateDirectories.
type DirectoryReport struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

// Manager handles initialization and command execution.
type Manager struct {
	config      *config.Config
	cli         *config.CLIOverrides
	opts        Options
	logger      *slog.Logger
	registry    *shell.Registry
	shells      *resolve.Set
	store       logstore.Store
	ownsStore   bool
	engine      *executor.Engine
	mu          sync.Mutex
	initialized bool
}

// NewManager creates a manager. cfg and cli may be nil.
func NewManager(cfg *config.Config, cli *config.CLIOverrides, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		config: cfg,
		cli:    cli,
		opts:   opts,
		logger: logger,
	}
}

// Initialize resolves the configuration of every enabled shell and opens
// the log store. Any configuration defect is returned as *config.ConfigError.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	personalities := m.opts.Personalities
	if personalities == nil {
		personalities = shell.Builtins()
	}
	m.registry = shell.NewRegistry(m.logger, personalities...)

	shells, err := resolve.All(m.config, m.registry, m.cli, m.logger)
	if err != nil {
		return err
	}
	m.shells = shells

	m.store = m.opts.Store
	if m.store == nil {
		store, owned, err := openStore(m.config)
		if err != nil {
			return err
		}
		m.store, m.ownsStore = store, owned
	}

	currentDir := m.opts.CurrentDir
	if currentDir == nil {
		currentDir = os.Getwd
	}
	m.engine = executor.NewEngine(m.registry, m.shells, m.store,
		executor.WithLogger(m.logger),
		executor.WithCurrentDir(currentDir),
	)

	m.initialized = true
	m.logger.Debug("manager initialized", "shells", m.shells.IDs())
	return nil
}

func openStore(cfg *config.Config) (logstore.Store, bool, error) {
	if cfg == nil || cfg.Global.Logging.StorePath == "" {
		return logstore.NewMemoryStore(), true, nil
	}
	store, err := logstore.NewSQLiteStore(cfg.Global.Logging.StorePath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open log store: %w", err)
	}
	return store, true, nil
}

// ExecuteCommand validates and runs command in the given shell. workDir and
// maxOutputLines are optional.
func (m *Manager) ExecuteCommand(ctx context.Context, shellID, command, workDir string, maxOutputLines int) (*executor.Result, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	return m.engine.Execute(ctx, executor.Request{
		ShellID:        shellID,
		Command:        command,
		WorkDir:        workDir,
		MaxOutputLines: maxOutputLines,
	})
}

// ValidateDirectories sorts paths into valid and invalid working
// directories. With a shell identifier the paths are checked for that
// shell; without one a path is valid if any enabled shell accepts it.
func (m *Manager) ValidateDirectories(paths []string, shellID string) (*DirectoryReport, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}

	ids := m.shells.IDs()
	if shellID != "" {
		ids = []string{shellID}
	}
	contexts := make([]*validate.Context, 0, len(ids))
	for _, id := range ids {
		c, err := validate.BuildContext(m.registry, m.shells, id)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}

	report := &DirectoryReport{Valid: []string{}, Invalid: []string{}}
	for _, p := range paths {
		if validForAny(p, contexts) {
			report.Valid = append(report.Valid, p)
		} else {
			report.Invalid = append(report.Invalid, p)
		}
	}
	return report, nil
}

func validForAny(p string, contexts []*validate.Context) bool {
	for _, c := range contexts {
		_, err := validate.WorkingDirectory(p, c)
		if err == nil {
			return true
		}
		var verr *validate.Error
		if !errors.As(err, &verr) {
			return false
		}
	}
	return false
}

// ResolvedConfig returns a serializable snapshot of every enabled shell.
func (m *Manager) ResolvedConfig() (map[string]config.ResolvedShellConfig, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	return m.shells.Snapshot(), nil
}

// Shells returns the enabled shell identifiers.
func (m *Manager) Shells() ([]string, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	return m.shells.IDs(), nil
}

// Output returns the full stored output of an execution.
func (m *Manager) Output(ctx context.Context, executionID string) (*logstore.Entry, error) {
	if err := m.Initialize(); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, executionID)
}

// Cleanup closes the log store if the manager opened it.
func (m *Manager) Cleanup() {
	if m.store != nil && m.ownsStore {
		if err := m.store.Close(); err != nil {
			m.logger.Warn("failed to close log store", "error", err)
		}
	}
	m.logger.Debug("manager cleaned up")
}
