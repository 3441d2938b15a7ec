package shell

import "log/slog"

// Registry maps shell identifiers to personalities. It is filled once at
// startup and only read afterwards, so lookups take no lock.
type Registry struct {
	shells map[string]Personality
	order  []string
	logger *slog.Logger
}

// NewRegistry creates a registry holding the given personalities.
func NewRegistry(logger *slog.Logger, personalities ...Personality) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		shells: make(map[string]Personality, len(personalities)),
		logger: logger,
	}
	for _, p := range personalities {
		r.Register(p)
	}
	return r
}

// Register adds p. Registering an identifier twice keeps the first
// personality and returns false.
func (r *Registry) Register(p Personality) bool {
	if p == nil {
		return false
	}
	if _, exists := r.shells[p.ID()]; exists {
		r.logger.Warn("shell already registered", "shell", p.ID())
		return false
	}
	r.shells[p.ID()] = p
	r.order = append(r.order, p.ID())
	return true
}

// Get returns the personality registered under id.
func (r *Registry) Get(id string) (Personality, bool) {
	p, ok := r.shells[id]
	return p, ok
}

// IDs returns the registered identifiers in registration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}
