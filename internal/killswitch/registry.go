// Package killswitch provides an in-memory block list consulted synchronously
// before every dispatch. Keys are plain strings so one registry serves agent
// types and another serves pipeline stages. A kill switch takes effect for
// the next dispatch attempt only; in-flight calls are not interrupted.
package killswitch

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry maps a key to a killed flag. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	killed map[string]bool
	logger *zap.Logger
}

// NewRegistry creates an empty registry. If logger is nil, uses a no-op
// logger.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		killed: make(map[string]bool),
		logger: logger.Named("killswitch"),
	}
}

// Kill blocks a key.
func (r *Registry) Kill(key string) {
	r.mu.Lock()
	r.killed[key] = true
	r.mu.Unlock()
	r.logger.Warn("kill switch set", zap.String("key", key))
}

// Revive unblocks a key.
func (r *Registry) Revive(key string) {
	r.mu.Lock()
	delete(r.killed, key)
	r.mu.Unlock()
	r.logger.Info("kill switch cleared", zap.String("key", key))
}

// KillAll blocks every given key.
func (r *Registry) KillAll(keys ...string) {
	r.mu.Lock()
	for _, key := range keys {
		r.killed[key] = true
	}
	r.mu.Unlock()
	r.logger.Warn("kill switches set", zap.Int("count", len(keys)))
}

// ReviveAll clears every kill switch.
func (r *Registry) ReviveAll() {
	r.mu.Lock()
	r.killed = make(map[string]bool)
	r.mu.Unlock()
	r.logger.Info("all kill switches cleared")
}

// IsKilled reports whether a key is blocked.
func (r *Registry) IsKilled(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.killed[key]
}

// Killed returns the blocked keys in sorted order.
func (r *Registry) Killed() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.killed))
	for key, on := range r.killed {
		if on {
			keys = append(keys, key)
		}
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
