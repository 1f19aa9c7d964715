package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds commands keyed by lower-case name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command. Names are case-insensitive and may not contain
// whitespace or '@'.
func (r *Registry) Register(cmd Command) error {
	name := strings.ToLower(cmd.Name())
	if name == "" || strings.ContainsAny(name, " \t\n@/") {
		return fmt.Errorf("invalid command name %q", cmd.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command already registered: %s", name)
	}
	r.commands[name] = cmd
	return nil
}

// Unregister removes a command by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commands, strings.ToLower(name))
}

// Get returns the command with the given name, or nil if not found.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[strings.ToLower(name)]
}

// List returns all commands sorted by name.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Command, len(names))
	for i, name := range names {
		result[i] = r.commands[name]
	}
	return result
}
