package bakery

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sync"

	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

// CommandFunc is a post-publish command. It returns the command's output for
// logging; any error is reported as a post-publish warning, never as a
// build/publish failure.
type CommandFunc func(ctx context.Context) (string, error)

// Registry resolves post-publish command names. Names registered in-process
// win; anything else is treated as an external binary on PATH, mirroring how
// the build and publish subcommands are opaque collaborators.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]CommandFunc
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]CommandFunc)}
}

// Register adds or replaces an in-process command.
func (r *Registry) Register(name string, fn CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = fn
}

// Names returns the registered in-process command names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	return names
}

// Resolve returns the command for name. Unregistered names resolve to an
// external-binary invocation.
func (r *Registry) Resolve(name string) CommandFunc {
	r.mu.RLock()
	fn, ok := r.commands[name]
	r.mu.RUnlock()
	if ok {
		return fn
	}
	return func(ctx context.Context) (string, error) {
		return runExternal(ctx, name)
	}
}

func runExternal(ctx context.Context, name string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", ferrors.CommandError("post-publish command not found").
			WithContext("command", name).
			Build()
	}
	cmd := exec.CommandContext(ctx, name)
	cmd.Env = os.Environ()
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return buf.String(), ferrors.WrapError(err, ferrors.CategoryCommand, "post-publish command failed").
			WithContext("command", name).
			Build()
	}
	return buf.String(), nil
}
