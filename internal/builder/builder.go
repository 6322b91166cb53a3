// Package builder invokes the external static-site build command. The build
// mechanics themselves are an opaque collaborator; this package only runs the
// configured binary, relays its output, and classifies failures.
package builder

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/bakery/internal/config"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/logfields"
)

// outputLogLimit bounds how much subcommand output lands in the log.
const outputLogLimit = 500

// RunCommandFunc executes an external command and returns its combined
// output. Injected so tests can stub the build binary.
type RunCommandFunc func(ctx context.Context, name string, args []string, env []string) (output string, err error)

// Builder runs the configured site build command.
type Builder struct {
	cfg *config.BuildConfig
	run RunCommandFunc
}

// New creates a Builder for the given build configuration.
func New(cfg *config.BuildConfig) *Builder {
	return &Builder{cfg: cfg, run: runCommand}
}

// SetRunner overrides command execution. Intended for tests.
func (b *Builder) SetRunner(run RunCommandFunc) {
	b.run = run
}

// Build invokes the external build command. The skip_static setting is
// passed through as a flag; everything else about the build is the
// collaborator's business.
func (b *Builder) Build(ctx context.Context) (string, error) {
	args := append([]string{}, b.cfg.Args...)
	if b.cfg.SkipStatic {
		args = append(args, "--skip-static")
	}

	slog.Info("Running site build", logfields.Command(b.cfg.Command), "skip_static", b.cfg.SkipStatic)

	out, err := b.run(ctx, b.cfg.Command, args, os.Environ())
	if err != nil {
		return out, ferrors.WrapError(err, ferrors.CategoryBuild, "site build failed").
			WithContext("command", b.cfg.Command).
			WithContext("output", truncate(out, outputLogLimit)).
			Build()
	}

	slog.Info("Site build completed", "output", truncate(out, outputLogLimit))
	return out, nil
}

func runCommand(ctx context.Context, name string, args []string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
