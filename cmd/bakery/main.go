package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bakery/internal/bakery"
	"git.home.luguber.info/inful/bakery/internal/config"
	"git.home.luguber.info/inful/bakery/internal/daemon"
	"git.home.luguber.info/inful/bakery/internal/history"
	"git.home.luguber.info/inful/bakery/internal/logfields"
	"git.home.luguber.info/inful/bakery/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"bakery.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" help:"Start the admin panel server"`

	Build struct{} `cmd:"" help:"Build the site once and exit"`

	Publish struct{} `cmd:"" help:"Build the site and publish it to S3"`

	Run struct {
		Command string `arg:"" help:"Post-publish command name (registered or on PATH)"`
	} `cmd:"" help:"Run a post-publish command directly"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe()
	case "build":
		err = runOnce(bakery.ActionBuild)
	case "publish":
		err = runOnce(bakery.ActionBuildPublish)
	case "run <command>":
		err = runCommand(CLI.Run.Command)
	case "init":
		err = runInit()
	case "version":
		fmt.Printf("bakery %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
	if err != nil {
		slog.Error("Command failed", logfields.Error(err))
		os.Exit(1)
	}
}

func runServe() error {
	registry := bakery.NewRegistry()
	bakery.RegisterBuiltins(registry)

	d, err := daemon.New(CLI.Config, registry)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return d.Run(ctx)
}

// runOnce executes a single build or build+publish run and exits nonzero on
// failure, so the commands compose in scripts and CI.
func runOnce(action bakery.Action) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	registry := bakery.NewRegistry()
	bakery.RegisterBuiltins(registry)

	opts := []bakery.Option{}
	if store, err := history.Open(cfg.History.Path); err == nil {
		defer store.Close()
		opts = append(opts, bakery.WithHistory(store))
	} else {
		slog.Warn("Run history unavailable", logfields.Error(err))
	}

	runner := bakery.NewRunner(func() *config.Config { return cfg }, registry, opts...)
	result := runner.Run(context.Background(), action, bakery.TriggerCLI, nil)

	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	if result.Warning != "" {
		slog.Warn("Run completed with warning", "message", result.Warning)
	}
	return nil
}

func runCommand(name string) error {
	registry := bakery.NewRegistry()
	bakery.RegisterBuiltins(registry)

	out, err := registry.Resolve(name)(context.Background())
	if out != "" {
		fmt.Print(out)
	}
	return err
}

func runInit() error {
	slog.Info("Initializing configuration", logfields.Path(CLI.Config), "force", CLI.Init.Force)
	return config.Init(CLI.Config, CLI.Init.Force)
}
