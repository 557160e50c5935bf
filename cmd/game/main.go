package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tatianab/life-restart/internal/archive"
	"github.com/tatianab/life-restart/internal/config"
	"github.com/tatianab/life-restart/internal/content"
	"github.com/tatianab/life-restart/internal/engine"
	"github.com/tatianab/life-restart/internal/events"
	"github.com/tatianab/life-restart/internal/logging"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/narrator"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "life",
		Short: "Live a life, one year at a time",
		Long: `life draws three traits, lets you spread a budget of points over
five stats and then plays out a life year by year until it ends.

Run without a subcommand to open the terminal interface.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		newVersionCmd(),
		newPlayCmd(),
		newCharactersCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newTUICmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "life version %s\n", version)
		},
	}
}

// app holds everything a command needs to run games.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	bundle  *content.Bundle
	engine  *engine.Engine
	bus     *events.Bus
	archive *archive.DB
	saves   models.Saves
	closers []func() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration and content and builds the engine. Logs go to
// logOut.
func setup(cmd *cobra.Command, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newApp(cmd, cfg, logOut)
}

func newApp(cmd *cobra.Command, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, bus: events.NewBus(), saves: models.Saves{Dir: cfg.SaveDir}}
	a.log = logging.NewLogger(cfg.LogLevel, logOut)

	var err error
	a.bundle, err = content.Load(content.NewLoader(cfg.ContentDir), cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	opts := engine.Options{
		Rules:  a.bundle.Rules,
		Traits: a.bundle.Traits,
		Bus:    a.bus,
		Logger: a.log,
		Seed:   cfg.Seed,
	}

	if cfg.ArchivePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ArchivePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
		a.archive, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.archive.Close)
		opts.Bonus = a.archive
		opts.Recorder = a.archive
	}

	switch cfg.Narrator {
	case config.NarratorGemini:
		g, err := narrator.NewGemini(cmd.Context(), cfg.GeminiAPIKey, cfg.GeminiModel, a.bundle.Rules.Life.MaxAge)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		opts.Generator = g
	default:
		opts.Generator = narrator.NewLocal(a.bundle.Events, a.bundle.Rules.Life, a.bundle.Strings)
	}

	a.engine, err = engine.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.bus.Subscribe(events.LifeEnded, a.saveLife)
	return a, nil
}

// saveLife writes every finished life to the save directory.
func (a *app) saveLife(evt events.Event) {
	life, ok := evt.Data.(models.Life)
	if !ok {
		return
	}
	name := life.ID
	if name == "" {
		name = life.SessionID
	}
	if err := a.saves.Save(name, &life); err != nil {
		a.log.Warn("save life", "session", life.SessionID, "error", err)
	}
}

// lifeContext bounds a whole life by the configured timeout.
func (a *app) lifeContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.LifeTimeout > 0 {
		return context.WithTimeout(parent, a.cfg.LifeTimeout)
	}
	return context.WithCancel(parent)
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
