package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tatianab/life-restart/internal/tui"
)

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal interface",
		RunE:  runTUI,
	}
}

// runTUI logs to a file in the save directory so the interface owns the
// terminal.
func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.SaveDir, 0755); err != nil {
		return fmt.Errorf("failed to create save directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.SaveDir, "game.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	a, err := newApp(cmd, cfg, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(a.engine, a.bundle.Strings, a.saves)
}
