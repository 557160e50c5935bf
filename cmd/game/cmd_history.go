package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tatianab/life-restart/internal/archive"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/render"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished lives",
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, _ := cmd.Flags().GetBool("saved")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()

			a, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			if saved {
				names, err := a.saves.List()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			if a.archive == nil {
				return fmt.Errorf("no archive configured")
			}
			entries, err := a.archive.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No lives yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s  age %-3d  %s %-5g  %s\n",
					e.ID, e.FinishedAt.Format("2006-01-02 15:04"), e.FinalAge,
					a.bundle.Strings.Metric("SUM"), e.Total, strings.Join(e.Traits, ", "))
			}
			return nil
		},
	}

	cmd.Flags().Bool("saved", false, "List lives saved as YAML instead of the archive")
	cmd.Flags().Int("limit", 10, "Maximum number of lives to list")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-name>",
		Short: "Replay a finished life",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			a, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			life, err := findLife(cmd, a, args[0])
			if err != nil {
				return err
			}

			strs := a.bundle.Strings
			for _, t := range life.Traits {
				fmt.Fprintf(out, "- %s\n", render.Trait(t))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, render.Allocation(strs, life.Allocation, life.Allocation.Sum()))
			fmt.Fprintln(out)
			for _, rec := range life.Records {
				fmt.Fprintln(out, render.Record(strs, rec))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, render.Summary(strs, life.Summary))
			return nil
		},
	}
}

// findLife looks the life up in the archive first, then in the save
// directory.
func findLife(cmd *cobra.Command, a *app, key string) (models.Life, error) {
	if a.archive != nil {
		life, err := a.archive.Life(cmd.Context(), key)
		if err == nil {
			return life, nil
		}
		if !errors.Is(err, archive.ErrNotFound) {
			return models.Life{}, err
		}
	}
	life, err := a.saves.Load(key)
	if err != nil {
		return models.Life{}, fmt.Errorf("life %q not found: %w", key, err)
	}
	return *life, nil
}
