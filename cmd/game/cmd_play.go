package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tatianab/life-restart/internal/allocation"
	"github.com/tatianab/life-restart/internal/models"
	"github.com/tatianab/life-restart/internal/render"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [CHR INT STR MNY SPR]",
		Short: "Play a whole life in the terminal",
		Long: `Play draws traits, allocates stats and prints every year of the life
followed by its graded summary.

Pass one value per stat in the order CHR INT STR MNY SPR, or --random
to have them allocated for you.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != len(models.Stats) {
				return fmt.Errorf("expected %d stat values, got %d", len(models.Stats), len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			random, _ := cmd.Flags().GetBool("random")
			if !random && len(args) == 0 {
				return fmt.Errorf("pass %d stat values or --random", len(models.Stats))
			}
			var alloc models.Allocation
			if !random {
				var err error
				if alloc, err = allocation.Parse(args); err != nil {
					return err
				}
			}

			a, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := a.lifeContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			eng := a.engine
			strs := a.bundle.Strings

			game, err := eng.NewGame(ctx, uuid.NewString())
			if err != nil {
				return err
			}
			for _, t := range game.Traits {
				fmt.Fprintf(out, "- %s\n", render.Trait(t))
			}
			fmt.Fprintln(out)

			if alloc == nil {
				if alloc, err = eng.AutoAllocate(ctx, game.SessionID); err != nil {
					return err
				}
			} else if err := eng.Allocate(ctx, game.SessionID, alloc); err != nil {
				fmt.Fprintln(out, render.Guide(strs, eng.Rules()))
				return err
			}
			fmt.Fprintln(out, render.Allocation(strs, alloc, game.Budget))
			fmt.Fprintln(out)

			for {
				rec, err := eng.Advance(ctx, game.SessionID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, render.Record(strs, rec))
				if rec.Terminal {
					break
				}
			}

			sum, err := eng.Summary(game.SessionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, render.Summary(strs, sum))
			return nil
		},
	}

	cmd.Flags().Bool("random", false, "Allocate stats randomly")
	return cmd
}
