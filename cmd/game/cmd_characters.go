package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tatianab/life-restart/internal/models"
)

func newCharactersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "characters",
		Short: "Generate random characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			a, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			chars, err := a.engine.RandomCharacters(cmd.Context())
			if err != nil {
				return err
			}
			strs := a.bundle.Strings
			for i, c := range chars {
				stats := make([]string, 0, len(models.Stats))
				for _, s := range models.Stats {
					stats = append(stats, fmt.Sprintf("%s %d", strs.Stat(s), c.Stats[s]))
				}
				names := make([]string, len(c.Traits))
				for j, t := range c.Traits {
					names[j] = t.Name
				}
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, strings.Join(stats, ", "), strings.Join(names, ", "))
			}
			return nil
		},
	}
}
