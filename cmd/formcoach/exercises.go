package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	formcoach "github.com/lucasjlepore/form-analyzer"
)

var exercisesJSON bool

var exercisesCmd = &cobra.Command{
	Use:   "exercises",
	Short: "List the configured exercises and their thresholds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}
		configs := make([]*formcoach.ExerciseConfig, 0, len(registry.Exercises()))
		for _, ex := range registry.Exercises() {
			c, err := registry.Lookup(ex)
			if err != nil {
				return err
			}
			configs = append(configs, c)
		}

		if exercisesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configs)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRIMARY ANGLE\tWINDOWS\tRULES")
		for _, c := range configs {
			windows := fmt.Sprintf("up %s down %s", formatWindow(c.Up), formatWindow(c.Down))
			if c.Static {
				windows = "target " + formatWindow(c.Target)
			}
			ids := make([]string, 0, len(c.Rules))
			for _, r := range c.Rules {
				ids = append(ids, r.ID)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Exercise, c.Name, c.PrimaryAngle, windows, strings.Join(ids, ","))
		}
		return w.Flush()
	},
}

func formatWindow(w formcoach.Window) string {
	return fmt.Sprintf("%.0f-%.0f", w.Min, w.Max)
}

func init() {
	exercisesCmd.Flags().BoolVar(&exercisesJSON, "json", false, "print full configurations as JSON")
	rootCmd.AddCommand(exercisesCmd)
}
