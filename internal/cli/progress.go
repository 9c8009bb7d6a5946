package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewProgressCmd groups the offline progress commands.
func NewProgressCmd(configPath, player *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect or reset a player's progress",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print level, experience, streaks and achievements",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			name := rt.player(*player)
			stats, err := rt.service.Stats(cmd.Context(), name)
			if err != nil {
				return err
			}
			achievements, err := rt.service.Achievements(cmd.Context(), name)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(map[string]any{
				"player":       name,
				"stats":        stats,
				"achievements": achievements,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset progress and achievements; the session log is kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			name := rt.player(*player)
			if err := rt.service.ResetProgress(cmd.Context(), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "progress reset for %s\n", name)
			return nil
		},
	})
	return cmd
}
