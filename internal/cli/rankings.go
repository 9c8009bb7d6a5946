package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"monster-quiz-engine/internal/domain"
)

// NewRankingsCmd groups the leaderboard commands.
func NewRankingsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Show or export the leaderboards",
	}

	var showCategory string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print one leaderboard window",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := domain.ParseCategory(showCategory)
			if err != nil {
				return fmt.Errorf("%w: %q", err, showCategory)
			}
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			data, err := rt.service.Rankings(cmd.Context())
			if err != nil {
				return err
			}
			entries, _ := data.Entries(category)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tPLAYER\tSCORE\tLEVEL\tCORRECT\tACCURACY\tMONSTERS")
			for i, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d/%d\t%.1f%%\t%d\n",
					i+1, e.PlayerName, e.Score, e.Level, e.CorrectAnswers, e.TotalQuestions, e.Accuracy*100, e.MonstersCollected)
			}
			return w.Flush()
		},
	}
	show.Flags().StringVar(&showCategory, "category", string(domain.CategoryAllTime), "daily, weekly or all_time")

	var exportFormat, exportCategory, exportOut string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export the leaderboards as JSON or one window as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportFormat != "json" && exportFormat != "csv" {
				return fmt.Errorf("unsupported format %q", exportFormat)
			}
			category, err := domain.ParseCategory(exportCategory)
			if err != nil {
				return fmt.Errorf("%w: %q", err, exportCategory)
			}
			rt, err := openRuntime(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			var out []byte
			if exportFormat == "csv" {
				text, err := rt.service.ExportRankingsCSV(cmd.Context(), category)
				if err != nil {
					return err
				}
				out = []byte(text)
			} else {
				out, err = rt.service.ExportRankingsJSON(cmd.Context())
				if err != nil {
					return err
				}
				out = append(out, '\n')
			}

			if exportOut == "" || exportOut == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(exportOut, out, 0o644)
		},
	}
	export.Flags().StringVar(&exportFormat, "format", "json", "json or csv")
	export.Flags().StringVar(&exportCategory, "category", string(domain.CategoryAllTime), "window exported as csv")
	export.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")

	cmd.AddCommand(show, export)
	return cmd
}
