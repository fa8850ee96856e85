package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded searches",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showStats, _ := cmd.Flags().GetBool("stats")
		showID, _ := cmd.Flags().GetInt64("show")

		db, _, err := openHistory(viper.GetString("db.path"))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		switch {
		case showID > 0:
			vehicles, err := db.SearchVehicles(ctx, showID)
			if err != nil {
				return err
			}
			if len(vehicles) == 0 {
				fmt.Printf("Search %d returned no vehicles (or does not exist).\n", showID)
				return nil
			}
			return printVehicles(os.Stdout, vehicles)

		case showStats:
			stats, err := db.GetMakeStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "MAKE\tSEARCHES\tRESULTS")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\n", orAll(s.Make), s.SearchCount, s.ResultCount)
			}

		default:
			searches, err := db.ListSearches(ctx, limit)
			if err != nil {
				return err
			}
			if len(searches) == 0 {
				fmt.Println("No searches recorded yet. Run 'safequote search --db' or 'safequote serve --db'.")
				return nil
			}
			fmt.Fprintln(w, "ID\tWHEN\tYEAR\tMAKE\tMODEL\tMIN RATING\tRESULTS")
			for _, s := range searches {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n",
					s.ID, s.OccurredAt.Local().Format(time.DateTime),
					orAll(s.Year), orAll(s.Make), orAll(s.Model), s.MinSafetyRating, s.ResultCount)
			}
		}
		return w.Flush()
	},
}

func orAll(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 50, "Number of searches to list")
	historyCmd.Flags().Bool("stats", false, "Group recorded searches by make")
	historyCmd.Flags().Int64("show", 0, "Print the vehicles returned by the search with this ID")
}
