package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/safequote/safequote/internal/utils"
	"github.com/safequote/safequote/pkg/events"
	"github.com/safequote/safequote/pkg/filter"
	"github.com/safequote/safequote/pkg/render"
	"github.com/safequote/safequote/pkg/storage"
	"github.com/safequote/safequote/pkg/vehicle"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search vehicles",
	Long: `Applies the given filters the same way the search page does (year, then
make, then model, then minimum rating) and runs one search.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetString("year")
		vehicleMake, _ := cmd.Flags().GetString("make")
		model, _ := cmd.Flags().GetString("model")
		minRating, _ := cmd.Flags().GetInt("min-rating")
		asHTML, _ := cmd.Flags().GetBool("html")
		record, _ := cmd.Flags().GetBool("db")

		if model != "" && vehicleMake == "" {
			return filter.ErrModelWithoutMake
		}

		ctx := cmd.Context()
		client, err := newAjaxClient(ctx)
		if err != nil {
			return err
		}

		labels := labelsFromConfig()
		bus := events.NewBus[events.SearchCompleted](func(r interface{}) {
			utils.Log.Errorf("%v", r)
		})
		if record {
			db, lock, err := openHistory(viper.GetString("db.path"))
			if err != nil {
				return err
			}
			defer db.Close()
			storage.NewRecorder(db, lock, utils.Log).Attach(bus)
		}

		ctrl := newController(client, filter.Options{
			Notifier:    utils.Notifier{},
			Bus:         bus,
			CountFormat: labels.VehiclesFound,
		})
		if err := ctrl.Initialize(ctx); err != nil {
			return err
		}
		if year != "" {
			if err := ctrl.OnYearChanged(ctx, year); err != nil {
				return err
			}
		}
		if vehicleMake != "" {
			if err := ctrl.OnMakeChanged(ctx, vehicleMake); err != nil {
				return err
			}
		}
		if err := ctrl.OnModelChanged(model); err != nil {
			return err
		}
		ctrl.OnRatingSliderInput(minRating)

		if err := ctrl.OnSearchClicked(ctx); err != nil {
			return err
		}

		st := ctrl.State()
		if asHTML {
			return render.ResultsList(labels, st.Results).Render(os.Stdout)
		}
		return printVehicles(os.Stdout, st.Results)
	},
}

func printVehicles(out io.Writer, vehicles []vehicle.Vehicle) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "YEAR\tMAKE\tMODEL\tTYPE\tRATING\tFRONT\tSIDE\tROLLOVER")
	for _, v := range vehicles {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Year, v.Make, v.Model, v.Type,
			formatValue(v.SafetyRating, 'f', -1), formatValue(v.FrontCrash, 'f', 1),
			formatValue(v.SideCrash, 'f', 1), formatValue(v.RolloverCrash, 'f', 1))
	}
	return w.Flush()
}

func formatValue(f *float64, format byte, prec int) string {
	if f == nil || *f <= 0 {
		return "-"
	}
	return strconv.FormatFloat(*f, format, prec, 64)
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("year", "", "Model year")
	searchCmd.Flags().String("make", "", "Vehicle make")
	searchCmd.Flags().String("model", "", "Vehicle model (requires --make)")
	searchCmd.Flags().Int("min-rating", 0, "Minimum overall safety rating (0-5, 0 = any)")
	searchCmd.Flags().Bool("html", false, "Print the rendered results fragment instead of a table")
	searchCmd.Flags().Bool("db", false, "Record the search in the local history database")
}
