package cmd

import (
	"fmt"
	"strings"

	"github.com/safequote/safequote/pkg/ajax"
	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List the available years, makes and models",
	Long: `Prints the filter options the backend offers. --year narrows the makes,
--make narrows the years and lists the make's models.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetString("year")
		vehicleMake, _ := cmd.Flags().GetString("make")

		ctx := cmd.Context()
		client, err := newAjaxClient(ctx)
		if err != nil {
			return err
		}

		years, err := client.Years(ctx, vehicleMake)
		if err != nil {
			return err
		}
		makes, err := client.Makes(ctx, year)
		if err != nil {
			return err
		}
		printOptions("Years", years)
		printOptions("Makes", makes)

		if vehicleMake != "" {
			models, err := client.Models(ctx, year, vehicleMake)
			if err != nil {
				return err
			}
			printOptions("Models", models)
		}
		return nil
	},
}

func printOptions(title string, opts []ajax.Option) {
	names := ajax.Names(opts)
	if len(names) == 0 {
		fmt.Printf("%s: (none)\n", title)
		return
	}
	fmt.Printf("%s: %s\n", title, strings.Join(names, ", "))
}

func init() {
	rootCmd.AddCommand(optionsCmd)
	optionsCmd.Flags().String("year", "", "Only list makes available in this year")
	optionsCmd.Flags().String("make", "", "Only list years of this make, and list its models")
}
