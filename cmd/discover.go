package cmd

import (
	"fmt"

	"github.com/safequote/safequote/pkg/ajax"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <page-url>",
	Short: "Find the ajax URL and nonce on a theme page",
	Long: `Fetches a page rendered by the SafeQuote theme and reads the localized
safequote_ajax object. The output can be pasted into ~/.safequote.yaml.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newHTTPClient()
		if err != nil {
			return err
		}
		cfg, err := ajax.Discover(cmd.Context(), h, args[0])
		if err != nil {
			return err
		}
		fmt.Println("ajax:")
		fmt.Printf("  url: %s\n", cfg.AjaxURL)
		fmt.Printf("  nonce: %s\n", cfg.Nonce)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
