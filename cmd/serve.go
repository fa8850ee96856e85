package cmd

import (
	"net/http/httptest"

	"github.com/safequote/safequote/internal/ajaxtest"
	"github.com/safequote/safequote/internal/server"
	"github.com/safequote/safequote/internal/utils"
	"github.com/safequote/safequote/pkg/ajax"
	"github.com/safequote/safequote/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const demoNonce = "demo"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive vehicle search page",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		record, _ := cmd.Flags().GetBool("db")
		demo, _ := cmd.Flags().GetBool("demo")
		title, _ := cmd.Flags().GetString("title")

		ctx := cmd.Context()

		var client *ajax.Client
		if demo {
			// Serve a built-in catalog instead of a WordPress backend.
			fake := httptest.NewServer(ajaxtest.New(demoNonce, ajaxtest.DefaultCatalog()))
			defer fake.Close()
			utils.Log.Infof("Demo mode: fake backend at %s", fake.URL)

			h, err := newHTTPClient()
			if err != nil {
				return err
			}
			client = ajax.NewClient(ajax.Config{AjaxURL: fake.URL + "/wp-admin/admin-ajax.php", Nonce: demoNonce}, h)
		} else {
			var err error
			if client, err = newAjaxClient(ctx); err != nil {
				return err
			}
		}

		opts := server.Options{
			Backend: client,
			Config:  client.Config(),
			Labels:  labelsFromConfig(),
			Title:   title,
			Log:     utils.Log,
		}
		if record {
			db, lock, err := openHistory(viper.GetString("db.path"))
			if err != nil {
				return err
			}
			defer db.Close()
			opts.OnSearch = storage.NewRecorder(db, lock, utils.Log).Handle
		}

		return server.New(opts).Run(ctx, listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Bool("db", false, "Record searches in the local history database")
	serveCmd.Flags().Bool("demo", false, "Serve a built-in demo catalog instead of a real backend")
	serveCmd.Flags().String("title", "", "Page title")
}
