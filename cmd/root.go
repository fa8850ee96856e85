package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/safequote/safequote/internal/utils"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `            __                         _
  ___ __ _ / _| ___  __ _ _   _  ___ | |_ ___
 / __/ _` + "`" + ` | |_ / _ \/ _` + "`" + ` | | | |/ _ \| __/ _ \
 \__ \ (_| |  _|  __/ (_| | |_| | (_) | ||  __/
 |___/\__,_|_|  \___|\__, |\__,_|\___/ \__\___|
                        |_|
`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "safequote",
	Short: "Search vehicles by crash-test safety rating.",
	Long: LOGO + `safequote talks to the SafeQuote WordPress theme's admin-ajax endpoints:
list the year, make and model filters, run vehicle searches, serve the
interactive search page and keep a local history of searches.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.safequote.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("ajax-url", "", "admin-ajax.php URL (overrides ajax.url)")
	rootCmd.PersistentFlags().String("nonce", "", "safequote_nonce value (overrides ajax.nonce)")
	rootCmd.PersistentFlags().String("page", "", "Theme page to discover the ajax URL and nonce from (overrides ajax.page)")

	rootCmd.PersistentFlags().String("dbpath", "", "Search history database (default is ~/.config/safequote/safequote.sqlite)")

	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("dbpath"))
	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("ajax.url", rootCmd.PersistentFlags().Lookup("ajax-url"))
	viper.BindPFlag("ajax.nonce", rootCmd.PersistentFlags().Lookup("nonce"))
	viper.BindPFlag("ajax.page", rootCmd.PersistentFlags().Lookup("page"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".safequote")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SAFEQUOTE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := filepath.Join(home, ".safequote.yaml")
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s\n", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("ajax.url", "")
	viper.SetDefault("ajax.nonce", "")
	viper.SetDefault("ajax.page", "")

	viper.SetDefault("http.timeout", "30s")
	viper.SetDefault("http.retries", 0)
	viper.SetDefault("http.rate", 0)
	viper.SetDefault("http.proxy", "")

	viper.SetDefault("db.path", "")

	viper.SetDefault("labels.all_years", "All Years")
	viper.SetDefault("labels.all_makes", "All Makes")
	viper.SetDefault("labels.select_model", "Select Model")
	viper.SetDefault("labels.vehicles_found", "%d vehicles found")
	viper.SetDefault("labels.no_rating", "No Rating")
}
