package cmd

import (
	"context"
	"errors"

	"github.com/safequote/safequote/internal/utils"
	"github.com/safequote/safequote/pkg/ajax"
	"github.com/safequote/safequote/pkg/filter"
	"github.com/safequote/safequote/pkg/render"
	"github.com/safequote/safequote/pkg/storage"
	"github.com/safequote/safequote/pkg/whttp"
	"github.com/spf13/viper"
)

var errNoEndpoint = errors.New("no ajax endpoint configured: set ajax.url (and ajax.nonce) or ajax.page")

func newHTTPClient() (*whttp.Client, error) {
	return whttp.NewClient(whttp.Options{
		Timeout:       viper.GetDuration("http.timeout"),
		Retries:       viper.GetInt("http.retries"),
		Proxy:         viper.GetString("http.proxy"),
		RatePerSecond: viper.GetFloat64("http.rate"),
	})
}

// resolveConfig returns the configured endpoint, discovering it from
// ajax.page when no URL is set.
func resolveConfig(ctx context.Context, h *whttp.Client) (ajax.Config, error) {
	cfg := ajax.Config{
		AjaxURL: viper.GetString("ajax.url"),
		Nonce:   viper.GetString("ajax.nonce"),
	}
	if cfg.AjaxURL != "" {
		return cfg, nil
	}
	page := viper.GetString("ajax.page")
	if page == "" {
		return ajax.Config{}, errNoEndpoint
	}
	utils.Log.Debugf("Discovering ajax config from %s", page)
	discovered, err := ajax.Discover(ctx, h, page)
	if err != nil {
		return ajax.Config{}, err
	}
	if cfg.Nonce != "" {
		discovered.Nonce = cfg.Nonce
	}
	return discovered, nil
}

func newAjaxClient(ctx context.Context) (*ajax.Client, error) {
	h, err := newHTTPClient()
	if err != nil {
		return nil, err
	}
	cfg, err := resolveConfig(ctx, h)
	if err != nil {
		return nil, err
	}
	if !cfg.HasNonce() {
		utils.Log.Warn("No nonce configured, the backend will reject most requests")
	}
	return ajax.NewClient(cfg, h), nil
}

func labelsFromConfig() render.Labels {
	var l render.Labels
	if err := viper.UnmarshalKey("labels", &l); err != nil {
		utils.Log.Warnf("Ignoring invalid labels config: %v", err)
	}
	return l.WithDefaults()
}

func newController(client *ajax.Client, opts filter.Options) *filter.Controller {
	opts.Log = utils.Log
	return filter.New(client, client.Config(), opts)
}

// openHistory opens the search history database along with its writer lock.
func openHistory(dbPath string) (*storage.DB, *utils.HistoryLock, error) {
	absPath, err := utils.HistoryPath(dbPath)
	if err != nil {
		return nil, nil, err
	}
	lock, err := utils.NewHistoryLock(absPath, utils.Log)
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(absPath)
	if err != nil {
		return nil, nil, err
	}
	return db, lock, nil
}
