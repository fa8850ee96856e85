package ajax

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/safequote/safequote/pkg/whttp"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

// LOCALIZED_OBJECT is the global the theme localizes into its pages.
const LOCALIZED_OBJECT = "safequote_ajax"

var (
	ErrConfigNotFound = errors.New(LOCALIZED_OBJECT + " not found in page")

	localizedObjectRe = regexp.MustCompile(`(?s)` + LOCALIZED_OBJECT + `\s*=\s*(\{.*?\})\s*;`)
)

// Discover fetches a theme page and reads the ajax URL and nonce the theme
// localized into it.
func Discover(ctx context.Context, h *whttp.Client, pageURL string) (Config, error) {
	res, err := h.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "GET", URL: pageURL})
	if err != nil {
		return Config{}, fmt.Errorf("discover: HTTP request failed: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Config{}, &StatusError{Action: "discover", Code: res.StatusCode}
	}
	return ParseConfig(res.BodyString)
}

// ParseConfig extracts the localized config object from page markup.
func ParseConfig(page string) (Config, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return Config{}, fmt.Errorf("discover: failed to parse page: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	var cfg Config
	found := false
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		m := localizedObjectRe.FindStringSubmatch(s.Text())
		if len(m) < 2 || !gjson.Valid(m[1]) {
			return true
		}
		obj := gjson.Parse(m[1])
		cfg = Config{
			AjaxURL: obj.Get("ajax_url").String(),
			Nonce:   obj.Get("nonce").String(),
		}
		found = true
		return false
	})

	if !found {
		return Config{}, ErrConfigNotFound
	}
	if cfg.AjaxURL == "" {
		return Config{}, fmt.Errorf("discover: %s has no ajax_url", LOCALIZED_OBJECT)
	}
	return cfg, nil
}
