// Package ajax talks to the WordPress admin-ajax dispatcher that backs the
// SafeQuote vehicle search.
//
// Every call carries an `action` discriminator and the page nonce. Listing
// actions are GETs with query parameters; search is a url-encoded POST. All
// responses are wrapped in a `{success, data}` envelope.
package ajax

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/safequote/safequote/pkg/vehicle"
	"github.com/safequote/safequote/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	ACTION_GET_YEARS       = "get_years"
	ACTION_GET_MAKES       = "get_makes"
	ACTION_GET_MODELS      = "get_models"
	ACTION_SEARCH_VEHICLES = "search_vehicles"
)

var (
	// ErrUnsuccessful is returned when the envelope reports success:false.
	ErrUnsuccessful = errors.New("backend reported failure")
	// ErrMalformedResponse is returned when the body is not the expected envelope.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrNoAjaxURL is returned when the client has nowhere to send requests.
	ErrNoAjaxURL = errors.New("ajax url not configured")
)

// StatusError reports a non-2xx HTTP status from the dispatcher.
type StatusError struct {
	Action string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Action, e.Code)
}

// Config is what the theme page exposes to its scripts: where the
// dispatcher lives and the nonce authorizing calls to it.
type Config struct {
	AjaxURL string
	Nonce   string
}

// HasNonce reports whether calls can be authorized at all.
func (c Config) HasNonce() bool { return c.Nonce != "" }

// Option is one entry of a year/make/model list.
type Option struct {
	Name string `json:"name"`
}

// Names flattens an option list to its values.
func Names(opts []Option) []string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.Name)
	}
	return names
}

// SearchQuery is the filter set sent with search_vehicles. Empty strings and
// a zero rating are omitted from the request.
type SearchQuery struct {
	Year            string
	Make            string
	Model           string
	MinSafetyRating int
}

// Values encodes only the fields that are set.
func (q SearchQuery) Values() url.Values {
	v := url.Values{}
	if q.Year != "" {
		v.Set("year", q.Year)
	}
	if q.Make != "" {
		v.Set("make", q.Make)
	}
	if q.Model != "" {
		v.Set("model", q.Model)
	}
	if q.MinSafetyRating > 0 {
		v.Set("minSafetyRating", strconv.Itoa(q.MinSafetyRating))
	}
	return v
}

// Client is an admin-ajax client bound to one Config.
type Client struct {
	cfg  Config
	http *whttp.Client
}

// NewClient returns a client sending requests through h.
func NewClient(cfg Config, h *whttp.Client) *Client {
	return &Client{cfg: cfg, http: h}
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config { return c.cfg }

// Years lists model years, narrowed to vehicleMake when it is non-empty.
func (c *Client) Years(ctx context.Context, vehicleMake string) ([]Option, error) {
	params := url.Values{}
	if vehicleMake != "" {
		params.Set("make", vehicleMake)
	}
	return c.listOptions(ctx, ACTION_GET_YEARS, params)
}

// Makes lists makes, narrowed to year when it is non-empty.
func (c *Client) Makes(ctx context.Context, year string) ([]Option, error) {
	params := url.Values{}
	if year != "" {
		params.Set("year", year)
	}
	return c.listOptions(ctx, ACTION_GET_MAKES, params)
}

// Models lists models of vehicleMake, narrowed to year when it is non-empty.
func (c *Client) Models(ctx context.Context, year, vehicleMake string) ([]Option, error) {
	if vehicleMake == "" {
		return nil, errors.New("get_models: make is required")
	}
	params := url.Values{}
	params.Set("make", vehicleMake)
	if year != "" {
		params.Set("year", year)
	}
	return c.listOptions(ctx, ACTION_GET_MODELS, params)
}

// Search runs search_vehicles with q.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]vehicle.Vehicle, error) {
	form := q.Values()
	form.Set("action", ACTION_SEARCH_VEHICLES)
	form.Set("nonce", c.cfg.Nonce)

	data, err := c.call(ctx, ACTION_SEARCH_VEHICLES, &whttp.WHTTPReq{
		Method: "POST",
		URL:    c.cfg.AjaxURL,
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "application/x-www-form-urlencoded; charset=UTF-8"},
		},
		Body: form.Encode(),
	})
	if err != nil {
		return nil, err
	}

	vehicles := data.Get("vehicles")
	if !vehicles.IsArray() {
		return nil, fmt.Errorf("%s: %w: data.vehicles is not an array", ACTION_SEARCH_VEHICLES, ErrMalformedResponse)
	}
	return vehicle.ParseList(vehicles), nil
}

func (c *Client) listOptions(ctx context.Context, action string, params url.Values) ([]Option, error) {
	params.Set("action", action)
	params.Set("nonce", c.cfg.Nonce)

	data, err := c.call(ctx, action, &whttp.WHTTPReq{
		Method: "GET",
		URL:    withQuery(c.cfg.AjaxURL, params),
	})
	if err != nil {
		return nil, err
	}
	if !data.IsArray() {
		return nil, fmt.Errorf("%s: %w: data is not an array", action, ErrMalformedResponse)
	}

	opts := []Option{}
	for _, item := range data.Array() {
		name := item.Get("name")
		if !name.Exists() {
			continue
		}
		opts = append(opts, Option{Name: name.String()})
	}
	return opts, nil
}

func withQuery(base string, params url.Values) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

// call sends req and unwraps the envelope, returning its data member.
func (c *Client) call(ctx context.Context, action string, req *whttp.WHTTPReq) (gjson.Result, error) {
	if c.cfg.AjaxURL == "" {
		return gjson.Result{}, ErrNoAjaxURL
	}

	res, err := c.http.SendHTTPRequest(ctx, req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: HTTP request failed: %w", action, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return gjson.Result{}, &StatusError{Action: action, Code: res.StatusCode}
	}

	return unwrapEnvelope(action, res.BodyString)
}

func unwrapEnvelope(action, body string) (gjson.Result, error) {
	if !gjson.Valid(body) {
		return gjson.Result{}, fmt.Errorf("%s: %w: invalid JSON", action, ErrMalformedResponse)
	}
	env := gjson.GetMany(body, "success", "data")
	if !env[0].Bool() {
		return gjson.Result{}, fmt.Errorf("%s: %w", action, ErrUnsuccessful)
	}
	if !env[1].Exists() {
		return gjson.Result{}, fmt.Errorf("%s: %w: missing data", action, ErrMalformedResponse)
	}
	return env[1], nil
}
