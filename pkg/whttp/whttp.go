package whttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	USER_AGENT      = "safequote-client/1.0 (+https://safequote.example)"
	DEFAULT_TIMEOUT = 30 * time.Second
)

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    string
}

type WHTTPRes struct {
	StatusCode int
	BodyString string
	Headers    http.Header
}

// Options tunes the transport. Zero values mean: default timeout, no
// retries, no proxy, no pacing.
type Options struct {
	Timeout time.Duration
	Retries int
	Proxy   string
	// RatePerSecond caps outgoing requests; <= 0 disables pacing.
	RatePerSecond float64
}

// Client sends WHTTPReqs through a retryablehttp client, optionally paced by
// a token bucket shared by every caller of the same Client.
type Client struct {
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = opts.Retries
	if retryClient.RetryMax < 0 {
		retryClient.RetryMax = 0
	}
	// Hand non-2xx responses back to the caller instead of a generic
	// "giving up" error so status codes can be reported.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}
	retryClient.HTTPClient.Timeout = timeout

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		retryClient.HTTPClient.Transport = &http.Transport{
			Proxy:           http.ProxyURL(proxyURL),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	c := &Client{http: retryClient}
	if opts.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return c, nil
}

// SendHTTPRequest performs wReq and reads the whole body.
func (c *Client) SendHTTPRequest(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body interface{}
	if wReq.Body != "" {
		body = strings.NewReader(wReq.Body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, wReq.Method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
		Headers:    resp.Header,
	}, nil
}
