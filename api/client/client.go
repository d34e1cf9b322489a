package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/phantomstreams/phantom-sequencer/api"
	"github.com/phantomstreams/phantom-sequencer/log"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = http.MethodGet
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = http.MethodPost

	errCodeNot200 = "API error"

	// DefaultRetries is the number of attempts of a request before giving up.
	DefaultRetries = 3
	// DefaultTimeout is the default timeout of a single attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultRetryDelay is the pause between two attempts.
	DefaultRetryDelay = 500 * time.Millisecond

	maxLoggedBody = 512
)

// Option configures an HTTPclient.
type Option func(*HTTPclient)

// WithRetries sets the number of attempts of each request. Values below one
// are treated as one.
func WithRetries(n int) Option {
	return func(c *HTTPclient) {
		c.retries = max(n, 1)
	}
}

// WithTimeout sets the timeout of each attempt, including reading the
// response headers.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPclient) {
		c.c.Timeout = d
		c.transport.ResponseHeaderTimeout = d
	}
}

// WithRetryDelay sets the pause between two attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *HTTPclient) {
		c.retryDelay = d
	}
}

// HTTPclient is the phantom node API HTTP client.
type HTTPclient struct {
	c          *http.Client
	transport  *http.Transport
	host       *url.URL
	retries    int
	retryDelay time.Duration
}

// New connects to the API host and returns the handle. It fails if the
// host does not answer the ping endpoint.
func New(host string, opts ...Option) (*HTTPclient, error) {
	hostURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", host, err)
	}
	tr := &http.Transport{
		IdleConnTimeout: DefaultTimeout,
		WriteBufferSize: 1 << 20,
		ReadBufferSize:  1 << 20,
	}
	c := &HTTPclient{
		c:          &http.Client{Transport: tr, Timeout: DefaultTimeout},
		transport:  tr,
		host:       hostURL,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	log.Debugw("http client created", "host", hostURL.String(), "retries", c.retries, "timeout", c.c.Timeout.String())
	data, status, err := c.Request(HTTPGET, nil, nil, api.PingEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	return c, nil
}

// Host returns the API host the client talks to.
func (c *HTTPclient) Host() string {
	return c.host.String()
}

// retryable reports whether a response status means the node may answer a
// later attempt.
func retryable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Request performs a raw request to the endpoint joined from urlPath. A non
// nil jsonBody is sent as JSON. params holds query key and value pairs; an
// odd trailing key is ignored. It returns the response body and status.
//
// Transport errors and gateway statuses are retried up to the configured
// number of attempts.
func (c *HTTPclient) Request(method string, jsonBody any, params []string, urlPath ...string) ([]byte, int, error) {
	var body []byte
	if jsonBody != nil {
		var err error
		if body, err = json.Marshal(jsonBody); err != nil {
			return nil, 0, fmt.Errorf("failed to marshal JSON: %w", err)
		}
	}

	u := *c.host
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	if len(params) > 1 {
		values := url.Values{}
		for i := 0; i+1 < len(params); i += 2 {
			values.Set(params[i], params[i+1])
		}
		u.RawQuery = values.Encode()
	}

	logged := body
	if len(logged) > maxLoggedBody {
		logged = logged[:maxLoggedBody]
	}
	log.Debugw("http client request", "type", method, "url", u.String(), "body", string(logged))

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			time.Sleep(c.retryDelay)
		}
		data, status, err := c.do(method, u.String(), body)
		switch {
		case err != nil:
			lastErr = err
		case retryable(status) && attempt < c.retries:
			lastErr = fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
		default:
			return data, status, nil
		}
		log.Warnw("http request failed", "error", lastErr.Error(), "attempt", attempt, "retries", c.retries)
	}
	return nil, 0, fmt.Errorf("http request failed after %d attempts: %w", c.retries, lastErr)
}

// do sends a single attempt of a request.
func (c *HTTPclient) do(method, target string, body []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.StatusCode, nil
}
