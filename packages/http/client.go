package http

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/textproto"
	neturl "net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL is where the backend listens when nothing else is configured
	DefaultBaseURL = "http://localhost:8080"
	// DefaultTimeout is the default per-request timeout
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// UserAgent is sent unless a request or default header overrides it
	UserAgent = "hitprobe"
)

// Client sends probes to a single backend. It never retries; retry policy
// belongs to the runner.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	timeout        time.Duration
	followRedirect bool
	validateSSL    bool
	proxyURL       string
	transport      http.RoundTripper
	defaultHeaders map[string]string
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		timeout:        DefaultTimeout,
		followRedirect: true,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := c.transport
	if transport == nil {
		t := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        DefaultMaxIdleConns,
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		}
		if !c.validateSSL {
			t.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
		if c.proxyURL != "" {
			if proxyURL, err := neturl.Parse(c.proxyURL); err == nil {
				t.Proxy = http.ProxyURL(proxyURL)
			}
		}
		transport = t
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= DefaultMaxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	// Deadlines come from the per-call context, not http.Client.Timeout.
	c.httpClient = &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy,
	}

	return c
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

// WithDefaultHeaders sets headers sent with every request unless the request
// overrides them
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithTransport replaces the underlying round tripper. Tests use it to inject
// failures below the HTTP layer.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send issues one request and returns a fully read Response, or a
// *TransportError / *ProtocolError. A timeout <= 0 uses the client default.
func (c *Client) Send(ctx context.Context, req *Request, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	url, err := ResolveURL(c.baseURL, req.Path)
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.Path, Err: err}
	}

	body, impliedType, err := req.encodeBody()
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}

	// answered is set once the server starts a response for the current hop
	var answered atomic.Bool
	trace := &httptrace.ClientTrace{
		GetConn:              func(string) { answered.Store(false) },
		GotFirstResponseByte: func() { answered.Store(true) },
	}

	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, url, body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}

	httpReq.Header.Set("User-Agent", UserAgent)
	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if impliedType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", impliedType)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if malformedResponse(ctx, err, answered.Load()) {
			return nil, &ProtocolError{Method: method, URL: url, Reason: "malformed response", Err: err}
		}
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	duration := time.Since(start)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}

	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		BodyText:   string(respBody),
		Duration:   duration,
	}

	parsed, err := decodeJSON(resp)
	if err != nil {
		return nil, &ProtocolError{Method: method, URL: url, Reason: "invalid JSON body", Err: err}
	}
	resp.BodyJSON = parsed

	return resp, nil
}

// malformedResponse reports whether err came from a response the server sent
// but the transport could not parse, as opposed to a connection that failed
// or a request that was cancelled.
func malformedResponse(ctx context.Context, err error, answered bool) bool {
	var protoErr textproto.ProtocolError
	if errors.As(err, &protoErr) {
		return true
	}
	return answered && ctx.Err() == nil
}

// decodeJSON parses the body when it is declared or shaped as JSON. A body
// declared as JSON that does not parse is an error; an undeclared body that
// does not parse is simply text.
func decodeJSON(resp *Response) (any, error) {
	trimmed := strings.TrimSpace(resp.BodyText)
	if trimmed == "" {
		return nil, nil
	}

	declared := resp.IsJSON()
	shaped := trimmed[0] == '{' || trimmed[0] == '['
	if !declared && !shaped {
		return nil, nil
	}

	if !gjson.Valid(trimmed) {
		if declared {
			return nil, fmt.Errorf("body is not valid JSON")
		}
		return nil, nil
	}

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		if declared {
			return nil, err
		}
		return nil, nil
	}
	return v, nil
}

// ValidateBaseURL checks that a URL is well-formed and uses an allowed scheme
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL is empty")
	}

	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
