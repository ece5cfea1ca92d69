package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/storefront/internal/models"
)

// TokenStore is the part of the credential store the pipeline needs.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	Set(ctx context.Context, access, refresh string) error
	Clear(ctx context.Context) error
}

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	SignInURL string
	// HTTPClient defaults to a plain http.Client; the per-request timeout is
	// applied through the context, not http.Client.Timeout.
	HTTPClient *http.Client
}

// Client is the authenticated pipeline: request interceptor, transport,
// response interceptor with refresh-and-replay.
type Client struct {
	baseURL       string
	timeout       time.Duration
	userAgent     string
	http          *http.Client
	store         TokenStore
	coordinator   *Coordinator
	invalidations *Invalidations
	log           *zap.SugaredLogger
}

func New(cfg Config, store TokenStore, log *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		timeout:       cfg.Timeout,
		userAgent:     cfg.UserAgent,
		http:          httpClient,
		store:         store,
		invalidations: NewInvalidations(),
		log:           log,
	}
	c.coordinator = NewCoordinator(c.refreshOverHTTP, store, c.invalidations, cfg.SignInURL, cfg.Timeout, log)

	return c, nil
}

// Invalidations is where the hosting application subscribes to forced
// re-authentication.
func (c *Client) Invalidations() *Invalidations { return c.invalidations }

func (c *Client) Coordinator() *Coordinator { return c.coordinator }

// Do sends req through the pipeline. Non-2xx answers come back as *APIError,
// a failed refresh as *RefreshError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	resp, sentToken, err := c.dispatch(ctx, req, "")
	if err != nil {
		return nil, err
	}
	return c.interceptResponse(ctx, req, sentToken, resp)
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, in, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, in, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPatch, path, in, out, opts...)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, opts ...RequestOption) error {
	req, err := NewRequest(method, path, in, opts...)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// dispatch sends one attempt and returns the token it carried.
func (c *Client) dispatch(ctx context.Context, req Request, released string) (*Response, string, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token := c.tokenForDispatch(released)
	httpReq, err := c.buildHTTPRequest(ctx, req, token)
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	resp, err := c.send(httpReq)
	if err != nil {
		c.log.Warnw("Request failed",
			"method", req.Method,
			"path", req.Path,
			"request_id", httpReq.Header.Get(models.HeaderRequestID),
			"retried", req.Retried,
			"error", err,
		)
		return nil, token, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	c.log.Debugw("Request",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", httpReq.Header.Get(models.HeaderRequestID),
		"retried", req.Retried,
		"authenticated", token != "",
		"duration", time.Since(start),
	)
	return resp, token, nil
}

func (c *Client) buildHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	raw, err := req.encodeBody()
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if raw != nil {
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set(models.HeaderAccept, models.MIMEJSON)
	if raw != nil {
		httpReq.Header.Set(models.HeaderContentType, models.MIMEJSON)
	}
	if c.userAgent != "" {
		httpReq.Header.Set(models.HeaderUserAgent, c.userAgent)
	}
	if httpReq.Header.Get(models.HeaderRequestID) == "" {
		httpReq.Header.Set(models.HeaderRequestID, uuid.NewString())
	}
	attachCredentials(httpReq.Header, token)

	return httpReq, nil
}

func (c *Client) send(httpReq *http.Request) (*Response, error) {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
