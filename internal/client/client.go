package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supplai-io/supplai/internal/models"
)

var ErrNotSignedIn = errors.New("not signed in")

// Client talks to the Supplai API with a session cookie.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	userAgent string
	logger    *zap.SugaredLogger
}

// New creates a client for the server at addr.  It signs in right away when
// WithPasswordGrant is given.
func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(strings.TrimSuffix(addr, "/"))
	if err != nil {
		return nil, err
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url: %s", addr)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.tlsConfig != nil {
		transport.TLSClientConfig = o.tlsConfig
	}
	noRedirect := func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Transport:     transport,
			Jar:           jar,
			Timeout:       o.timeout,
			CheckRedirect: noRedirect,
		},
		stream: &http.Client{
			Transport:     transport,
			Jar:           jar,
			CheckRedirect: noRedirect,
		},
		userAgent: o.userAgent,
		logger:    o.logger,
	}

	if o.email != "" {
		if err := c.Login(ctx, o.email, o.password); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Login posts the sign in form.  The session cookie is kept for later requests.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, "/login", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusFound, http.StatusSeeOther:
		c.logger.Debugw("signed in", "email", email)
		return nil
	case http.StatusUnauthorized:
		return &ApiError{StatusCode: resp.StatusCode, Model: models.BaseError{Error: "invalid email or password"}}
	case http.StatusForbidden:
		return &ApiError{StatusCode: resp.StatusCode, Model: models.BaseError{Error: "email address not verified"}}
	default:
		return &ApiError{StatusCode: resp.StatusCode, Model: models.BaseError{Error: resp.Status}}
	}
}

func (c *Client) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	var order models.Order
	err := c.getJSON(ctx, "/api/orders/"+id.String(), &order)
	return order, err
}

func (c *Client) GetOrderEmailStatus(ctx context.Context, id uuid.UUID) (models.OrderEmailStatus, error) {
	var status models.OrderEmailStatus
	err := c.getJSON(ctx, "/api/orders/"+id.String()+"/email-status", &status)
	return status, err
}

func (c *Client) getJSON(ctx context.Context, path string, result interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return newApiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}
