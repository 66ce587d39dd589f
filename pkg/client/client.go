package client

import (
	"context"
	"net/http"
	"os"

	"github.com/icholy/digest"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/droprescue/droprescue/pkg/drop"
)

const (
	// DefaultBaseURL is the API endpoint for listing and account calls.
	DefaultBaseURL = "https://my.cl.ly"
	// DefaultShareURL is the base the drop slug is appended to for
	// per-drop detail lookups.
	DefaultShareURL = "https://cl.ly"

	// EnvUser and EnvPassword are the ambient credential variables
	// honored by WithCredentialsFromEnv.
	EnvUser     = "CLOUDAPP_USER"
	EnvPassword = "CLOUDAPP_PASSWORD"

	userAgent     = "Ruby.CloudApp.API"
	serialization = "application/json"

	itemsPath = "/v3/items"
)

type (
	// Client owns the HTTP session it authenticates and exposes
	// lookup-by-slug and full-iteration entry points. The session is
	// never shared with the rest of the process.
	Client struct {
		l             *zap.Logger
		baseURL       string
		shareURL      string
		httpClient    *http.Client
		baseTransport http.RoundTripper
		email         string
		password      string
		authenticate  bool
	}
	Option func(*Client)
)

// ------------------------------------------------------------------------------------------------
// ~ Constructor
// ------------------------------------------------------------------------------------------------

func New(l *zap.Logger, opts ...Option) *Client {
	inst := &Client{
		l:          l.Named("client"),
		baseURL:    DefaultBaseURL,
		shareURL:   DefaultShareURL,
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(inst)
	}

	if inst.authenticate {
		inst.Authenticate(inst.email, inst.password)
	}

	return inst
}

// ------------------------------------------------------------------------------------------------
// ~ Options
// ------------------------------------------------------------------------------------------------

func WithHTTPClient(v *http.Client) Option {
	return func(o *Client) {
		o.httpClient = v
		o.baseTransport = v.Transport
	}
}

func WithBaseURL(v string) Option {
	return func(o *Client) {
		o.baseURL = v
	}
}

func WithShareURL(v string) Option {
	return func(o *Client) {
		o.shareURL = v
	}
}

// WithCredentials records the credentials to authenticate with. The
// constructor authenticates once all options ran, so the order
// relative to WithHTTPClient does not matter.
func WithCredentials(email, password string) Option {
	return func(o *Client) {
		o.email = email
		o.password = password
		o.authenticate = true
	}
}

// WithCredentialsFromEnv reads credentials from the ambient
// CLOUDAPP_USER and CLOUDAPP_PASSWORD variables when present.
// Explicit opt-in; a client without it performs unauthenticated
// requests.
func WithCredentialsFromEnv() Option {
	return func(o *Client) {
		if user, ok := os.LookupEnv(EnvUser); ok {
			o.email = user
			o.password = os.Getenv(EnvPassword)
			o.authenticate = true
		}
	}
}

// ------------------------------------------------------------------------------------------------
// ~ Public methods
// ------------------------------------------------------------------------------------------------

// Authenticate attaches digest credentials to all subsequent requests.
// Calling it again replaces, not stacks, any prior authentication: the
// digest transport always wraps the transport the client started with.
func (c *Client) Authenticate(email, password string) {
	c.httpClient.Transport = &digest.Transport{
		Username:  email,
		Password:  password,
		Transport: c.baseTransport,
	}
}

// Get issues a GET request with the session headers attached. It
// implements drop.Session.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", serialization)
	req.Header.Set("Content-Type", serialization)
	return c.httpClient.Do(req)
}

// Drop retrieves a single drop by slug. A non-OK detail response is
// returned as *drop.RetrievalError.
func (c *Client) Drop(ctx context.Context, slug string) (*drop.Drop, error) {
	c.l.Debug("retrieving drop", zap.String("slug", slug))
	return drop.Fetch(ctx, c, c.detailURL(slug))
}

// Drops returns a lazy iterator over every drop of the account,
// starting from the beginning of the listing.
func (c *Client) Drops() *Iterator {
	return &Iterator{c: c}
}

// ------------------------------------------------------------------------------------------------
// ~ Private methods
// ------------------------------------------------------------------------------------------------

func (c *Client) detailURL(slug string) string {
	return c.shareURL + "/" + slug
}

func (c *Client) itemsURL() string {
	return c.baseURL + itemsPath
}
