// Package transport performs request/response exchanges with cameras and
// classifies the replies.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icholy/digest"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ptz-bridge/internal/decode"
	"ptz-bridge/internal/ptz"
)

// maxBody bounds how much of a reply is read
const maxBody = 1 << 20

// Config for an HTTP query-string transport
type Config struct {
	BaseURL  string // e.g. "http://192.168.1.20/stw-cgi/"
	Username string
	Password string
	Timeout  time.Duration

	// Transport is the underlying round tripper, http.DefaultTransport if nil
	Transport http.RoundTripper
}

// Client sends digest-authenticated GET requests below a CGI root
type Client struct {
	base   *url.URL
	client *http.Client
	log    *zap.Logger
}

// New creates a new HTTP transport
func New(cfg Config, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL %q", cfg.BaseURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base URL %q needs scheme and host", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &Client{
		base: base,
		client: &http.Client{
			Transport: &digest.Transport{
				Username:  cfg.Username,
				Password:  cfg.Password,
				Transport: cfg.Transport,
			},
			Timeout: cfg.Timeout,
		},
		log: log,
	}, nil
}

// Get requests path (relative to the base URL) with the query q
func (c *Client) Get(ctx context.Context, path string, q url.Values) (*ptz.Reply, error) {
	u := c.base.ResolveReference(&url.URL{Path: path})
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	c.log.Debug("request", zap.String("path", path), zap.String("query", u.RawQuery))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send %s", path)
	}

	reply, err := Read(resp, decode.Text)
	if err != nil {
		c.log.Warn("device error", zap.String("path", path), zap.Error(err))
	}
	return reply, err
}

// Read reads and closes resp and classifies it with Check
func Read(resp *http.Response, describe func([]byte) string) (*ptz.Reply, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read reply")
	}
	return Check(resp.StatusCode, body, describe)
}

// Check classifies a reply. 200 and 204 succeed; any other status becomes a
// *ptz.DeviceError carrying describe(body).
func Check(code int, body []byte, describe func([]byte) string) (*ptz.Reply, error) {
	switch code {
	case http.StatusOK, http.StatusNoContent:
		return &ptz.Reply{StatusCode: code, Body: string(body)}, nil
	}
	return nil, &ptz.DeviceError{Code: code, Message: describe(body)}
}

// Float formats v without a trailing exponent or zeros
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SetFloat sets key to v, or leaves it out when v is nil
func SetFloat(q url.Values, key string, v *float64) {
	if v != nil {
		q.Set(key, Float(*v))
	}
}

// SetInt sets key to v, or leaves it out when v is nil
func SetInt(q url.Values, key string, v *int) {
	if v != nil {
		q.Set(key, strconv.Itoa(*v))
	}
}
