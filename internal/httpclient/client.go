// Package httpclient provides a hardened outbound HTTP client.
package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/courtside/rsvpd/errors"
)

// Client wraps http.Client with scheme validation and a redirect cap
// for outbound calls to third-party APIs.
type Client struct {
	*http.Client
	allowedSchemes []string
	maxRedirects   int
}

// New creates an outbound HTTP client with the given timeout
func New(timeout time.Duration) *Client {
	client := &Client{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		allowedSchemes: []string{"http", "https"},
		maxRedirects:   10,
	}

	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= client.maxRedirects {
			return errors.Newf("stopped after %d redirects", client.maxRedirects)
		}
		if err := client.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return client
}

// validateURL checks that a URL uses an allowed scheme and has a host
func (c *Client) validateURL(u *url.URL) error {
	if u == nil {
		return errors.New("url is nil")
	}

	schemeOK := false
	for _, scheme := range c.allowedSchemes {
		if u.Scheme == scheme {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return errors.Newf("scheme %q not allowed", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url has no host")
	}

	return nil
}

// Do validates the request URL before sending
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}
