// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
)

// HTTP is a client-side Cache talking to a cdictd daemon, so several
// machines can share one store without every client holding credentials
// for the backing database.
type HTTP struct {
	base     *url.URL
	token    string
	client   *http.Client
	logger   zerolog.Logger
	attempts uint
	counters
}

// HTTPConfig holds client configuration for a cdictd endpoint.
type HTTPConfig struct {
	BaseURL  string        // e.g. "http://cache.lab:8080"
	Token    string        // bearer token for daemons that guard writes
	Timeout  time.Duration // per attempt, default 10s
	Attempts uint          // tries per operation for transient failures, default 3
}

// NewHTTP creates a client for the daemon at config.BaseURL. The host is
// IDNA-normalized so unicode and punycode spellings address the same server.
func NewHTTP(config HTTPConfig, logger zerolog.Logger) (*HTTP, error) {
	base, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %s", base.Scheme, config.BaseURL)
	}
	if host := base.Hostname(); host != "" && net.ParseIP(host) == nil {
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host %q: %w", host, err)
		}
		if port := base.Port(); port != "" {
			base.Host = net.JoinHostPort(strings.ToLower(ascii), port)
		} else {
			base.Host = strings.ToLower(ascii)
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attempts := config.Attempts
	if attempts == 0 {
		attempts = 3
	}
	return &HTTP{
		base:     base,
		token:    config.Token,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		attempts: attempts,
	}, nil
}

func (c *HTTP) entryURL(id string) string {
	return c.base.JoinPath("api", "v1", "entries", id).String()
}

// do runs one request with retries on transport errors and 5xx responses.
// The returned status is from the last attempt.
func (c *HTTP) do(ctx context.Context, method, u string, body []byte) (int, []byte, error) {
	type result struct {
		status int
		data   []byte
	}
	res, err := retry.DoWithData(
		func() (result, error) {
			var rd io.Reader
			if body != nil {
				rd = bytes.NewReader(body)
			}
			req, err := http.NewRequestWithContext(ctx, method, u, rd)
			if err != nil {
				return result{}, retry.Unrecoverable(err)
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/octet-stream")
			}
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return result{}, err
			}
			defer resp.Body.Close()
			data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<30))
			if err != nil {
				return result{}, err
			}
			if resp.StatusCode >= 500 {
				return result{}, fmt.Errorf("server returned %s", resp.Status)
			}
			return result{status: resp.StatusCode, data: data}, nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Debug().Err(err).Uint("attempt", attempt).Str("url", u).Msg("retrying cache request")
		}),
	)
	if err != nil {
		return 0, nil, err
	}
	return res.status, res.data, nil
}

func (c *HTTP) Get(ctx context.Context, id string) ([]byte, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}
	status, data, err := c.do(ctx, http.MethodGet, c.entryURL(id), nil)
	if err != nil {
		c.miss()
		return nil, false, fmt.Errorf("http get %s: %w", id, err)
	}
	switch status {
	case http.StatusOK:
		c.hit()
		return data, true, nil
	case http.StatusNotFound:
		c.miss()
		return nil, false, nil
	default:
		c.miss()
		return nil, false, fmt.Errorf("http get %s: unexpected status %d", id, status)
	}
}

func (c *HTTP) Put(ctx context.Context, id string, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	status, _, err := c.do(ctx, http.MethodPut, c.entryURL(id), data)
	if err != nil {
		return fmt.Errorf("http put %s: %w", id, err)
	}
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		c.put()
		return nil
	default:
		return fmt.Errorf("http put %s: unexpected status %d", id, status)
	}
}

func (c *HTTP) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	status, _, err := c.do(ctx, http.MethodDelete, c.entryURL(id), nil)
	if err != nil {
		return fmt.Errorf("http delete %s: %w", id, err)
	}
	switch status {
	case http.StatusOK, http.StatusNoContent:
		c.delete()
		return nil
	case http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("http delete %s: unexpected status %d", id, status)
	}
}

func (c *HTTP) Has(ctx context.Context, id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}
	status, _, err := c.do(ctx, http.MethodHead, c.entryURL(id), nil)
	if err != nil {
		return false, fmt.Errorf("http has %s: %w", id, err)
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("http has %s: unexpected status %d", id, status)
	}
}

// Stats reports client-side traffic; the daemon exposes its own stats route.
func (c *HTTP) Stats() Stats { return c.snapshot(-1) }

func (c *HTTP) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

var _ Cache = (*HTTP)(nil)
