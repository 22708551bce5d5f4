/*
Copyright © 2024 the cfsarchive authors.
This file is part of cfsarchive.

cfsarchive is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cfsarchive is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cfsarchive.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package fetch implements the retrying, rate-paced HTTP client that the
// ingesters use to pull source files from upstream.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Outcome classifies the result of a single Fetch call.
type Outcome int

const (
	// Ok means the request succeeded with a 2xx body that is not an
	// HTML rate-limit page.
	Ok Outcome = iota
	// NotFound means the server returned 404: the ingester should skip
	// whatever this request was for.
	NotFound
	// RateLimited means the server returned 2xx but the body is an
	// HTML page, the upstream's way of signaling it is throttling us.
	// This is fatal; the caller should abort the run.
	RateLimited
	// Failed means a non-OK, non-404 status survived all retries.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case NotFound:
		return "not found"
	case RateLimited:
		return "rate limited"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Fetch call.
type Result struct {
	Outcome Outcome
	Body    []byte
}

// rateLimitPrefix is the case-sensitive HTML prefix that identifies a
// rate-limit page masquerading as a 2xx response.
const rateLimitPrefix = "<!doctype html>"

// Client is a session-scoped HTTP client with bounded retries and a
// minimum spacing between requests. The spacing gate is a single
// per-instance timestamp, not a package-level/shared clock, so that
// multiple Client instances (e.g. reanalysis vs. forecast fetchers) pace
// independently.
type Client struct {
	HTTPClient  *http.Client
	MaxRetries  int
	MinInterval time.Duration

	mu       sync.Mutex
	lastCall time.Time
	retries  int
}

// New returns a Client with the given per-request timeout and minimum
// inter-request interval. A zero minInterval disables pacing.
func New(timeout, minInterval time.Duration) *Client {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Client{
		HTTPClient:  &http.Client{Timeout: timeout},
		MaxRetries:  3,
		MinInterval: minInterval,
	}
}

// Retries returns the number of retry attempts this client has made
// across its lifetime, for callers that want to log a summary.
func (c *Client) Retries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

func (c *Client) wait() {
	if c.MinInterval <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if since := time.Since(c.lastCall); since < c.MinInterval {
		time.Sleep(c.MinInterval - since)
	}
	c.lastCall = time.Now()
}

// Fetch retrieves url, retrying transient failures up to MaxRetries
// times with exponential backoff. A 404 short-circuits as NotFound; an
// HTML body on a 2xx status short-circuits as RateLimited. Neither is
// retried, since both are terminal classifications rather than
// transient failures.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	c.wait()

	var result *Result
	op := func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch: building request for %s: %v", url, err))
		}
		req = req.WithContext(ctx)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch: requesting %s: %v", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			result = &Result{Outcome: NotFound}
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("fetch: reading body of %s: %v", url, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("fetch: %s returned status %d", url, resp.StatusCode)
		}

		if bytes.HasPrefix(body, []byte(rateLimitPrefix)) {
			result = &Result{Outcome: RateLimited, Body: body}
			return nil
		}

		result = &Result{Outcome: Ok, Body: body}
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.MaxRetries))
	notify := func(err error, d time.Duration) {
		c.mu.Lock()
		c.retries++
		c.mu.Unlock()
		logrus.WithFields(logrus.Fields{"url": url, "retry_in": d}).Warn(err)
	}
	if err := backoff.RetryNotify(op, bo, notify); err != nil {
		return &Result{Outcome: Failed}, fmt.Errorf("fetch: %v", err)
	}
	return result, nil
}
