// Package driver replays a fixed list of HTTP requests at a bounded rate per
// simulated user and stops the whole run on the first non-200 response.
package driver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/juju/ratelimit"
	"golang.org/x/sync/errgroup"
)

// UnexpectedStatusError is returned when a response is not 200 OK.
type UnexpectedStatusError struct {
	Method string
	URL    string
	Status int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("driver: %s %s returned %d", e.Method, e.URL, e.Status)
}

// Stats counts what a run did.
type Stats struct {
	Iterations uint64
	Requests   uint64
	Elapsed    time.Duration
}

type target struct {
	method  string
	url     string
	headers http.Header
	body    string
}

// Driver runs one profile.
type Driver struct {
	profile Profile
	targets []target
	client  *http.Client

	iterations atomic.Uint64
	requests   atomic.Uint64
}

type Option func(*Driver)

// WithHTTPClient replaces the client used for requests. The profile timeout
// is not applied to a client passed this way.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Driver) {
		d.client = c
	}
}

// New returns a driver for p. The profile must have passed Validate.
func New(p Profile, opts ...Option) (*Driver, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		profile: p,
		client:  &http.Client{Timeout: p.Timeout},
	}
	for _, r := range p.Requests {
		u, err := p.resolve(r.URL)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		h := make(http.Header, len(r.Headers))
		for k, v := range r.Headers {
			h.Set(k, v)
		}
		d.targets = append(d.targets, target{method: r.Method, url: u, headers: h, body: r.Body})
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Run starts the simulated users and blocks until the configured duration
// has passed, ctx is cancelled, or a request fails. Only a failed request is
// reported as an error.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	if d.profile.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.profile.Duration)
		defer cancel()
	}

	log.WithFields(log.Fields{
		"profile":  d.profile.Name,
		"users":    d.profile.Users,
		"interval": d.profile.Interval(),
		"requests": len(d.targets),
	}).Info("starting traffic driver")

	g, gctx := errgroup.WithContext(ctx)
	for u := 0; u < d.profile.Users; u++ {
		u := u
		g.Go(func() error {
			return d.user(gctx, u)
		})
	}
	err := g.Wait()

	return Stats{
		Iterations: d.iterations.Load(),
		Requests:   d.requests.Load(),
		Elapsed:    time.Since(start),
	}, err
}

// user runs iterations paced by its own bucket. The bucket holds a single
// token so a slow iteration is never followed by a burst.
func (d *Driver) user(ctx context.Context, id int) error {
	bucket := ratelimit.NewBucketWithQuantum(d.profile.Interval(), 1, 1)
	l := log.WithField("user", id)

	for {
		if wait := bucket.Take(1); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := d.iterate(ctx); err != nil {
			var status *UnexpectedStatusError
			if ctx.Err() != nil && !errors.As(err, &status) {
				// Transport cancelled mid-request by the end of the run or
				// another user. A response that did arrive still counts.
				return nil
			}
			l.WithField("error", err).Error("request failed, stopping run")
			return err
		}
		d.iterations.Add(1)
	}
}

// iterate issues every request of the profile once, in order.
func (d *Driver) iterate(ctx context.Context) error {
	for _, t := range d.targets {
		if err := d.do(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) do(ctx context.Context, t target) error {
	var body io.Reader
	if t.body != "" {
		body = strings.NewReader(t.body)
	}

	req, err := http.NewRequestWithContext(ctx, t.method, t.url, body)
	if err != nil {
		return errors.WrapWithDetails(err, "driver: failed to build request", "url", t.url)
	}
	req.Header = t.headers.Clone()

	res, err := d.client.Do(req)
	d.requests.Add(1)
	if err != nil {
		return errors.WrapWithDetails(err, "driver: request failed", "method", t.method, "url", t.url)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode != http.StatusOK {
		return errors.WithStack(&UnexpectedStatusError{Method: t.method, URL: t.url, Status: res.StatusCode})
	}
	return nil
}
