// internal/docker/stats.go
package docker

import (
	"context"
	"io"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
)

// StreamStats streams a container's stats documents without interpreting
// them; field extraction is left to model.ParseSample so that a document
// with missing keys can be told apart from one with zero counters.
func (c *Client) StreamStats(ctx context.Context, id string) (<-chan []byte, <-chan error) {
	docs := make(chan []byte)
	errChan := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errChan)

		resp, err := c.cli.ContainerStats(ctx, id, true) // stream: true
		if err != nil {
			errChan <- errors.WrapWithDetails(err, "docker: failed to open stats stream", "container", id)
			return
		}
		defer resp.Body.Close()

		if err := decodeStream(ctx, resp.Body, docs); err != nil {
			errChan <- errors.WrapWithDetails(err, "docker: stats stream failed", "container", id)
		}
	}()

	return docs, errChan
}

// decodeStream pushes every JSON document read from r onto out until r is
// exhausted or ctx is cancelled.
func decodeStream(ctx context.Context, r io.Reader, out chan<- []byte) error {
	dec := json.NewDecoder(r)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case out <- []byte(raw):
		case <-ctx.Done():
			return nil
		}
	}
}
