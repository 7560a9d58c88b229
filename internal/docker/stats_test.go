package docker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ctx context.Context, body string) ([]string, error) {
	t.Helper()

	out := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- decodeStream(ctx, strings.NewReader(body), out)
	}()

	var docs []string
	for d := range out {
		docs = append(docs, string(d))
	}
	return docs, <-errc
}

func TestDecodeStream(t *testing.T) {
	body := `{"id":"a","read":"1"}
{"id":"a","read":"2"}
{"id":"a","read":"3"}
`
	docs, err := collect(t, context.Background(), body)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.JSONEq(t, `{"id":"a","read":"2"}`, docs[1])
}

func TestDecodeStream_Truncated(t *testing.T) {
	docs, err := collect(t, context.Background(), `{"id":"a"} {"id":`)
	assert.Error(t, err)
	assert.Len(t, docs, 1)
}

func TestDecodeStream_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan []byte)
	err := decodeStream(ctx, strings.NewReader(`{"id":"a"}`), out)
	assert.NoError(t, err)
}

func TestTrimName(t *testing.T) {
	assert.Equal(t, "web", trimName("/web"))
	assert.Equal(t, "web", trimName("web "))
}
