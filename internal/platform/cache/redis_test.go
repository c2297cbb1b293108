package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), Config{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewAuthenticates(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("sesame")

	_, err := New(context.Background(), Config{Addr: mr.Addr()})
	assert.Error(t, err)

	client, err := New(context.Background(), Config{Addr: mr.Addr(), Password: "sesame"})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
}

func TestNewRejectsUnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Addr: addr})
	assert.Error(t, err)
}
