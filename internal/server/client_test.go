package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chitchat/internal/registry"
)

func TestNewClient(t *testing.T) {
	req := require.New(t)
	r := newTestRouter(registry.Options{})

	client := NewClient(nil, r, "127.0.0.1:12345", NewConfig())

	req.NotNil(client.send)
	req.Equal("127.0.0.1:12345", client.Addr())
	_, err := uuid.Parse(client.ID())
	req.NoError(err)

	other := NewClient(nil, r, "127.0.0.1:12346", NewConfig())
	req.NotEqual(client.ID(), other.ID())
}

func TestClient_Deliver_Queues_In_Order(t *testing.T) {
	req := require.New(t)
	client := NewClient(nil, newTestRouter(registry.Options{}), "127.0.0.1:1", NewConfig())

	req.True(client.Deliver([]byte("one")))
	req.True(client.Deliver([]byte("two")))

	req.Equal([]byte("one"), <-client.send)
	req.Equal([]byte("two"), <-client.send)
}

func TestClient_Deliver_Full_Queue_Fails(t *testing.T) {
	req := require.New(t)
	client := NewClient(nil, newTestRouter(registry.Options{}), "127.0.0.1:1", NewConfig())

	for range sendBuffer {
		req.True(client.Deliver([]byte("x")))
	}
	req.False(client.Deliver([]byte("overflow")))
}

func TestClient_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	client := NewClient(nil, newTestRouter(registry.Options{}), "127.0.0.1:1", NewConfig())

	client.Close()
	client.Close()

	req.False(client.Deliver([]byte("late")))
	_, ok := <-client.send
	req.False(ok)
}
