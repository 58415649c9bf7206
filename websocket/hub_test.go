package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHubTracksConnectedClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	require.Zero(t, hub.ClientCount())

	first := &Client{}
	second := &Client{}
	hub.register <- first
	hub.register <- second

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 10*time.Millisecond)
}
