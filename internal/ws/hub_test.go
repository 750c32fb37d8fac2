package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func waitConnected(t *testing.T, hub *Hub, userID uuid.UUID, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connected(userID) == want }, time.Second, 5*time.Millisecond)
}

func TestHub_PublishReachesOnlyOwner(t *testing.T) {
	hub, _ := startHub(t)

	owner := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 4)}
	other := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 4)}
	hub.Register(owner)
	hub.Register(other)
	waitConnected(t, hub, owner.userID, 1)

	hub.Publish(owner.userID, EventAppointmentBooked, map[string]string{"queueNumber": "3"})

	select {
	case raw := <-owner.send:
		var msg struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, EventAppointmentBooked, msg.Type)
		assert.Equal(t, "3", msg.Data["queueNumber"])
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено")
	}

	assert.Empty(t, other.send)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, _ := startHub(t)

	c := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 1)}
	hub.Register(c)
	waitConnected(t, hub, c.userID, 1)

	hub.Unregister(c)
	waitConnected(t, hub, c.userID, 0)

	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_StopsWithContext(t *testing.T) {
	hub, cancel := startHub(t)

	c := &Client{hub: hub, userID: uuid.New(), send: make(chan []byte, 1)}
	hub.Register(c)
	waitConnected(t, hub, c.userID, 1)

	cancel()
	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("хаб не остановился")
	}

	// после остановки вызовы не блокируются
	hub.Publish(c.userID, EventAppointmentCancelled, nil)
	hub.Unregister(c)
}
