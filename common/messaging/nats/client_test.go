package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/capi-relay/common/messaging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "capi-relay", cfg.Name)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.ReconnectWait)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	client, err := NewClient(cfg)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestToNatsMsg(t *testing.T) {
	msg := messaging.NewMessage(messaging.SubjectConversionsForwarded, []byte("{}"),
		messaging.WithHeader(messaging.HeaderEventName, "Purchase"))

	natsMsg := toNatsMsg(msg)

	assert.Equal(t, messaging.SubjectConversionsForwarded, natsMsg.Subject)
	assert.Equal(t, []byte("{}"), natsMsg.Data)
	assert.Equal(t, "Purchase", natsMsg.Header.Get(messaging.HeaderEventName))
}

func TestToNatsMsg_NoHeaders(t *testing.T) {
	natsMsg := toNatsMsg(messaging.NewMessage(messaging.SubjectConversionsFailed, nil))
	assert.Nil(t, natsMsg.Header)
}

func TestClient_ZeroValue(t *testing.T) {
	var c Client
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}
