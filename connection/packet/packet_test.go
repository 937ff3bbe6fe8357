package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, []byte("4hello"), Encode(Packet{Type: Message, Data: []byte("hello")}))
	assert.Equal(t, []byte("5"), Encode(Packet{Type: Upgrade}))
	assert.Equal(t, []byte("2probe"), Encode(Packet{Type: Ping, Data: []byte(ProbePayload)}))
}

func TestDecode(t *testing.T) {
	p, err := Decode([]byte("3probe"))
	require.NoError(t, err)
	assert.Equal(t, Pong, p.Type)
	assert.Equal(t, []byte(ProbePayload), p.Data)

	p, err = Decode([]byte("1"))
	require.NoError(t, err)
	assert.Equal(t, Close, p.Type)
	assert.Empty(t, p.Data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(nil)
	assert.Error(t, err, "an empty frame is not a packet")

	_, err = Decode([]byte("xoxo"))
	assert.Error(t, err, "x is not a packet type marker")
}

func TestParseOpen(t *testing.T) {
	openMessage, err := ParseOpen([]byte(`{"sid":"lv_VI97HAXpY6yYWAAAC","upgrades":["websocket"],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`))
	require.NoError(t, err)

	assert.Equal(t, "lv_VI97HAXpY6yYWAAAC", openMessage.Sid)
	assert.Equal(t, []string{"websocket"}, openMessage.Upgrades)
	assert.Equal(t, 25000, openMessage.PingInterval)
	assert.Equal(t, 20000, openMessage.PingTimeout)
}

func TestParseOpenRequiresSid(t *testing.T) {
	_, err := ParseOpen([]byte(`{"upgrades":[]}`))
	assert.Error(t, err)

	_, err = ParseOpen([]byte(`not json`))
	assert.Error(t, err)
}
