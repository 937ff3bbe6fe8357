package packet

import (
	"encoding/json"
	"fmt"
)

// Engine.IO packet type markers as they appear on the wire
type Type byte

const (
	Open    Type = '0'
	Close   Type = '1'
	Ping    Type = '2'
	Pong    Type = '3'
	Message Type = '4'
	Upgrade Type = '5'
	Noop    Type = '6'
)

func (t Type) String() string {
	switch t {
	case Open:
		return "Open"
	case Close:
		return "Close"
	case Ping:
		return "Ping"
	case Pong:
		return "Pong"
	case Message:
		return "Message"
	case Upgrade:
		return "Upgrade"
	case Noop:
		return "Noop"
	default:
		return "Invalid"
	}
}

// ProbePayload rides on the ping/pong pair that validates a transport before
// the client commits to it
const ProbePayload = "probe"

// BinaryMarker prefixes payloads that arrived as binary websocket frames.
// Binary frames carry no packet type byte on the wire, so the marker is how
// callers tell the two payload kinds apart after polling.
const BinaryMarker byte = 0x04

type Packet struct {
	Type Type
	Data []byte
}

func Encode(p Packet) []byte {
	encoded := make([]byte, 0, len(p.Data)+1)
	encoded = append(encoded, byte(p.Type))
	return append(encoded, p.Data...)
}

func Decode(raw []byte) (Packet, error) {
	if len(raw) == 0 {
		return Packet{}, fmt.Errorf("cannot decode an empty packet")
	}

	packetType := Type(raw[0])
	if packetType < Open || packetType > Noop {
		return Packet{}, fmt.Errorf("unrecognized packet type marker: %q", raw[0])
	}

	return Packet{
		Type: packetType,
		Data: raw[1:],
	}, nil
}

// OpenMessage is the handshake body the server sends in its open packet once
// the websocket connection is established
// Ref: https://github.com/socketio/engine.io-protocol#handshake
type OpenMessage struct {
	Sid          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func ParseOpen(data []byte) (*OpenMessage, error) {
	var openMessage OpenMessage
	if err := json.Unmarshal(data, &openMessage); err != nil {
		return nil, fmt.Errorf("error unmarshalling open packet body: %s", string(data))
	}

	if openMessage.Sid == "" {
		return nil, fmt.Errorf("open packet body is missing a session id: %s", string(data))
	}

	return &openMessage, nil
}
