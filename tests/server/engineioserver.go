package server

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/engiolib/engio/connection/packet"
	"github.com/engiolib/engio/logger"
	"github.com/gorilla/websocket"
)

// EngineIoServer is a scripted Engine.IO endpoint for suites to dial. It
// serves the open packet on connect, answers upgrade probes, echoes message
// packets, and records what it saw so specs can assert on it.
type EngineIoServer struct {
	logger *logger.Logger
	server *httptest.Server

	conn     *websocket.Conn
	connLock sync.Mutex

	upgradeOnce sync.Once

	// public attributes
	Url string
	Sid string

	// Headers of the most recent upgrade request
	RequestHeaders http.Header

	// Message packet payloads and raw binary frames received from the client
	ReceivedMessages chan []byte
	ReceivedBinary   chan []byte

	// Heartbeat answers received from the client
	Pongs chan []byte

	// Closed once the client commits the upgrade
	Upgraded chan struct{}
}

func New(logger *logger.Logger) *EngineIoServer {
	s := newScripted(logger)
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	s.Url = s.server.URL
	return s
}

// NewTLS serves the same script over a self-signed TLS listener so suites can
// exercise the wss path with an injected tls config
func NewTLS(logger *logger.Logger) *EngineIoServer {
	s := newScripted(logger)
	s.server = httptest.NewTLSServer(http.HandlerFunc(s.serve))
	s.Url = s.server.URL
	return s
}

func newScripted(logger *logger.Logger) *EngineIoServer {
	return &EngineIoServer{
		logger:           logger,
		Sid:              fmt.Sprintf("%d", rand.Intn(100000)),
		ReceivedMessages: make(chan []byte, 50),
		ReceivedBinary:   make(chan []byte, 50),
		Pongs:            make(chan []byte, 50),
		Upgraded:         make(chan struct{}),
	}
}

func (s *EngineIoServer) serve(writer http.ResponseWriter, request *http.Request) {
	s.RequestHeaders = request.Header.Clone()

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.logger.Errorf("failed to upgrade websocket: %s", err)
		return
	}

	s.connLock.Lock()
	s.conn = conn
	s.connLock.Unlock()

	defer conn.Close()

	openBody, _ := json.Marshal(packet.OpenMessage{
		Sid:          s.Sid,
		Upgrades:     []string{},
		PingInterval: 25000,
		PingTimeout:  20000,
		MaxPayload:   1000000,
	})
	s.Write(packet.Encode(packet.Packet{Type: packet.Open, Data: openBody}))

	for {
		messageType, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Errorf("failed to read from websocket connection: %s", err)
			return
		}

		if messageType == websocket.BinaryMessage {
			s.ReceivedBinary <- raw
			s.WriteBinary(raw) // echo
			continue
		}

		p, err := packet.Decode(raw)
		if err != nil {
			s.logger.Errorf("client sent an undecodable frame: %s", err)
			continue
		}

		switch p.Type {
		case packet.Ping:
			if string(p.Data) == packet.ProbePayload {
				s.Write(packet.Encode(packet.Packet{Type: packet.Pong, Data: p.Data}))
			}
		case packet.Pong:
			s.Pongs <- p.Data
		case packet.Upgrade:
			s.upgradeOnce.Do(func() { close(s.Upgraded) })
		case packet.Message:
			s.ReceivedMessages <- p.Data
			s.Write(raw) // echo
		default:
			s.logger.Infof("ignoring %s packet from client", p.Type)
		}
	}
}

// TLSClientConfig returns a tls config that trusts this server's self-signed
// certificate; only meaningful for servers built with NewTLS
func (s *EngineIoServer) TLSClientConfig() *tls.Config {
	if httpTransport, ok := s.server.Client().Transport.(*http.Transport); ok {
		return httpTransport.TLSClientConfig
	}
	return nil
}

// SendPing sends a server-initiated heartbeat
func (s *EngineIoServer) SendPing() {
	s.Write(packet.Encode(packet.Packet{Type: packet.Ping}))
}

func (s *EngineIoServer) SendMessage(payload []byte) {
	s.Write(packet.Encode(packet.Packet{Type: packet.Message, Data: payload}))
}

// SendClose asks the client to negotiate a close
func (s *EngineIoServer) SendClose(reason string) {
	s.Write(packet.Encode(packet.Packet{Type: packet.Close, Data: []byte(reason)}))
}

func (s *EngineIoServer) Write(raw []byte) {
	s.writeMessage(websocket.TextMessage, raw)
}

func (s *EngineIoServer) WriteBinary(raw []byte) {
	s.writeMessage(websocket.BinaryMessage, raw)
}

func (s *EngineIoServer) writeMessage(messageType int, raw []byte) {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.conn == nil {
		s.logger.Errorf("cannot write because no client has connected yet")
		return
	}

	if err := s.conn.WriteMessage(messageType, raw); err != nil {
		s.logger.Errorf("failed to write to websocket connection: %s", err)
	}
}

// ForceClose drops the websocket without a close handshake
func (s *EngineIoServer) ForceClose() {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *EngineIoServer) CloseWebsocket() {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if s.conn != nil {
		// elegant close
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	}
}

func (s *EngineIoServer) Shutdown() {
	s.CloseWebsocket()
	s.server.Close()
}
