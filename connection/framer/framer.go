/*
The framer package is the frame transport that sits directly on top of an
already-open websocket connection. It ferries Engine.IO payloads in both
directions and owns the protocol's connection-level state machine: answering
server heartbeats, negotiating the close packet, and running the probe
exchange that commits the client to the websocket transport. The secure
transport adapter above it treats this package as its delegate and never
touches frames itself.
*/
package framer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/engiolib/engio/connection/packet"
	"github.com/engiolib/engio/logger"
	gorilla "github.com/gorilla/websocket"
	"gopkg.in/tomb.v2"
)

const inboundBufferSize = 200

// Sender is the outbound half of a split websocket connection.
// *gorilla.Conn satisfies it; gorilla supports one concurrent writer, so all
// writes go through the framer's send lock.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
}

// Receiver is the inbound half of a split websocket connection, read only by
// the framer's receive loop
type Receiver interface {
	ReadMessage() (messageType int, p []byte, err error)
}

type Framer struct {
	tmb    tomb.Tomb
	logger *logger.Logger

	sender   Sender
	receiver Receiver
	sendLock sync.Mutex

	// Decoded application-facing payloads in wire arrival order
	inbound chan []byte

	// Signals that the server answered our upgrade probe
	probeAnswers chan struct{}
}

func New(logger *logger.Logger, sender Sender, receiver Receiver) *Framer {
	f := &Framer{
		logger:       logger,
		sender:       sender,
		receiver:     receiver,
		inbound:      make(chan []byte, inboundBufferSize),
		probeAnswers: make(chan struct{}, 1),
	}

	f.tmb.Go(f.receive)

	return f
}

func (f *Framer) Close(reason error) {
	if !f.tmb.Alive() {
		f.logger.Infof("Close was called while in a dying state")
		return
	}

	f.logger.Infof("Frame transport closing because: %s", reason)

	f.tmb.Kill(reason)

	// Closing the underlying connection unblocks the receive loop
	f.closeHalves()

	f.tmb.Wait()
}

func (f *Framer) Done() <-chan struct{} {
	return f.tmb.Dead()
}

func (f *Framer) Err() error {
	return f.tmb.Err()
}

// Emit writes one payload as a single websocket frame; isBinary selects
// binary framing, otherwise the payload is sent as text
func (f *Framer) Emit(data []byte, isBinary bool) error {
	messageType := gorilla.TextMessage
	if isBinary {
		messageType = gorilla.BinaryMessage
	}

	f.sendLock.Lock()
	defer f.sendLock.Unlock()

	if !f.tmb.Alive() {
		return fmt.Errorf("cannot send because the frame transport is closed: %w", f.tmb.Err())
	}

	if err := f.sender.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("error writing websocket frame: %w", err)
	}

	return nil
}

// Poll returns the next inbound payload once connection-level packets have
// been filtered out. It is meant to be drained by a single caller.
func (f *Framer) Poll(ctx context.Context) ([]byte, error) {
	// Hand out anything already decoded before reporting a shutdown
	select {
	case message := <-f.inbound:
		return message, nil
	default:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.tmb.Dead():
		return nil, fmt.Errorf("frame transport closed: %w", f.tmb.Err())
	case message := <-f.inbound:
		return message, nil
	}
}

// Upgrade validates the connection with a probe ping and, once the server
// echoes the probe back, commits to the websocket transport
func (f *Framer) Upgrade(ctx context.Context) error {
	probe := packet.Encode(packet.Packet{Type: packet.Ping, Data: []byte(packet.ProbePayload)})
	if err := f.Emit(probe, false); err != nil {
		return fmt.Errorf("failed to send upgrade probe: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.tmb.Dead():
		return fmt.Errorf("frame transport closed while waiting for probe answer: %w", f.tmb.Err())
	case <-f.probeAnswers:
	}

	commit := packet.Encode(packet.Packet{Type: packet.Upgrade})
	if err := f.Emit(commit, false); err != nil {
		return fmt.Errorf("failed to commit upgrade: %w", err)
	}

	f.logger.Infof("Upgrade probe answered, committed to websocket transport")
	return nil
}

func (f *Framer) receive() error {
	defer f.logger.Infof("Frame transport stopped")
	f.logger.Infof("Frame transport started")

	for {
		messageType, raw, err := f.receiver.ReadMessage()
		if !f.tmb.Alive() {
			return nil
		} else if err != nil {
			if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				f.logger.Info("Websocket connection closed normally")
			}
			return err
		}

		if messageType == gorilla.BinaryMessage {
			f.publish(append([]byte{packet.BinaryMarker}, raw...))
			continue
		}

		if serverClosed := f.route(raw); serverClosed != nil {
			f.closeHalves()
			return serverClosed
		}
	}
}

// route dispatches one inbound text frame. A non-nil return means the server
// asked us to close the connection.
func (f *Framer) route(raw []byte) *ServerClosedError {
	p, err := packet.Decode(raw)
	if err != nil {
		f.logger.Errorf("dropping inbound frame: %s", err)
		return nil
	}

	switch p.Type {
	case packet.Ping:
		// Server-initiated heartbeat, answer in kind
		pong := packet.Encode(packet.Packet{Type: packet.Pong, Data: p.Data})
		if err := f.Emit(pong, false); err != nil {
			f.logger.Errorf("failed to answer heartbeat: %s", err)
		}

	case packet.Pong:
		if string(p.Data) == packet.ProbePayload {
			select {
			case f.probeAnswers <- struct{}{}:
			default: // an unanswered probe is already pending
			}
			return nil
		}
		f.publish(raw)

	case packet.Close:
		f.logger.Infof("Received a close packet from the server")
		return &ServerClosedError{Reason: string(p.Data)}

	default:
		// Open, message and noop packets all belong to whoever is polling
		f.publish(raw)
	}

	return nil
}

// publish hands one payload to the poller. If shutdown starts while the
// buffer is full the payload is dropped so the receive loop can exit.
func (f *Framer) publish(payload []byte) {
	select {
	case f.inbound <- payload:
	case <-f.tmb.Dying():
	}
}

func (f *Framer) closeHalves() {
	if closer, ok := f.receiver.(io.Closer); ok {
		closer.Close()
	}
	if any(f.sender) != any(f.receiver) {
		if closer, ok := f.sender.(io.Closer); ok {
			closer.Close()
		}
	}
}
