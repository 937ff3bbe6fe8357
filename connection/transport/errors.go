package transport

import "fmt"

// The MalformedUrlError is returned when a caller-supplied endpoint cannot be
// parsed as an absolute url and therefore cannot be normalized. It is not
// retryable; the caller has to fix its input.
type MalformedUrlError struct {
	Url    string
	Reason error
}

func (e *MalformedUrlError) Error() string {
	return fmt.Sprintf("could not parse %s as an absolute url: %s", e.Url, e.Reason)
}

func (e *MalformedUrlError) Unwrap() error { return e.Reason }

// The RequestBuildError signals that the upgrade request could not be built
// because a caller injected a header the websocket handshake owns. Under
// correct usage this is unreachable, so treat it as a defect rather than a
// runtime condition to recover from.
type RequestBuildError struct {
	Header string
}

func (e *RequestBuildError) Error() string {
	return fmt.Sprintf("upgrade request cannot carry handshake-owned header %s", e.Header)
}

func (e *RequestBuildError) Unwrap() error { return nil }

// The ConnectError wraps any TCP, TLS or http-upgrade failure during
// bootstrap. No retry happens at this layer; retry policy belongs to the
// orchestrator that constructs adapter instances.
type ConnectError struct {
	Url    string
	Reason error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to establish secure websocket connection to %s: %s", e.Url, e.Reason)
}

func (e *ConnectError) Unwrap() error { return e.Reason }

// The TransportError wraps post-connection send/receive/upgrade failures
// reported by the frame transport, surfaced per call
type TransportError struct {
	Op     string
	Reason error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed on the websocket transport: %s", e.Op, e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Reason }
