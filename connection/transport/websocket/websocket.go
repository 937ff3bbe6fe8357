/*
The websocket package is the secure websocket flavor of the Engine.IO
transport. It normalizes the caller's endpoint into the canonical wss form,
performs the one-time TLS plus websocket handshake, and wraps the resulting
connection's send and receive halves in a frame transport. Everything after
bootstrap is delegation: frames go through the framer, while this package only
guards the mutable base url that higher layers read and update.
*/
package websocket

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/engiolib/engio/connection/framer"
	"github.com/engiolib/engio/connection/transport"
	"github.com/engiolib/engio/logger"
	gorilla "github.com/gorilla/websocket"
)

const (
	HttpsOnlyWebsocketScheme = "wss"
	HttpWebsocketScheme      = "ws"

	handshakeTimeout = 20 * time.Second

	transportQueryKey   = "transport"
	transportQueryValue = "websocket"
)

var WebsocketUrlScheme = HttpsOnlyWebsocketScheme

// Headers the websocket handshake owns; gorilla builds these itself and
// rejects requests that try to supply them
var handshakeOwnedHeaders = []string{
	"Upgrade",
	"Connection",
	"Sec-Websocket-Key",
	"Sec-Websocket-Version",
	"Sec-Websocket-Extensions",
}

// Delegate is the frame transport this adapter forwards its traffic to
type Delegate interface {
	Emit(data []byte, isBinary bool) error
	Poll(ctx context.Context) ([]byte, error)
	Upgrade(ctx context.Context) error
	Close(reason error)
	Done() <-chan struct{}
}

type WebsocketSecure struct {
	logger *logger.Logger
	inner  Delegate

	// The current normalized endpoint, shared between any number of
	// concurrent readers and writers
	baseUrlLock sync.RWMutex
	baseUrl     *url.URL
}

// New bootstraps a secure websocket transport: normalize the url, extend the
// upgrade request with the caller's headers, dial under the optional tls
// config, and hand the split connection to a fresh frame transport. On
// success the returned adapter is live but the Engine.IO upgrade probe has
// not run yet; that is the caller's explicit Upgrade call.
func New(
	ctx context.Context,
	logger *logger.Logger,
	rawUrl string,
	tlsConfig *tls.Config,
	headers http.Header,
) (*WebsocketSecure, error) {
	connUrl, err := Normalize(rawUrl)
	if err != nil {
		return nil, err
	}

	if err := validateHeaders(headers); err != nil {
		return nil, err
	}

	dialer := gorilla.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  tlsConfig,
	}

	logger.Infof("Making secure websocket connection to %s", connUrl.Redacted())
	client, _, err := dialer.DialContext(ctx, connUrl.String(), headers.Clone())
	if err != nil {
		return nil, &transport.ConnectError{Url: connUrl.Redacted(), Reason: err}
	}

	// Both halves point at the same connection; the framer serializes writes
	// and is the sole reader
	inner := framer.New(logger.GetComponentLogger("Framer"), client, client)

	return &WebsocketSecure{
		logger:  logger,
		inner:   inner,
		baseUrl: connUrl,
	}, nil
}

// Normalize rewrites rawUrl into the canonical secure websocket form: the
// scheme becomes wss and the query carries exactly one transport=websocket
// pair. Path and all other query parameters are preserved, and normalizing an
// already-normalized url is a no-op.
func Normalize(rawUrl string) (*url.URL, error) {
	connUrl, err := url.ParseRequestURI(rawUrl)
	if err != nil {
		return nil, &transport.MalformedUrlError{Url: rawUrl, Reason: err}
	}
	if connUrl.Host == "" {
		return nil, &transport.MalformedUrlError{Url: rawUrl, Reason: fmt.Errorf("url has no host")}
	}

	connUrl.Scheme = WebsocketUrlScheme
	connUrl.RawQuery = ensureTransportMarker(connUrl.RawQuery)

	return connUrl, nil
}

// ensureTransportMarker guarantees exactly one transport=websocket pair.
// It works on the raw query text so every other pair survives byte for byte
// and in caller order, including pairs Go's query parser would reject.
func ensureTransportMarker(rawQuery string) string {
	const marker = transportQueryKey + "=" + transportQueryValue

	if rawQuery == "" {
		return marker
	}

	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs)+1)
	hasMarker := false

	for _, pair := range pairs {
		if pair == marker {
			if hasMarker {
				continue
			}
			hasMarker = true
		}
		kept = append(kept, pair)
	}

	if !hasMarker {
		kept = append(kept, marker)
	}

	return strings.Join(kept, "&")
}

func validateHeaders(headers http.Header) error {
	for _, owned := range handshakeOwnedHeaders {
		if len(headers.Values(owned)) > 0 {
			return &transport.RequestBuildError{Header: owned}
		}
	}
	return nil
}

// Emit forwards one payload to the frame transport; no buffering, no retry
func (w *WebsocketSecure) Emit(data []byte, isBinary bool) error {
	if err := w.inner.Emit(data, isBinary); err != nil {
		return &transport.TransportError{Op: "emit", Reason: err}
	}
	return nil
}

// Poll suspends until the frame transport yields the next inbound payload
func (w *WebsocketSecure) Poll(ctx context.Context) ([]byte, error) {
	message, err := w.inner.Poll(ctx)
	if err != nil {
		return nil, &transport.TransportError{Op: "poll", Reason: err}
	}
	return message, nil
}

// BaseUrl returns a snapshot copy of the current normalized endpoint
func (w *WebsocketSecure) BaseUrl() *url.URL {
	w.baseUrlLock.RLock()
	defer w.baseUrlLock.RUnlock()

	snapshot := *w.baseUrl
	return &snapshot
}

// SetBaseUrl re-normalizes rawUrl and atomically replaces the stored
// endpoint. This is bookkeeping only; it never reconnects.
func (w *WebsocketSecure) SetBaseUrl(rawUrl string) error {
	connUrl, err := Normalize(rawUrl)
	if err != nil {
		return err
	}

	w.baseUrlLock.Lock()
	defer w.baseUrlLock.Unlock()
	w.baseUrl = connUrl

	return nil
}

// Upgrade runs the Engine.IO probe exchange and upgrade commit, entirely
// delegated to the frame transport. Callers are expected to invoke it at most
// once per connection.
func (w *WebsocketSecure) Upgrade(ctx context.Context) error {
	if err := w.inner.Upgrade(ctx); err != nil {
		return &transport.TransportError{Op: "upgrade", Reason: err}
	}
	return nil
}

func (w *WebsocketSecure) Close(reason error) {
	w.inner.Close(reason)
}

func (w *WebsocketSecure) Done() <-chan struct{} {
	return w.inner.Done()
}
