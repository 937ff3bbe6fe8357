package transport

import (
	"context"
	"net/url"
)

// Transport is the capability contract every transport kind in the client
// satisfies, so the orchestrator above can treat transports interchangeably.
// Emit and Poll are valid both before and after Upgrade; before the upgrade
// they carry handshake traffic, afterwards application frames. What those
// payloads mean is the frame transport's business, not the adapter's.
type Transport interface {
	Emit(data []byte, isBinary bool) error
	Poll(ctx context.Context) ([]byte, error)
	BaseUrl() *url.URL
	SetBaseUrl(rawUrl string) error
	Upgrade(ctx context.Context) error
}
