package transport

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/tkarls/arrmon/internal/metrics"
)

// json is the wire codec. jsoniter keeps decode cost flat on the hot path
// (a metrics_update arrives for every subscribed server on every beat).
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client → server message types.
const (
	msgTypeSubscribe = "subscribe"
	msgTypePing      = "ping"
)

// Server → client message types. Only metrics_update is consumed;
// unrecognized types are ignored.
const (
	msgTypeMetricsUpdate = "metrics_update"
)

// handshakeMessage is the required first message on a push connection,
// carrying the auth token and the full initial subscription set.
type handshakeMessage struct {
	Token   string  `json:"token"`
	Servers []int64 `json:"servers"`
}

// clientMessage covers every post-handshake client → server message.
// Subscription updates carry the new full server set and no token.
type clientMessage struct {
	Type    string  `json:"type"`
	Servers []int64 `json:"servers,omitempty"`
}

// serverMessage is the envelope for inbound push messages.
type serverMessage struct {
	Type string              `json:"type"`
	Data []*metrics.Snapshot `json:"data"`
}
