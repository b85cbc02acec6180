package model

import (
	"context"
	"strings"
	"time"
)

// MaxSyncErrorLength is the longest sync error message kept on a profile.
const MaxSyncErrorLength = 512

// ProfileStore persists one VPN profile per user.
type ProfileStore interface {
	// Get returns ErrNotFound when the user has no profile yet.
	Get(ctx context.Context, userID int64) (Profile, error)
	// Upsert creates or overwrites the profile of profile.UserID and returns
	// the stored row. A RemoteID of "" never replaces a stored remote id.
	Upsert(ctx context.Context, profile Profile) (Profile, error)
}

// Transport is the VLESS stream transport.
type Transport string

const (
	TransportTCP         Transport = "tcp"
	TransportWebSocket   Transport = "ws"
	TransportGRPC        Transport = "grpc"
	TransportHTTP2       Transport = "h2"
	TransportHTTPUpgrade Transport = "httpupgrade"
)

// ParseTransport normalizes s into a known transport.
func ParseTransport(s string) (Transport, bool) {
	switch t := Transport(strings.ToLower(strings.TrimSpace(s))); t {
	case TransportTCP, TransportWebSocket, TransportGRPC, TransportHTTP2, TransportHTTPUpgrade:
		return t, true
	case "websocket":
		return TransportWebSocket, true
	default:
		return "", false
	}
}

// WebSocketLike reports whether the transport carries an HTTP path.
func (t Transport) WebSocketLike() bool {
	return t == TransportWebSocket || t == TransportHTTPUpgrade
}

// Security is the VLESS transport security mode.
type Security string

const (
	SecurityTLS     Security = "tls"
	SecurityReality Security = "reality"
	SecurityNone    Security = "none"
)

// ParseSecurity normalizes s into a known security mode.
func ParseSecurity(s string) (Security, bool) {
	switch sec := Security(strings.ToLower(strings.TrimSpace(s))); sec {
	case SecurityTLS, SecurityReality, SecurityNone:
		return sec, true
	default:
		return "", false
	}
}

// Profile is the cached VPN connection profile of one user.
// Empty optional strings mean "unset".
type Profile struct {
	UserID    int64
	UUID      string
	Label     string
	Server    string
	Port      int
	Transport Transport
	Security  Security
	Flow      string
	SNI       string
	Path      string

	RemoteID      string
	LastSyncedAt  *time.Time
	LastSyncError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Healthy reports whether the profile was confirmed by the remote authority
// and its last sync attempt did not fail.
func (p Profile) Healthy() bool {
	return p.RemoteID != "" && p.LastSyncError == ""
}
