package vless

import (
	"fmt"
	"strings"

	"github.com/dtroode/vpnbot/internal/model"
)

const (
	querySafe = "/@:~+_-."
	labelSafe = "@:+-_=~."
)

var defaultALPN = []string{"h2", "http/1.1"}

// URI renders the vless:// share link of p.
func URI(p model.Profile) string {
	type param struct{ key, value string }
	params := []param{
		{"encryption", "none"},
		{"security", string(p.Security)},
		{"type", string(p.Transport)},
	}
	if p.SNI != "" {
		params = append(params, param{"sni", p.SNI}, param{"host", p.SNI})
	}
	if p.Path != "" {
		params = append(params, param{"path", p.Path})
	}
	if p.Flow != "" {
		params = append(params, param{"flow", p.Flow})
	}

	query := make([]string, 0, len(params))
	for _, kv := range params {
		if kv.value == "" {
			continue
		}
		query = append(query, kv.key+"="+escape(kv.value, querySafe))
	}

	return fmt.Sprintf("vless://%s@%s:%d?%s#%s",
		p.UUID, p.Server, p.Port, strings.Join(query, "&"), escape(p.Label, labelSafe))
}

// ClientConfig is the JSON profile imported by VLESS client apps.
type ClientConfig struct {
	Remark     string          `json:"remark"`
	Type       string          `json:"type"`
	Address    string          `json:"address"`
	Port       int             `json:"port"`
	ID         string          `json:"id"`
	Encryption string          `json:"encryption"`
	Flow       string          `json:"flow"`
	UDP        bool            `json:"udp"`
	Transport  TransportConfig `json:"transport"`
	TLS        TLSConfig       `json:"tls"`
}

// TransportConfig is the stream settings block of ClientConfig.
type TransportConfig struct {
	Type    string            `json:"type"`
	Path    string            `json:"path,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// TLSConfig is the TLS block of ClientConfig.
type TLSConfig struct {
	Enabled    bool     `json:"enabled"`
	ALPN       []string `json:"alpn"`
	ServerName string   `json:"serverName"`
	Insecure   bool     `json:"insecure"`
}

// NewClientConfig builds the client config of p. Blank ALPN entries are
// dropped; an empty list falls back to h2 and http/1.1.
func NewClientConfig(p model.Profile, alpn []string) ClientConfig {
	transport := TransportConfig{Type: string(p.Transport), Path: p.Path}
	if p.Transport == model.TransportWebSocket && transport.Path == "" {
		transport.Path = "/"
	}
	if p.SNI != "" {
		transport.Headers = map[string]string{"Host": p.SNI}
	}

	serverName := p.SNI
	if serverName == "" {
		serverName = p.Server
	}

	return ClientConfig{
		Remark:     p.Label,
		Type:       "VLESS",
		Address:    p.Server,
		Port:       p.Port,
		ID:         p.UUID,
		Encryption: "none",
		Flow:       p.Flow,
		UDP:        true,
		Transport:  transport,
		TLS: TLSConfig{
			Enabled:    p.Security == model.SecurityTLS || p.Security == model.SecurityReality,
			ALPN:       cleanALPN(alpn),
			ServerName: serverName,
			Insecure:   false,
		},
	}
}

func cleanALPN(alpn []string) []string {
	out := make([]string, 0, len(alpn))
	for _, entry := range alpn {
		if entry = strings.TrimSpace(entry); entry != "" {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultALPN...)
	}
	return out
}

// escape percent-encodes every byte of s except ASCII letters, digits and
// the bytes in safe.
func escape(s, safe string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
