// Package vless holds the pure profile operations: merging authority
// overrides and rendering client export formats.
package vless

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dtroode/vpnbot/internal/model"
)

// Source keys probed for each profile field, highest priority first.
var (
	uuidKeys      = []string{"uuid", "id"}
	labelKeys     = []string{"label", "remark", "name"}
	serverKeys    = []string{"server", "address", "host"}
	portKeys      = []string{"port"}
	transportKeys = []string{"transport", "type"}
	securityKeys  = []string{"security"}
	flowKeys      = []string{"flow"}
	sniKeys       = []string{"sni", "serverName", "host"}
	pathKeys      = []string{"path", "serviceName"}
)

// Merge returns a copy of p with the usable overrides applied. Fields with no
// usable override keep their value in p, and p itself is never modified.
func Merge(p model.Profile, overrides model.Overrides) model.Profile {
	if len(overrides) == 0 {
		return p
	}

	out := p
	if v, ok := pickString(overrides, uuidKeys); ok {
		out.UUID = v
	}
	if v, ok := pickString(overrides, labelKeys); ok {
		out.Label = v
	}
	if v, ok := pickString(overrides, serverKeys); ok {
		out.Server = v
	}
	if v, ok := pickPort(overrides); ok {
		out.Port = v
	}
	if v, ok := pickString(overrides, transportKeys); ok {
		if t, known := model.ParseTransport(v); known {
			out.Transport = t
		}
	}
	if v, ok := pickString(overrides, securityKeys); ok {
		if s, known := model.ParseSecurity(v); known {
			out.Security = s
		}
	}
	if v, ok := pickString(overrides, flowKeys); ok {
		out.Flow = v
	}
	if v, ok := pickString(overrides, sniKeys); ok {
		out.SNI = v
	}

	path, pathSet := pickString(overrides, pathKeys)
	if !pathSet {
		path = p.Path
	}
	if pathSet || out.Transport != p.Transport {
		out.Path = NormalizePath(path, out.Transport)
	}

	return out
}

// NormalizePath trims path and, for websocket-like transports, makes it
// absolute.
func NormalizePath(path string, transport model.Transport) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if transport.WebSocketLike() && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// pickString returns the first key whose value renders to a non-blank string.
func pickString(overrides model.Overrides, keys []string) (string, bool) {
	for _, key := range keys {
		v, ok := overrides[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func pickPort(overrides model.Overrides) (int, bool) {
	for _, key := range portKeys {
		v, ok := overrides[key]
		if !ok || v == nil {
			continue
		}
		if port, ok := toPort(v); ok {
			return port, true
		}
	}
	return 0, false
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func toPort(v any) (int, bool) {
	var n float64
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if n != math.Trunc(n) || n < 1 || n > 65535 {
		return 0, false
	}
	return int(n), true
}
