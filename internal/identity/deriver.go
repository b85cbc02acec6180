// Package identity derives the deterministic client identity of a user.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dtroode/vpnbot/internal/model"
	"github.com/dtroode/vpnbot/internal/vless"
)

var errTemplate = errors.New("invalid label template")

// Defaults are the configuration values a fresh profile is built from.
type Defaults struct {
	NamespaceSeed string
	LabelTemplate string
	Server        string
	Port          int
	Transport     model.Transport
	Security      model.Security
	Flow          string
	SNI           string
	Path          string
}

// Deriver maps a user to a client UUID and label. It holds no mutable state.
type Deriver struct {
	namespace uuid.UUID
	defaults  Defaults
}

// NewDeriver creates a Deriver. A seed that is not a UUID is hashed into the
// DNS namespace to obtain one.
func NewDeriver(defaults Defaults) *Deriver {
	ns, err := uuid.Parse(defaults.NamespaceSeed)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceDNS, []byte(defaults.NamespaceSeed))
	}
	return &Deriver{namespace: ns, defaults: defaults}
}

// Derive returns the client UUID and display label of user.
func (d *Deriver) Derive(user model.User) (string, string) {
	tgID := strconv.FormatInt(user.TelegramID, 10)
	clientID := uuid.NewSHA1(d.namespace, []byte(tgID)).String()

	label, err := formatLabel(d.defaults.LabelTemplate, user)
	if err != nil {
		label = DefaultLabel(user)
	}
	return clientID, label
}

// NewProfile builds the candidate profile of a user that has none yet.
func (d *Deriver) NewProfile(user model.User) model.Profile {
	clientID, label := d.Derive(user)
	return model.Profile{
		UserID:    user.ID,
		UUID:      clientID,
		Label:     label,
		Server:    d.defaults.Server,
		Port:      d.defaults.Port,
		Transport: d.defaults.Transport,
		Security:  d.defaults.Security,
		Flow:      strings.TrimSpace(d.defaults.Flow),
		SNI:       strings.TrimSpace(d.defaults.SNI),
		Path:      vless.NormalizePath(d.defaults.Path, d.defaults.Transport),
	}
}

// DefaultLabel is used when the configured template cannot be rendered.
func DefaultLabel(user model.User) string {
	return "FaceVPN " + strconv.FormatInt(user.TelegramID, 10)
}

// formatLabel renders {tg_id}, {username} and {full_name}; "{{" and "}}"
// are literal braces.
func formatLabel(tmpl string, user model.User) (string, error) {
	tgID := strconv.FormatInt(user.TelegramID, 10)
	fields := map[string]string{
		"tg_id":     tgID,
		"username":  firstNonEmpty(user.Username, tgID),
		"full_name": firstNonEmpty(user.FullName, tgID),
	}

	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unterminated placeholder", errTemplate)
			}
			name := tmpl[i+1 : i+end]
			value, ok := fields[name]
			if !ok {
				return "", fmt.Errorf("%w: unknown placeholder %q", errTemplate, name)
			}
			b.WriteString(value)
			i += end
		case c == '}':
			return "", fmt.Errorf("%w: single '}'", errTemplate)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
