package model

import "context"

// Overrides are profile fields returned by the provisioning authority,
// keyed by whatever names the authority uses.
type Overrides map[string]any

// FailureKind classifies a failed provisioning attempt.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureConfig    FailureKind = "config"
	FailureTransport FailureKind = "transport"
	FailureProtocol  FailureKind = "protocol"
	FailureRejected  FailureKind = "rejected"
)

// Outcome is the result of one provisioning attempt. Failures are carried
// in Error, never returned as Go errors.
type Outcome struct {
	RemoteID  string
	Overrides Overrides
	Raw       []byte
	Error     string
	Kind      FailureKind
}

// Failed reports whether the attempt recorded an error.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// Provisioner reconciles a profile with the remote provisioning authority.
type Provisioner interface {
	Provision(ctx context.Context, user User, profile Profile, force bool) Outcome
}

// Locker serializes work per key.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
