// Package eventbus defines the port for publishing audit events.
package eventbus

import "context"

// Subjects for published audit events.
const (
	SubjectVerdict    = "gate.verdict"
	SubjectBypass     = "gate.bypass"
	SubjectTransition = "patterns.transition"
)

// Publisher publishes audit events to the message bus. Publishing is
// best-effort from the gate's perspective; a verdict never waits on it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
