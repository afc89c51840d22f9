// Package broadcast defines the port for pushing live gate activity, such
// as verdicts, advisories, and pattern phase transitions, to subscribed
// dashboard clients.
package broadcast

import "context"

// Broadcaster fans one typed event out to every subscribed client.
// Implementations must not block; the gate calls this on its decision path.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
