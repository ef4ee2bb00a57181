package bus

import (
	"strings"
	"time"
)

// Namespaces in use on the bus.
const (
	NamespacePuppet  = "puppet."
	NamespaceWA      = "wa."
	NamespaceSession = "session."
)

// Event is one published event. Payload is the kind's typed struct.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// In reports whether the event kind falls under namespace.
func (e Event) In(namespace string) bool {
	return strings.HasPrefix(e.Kind, namespace)
}
