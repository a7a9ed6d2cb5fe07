package manager

// Event represents a slot lifecycle event.
// Minimal and stable: name, slot index, profile and optional fields.
type Event struct {
	Name    string
	Slot    int
	Profile string
	Fields  map[string]any
}

// Event names.
const (
	EventSeed             = "seed"
	EventLaunchStart      = "launch_start"
	EventLaunchFailed     = "launch_failed"
	EventReady            = "ready"
	EventReadinessTimeout = "readiness_timeout"
	EventEvict            = "evict"
	EventRotate           = "rotate"
	EventParked           = "parked"
	EventDemoted          = "demoted"
	EventRecovered        = "recovered"
	EventShutdown         = "shutdown"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func (m *Manager) publish(name string, slot int, profile string, fields map[string]any) {
	m.publisher.Publish(Event{Name: name, Slot: slot, Profile: profile, Fields: fields})
}
