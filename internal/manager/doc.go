// Package manager keeps a fixed pool of worker slots alive. It binds profiles
// to slots, rotates failed slots to the next queued profile, and monitors
// liveness. It is structured into small files by concern:
//
//   - manager.go: core Manager type and read-only accessors.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State, Worker/Launcher/Prober interfaces, SlotRef, slot.
//   - queue.go: RotationQueue, the FIFO of waiting profiles.
//   - registry.go: the slots, queue and cursor behind one mutex. No I/O.
//   - ports.go: AssignPorts.
//   - seed.go: initial binding and concurrent first launch.
//   - evict.go: Evict and the background replacement chain.
//   - monitor.go: periodic liveness checks.
//   - shutdown.go: Shutdown.
//   - status_report.go: Status and Readiness reporting.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus gauges and counters.
//
// State machine per slot:
//
//	EMPTY -> LAUNCHING -> READY -> EVICTING -> LAUNCHING ...
//	READY -> UNHEALTHY -> READY      (transient liveness failure)
//	any   -> TERMINATED              (shutdown)
//
// Process launching and HTTP probing are injected through the Launcher and
// Prober interfaces; see internal/launcher and internal/health.
package manager
