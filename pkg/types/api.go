package types

// CompletionRequest is the subset of a completion payload the coordinator inspects.
// Everything else in the body is forwarded to the worker untouched.
type CompletionRequest struct {
	// Optional model identifier, passed through to the worker.
	// example: gemini-2.5-pro
	Model string `json:"model,omitempty" example:"gemini-2.5-pro"`
	// Streaming is not supported by the coordinator; true is rejected with 400.
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: no healthy workers available
	Error string `json:"error" example:"no healthy workers available"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
	// Machine-readable category: client_error, service_unavailable, gateway_error, not_found.
	// example: service_unavailable
	Type string `json:"type,omitempty" example:"service_unavailable"`
}

// CancelResponse is returned by POST /v1/cancel/{id}.
type CancelResponse struct {
	// True when at least one worker acknowledged the cancellation.
	Success bool `json:"success" example:"true"`
	// Profiles whose worker acknowledged.
	Completed []string `json:"completed"`
	// Profiles whose worker did not recognize the id or could not be reached.
	Failed []string `json:"failed"`
}

// ReadyResponse is returned by GET /ready and GET /health.
type ReadyResponse struct {
	// ready when at least one slot serves traffic, degraded otherwise.
	// example: ready
	Status string `json:"status" example:"ready"`
	// Profiles bound to READY slots.
	ReadySlots []string `json:"ready_children"`
	// Profiles bound to slots that are not serving.
	UnhealthySlots []string `json:"unhealthy_children"`
	// Number of slots in the pool.
	// example: 2
	TotalSlots int `json:"total_children" example:"2"`
}

// SlotStatus summarizes one slot for /status.
type SlotStatus struct {
	// Slot index.
	// example: 0
	Index int `json:"index" example:"0"`
	// Lifecycle state (empty, launching, ready, unhealthy, evicting, terminated).
	// example: ready
	State string `json:"state" example:"ready"`
	// Profile currently bound, empty if none.
	// example: account-01
	Profile string `json:"profile,omitempty" example:"account-01"`
	// Ports owned by the slot.
	Ports PortTriple `json:"ports"`
	// Process ID of the running worker.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Incremented every time the slot is rebound to a profile.
	// example: 3
	Generation uint64 `json:"generation" example:"3"`
	// Unique id of the current launch.
	LaunchID string `json:"launch_id,omitempty"`
	// Consecutive failed activations.
	// example: 0
	Failures int `json:"consecutive_failures" example:"0"`
	// Last failure reason observed on this slot.
	LastError string `json:"last_error,omitempty"`
	// Unix seconds when the slot last became READY.
	// example: 1700000000
	ReadySince int64 `json:"ready_since_unix,omitempty" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Per-slot detail.
	Slots []SlotStatus `json:"slots"`
	// Profiles waiting for a slot, head first.
	Queue []string `json:"queue"`
	// Configured pool size.
	// example: 2
	PoolSize int `json:"pool_size" example:"2"`
	// Number of READY slots.
	// example: 2
	ReadyCount int `json:"ready_count" example:"2"`
	// Total evictions since start.
	// example: 5
	EvictionsTotal uint64 `json:"evictions_total" example:"5"`
	// Total worker launches since start.
	// example: 7
	LaunchesTotal uint64 `json:"launches_total" example:"7"`
	// Uptime of the coordinator in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// True once shutdown has begun.
	ShuttingDown bool `json:"shutting_down"`
}
