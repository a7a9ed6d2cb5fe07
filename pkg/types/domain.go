package types

import "strconv"

// Profile is a credentialed identity a worker process runs under.
type Profile struct {
	// Stable identifier for the profile (file stem of its auth JSON).
	// example: account-01
	Name string `json:"name" example:"account-01"`
	// Absolute path to the auth JSON handed to the worker.
	// example: /srv/slotd/auth_profiles/active/account-01.json
	Path string `json:"path" example:"/srv/slotd/auth_profiles/active/account-01.json"`
}

// PortTriple is the fixed set of ports owned by one slot.
type PortTriple struct {
	// Primary service port; the worker's HTTP API listens here.
	// example: 3100
	API int `json:"api" example:"3100"`
	// Auxiliary stream port.
	// example: 3200
	Stream int `json:"stream" example:"3200"`
	// Debug/control port.
	// example: 9222
	Debug int `json:"debug" example:"9222"`
}

// BaseURL returns the loopback URL of the worker's HTTP API.
func (p PortTriple) BaseURL() string {
	return "http://127.0.0.1:" + strconv.Itoa(p.API)
}

// Ports lists the three ports in API, Stream, Debug order.
func (p PortTriple) Ports() []int { return []int{p.API, p.Stream, p.Debug} }
