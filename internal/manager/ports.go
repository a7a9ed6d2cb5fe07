package manager

import (
	"fmt"

	"slotd/pkg/types"
)

// AssignPorts computes count port triples as base + index*step for each
// component. Triples are fixed for the life of the pool.
func AssignPorts(count int, base types.PortTriple, step int) ([]types.PortTriple, error) {
	if count < 0 {
		return nil, fmt.Errorf("slot count must be >= 0, got %d", count)
	}
	if step <= 0 {
		return nil, fmt.Errorf("port step must be > 0, got %d", step)
	}
	out := make([]types.PortTriple, count)
	owner := make(map[int]int, count*3)
	for i := range out {
		off := i * step
		pt := types.PortTriple{API: base.API + off, Stream: base.Stream + off, Debug: base.Debug + off}
		for _, p := range pt.Ports() {
			if p <= 0 || p > 65535 {
				return nil, portConflictError{msg: fmt.Sprintf("slot %d: port %d out of range", i, p)}
			}
			if prev, dup := owner[p]; dup {
				return nil, portConflictError{msg: fmt.Sprintf("port %d assigned to slots %d and %d", p, prev, i)}
			}
			owner[p] = i
		}
		out[i] = pt
	}
	return out, nil
}
