// Package memory holds in-process implementations of the reset stores. They
// are meant for a single replica; state is lost on restart.
package memory

import "time"

// Sweeper is a store with expiring entries.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SweepAll reclaims expired entries of every store and returns the total
// number removed. Expiry is always enforced on access; sweeping only frees
// memory.
func SweepAll(now time.Time, stores ...Sweeper) int {
	n := 0
	for _, st := range stores {
		n += st.Sweep(now)
	}
	return n
}
