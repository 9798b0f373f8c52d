package spork

import (
	"github.com/lightningnetwork/lnd/clock"
)

// Resolver answers spork value queries for the rest of the node.
type Resolver struct {
	table *Table
	clock clock.Clock

	// bestHeight returns the height of the best known block. Nil means
	// no chain is available and height thresholds are compared against
	// zero.
	bestHeight func() (int32, error)
}

// NewResolver creates a Resolver reading from table. bestHeight may be nil.
func NewResolver(table *Table, clk clock.Clock,
	bestHeight func() (int32, error)) *Resolver {

	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &Resolver{
		table:      table,
		clock:      clk,
		bestHeight: bestHeight,
	}
}

// GetValue returns the active value of id, its compiled-in default if no
// message has been accepted, or UnknownValue for ids outside the catalog.
func (r *Resolver) GetValue(id ID) int64 {
	if msg, ok := r.table.Active(id); ok {
		return msg.Value
	}

	if IsKnown(id) {
		return DefaultOf(id)
	}

	log.Warnf("Unknown spork %d", id)

	return UnknownValue
}

// IsActive reports whether the value of id lies in the past: before the
// current unix time, or before the best block height for height based
// sporks. Unknown sporks are never active.
func (r *Resolver) IsActive(id ID) bool {
	value := r.GetValue(id)
	if value == UnknownValue {
		return false
	}

	entry, _ := Lookup(id)
	if entry.Threshold == ThresholdHeight {
		return value < r.height()
	}

	return value < r.clock.Now().Unix()
}

// height returns the best block height, or zero when it isn't known.
func (r *Resolver) height() int64 {
	if r.bestHeight == nil {
		return 0
	}

	height, err := r.bestHeight()
	if err != nil {
		log.Warnf("Unable to fetch best height: %v", err)
		return 0
	}

	return int64(height)
}
