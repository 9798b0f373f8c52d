package spork

import (
	"fmt"
	"time"

	"github.com/catocoin/sporkd/multimutex"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// dateThreshold is the value above which spork values are logged as dates.
const dateThreshold = 1000000

// Store persists the active message of each spork id across restarts.
type Store interface {
	// ReadSpork returns the message stored for id, or None if nothing has
	// been stored yet.
	ReadSpork(id ID) (fn.Option[sporkwire.Spork], error)

	// WriteSpork stores msg as the message for id, replacing any previous
	// one.
	WriteSpork(id ID, msg *sporkwire.Spork) error
}

// LoadSporks seeds table with every catalog id found in store and returns
// the number of messages loaded. Missing ids and read failures are skipped,
// those ids stay unresolved until the network delivers them again.
func LoadSporks(table *Table, store Store) int {
	var loaded int
	for id := StartID; id <= EndID; id++ {
		if !IsKnown(id) {
			continue
		}

		stored, err := store.ReadSpork(id)
		if err != nil {
			log.Errorf("Unable to load spork %v: %v", id,
				fmt.Errorf("%w: %v", ErrPersistenceFailure, err))
			continue
		}

		stored.WhenSome(func(msg sporkwire.Spork) {
			if ID(msg.ID) != id {
				log.Warnf("Stored spork under %d carries id %d, "+
					"skipping", id, msg.ID)
				return
			}

			if err := table.Commit(&msg); err != nil {
				log.Warnf("Unable to seed spork %v: %v", id, err)
				return
			}

			loaded++
			log.Infof("Loaded spork %v with value %v", id,
				formatValue(msg.Value))
		})

		if stored.IsNone() {
			log.Debugf("No stored value for spork %v", id)
		}
	}

	return loaded
}

// formatValue renders large values, which are timestamps, as dates.
func formatValue(value int64) string {
	if value > dateThreshold {
		return time.Unix(value, 0).UTC().Format(time.RFC3339)
	}

	return fmt.Sprintf("%d", value)
}

// persister writes accepted messages through a Store. Writes for the same id
// are serialized and skipped once the message has been superseded in
// memory, so a slow write for an old message can't overwrite a newer one.
type persister struct {
	store Store
	table *Table
	locks *multimutex.Mutex[ID]
}

// newPersister creates a persister writing to store.
func newPersister(store Store, table *Table) *persister {
	return &persister{
		store: store,
		table: table,
		locks: multimutex.NewMutex[ID](),
	}
}

// persist writes msg if it is still the active message for its id.
func (p *persister) persist(msg *sporkwire.Spork) error {
	if p.store == nil {
		return nil
	}

	id := ID(msg.ID)
	p.locks.Lock(id)
	defer p.locks.Unlock(id)

	if !p.table.IsCurrent(msg) {
		log.Debugf("Skipping write of superseded %v", msg)
		return nil
	}

	if err := p.store.WriteSpork(id, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	return nil
}
