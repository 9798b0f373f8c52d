package spork

import (
	"errors"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
)

// DefaultHistorySize is the default number of distinct accepted messages
// kept in the history table.
const DefaultHistorySize = 10000

// historyEntry wraps an accepted message so it can live in the LRU cache.
type historyEntry struct {
	msg sporkwire.Spork
}

// Size returns the "size" of an entry.
func (h *historyEntry) Size() (uint64, error) {
	return 1, nil
}

// Table holds the resolved spork state of the process: the active message
// for every id and a bounded history of every distinct message accepted.
//
// All mutations go through Commit, which re-checks freshness, inserts into
// the history and replaces the active entry under one write lock.
type Table struct {
	mu sync.RWMutex

	// active maps an id to the newest message accepted for it.
	active map[ID]sporkwire.Spork

	// history is keyed by the content hash of each accepted message.
	history *lru.Cache[chainhash.Hash, *historyEntry]
}

// NewTable creates an empty table whose history holds at most historySize
// messages. A zero size selects DefaultHistorySize.
func NewTable(historySize uint64) *Table {
	if historySize == 0 {
		historySize = DefaultHistorySize
	}

	return &Table{
		active: make(map[ID]sporkwire.Spork),
		history: lru.NewCache[chainhash.Hash, *historyEntry](
			historySize,
		),
	}
}

// isFresh reports whether msg would supersede the active entry for its id.
// The caller must hold the lock.
func (t *Table) isFresh(msg *sporkwire.Spork) bool {
	cur, ok := t.active[ID(msg.ID)]
	if !ok {
		return true
	}

	// Ties keep the existing entry.
	return cur.SignedAt < msg.SignedAt
}

// IsFresh reports whether msg is newer than the active entry for its id.
// The answer may be outdated by the time the caller acts on it, Commit
// checks again.
func (t *Table) IsFresh(msg *sporkwire.Spork) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.isFresh(msg)
}

// Commit records msg in the history and makes it the active entry for its
// id. ErrStaleUpdate is returned, and nothing changes, if the active entry is
// at least as new.
func (t *Table) Commit(msg *sporkwire.Spork) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isFresh(msg) {
		return ErrStaleUpdate
	}

	stored := msg.Copy()
	_, err := t.history.Put(stored.Hash(), &historyEntry{msg: stored})
	if err != nil {
		return err
	}
	t.active[ID(stored.ID)] = stored

	return nil
}

// Active returns a copy of the active message for id.
func (t *Table) Active(id ID) (sporkwire.Spork, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msg, ok := t.active[id]
	if !ok {
		return sporkwire.Spork{}, false
	}

	return msg.Copy(), true
}

// IsCurrent reports whether msg is the message currently active for its id.
func (t *Table) IsCurrent(msg *sporkwire.Spork) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur, ok := t.active[ID(msg.ID)]
	if !ok {
		return false
	}

	return cur.Hash() == msg.Hash()
}

// ActiveSporks returns copies of all active messages in ascending id order.
func (t *Table) ActiveSporks() []sporkwire.Spork {
	t.mu.RLock()
	msgs := make([]sporkwire.Spork, 0, len(t.active))
	for _, msg := range t.active {
		msgs = append(msgs, msg.Copy())
	}
	t.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].ID < msgs[j].ID
	})

	return msgs
}

// NumActive returns the number of ids with an active message.
func (t *Table) NumActive() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.active)
}

// Lookup returns the history entry with the given content hash.
func (t *Table) Lookup(hash chainhash.Hash) (sporkwire.Spork, bool) {
	entry, err := t.history.Get(hash)
	switch {
	case errors.Is(err, cache.ErrElementNotFound):
		return sporkwire.Spork{}, false

	case err != nil:
		log.Errorf("Unable to read spork history: %v", err)
		return sporkwire.Spork{}, false
	}

	return entry.msg.Copy(), true
}

// HistoryLen returns the number of messages held in the history.
func (t *Table) HistoryLen() int {
	return t.history.Len()
}
