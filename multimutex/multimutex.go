package multimutex

import (
	"fmt"
	"sync"
)

// cntMutex is a struct that wraps a counter and a mutex, and is used
// to keep track of the number of goroutines waiting for access to the
// mutex, such that we can forget about it when the counter is zero.
type cntMutex struct {
	cnt int
	sync.Mutex
}

// Mutex is a struct that keeps track of a set of mutexes with a given ID. It
// can be used for making sure only one goroutine gets given the mutex per ID.
type Mutex[T comparable] struct {
	// mutexes is a map of IDs to a cntMutex. The cntMutex for a given ID
	// will hold the mutex to be used by all callers requesting access for
	// the ID, in addition to the count of callers.
	mutexes map[T]*cntMutex

	// mapMtx synchronizes access to the mutexes map.
	mapMtx sync.Mutex
}

// NewMutex creates a new Mutex.
func NewMutex[T comparable]() *Mutex[T] {
	return &Mutex[T]{
		mutexes: make(map[T]*cntMutex),
	}
}

// Lock locks the mutex by the given ID. If the mutex is already locked by
// this ID, Lock blocks until the mutex is available.
func (c *Mutex[T]) Lock(id T) {
	c.mapMtx.Lock()
	mtx, ok := c.mutexes[id]
	if ok {
		// One more goroutine is now waiting on this ID.
		mtx.cnt++
	} else {
		mtx = &cntMutex{
			cnt: 1,
		}
		c.mutexes[id] = mtx
	}
	c.mapMtx.Unlock()

	mtx.Lock()
}

// Unlock unlocks the mutex by the given ID. It is a run-time error if the
// mutex is not locked by the ID on entry to Unlock.
func (c *Mutex[T]) Unlock(id T) {
	c.mapMtx.Lock()

	mtx, ok := c.mutexes[id]
	if !ok {
		panic(fmt.Sprintf("double unlock for id %v", id))
	}

	// The last waiter removes the entry. Every other waiter has already
	// incremented the counter under mapMtx, or will create a fresh mutex.
	mtx.cnt--
	if mtx.cnt == 0 {
		delete(c.mutexes, id)
	}
	c.mapMtx.Unlock()

	mtx.Unlock()
}

// Len returns the number of ids that are currently locked or waited on.
func (c *Mutex[T]) Len() int {
	c.mapMtx.Lock()
	defer c.mapMtx.Unlock()

	return len(c.mutexes)
}
