package sporkd

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

const (
	// maxBannedHosts limits the maximum number of hosts whose ban score
	// we'll track.
	maxBannedHosts = 10_000

	// resetDelta is the time after a host's last ban update that we'll
	// reset its ban score.
	resetDelta = time.Hour * 24

	// purgeInterval is how often we'll remove entries from the ban index
	// and allow hosts to be un-banned.
	purgeInterval = time.Minute * 10
)

// cachedBanInfo is used to track a host's ban score and if it is banned.
type cachedBanInfo struct {
	score      uint64
	lastUpdate time.Time
}

// Size returns the "size" of an entry.
func (c *cachedBanInfo) Size() (uint64, error) {
	return 1, nil
}

// isBanned returns true if the ban score is greater than the ban threshold.
func (c *cachedBanInfo) isBanned(banThreshold uint64) bool {
	return c.score >= banThreshold
}

// banman keeps the misbehavior scores of remote hosts. Scores are kept in
// memory only and are reset upon restart. An LRU cache bounds the memory used
// in case there are many misbehaving hosts.
type banman struct {
	mu sync.Mutex

	// banIndex tracks the ban score of each host and when it was last
	// raised.
	banIndex *lru.Cache[string, *cachedBanInfo]

	clock        clock.Clock
	purgeTicker  ticker.Ticker
	banThreshold uint64
	banDuration  time.Duration

	wg   sync.WaitGroup
	quit chan struct{}
}

// newBanman creates a new banman. A zero threshold disables banning.
func newBanman(banThreshold uint64, banDuration time.Duration,
	clk clock.Clock) *banman {

	if banThreshold == 0 {
		srvrLog.Warn("Banning is disabled due to zero ban threshold")
		banThreshold = math.MaxUint64
	}

	if clk == nil {
		clk = clock.NewDefaultClock()
	}

	return &banman{
		banIndex: lru.NewCache[string, *cachedBanInfo](
			maxBannedHosts,
		),
		clock:        clk,
		purgeTicker:  ticker.New(purgeInterval),
		banThreshold: banThreshold,
		banDuration:  banDuration,
		quit:         make(chan struct{}),
	}
}

// start kicks off the goroutine purging expired entries.
func (b *banman) start() {
	b.purgeTicker.Resume()

	b.wg.Add(1)
	go b.purgeExpiredBans()
}

// stop halts the banman.
func (b *banman) stop() {
	close(b.quit)
	b.wg.Wait()
	b.purgeTicker.Stop()
}

func (b *banman) purgeExpiredBans() {
	defer b.wg.Done()

	for {
		select {
		case <-b.purgeTicker.Ticks():
			b.purgeBanEntries()

		case <-b.quit:
			return
		}
	}
}

// purgeBanEntries does two things:
// - removes hosts from our ban list whose ban timer is up
// - removes hosts whose ban scores have expired.
func (b *banman) purgeBanEntries() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	keysToRemove := make([]string, 0)

	sweepEntries := func(host string, banInfo *cachedBanInfo) bool {
		expiry := resetDelta
		if banInfo.isBanned(b.banThreshold) {
			expiry = b.banDuration
		}

		if banInfo.lastUpdate.Add(expiry).Before(now) {
			keysToRemove = append(keysToRemove, host)
		}

		return true
	}

	b.banIndex.Range(sweepEntries)

	for _, host := range keysToRemove {
		srvrLog.Debugf("Removing ban entry of %v", host)
		b.banIndex.Delete(host)
	}
}

// isBanned checks whether the host is banned.
func (b *banman) isBanned(host string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	banInfo, err := b.banIndex.Get(host)
	if err != nil {
		return false
	}

	return banInfo.isBanned(b.banThreshold)
}

// incrementBanScore raises the host's ban score by score and reports whether
// the host is banned afterwards.
func (b *banman) incrementBanScore(host string, score uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	var current uint64
	banInfo, err := b.banIndex.Get(host)
	switch {
	case errors.Is(err, cache.ErrElementNotFound):

	case err != nil:
		srvrLog.Errorf("Unable to fetch ban score of %v: %v", host, err)

	default:
		current = banInfo.score
	}

	newScore := current + score
	if newScore < current {
		newScore = math.MaxUint64
	}

	cachedInfo := &cachedBanInfo{
		score:      newScore,
		lastUpdate: b.clock.Now(),
	}
	_, _ = b.banIndex.Put(host, cachedInfo)

	return cachedInfo.isBanned(b.banThreshold)
}
