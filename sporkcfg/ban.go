package sporkcfg

import (
	"fmt"
	"time"
)

const (
	// DefaultBanThreshold is the misbehavior score at which a peer is
	// banned.
	DefaultBanThreshold = 100

	// DefaultBanDuration is how long a banned peer stays banned.
	DefaultBanDuration = 24 * time.Hour
)

// Ban configures misbehavior scoring of peers.
type Ban struct {
	Threshold uint64 `long:"threshold" description:"Misbehavior score at which a peer is disconnected and banned. 0 disables banning."`

	Duration time.Duration `long:"duration" description:"How long a banned peer is refused."`
}

// DefaultBan returns the default ban settings.
func DefaultBan() *Ban {
	return &Ban{
		Threshold: DefaultBanThreshold,
		Duration:  DefaultBanDuration,
	}
}

// Validate checks the ban duration.
func (b *Ban) Validate() error {
	if b.Duration <= 0 {
		return fmt.Errorf("ban.duration must be positive")
	}

	return nil
}

// Compile-time constraint to ensure Ban implements the Validator interface.
var _ Validator = (*Ban)(nil)
