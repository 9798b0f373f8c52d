package sporkcfg

import (
	"fmt"

	"github.com/lightningnetwork/lnd/kvdb"
)

const (
	// DefaultDBFilename is the name of the bolt database file.
	DefaultDBFilename = "sporks.db"

	// BoltBackend is the only supported database backend.
	BoltBackend = "bolt"
)

// DB holds database configuration for sporkd.
type DB struct {
	Backend string `long:"backend" description:"The selected database backend." choice:"bolt"`

	Bolt *kvdb.BoltConfig `group:"bolt" namespace:"bolt" description:"Bolt settings."`
}

// DefaultDB creates and returns a new default DB config.
func DefaultDB() *DB {
	return &DB{
		Backend: BoltBackend,
		Bolt: &kvdb.BoltConfig{
			NoFreelistSync:    true,
			AutoCompactMinAge: kvdb.DefaultBoltAutoCompactMinAge,
			DBTimeout:         kvdb.DefaultDBTimeout,
		},
	}
}

// Validate validates the DB config.
func (db *DB) Validate() error {
	switch db.Backend {
	case BoltBackend:
	default:
		return fmt.Errorf("unknown backend %q, must be %q", db.Backend,
			BoltBackend)
	}

	if db.Bolt == nil {
		return fmt.Errorf("missing bolt settings")
	}
	if db.Bolt.DBTimeout <= 0 {
		return fmt.Errorf("dbtimeout must be positive")
	}

	return nil
}

// GetBackend opens the spork database in dbPath.
func (db *DB) GetBackend(dbPath string) (kvdb.Backend, error) {
	return kvdb.GetBoltBackend(&kvdb.BoltBackendConfig{
		DBPath:            dbPath,
		DBFileName:        DefaultDBFilename,
		NoFreelistSync:    db.Bolt.NoFreelistSync,
		AutoCompact:       db.Bolt.AutoCompact,
		AutoCompactMinAge: db.Bolt.AutoCompactMinAge,
		DBTimeout:         db.Bolt.DBTimeout,
	})
}

// Compile-time constraint to ensure DB implements the Validator interface.
var _ Validator = (*DB)(nil)
