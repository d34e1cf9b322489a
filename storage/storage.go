// storage package keeps the computations requested to the cluster and
// their results. It is an abstraction of a queue for the sequencer: the API
// pushes computations, the sequencer workers reserve them one by one and
// mark them done once the result is stored. The following prefixes are
// used:
//   - 'q/' for queued computations, keyed by enqueue time and id (queued)
//   - 'qr/' for reservations of queued computations
//   - 'r/' for results, keyed by computation id
package storage

import (
	"errors"
	"sync"

	"github.com/phantomstreams/phantom-sequencer/log"
	"go.vocdoni.io/dvote/db"
)

var (
	// Prefixes for the keys in the database.
	computationPrefix      = []byte("q/")
	computationReservation = []byte("qr/")
	resultPrefix           = []byte("r/")
)

var (
	// ErrNotFound is returned when the requested artifact does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoMoreElements is returned when the queue has no pending elements.
	ErrNoMoreElements = errors.New("no more elements")
)

// Storage wraps the database holding the computation queue and results.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(db db.Database) *Storage {
	return &Storage{db: db}
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("cannot close storage", "error", err.Error())
	}
}
