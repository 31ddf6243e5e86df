package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/signaling"
	"github.com/dgraph-io/badger/v2"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Store is the append-only signal log. Keys sort by room, then insertion
// time, so a prefix scan returns a room's records in order.
type Store struct {
	db *badger.DB

	mu  sync.Mutex
	seq uint64
	now func() time.Time
}

// OpenStore opens the log under dir. An empty dir keeps everything in memory.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open signal store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append stamps rec with an id and creation time and persists it.
func (s *Store) Append(rec signaling.Record) (signaling.Record, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()
	s.mu.Unlock()

	value, err := msgpack.Marshal(&rec)
	if err != nil {
		return rec, fmt.Errorf("encode record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.RoomID, rec.CreatedAt, seq), value)
	})
	if err != nil {
		return rec, fmt.Errorf("store record: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit of the newest records in room, oldest first.
func (s *Store) Recent(room string, limit int) ([]signaling.Record, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	prefix := roomPrefix(room)
	var out []signaling.Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// reverse iteration starts at the last key <= seek
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var rec signaling.Record
			err := it.Item().Value(func(v []byte) error {
				return msgpack.Unmarshal(v, &rec)
			})
			if err != nil {
				return fmt.Errorf("decode record %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func roomPrefix(room string) []byte {
	return []byte("signal/" + room + "/")
}

func recordKey(room string, at time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("signal/%s/%020d/%010d", room, at.UnixNano(), seq))
}

// badgerLogger routes badger's logging into slog. Badger is chatty at info,
// so its info and debug output both land at debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	slog.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
