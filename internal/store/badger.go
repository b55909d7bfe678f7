package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/metrics"
)

// BadgerConfig holds configuration for a Badger-backed store.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory is
	// true.
	Path string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Compression is applied to chronicle bytes before they are written.
	Compression Compression

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable ratio before GC rewrites
	// a value log file.
	GCDiscardRatio float64
}

// DefaultBadgerConfig returns production defaults for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:           path,
		SyncWrites:     true,
		Compression:    CompressionLZ4,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true, Compression: CompressionLZ4}
}

// Key layout. Nids are written sign-flipped big-endian so byte order
// matches numeric order.
//
//	c/<nid>                 -> [write sequence:4][digest:32][value]
//	a/<assemblage><nid>     -> empty
//	s/<component><nid>      -> empty (semantics only)
var (
	prefixChronicle = []byte("c/")
	prefixAssembly  = []byte("a/")
	prefixComponent = []byte("s/")
)

const badgerHeaderLength = 4 + len(ir.Digest{})

// Badger is the Badger DataStore.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// writers to one nid are serialized by Badger's transaction conflict
// detection and merged by PutChronicleData.
type Badger struct {
	db          *badger.DB
	compression Compression
	metrics     *metrics.Metrics
	logger      *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
}

var _ DataStore = (*Badger)(nil)

// OpenBadger opens a Badger store. m and logger may be nil.
func OpenBadger(cfg BadgerConfig, m *metrics.Metrics, logger *slog.Logger) (*Badger, error) {
	logger = loggerOrDefault(logger)
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Badger{db: db, compression: cfg.Compression, metrics: m, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface. Badger's
// informational chatter is demoted to Debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (s *Badger) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing was worth collecting.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

// Close stops GC and closes the database.
func (s *Badger) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
		s.stopGC = nil
	}
	return s.db.Close()
}

func (s *Badger) PutChronicleData(ctx context.Context, c Chronicle) error {
	return putChronicle(ctx, s, c, s.metrics, s.logger)
}

func (s *Badger) GetChronicleVersionData(ctx context.Context, nid ir.Nid) ([]byte, bool, error) {
	_, data, found, err := s.load(ctx, nid)
	return data, found, err
}

func (s *Badger) GetAssemblageConceptNids(_ context.Context) ([]ir.Nid, error) {
	nids := []ir.Nid{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanKeys(txn, prefixAssembly, func(key []byte) {
			asm := decodeNid(key[len(prefixAssembly):])
			if len(nids) == 0 || nids[len(nids)-1] != asm {
				nids = append(nids, asm)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan assemblages: %w", err)
	}
	return nids, nil
}

func (s *Badger) GetSemanticNidsForComponent(_ context.Context, nid ir.Nid) ([]ir.Nid, error) {
	prefix := append(append([]byte{}, prefixComponent...), encodeNid(nid)...)
	nids := []ir.Nid{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanKeys(txn, prefix, func(key []byte) {
			nids = append(nids, decodeNid(key[len(prefix):]))
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan component %d: %w", nid, err)
	}
	return nids, nil
}

func (s *Badger) WriteSequence(ctx context.Context, nid ir.Nid) (int32, error) {
	var seq int32
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chronicleKey(nid))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			if len(v) < badgerHeaderLength {
				return ir.Errorf(ir.ErrCodeCorruptRecord, "stored value is %d bytes", len(v)).WithNid(nid)
			}
			seq = int32(binary.BigEndian.Uint32(v))
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("read write sequence of %d: %w", nid, err)
	}
	return seq, nil
}

func (s *Badger) load(_ context.Context, nid ir.Nid) (int32, []byte, bool, error) {
	var (
		seq   int32
		data  []byte
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chronicleKey(nid))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		seq, data, err = decodeBadgerValue(value)
		found = err == nil
		return err
	})
	if err != nil {
		return 0, nil, false, fmt.Errorf("load chronicle %d: %w", nid, err)
	}
	return seq, data, found, nil
}

// compareAndPut reads and writes inside one transaction. A concurrent
// commit to the same key surfaces as badger.ErrConflict and is reported
// as a lost race.
func (s *Badger) compareAndPut(_ context.Context, r row, expected int32) (bool, error) {
	value, err := s.encodeBadgerValue(r)
	if err != nil {
		return false, err
	}

	stored := true
	err = s.db.Update(func(txn *badger.Txn) error {
		var current int32
		item, err := txn.Get(chronicleKey(r.nid))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(v []byte) error {
				if len(v) < badgerHeaderLength {
					return ir.Errorf(ir.ErrCodeCorruptRecord, "stored value is %d bytes", len(v)).WithNid(r.nid)
				}
				current = int32(binary.BigEndian.Uint32(v))
				return nil
			}); err != nil {
				return err
			}
		}
		if current != expected {
			stored = false
			return nil
		}

		if err := txn.Set(chronicleKey(r.nid), value); err != nil {
			return err
		}
		if err := txn.Set(indexKey(prefixAssembly, r.assemblage, r.nid), nil); err != nil {
			return err
		}
		if r.objectType == ir.ObjectTypeSemantic {
			return txn.Set(indexKey(prefixComponent, r.referencedComponent, r.nid), nil)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("put chronicle %d: %w", r.nid, err)
	}
	return stored, nil
}

func (s *Badger) encodeBadgerValue(r row) ([]byte, error) {
	encoded, err := encodeValue(r.data, s.compression)
	if err != nil {
		return nil, err
	}
	digest := ir.ChronicleDigest(r.data)
	value := make([]byte, badgerHeaderLength+len(encoded))
	binary.BigEndian.PutUint32(value, uint32(r.writeSequence))
	copy(value[4:badgerHeaderLength], digest[:])
	copy(value[badgerHeaderLength:], encoded)
	return value, nil
}

func decodeBadgerValue(value []byte) (int32, []byte, error) {
	if len(value) < badgerHeaderLength {
		return 0, nil, ir.Errorf(ir.ErrCodeCorruptRecord, "stored value is %d bytes", len(value))
	}
	seq := int32(binary.BigEndian.Uint32(value))
	data, err := decodeValue(value[badgerHeaderLength:])
	if err != nil {
		return 0, nil, err
	}
	if want := ir.ChronicleDigest(data); string(want[:]) != string(value[4:badgerHeaderLength]) {
		return 0, nil, ir.Errorf(ir.ErrCodeCorruptRecord,
			"stored digest does not match data (want %s)", want.Short())
	}
	return seq, data, nil
}

func scanKeys(txn *badger.Txn, prefix []byte, fn func(key []byte)) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		fn(it.Item().Key())
	}
	return nil
}

func chronicleKey(nid ir.Nid) []byte {
	return append(append([]byte{}, prefixChronicle...), encodeNid(nid)...)
}

func indexKey(prefix []byte, owner, nid ir.Nid) []byte {
	key := append([]byte{}, prefix...)
	key = append(key, encodeNid(owner)...)
	return append(key, encodeNid(nid)...)
}

func encodeNid(nid ir.Nid) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(nid)^0x80000000)
	return b[:]
}

func decodeNid(b []byte) ir.Nid {
	return ir.Nid(int32(binary.BigEndian.Uint32(b[:4]) ^ 0x80000000))
}
