//go:build !js

package trace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/arcmem/arcmem/std/arc"
	"github.com/arcmem/arcmem/std/log"
	"github.com/dgraph-io/badger/v4"
)

// ErrBadRecord is returned when a stored event cannot be decoded.
var ErrBadRecord = errors.New("trace: malformed event record")

// recordHeader is kind, id, strong and weak; the label follows.
const recordHeader = 1 + 8 + 4 + 4

// BadgerTracer persists events to a badger database. Writes are batched;
// call Flush or Close before reading back.
//
// Events are keyed by the tracer's own sequence, which continues across
// reopens. Several registries may share one tracer, so the Seq of a stored
// event is that key, not the registry's sequence number.
type BadgerTracer struct {
	db *badger.DB

	mu    sync.Mutex
	batch *badger.WriteBatch
	next  uint64
	err   error
}

// NewBadgerTracer opens (or creates) a trace database at path.
// An empty path keeps the database in memory.
func NewBadgerTracer(path string) (*BadgerTracer, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	b := &BadgerTracer{db: db}
	if b.next, err = lastSeq(db); err != nil {
		db.Close()
		return nil, err
	}
	b.batch = db.NewWriteBatch()
	return b, nil
}

func lastSeq(db *badger.DB) (seq uint64, err error) {
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false // keys only
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		key := it.Item().Key()
		if len(key) != 8 {
			return fmt.Errorf("%w: key of %d bytes", ErrBadRecord, len(key))
		}
		seq = binary.BigEndian.Uint64(key)
		return nil
	})
	return seq, err
}

func (b *BadgerTracer) String() string {
	return "badger-trace"
}

func (b *BadgerTracer) OnEvent(ev arc.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil || b.batch == nil {
		return
	}
	b.next++
	if err := b.batch.Set(eventKey(b.next), encodeEvent(ev)); err != nil {
		b.err = err
		log.Error(b, "Unable to store event", "seq", b.next, "err", err)
	}
}

// Flush commits all pending events.
func (b *BadgerTracer) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush(true)
}

func (b *BadgerTracer) flush(reopen bool) error {
	if b.batch == nil {
		return b.err
	}
	if err := b.batch.Flush(); err != nil && b.err == nil {
		b.err = err
	}
	b.batch = nil
	if reopen {
		b.batch = b.db.NewWriteBatch()
	}
	return b.err
}

// Err returns the first write error, if any.
func (b *BadgerTracer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close flushes pending events and closes the database.
func (b *BadgerTracer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	err := b.flush(false)
	if cerr := b.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// Events reads back every committed event in sequence order. With kinds,
// only events of those kinds are returned.
func (b *BadgerTracer) Events(kinds ...arc.EventKind) (events []arc.Event, err error) {
	err = b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != 8 {
				return fmt.Errorf("%w: key of %d bytes", ErrBadRecord, len(key))
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ev, err := decodeEvent(binary.BigEndian.Uint64(key), val)
			if err != nil {
				return err
			}
			if len(kinds) == 0 || hasKind(kinds, ev.Kind) {
				events = append(events, ev)
			}
		}
		return nil
	})
	return events, err
}

func eventKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

func encodeEvent(ev arc.Event) []byte {
	buf := make([]byte, 0, recordHeader+len(ev.Label))
	buf = append(buf, byte(ev.Kind))
	buf = binary.BigEndian.AppendUint64(buf, uint64(ev.ID))
	buf = binary.BigEndian.AppendUint32(buf, uint32(ev.Strong))
	buf = binary.BigEndian.AppendUint32(buf, uint32(ev.Weak))
	return append(buf, ev.Label...)
}

func decodeEvent(seq uint64, buf []byte) (arc.Event, error) {
	if len(buf) < recordHeader {
		return arc.Event{}, fmt.Errorf("%w: seq %d is %d bytes", ErrBadRecord, seq, len(buf))
	}
	return arc.Event{
		Seq:    seq,
		Kind:   arc.EventKind(buf[0]),
		ID:     arc.ID(binary.BigEndian.Uint64(buf[1:9])),
		Strong: int32(binary.BigEndian.Uint32(buf[9:13])),
		Weak:   int32(binary.BigEndian.Uint32(buf[13:17])),
		Label:  string(buf[recordHeader:]),
	}, nil
}

// badgerLogger routes badger's own messages through std/log.
type badgerLogger struct{}

func (badgerLogger) String() string {
	return "badger"
}

func (l badgerLogger) Errorf(format string, args ...any) {
	log.Error(l, fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	log.Warn(l, fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	log.Debug(l, fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	log.Trace(l, fmt.Sprintf(format, args...))
}
