// internal/store/errorlog.go
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
)

// ErrCorrupted is returned for entries that fail the integrity check.
var ErrCorrupted = errors.New("store: error log entry corrupted (CRC mismatch)")

// Key layout. One sequence counter spans both channels so the most recent
// entry of the whole log can be found.
const (
	prefixTransient = "elog/t/"
	prefixPermanent = "elog/p/"
	keyAck          = "elog/ack"
)

// entry encoding: crc(4) | type(1) | permanent(1) | value(4) | at unix nanos(8) | boot id(16)
const entrySize = 4 + 1 + 1 + 4 + 8 + 16

// Record is a stored entry with its sequence number.
type Record struct {
	Seq uint64
	hardfault.Entry
}

// ErrorLog is the append-only hard error log.
// It implements hardfault.ErrorLog.
type ErrorLog struct {
	db *DB

	mu  sync.Mutex
	seq uint64
}

// NewErrorLog opens the log kept in d.
func NewErrorLog(d *DB) (*ErrorLog, error) {
	if d == nil {
		return nil, errors.New("store: db required")
	}

	l := &ErrorLog{db: d}

	err := d.db.View(func(txn *badger.Txn) error {
		for _, p := range []string{prefixTransient, prefixPermanent} {
			seq, ok, err := lastSeq(txn, p)
			if err != nil {
				return err
			}
			if ok && seq > l.seq {
				l.seq = seq
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: init error log: %w", err)
	}
	return l, nil
}

func (l *ErrorLog) Append(e hardfault.Entry) error {
	e.Permanent = false
	return l.put(prefixTransient, e)
}

func (l *ErrorLog) AppendPermanent(e hardfault.Entry) error {
	e.Permanent = true
	return l.put(prefixPermanent, e)
}

func (l *ErrorLog) put(prefix string, e hardfault.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.seq + 1
	err := l.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seqKey(prefix, next), encodeEntry(e))
	})
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	l.seq = next
	return nil
}

// ReadLatest returns the most recent entry of either channel.
// Permanent entries acknowledged by a power cycle no longer count, so the
// same fault after a power cycle is logged again.
func (l *ErrorLog) ReadLatest() (hardfault.Entry, bool, error) {
	var (
		best  Record
		found bool
	)

	err := l.db.db.View(func(txn *badger.Txn) error {
		ack, err := readUint64(txn, []byte(keyAck))
		if err != nil {
			return err
		}

		for _, p := range []string{prefixTransient, prefixPermanent} {
			rec, ok, err := lastRecord(txn, p)
			if err != nil {
				return err
			}
			if ok && p == prefixPermanent && rec.Seq <= ack {
				continue
			}
			if ok && (!found || rec.Seq > best.Seq) {
				best, found = rec, true
			}
		}
		return nil
	})
	if err != nil {
		return hardfault.Entry{}, false, err
	}
	return best.Entry, found, nil
}

// ReadLatestPermanent returns the most recent permanent entry that has not
// been acknowledged by a power cycle.
func (l *ErrorLog) ReadLatestPermanent() (hardfault.Entry, bool, error) {
	var (
		rec   Record
		found bool
	)

	err := l.db.db.View(func(txn *badger.Txn) error {
		ack, err := readUint64(txn, []byte(keyAck))
		if err != nil {
			return err
		}

		r, ok, err := lastRecord(txn, prefixPermanent)
		if err != nil {
			return err
		}
		if ok && r.Seq > ack {
			rec, found = r, true
		}
		return nil
	})
	if err != nil {
		return hardfault.Entry{}, false, err
	}
	return rec.Entry, found, nil
}

// Count returns the number of entries in both channels.
func (l *ErrorLog) Count() (int, error) {
	n := 0
	err := l.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		for _, p := range []string{prefixTransient, prefixPermanent} {
			opts.Prefix = []byte(p)
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				n++
			}
			it.Close()
		}
		return nil
	})
	return n, err
}

// List returns every entry in sequence order.
func (l *ErrorLog) List() ([]Record, error) {
	var out []Record

	err := l.db.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions

		for _, p := range []string{prefixTransient, prefixPermanent} {
			opts.Prefix = []byte(p)
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				rec, err := decodeItem(it.Item(), p)
				if err != nil {
					it.Close()
					return err
				}
				out = append(out, rec)
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// AcknowledgePermanent marks every permanent entry so far as cleared by a
// power cycle. The entries stay in the log for diagnosis.
func (l *ErrorLog) AcknowledgePermanent() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b [8]byte
	binary.BigEndian.PutUint64(b[:], l.seq)
	return l.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyAck), b[:])
	})
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

func seqKey(prefix string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", prefix, seq))
}

func parseSeq(key []byte, prefix string) (uint64, error) {
	return strconv.ParseUint(string(key[len(prefix):]), 10, 64)
}

func lastSeq(txn *badger.Txn, prefix string) (uint64, bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append([]byte(prefix), 0xFF))
	if !it.ValidForPrefix([]byte(prefix)) {
		return 0, false, nil
	}
	seq, err := parseSeq(it.Item().Key(), prefix)
	if err != nil {
		return 0, false, fmt.Errorf("store: bad key %q: %w", it.Item().Key(), err)
	}
	return seq, true, nil
}

func lastRecord(txn *badger.Txn, prefix string) (Record, bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(append([]byte(prefix), 0xFF))
	if !it.ValidForPrefix([]byte(prefix)) {
		return Record{}, false, nil
	}
	rec, err := decodeItem(it.Item(), prefix)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func decodeItem(item *badger.Item, prefix string) (Record, error) {
	seq, err := parseSeq(item.Key(), prefix)
	if err != nil {
		return Record{}, fmt.Errorf("store: bad key %q: %w", item.Key(), err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return Record{}, err
	}
	e, err := decodeEntry(val)
	if err != nil {
		return Record{}, fmt.Errorf("seq %d: %w", seq, err)
	}
	return Record{Seq: seq, Entry: e}, nil
}

func readUint64(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("store: %s: bad length %d", key, len(val))
		}
		v = binary.BigEndian.Uint64(val)
		return nil
	})
	return v, err
}

func encodeEntry(e hardfault.Entry) []byte {
	buf := make([]byte, entrySize)
	body := buf[4:]

	body[0] = byte(e.Type)
	if e.Permanent {
		body[1] = 1
	}
	binary.BigEndian.PutUint32(body[2:6], e.Value)
	var nanos int64
	if !e.At.IsZero() {
		nanos = e.At.UnixNano()
	}
	binary.BigEndian.PutUint64(body[6:14], uint64(nanos))
	copy(body[14:30], e.BootID[:])

	binary.BigEndian.PutUint32(buf[:4], crc32.ChecksumIEEE(body))
	return buf
}

func decodeEntry(b []byte) (hardfault.Entry, error) {
	if len(b) != entrySize {
		return hardfault.Entry{}, fmt.Errorf("%w: length %d", ErrCorrupted, len(b))
	}
	body := b[4:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(b[:4]) {
		return hardfault.Entry{}, ErrCorrupted
	}

	e := hardfault.Entry{
		Type:      hardfault.EntryType(body[0]),
		Permanent: body[1] == 1,
		Value:     binary.BigEndian.Uint32(body[2:6]),
	}
	if nanos := int64(binary.BigEndian.Uint64(body[6:14])); nanos != 0 {
		e.At = time.Unix(0, nanos).UTC()
	}
	id, err := uuid.FromBytes(body[14:30])
	if err != nil {
		return hardfault.Entry{}, err
	}
	e.BootID = id
	return e, nil
}
