// internal/store/nv.go
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
)

const (
	prefixNV      = "nv/"
	keyResetCause = "reset/cause"
)

// NV emulates the battery-backed register file.
// It implements hardfault.NVStore and hardfault.ResetReader.
type NV struct {
	db *DB
}

func NewNV(d *DB) *NV {
	return &NV{db: d}
}

func nvKey(slot hardfault.Slot) []byte {
	return []byte(fmt.Sprintf("%s%03d", prefixNV, slot))
}

func (n *NV) Set(slot hardfault.Slot, value uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], value)
	return n.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nvKey(slot), b[:])
	})
}

// Get returns the slot value. Slots never written read as zero.
func (n *NV) Get(slot hardfault.Slot) (uint32, error) {
	v, _, err := n.readUint32(nvKey(slot))
	return v, err
}

// ResetCause returns the cause recorded before the last restart.
// Without a record the device came up from power-on.
func (n *NV) ResetCause() (hardfault.ResetCause, error) {
	v, ok, err := n.readUint32([]byte(keyResetCause))
	if err != nil {
		return 0, err
	}
	if !ok {
		return hardfault.ResetPowerOn, nil
	}
	return hardfault.ResetCause(v), nil
}

// RecordResetCause stores the cause the next boot will see.
func (n *NV) RecordResetCause(c hardfault.ResetCause) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(c))
	return n.db.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyResetCause), b[:])
	})
}

// PowerLoss clears everything a power cycle clears: all registers and the
// reset cause.
func (n *NV) PowerLoss() error {
	return n.db.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixNV)

		var keys [][]byte
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		keys = append(keys, []byte(keyResetCause))
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("store: clear %s: %w", k, err)
			}
		}
		return nil
	})
}

func (n *NV) readUint32(key []byte) (uint32, bool, error) {
	var (
		v  uint32
		ok bool
	)
	err := n.db.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 4 {
				return fmt.Errorf("store: %s: bad length %d", key, len(val))
			}
			v = binary.BigEndian.Uint32(val)
			ok = true
			return nil
		})
	})
	return v, ok, err
}
