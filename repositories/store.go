package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/errors"
)

// Badger runs transactions with snapshot isolation and reports write-write
// conflicts at commit. Read-modify-write helpers rerun fn with a growing pause.
const (
	maxConflictRetries = 20
	conflictBackoff    = time.Millisecond
)

// update reruns fn on conflict, so fn must not keep state between attempts.
// A conflict that outlasts every retry is reported as ErrStoreBusy.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(attempt) * conflictBackoff)
	}
	return fmt.Errorf("%w: %v", errors.ErrStoreBusy, err)
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, in any) error {
	bytes, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

// scanPrefix decodes every value under prefix in key order.
func scanPrefix[T any](db *badger.DB, prefix []byte) ([]T, error) {
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var value T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &value)
			}); err != nil {
				return err
			}
			out = append(out, value)
		}
		return nil
	})
	return out, err
}

// paginate returns the requested page, pages start at 1.
func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
