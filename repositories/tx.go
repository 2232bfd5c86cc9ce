package repositories

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/havaian/gossip/domain"
)

// Store runs read-modify-write sequences that span a room and its messages
// in a single badger transaction: either every write commits or none does.
type Store struct {
	db *badger.DB
}

func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Update runs fn inside one read-write transaction. On a write conflict fn is
// run again from scratch, so it must only assign its results, never accumulate.
func (s *Store) Update(fn func(tx *Tx) error) error {
	return update(s.db, func(txn *badger.Txn) error {
		return fn(&Tx{txn: txn})
	})
}

// Tx reads and writes rooms and messages inside a Store transaction.
type Tx struct {
	txn *badger.Txn
}

func (t *Tx) Room(id string) (domain.Room, error) {
	return getRoom(t.txn, id)
}

// SaveRoom stores the room and returns it with its new update time.
func (t *Tx) SaveRoom(room domain.Room) (domain.Room, error) {
	return putRoom(t.txn, room)
}

func (t *Tx) Message(id string) (domain.Message, error) {
	message, _, err := getMessage(t.txn, id)
	return message, err
}

func (t *Tx) CreateMessage(message domain.Message) error {
	return createMessage(t.txn, message)
}

// UpdateMessage applies fn to the stored message. Id, room and creation time never change.
func (t *Tx) UpdateMessage(id string, fn func(*domain.Message) error) (domain.Message, error) {
	return updateMessage(t.txn, id, fn)
}
