package moderation

import "sync"

// roomLocks hands out one mutex per room. Mutexes are never removed,
// a room id maps to the same mutex for the life of the process.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the room's mutex and returns its release function.
func (r *roomLocks) lock(roomID string) func() {
	r.mu.Lock()
	l, ok := r.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[roomID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
