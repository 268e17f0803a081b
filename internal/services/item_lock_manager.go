package services

import (
	"log/slog"
	"sync"
)

// ItemLockManager serializes concurrent work against the same catalog
// item. Locks are created lazily per item and never removed; attempts on
// disjoint items proceed without mutual blocking.
type ItemLockManager struct {
	locks    map[string]*sync.RWMutex
	locksMux sync.RWMutex
}

func NewItemLockManager() *ItemLockManager {
	return &ItemLockManager{
		locks: make(map[string]*sync.RWMutex),
	}
}

// lockFor returns the mutex for the item, creating it on first use.
func (lm *ItemLockManager) lockFor(itemID string) *sync.RWMutex {
	lm.locksMux.RLock()
	if lock, exists := lm.locks[itemID]; exists {
		lm.locksMux.RUnlock()
		return lock
	}
	lm.locksMux.RUnlock()

	lm.locksMux.Lock()
	defer lm.locksMux.Unlock()

	// Double-check in case another goroutine created it.
	if lock, exists := lm.locks[itemID]; exists {
		return lock
	}

	lock := &sync.RWMutex{}
	lm.locks[itemID] = lock

	slog.Debug("Created item lock", "item_id", itemID)
	return lock
}

// WithItemLock runs fn while holding the item's exclusive lock. The lock
// is released on every exit path, including when fn fails.
func (lm *ItemLockManager) WithItemLock(itemID string, fn func() error) error {
	lock := lm.lockFor(itemID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// WithItemRLock runs fn while holding the item's shared lock. Used for
// availability reads, which may overlap with each other but not with a
// transition in flight.
func (lm *ItemLockManager) WithItemRLock(itemID string, fn func() error) error {
	lock := lm.lockFor(itemID)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

// LockCount returns how many item locks exist, for diagnostics.
func (lm *ItemLockManager) LockCount() int {
	lm.locksMux.RLock()
	defer lm.locksMux.RUnlock()
	return len(lm.locks)
}
