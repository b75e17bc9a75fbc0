package rpc

import (
	"errors"
	"sync"

	"tradelock/core/types"
	"tradelock/native/lock"
)

var errHandleNotFound = errors.New("rpc: lock or key handle not found")

// handleVault keeps live lock and key handles between calls. Handles are
// linear: taking one removes it, so a failed engine call that has already
// consumed its handles cannot be replayed with the same ids — matching the
// one-shot semantics of the primitives themselves.
type handleVault struct {
	mu    sync.Mutex
	locks map[[32]byte]*lock.Lock[types.Asset]
	keys  map[[32]byte]*lock.Key
}

func newHandleVault() *handleVault {
	return &handleVault{
		locks: make(map[[32]byte]*lock.Lock[types.Asset]),
		keys:  make(map[[32]byte]*lock.Key),
	}
}

func (v *handleVault) store(l *lock.Lock[types.Asset], k *lock.Key) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locks[l.ID()] = l
	v.keys[k.ID()] = k
}

func (v *handleVault) take(lockID, keyID [32]byte) (*lock.Lock[types.Asset], *lock.Key, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, okLock := v.locks[lockID]
	k, okKey := v.keys[keyID]
	if !okLock || !okKey {
		return nil, nil, errHandleNotFound
	}
	delete(v.locks, lockID)
	delete(v.keys, keyID)
	return l, k, nil
}
