package lock

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	// ErrKeyMismatch is returned when the presented key was not the one
	// paired with the lock at creation time.
	ErrKeyMismatch = errors.New("lock: key does not match lock")
	// ErrLockConsumed is returned when a lock handle has already been opened
	// or surrendered into custody.
	ErrLockConsumed = errors.New("lock: lock already consumed")
	// ErrKeySpent is returned when a key credential has already been used.
	ErrKeySpent = errors.New("lock: key already spent")
)

// Value is any asset that can be committed inside a lock. The ledger only
// needs a derivable unique identifier from the value.
type Value interface {
	AssetID() [32]byte
}

// IDSource allocates fresh, globally unique identifiers for locks and keys.
type IDSource interface {
	NewID() [32]byte
}

type randomIDSource struct{}

func (randomIDSource) NewID() [32]byte {
	id := uuid.New()
	return ethcrypto.Keccak256Hash(id[:])
}

// NewRandomIDSource returns the production identifier allocator, hashing
// fresh UUID entropy into the ledger's 32-byte id space.
func NewRandomIDSource() IDSource { return randomIDSource{} }

// Key is the single-use credential required to open one specific lock. It
// has no behaviour beyond identity; the spent marker enforces linear use.
type Key struct {
	id    [32]byte
	spent bool
}

// ID returns the key's identifier. Counterparties compare and publish key
// ids, never key contents.
func (k *Key) ID() [32]byte {
	if k == nil {
		return [32]byte{}
	}
	return k.id
}

// RestoreKey reconstructs a key credential that was previously surrendered
// into a custody record. Only the state arena should call this.
func RestoreKey(id [32]byte) *Key {
	return &Key{id: id}
}

// Lock binds exactly one asset to one unlocking credential. Once opened (or
// surrendered into custody) the handle is consumed and cannot be reused.
type Lock[T Value] struct {
	id       [32]byte
	keyID    [32]byte
	contents T
	consumed bool
}

// New wraps the asset in a fresh lock paired 1:1 with a fresh key. The only
// way to recover the asset is to present the returned key.
func New[T Value](src IDSource, asset T) (*Lock[T], *Key) {
	if src == nil {
		src = randomIDSource{}
	}
	keyID := src.NewID()
	return &Lock[T]{
		id:       src.NewID(),
		keyID:    keyID,
		contents: asset,
	}, &Key{id: keyID}
}

// ID returns the lock instance identifier. Re-locking an asset always yields
// a new lock id, which is what makes substitution observable.
func (l *Lock[T]) ID() [32]byte {
	if l == nil {
		return [32]byte{}
	}
	return l.id
}

// KeyID returns the identifier of the one key able to open this lock.
func (l *Lock[T]) KeyID() [32]byte {
	if l == nil {
		return [32]byte{}
	}
	return l.keyID
}

// Open extracts the asset by presenting the paired key, consuming both the
// lock and the key. There is no inspect-without-consuming path.
func (l *Lock[T]) Open(k *Key) (T, error) {
	var zero T
	if l == nil || l.consumed {
		return zero, ErrLockConsumed
	}
	if k == nil || k.spent {
		return zero, ErrKeySpent
	}
	if k.id != l.keyID {
		return zero, ErrKeyMismatch
	}
	l.consumed = true
	k.spent = true
	return l.contents, nil
}

// Custody is the persistable form of a locked asset held by an escrow
// record. The contents stay bound to the key id; rehydrating through
// FromCustody preserves the unlock discipline.
type Custody[T Value] struct {
	LockID   [32]byte
	KeyID    [32]byte
	Contents T
}

// IntoCustody surrenders the lock to an escrow record, consuming the
// in-memory handle so it cannot also be opened.
func (l *Lock[T]) IntoCustody() (Custody[T], error) {
	if l == nil || l.consumed {
		return Custody[T]{}, ErrLockConsumed
	}
	l.consumed = true
	return Custody[T]{LockID: l.id, KeyID: l.keyID, Contents: l.contents}, nil
}

// IntoCustody surrenders the key to an escrow record, consuming the handle.
func (k *Key) IntoCustody() ([32]byte, error) {
	if k == nil || k.spent {
		return [32]byte{}, ErrKeySpent
	}
	k.spent = true
	return k.id, nil
}

// Surrender consumes a lock and its accompanying key into custody form as a
// unit: if either handle was already used, the other is left intact, so a
// rejected deposit never half-spends the pair.
func Surrender[T Value](l *Lock[T], k *Key) (Custody[T], [32]byte, error) {
	if l == nil || l.consumed {
		return Custody[T]{}, [32]byte{}, ErrLockConsumed
	}
	if k == nil || k.spent {
		return Custody[T]{}, [32]byte{}, ErrKeySpent
	}
	custody, _ := l.IntoCustody()
	keyID, _ := k.IntoCustody()
	return custody, keyID, nil
}

// FromCustody rehydrates a lock previously surrendered to a record. Only the
// state arena should call this; the record's atomic consumption is what
// prevents the same custody from being rehydrated twice.
func FromCustody[T Value](c Custody[T]) *Lock[T] {
	return &Lock[T]{id: c.LockID, keyID: c.KeyID, contents: c.Contents}
}
