package lock

import (
	"errors"
	"math/big"
	"testing"

	"tradelock/core/types"
)

type seqIDSource struct {
	next byte
}

func (s *seqIDSource) NewID() [32]byte {
	s.next++
	var id [32]byte
	id[0] = s.next
	return id
}

func testAsset(fill byte) types.Asset {
	var id [32]byte
	id[31] = fill
	return types.Asset{ID: id, Denom: "relic", Amount: big.NewInt(1)}
}

func TestOpenRoundTrip(t *testing.T) {
	src := &seqIDSource{}
	asset := testAsset(0x07)
	lk, key := New(src, asset)

	if lk.KeyID() != key.ID() {
		t.Fatalf("lock key id %x does not match key %x", lk.KeyID(), key.ID())
	}
	got, err := lk.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.ID != asset.ID || got.Denom != asset.Denom {
		t.Fatalf("asset changed through lock round-trip: %+v", got)
	}
	if got.Quantity().Cmp(asset.Amount) != 0 {
		t.Fatalf("amount changed through lock round-trip: %s", got.Quantity())
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	src := &seqIDSource{}
	lk, _ := New(src, testAsset(0x01))
	_, wrongKey := New(src, testAsset(0x02))

	if _, err := lk.Open(wrongKey); !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
}

func TestOpenConsumesLockAndKey(t *testing.T) {
	lk, key := New(&seqIDSource{}, testAsset(0x03))
	if _, err := lk.Open(key); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := lk.Open(key); !errors.Is(err, ErrLockConsumed) {
		t.Fatalf("expected ErrLockConsumed on reuse, got %v", err)
	}
	other, _ := New(&seqIDSource{next: 0x40}, testAsset(0x04))
	if _, err := other.Open(key); !errors.Is(err, ErrKeySpent) {
		t.Fatalf("expected ErrKeySpent on spent key, got %v", err)
	}
}

func TestRelockChangesIdentity(t *testing.T) {
	src := &seqIDSource{}
	asset := testAsset(0x05)
	first, firstKey := New(src, asset)
	firstLockID, firstKeyID := first.ID(), first.KeyID()

	reclaimed, err := first.Open(firstKey)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, _ := New(src, reclaimed)
	if second.ID() == firstLockID {
		t.Fatalf("re-lock reused lock id")
	}
	if second.KeyID() == firstKeyID {
		t.Fatalf("re-lock reused key id")
	}
}

func TestCustodyRoundTrip(t *testing.T) {
	src := &seqIDSource{}
	asset := testAsset(0x06)
	lk, key := New(src, asset)

	custody, err := lk.IntoCustody()
	if err != nil {
		t.Fatalf("into custody: %v", err)
	}
	if _, err := lk.Open(key); !errors.Is(err, ErrLockConsumed) {
		t.Fatalf("expected surrendered lock to be consumed, got %v", err)
	}
	keyID, err := key.IntoCustody()
	if err != nil {
		t.Fatalf("key into custody: %v", err)
	}

	restored := FromCustody(custody)
	got, err := restored.Open(RestoreKey(keyID))
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	if got.ID != asset.ID {
		t.Fatalf("asset changed through custody round-trip")
	}
}

func TestSurrenderConsumesPairAsUnit(t *testing.T) {
	src := &seqIDSource{}
	lk, key := New(src, testAsset(0x08))

	custody, keyID, err := Surrender(lk, key)
	if err != nil {
		t.Fatalf("surrender: %v", err)
	}
	if keyID != custody.KeyID {
		t.Fatalf("surrendered key id %x does not match custody %x", keyID, custody.KeyID)
	}
	if _, err := lk.Open(key); !errors.Is(err, ErrLockConsumed) {
		t.Fatalf("expected surrendered pair consumed, got %v", err)
	}
}

func TestSurrenderLeavesPartnerIntactOnFailure(t *testing.T) {
	src := &seqIDSource{}

	// Spent key: the fresh lock must stay usable.
	lk, _ := New(src, testAsset(0x09))
	spentLock, spentKey := New(src, testAsset(0x0A))
	if _, err := spentLock.Open(spentKey); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, _, err := Surrender(lk, spentKey); !errors.Is(err, ErrKeySpent) {
		t.Fatalf("expected ErrKeySpent, got %v", err)
	}
	if _, err := lk.IntoCustody(); err != nil {
		t.Fatalf("lock must survive a failed surrender: %v", err)
	}

	// Consumed lock: the fresh key must stay usable.
	fresh, freshKey := New(src, testAsset(0x0B))
	if _, err := fresh.Open(freshKey); err != nil {
		t.Fatalf("open: %v", err)
	}
	other, otherKey := New(src, testAsset(0x0C))
	if _, _, err := Surrender(fresh, otherKey); !errors.Is(err, ErrLockConsumed) {
		t.Fatalf("expected ErrLockConsumed, got %v", err)
	}
	if _, err := other.Open(otherKey); err != nil {
		t.Fatalf("key must survive a failed surrender: %v", err)
	}
}

func TestRandomIDSourceUniqueness(t *testing.T) {
	src := NewRandomIDSource()
	seen := make(map[[32]byte]bool)
	for i := 0; i < 64; i++ {
		id := src.NewID()
		if seen[id] {
			t.Fatalf("duplicate id from random source")
		}
		seen[id] = true
	}
}
