package chain

import (
	"os"
	"path/filepath"
	"testing"

	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

func newTestPebbleRepository(t *testing.T) (*PebbleRepository, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "chain-pebble-test-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}

	p := packer.New()
	if err := xyocrypto.RegisterAll(p); err != nil {
		t.Fatalf("register xyocrypto: %v", err)
	}
	if err := heuristic.RegisterAll(p); err != nil {
		t.Fatalf("register heuristic: %v", err)
	}

	r, err := NewPebbleRepository(filepath.Join(dir, "db"), p)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("new pebble repository: %v", err)
	}

	return r, func() {
		r.Close()
		os.RemoveAll(dir)
	}
}

func TestPebbleRepositoryGenesisStateIsEmpty(t *testing.T) {
	r, cleanup := newTestPebbleRepository(t)
	defer cleanup()

	index, err := r.GetIndex()
	if err != nil || index != 0 {
		t.Fatalf("expected index 0, got %d, err %v", index, err)
	}

	_, ok, err := r.GetPreviousHash()
	if err != nil || ok {
		t.Fatalf("expected no previous hash, ok=%v err=%v", ok, err)
	}
}

func TestPebbleRepositorySignerRotationPersists(t *testing.T) {
	r, cleanup := newTestPebbleRepository(t)
	defer cleanup()

	genesis := newKey(t)
	waiting := newKey(t)

	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	if err := r.AddSigner(waiting); err != nil {
		t.Fatalf("add signer: %v", err)
	}

	h := xyocrypto.Hash{Algorithm: xyocrypto.AlgBlake3, Bytes: []byte{9, 9, 9}}
	if err := r.UpdateOriginChainState(h); err != nil {
		t.Fatalf("update state: %v", err)
	}

	signers, err := r.GetSigners()
	if err != nil {
		t.Fatalf("get signers: %v", err)
	}

	if len(signers) != 2 || !signers[0].Equal(genesis) || !signers[1].Equal(waiting) {
		t.Fatalf("unexpected signers after rotation: %v", signers)
	}

	index, err := r.GetIndex()
	if err != nil || index != 1 {
		t.Fatalf("expected index 1, got %d, err %v", index, err)
	}

	prevHash, ok, err := r.GetPreviousHash()
	if err != nil || !ok || !prevHash.Equal(h) {
		t.Fatalf("previous hash not persisted: got %v ok %v err %v", prevHash, ok, err)
	}
}

func TestPebbleRepositoryGenesisSignerNeverRemoved(t *testing.T) {
	r, cleanup := newTestPebbleRepository(t)
	defer cleanup()

	genesis := newKey(t)
	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	if err := r.RemoveOldestSigner(); err != ErrNoRotatableSigners {
		t.Fatalf("expected ErrNoRotatableSigners, got %v", err)
	}
}

func TestPebbleRepositoryBlockRoundTrip(t *testing.T) {
	r, cleanup := newTestPebbleRepository(t)
	defer cleanup()

	block := []byte("a serialized bound witness block, pretend bytes")

	if err := r.PutBlock(7, block); err != nil {
		t.Fatalf("put block: %v", err)
	}

	got, ok, err := r.GetBlock(7)
	if err != nil || !ok {
		t.Fatalf("get block: ok=%v err=%v", ok, err)
	}

	if string(got) != string(block) {
		t.Errorf("block round trip mismatch: got %q, want %q", got, block)
	}

	_, ok, err = r.GetBlock(8)
	if err != nil {
		t.Fatalf("get missing block: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a block never stored")
	}
}
