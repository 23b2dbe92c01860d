package chain

import (
	"testing"

	"xyonode/internal/xyocrypto"
)

func newKey(t *testing.T) xyocrypto.PublicKey {
	t.Helper()

	s, err := xyocrypto.NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	return s.PublicKey()
}

func TestGenesisStateIsEmpty(t *testing.T) {
	r := NewMemRepository()

	index, err := r.GetIndex()
	if err != nil || index != 0 {
		t.Fatalf("expected index 0, got %d, err %v", index, err)
	}

	_, ok, err := r.GetPreviousHash()
	if err != nil || ok {
		t.Fatalf("expected no previous hash at genesis, ok=%v err=%v", ok, err)
	}

	_, ok, err = r.GetGenesisSigner()
	if err != nil || ok {
		t.Fatalf("expected no genesis signer before one is set, ok=%v err=%v", ok, err)
	}
}

func TestUpdateOriginChainStateIncrementsIndex(t *testing.T) {
	r := NewMemRepository()
	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{newKey(t)}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	const rounds = 5
	for i := 0; i < rounds; i++ {
		h := xyocrypto.Hash{Algorithm: xyocrypto.AlgBlake3, Bytes: []byte{byte(i)}}
		if err := r.UpdateOriginChainState(h); err != nil {
			t.Fatalf("update state: %v", err)
		}
	}

	index, err := r.GetIndex()
	if err != nil {
		t.Fatalf("get index: %v", err)
	}

	if index != rounds {
		t.Errorf("index = %d, want %d", index, rounds)
	}

	_, ok, err := r.GetPreviousHash()
	if err != nil || !ok {
		t.Fatalf("expected previous hash set, ok=%v err=%v", ok, err)
	}
}

func TestGenesisSignerNeverRemoved(t *testing.T) {
	r := NewMemRepository()
	genesis := newKey(t)

	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	if err := r.RemoveOldestSigner(); err != ErrNoRotatableSigners {
		t.Fatalf("expected ErrNoRotatableSigners with only genesis present, got %v", err)
	}

	signers, err := r.GetSigners()
	if err != nil {
		t.Fatalf("get signers: %v", err)
	}

	if len(signers) != 1 || !signers[0].Equal(genesis) {
		t.Fatalf("genesis signer should be untouched, got %v", signers)
	}
}

func TestRemoveOldestSignerKeepsGenesis(t *testing.T) {
	r := NewMemRepository()
	genesis := newKey(t)
	second := newKey(t)
	third := newKey(t)

	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis, second, third}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	if err := r.RemoveOldestSigner(); err != nil {
		t.Fatalf("remove oldest signer: %v", err)
	}

	signers, err := r.GetSigners()
	if err != nil {
		t.Fatalf("get signers: %v", err)
	}

	if len(signers) != 2 || !signers[0].Equal(genesis) || !signers[1].Equal(third) {
		t.Fatalf("unexpected signer set after removal: %v", signers)
	}
}

func TestSetCurrentSignersLeavesWaitingAndNextKeyUntouched(t *testing.T) {
	r := NewMemRepository()
	genesis := newKey(t)
	waiting := newKey(t)
	nextKey := newKey(t)

	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	if err := r.AddSigner(waiting); err != nil {
		t.Fatalf("add signer: %v", err)
	}

	if err := r.SetNextPublicKey(nextKey); err != nil {
		t.Fatalf("set next public key: %v", err)
	}

	// A second SetCurrentSigners call, as for a recovery/bootstrap replay,
	// must not disturb waiting_signers or next_public_key.
	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis}); err != nil {
		t.Fatalf("set current signers again: %v", err)
	}

	waitingSigners, err := r.GetWaitingSigners()
	if err != nil || len(waitingSigners) != 1 || !waitingSigners[0].Equal(waiting) {
		t.Fatalf("waiting signers disturbed: %v, err %v", waitingSigners, err)
	}

	got, ok, err := r.GetNextPublicKey()
	if err != nil || !ok || !got.Equal(nextKey) {
		t.Fatalf("next public key disturbed: got %v ok %v err %v", got, ok, err)
	}
}

func TestUpdateOriginChainStateDrainsWaitingSigner(t *testing.T) {
	r := NewMemRepository()
	genesis := newKey(t)
	waiting := newKey(t)

	if err := r.SetCurrentSigners([]xyocrypto.PublicKey{genesis}); err != nil {
		t.Fatalf("set current signers: %v", err)
	}

	if err := r.AddSigner(waiting); err != nil {
		t.Fatalf("add signer: %v", err)
	}

	if err := r.SetNextPublicKey(newKey(t)); err != nil {
		t.Fatalf("set next public key: %v", err)
	}

	h := xyocrypto.Hash{Algorithm: xyocrypto.AlgBlake3, Bytes: []byte{1, 2, 3}}
	if err := r.UpdateOriginChainState(h); err != nil {
		t.Fatalf("update state: %v", err)
	}

	signers, err := r.GetSigners()
	if err != nil || len(signers) != 2 || !signers[1].Equal(waiting) {
		t.Fatalf("waiting signer not drained into current signers: %v, err %v", signers, err)
	}

	stillWaiting, err := r.GetWaitingSigners()
	if err != nil || len(stillWaiting) != 0 {
		t.Fatalf("waiting queue should be empty after drain: %v, err %v", stillWaiting, err)
	}

	_, ok, err := r.GetNextPublicKey()
	if err != nil || ok {
		t.Fatalf("next public key should be cleared after update, ok=%v err=%v", ok, err)
	}
}
