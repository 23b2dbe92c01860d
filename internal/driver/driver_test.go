package driver

import (
	"sync"
	"testing"

	"xyonode/internal/boundwitness"
	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
	"xyonode/internal/zigzag"
)

// memPipe is a test-only in-memory Pipe. Send hands data directly to a
// paired responder function and returns its result; it does not model
// real network latency or concurrency hazards beyond a disconnect flag.
type memPipe struct {
	mu            sync.Mutex
	disconnected  bool
	disconnectCBs []func()
	respond       func(data []byte, awaitResponse bool) ([]byte, error)
}

func (m *memPipe) Send(data []byte, awaitResponse bool) ([]byte, error) {
	return m.respond(data, awaitResponse)
}

func (m *memPipe) OnPeerDisconnect(cb func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectCBs = append(m.disconnectCBs, cb)
	idx := len(m.disconnectCBs) - 1

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.disconnectCBs[idx] = nil
	}
}

func (m *memPipe) disconnect() {
	m.mu.Lock()
	cbs := append([]func(){}, m.disconnectCBs...)
	m.mu.Unlock()

	for _, cb := range cbs {
		if cb != nil {
			cb()
		}
	}
}

func (m *memPipe) Close() error { return nil }

func newTestPacker(t *testing.T) *packer.Packer {
	t.Helper()

	p := packer.New()
	if err := xyocrypto.RegisterAll(p); err != nil {
		t.Fatalf("register xyocrypto: %v", err)
	}
	if err := heuristic.RegisterAll(p); err != nil {
		t.Fatalf("register heuristic: %v", err)
	}
	if err := boundwitness.RegisterAll(p); err != nil {
		t.Fatalf("register boundwitness: %v", err)
	}

	return p
}

func newTestSigner(t *testing.T) xyocrypto.Signer {
	t.Helper()

	s, err := xyocrypto.NewEd25519Signer()
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	return s
}

func TestRunInitiatorAndResponderProduceSameBlock(t *testing.T) {
	p := newTestPacker(t)

	aPayload := boundwitness.Payload{SignedHeuristics: []packer.TypedValue{
		{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(0)},
	}}
	bPayload := boundwitness.Payload{SignedHeuristics: []packer.TypedValue{
		{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(0)},
	}}

	a := zigzag.NewAssembler(p, []xyocrypto.Signer{newTestSigner(t)}, aPayload)
	b := zigzag.NewAssembler(p, []xyocrypto.Signer{newTestSigner(t)}, bPayload)

	var bBlock *boundwitness.BoundWitness

	pipe := &memPipe{}
	pipe.respond = func(data []byte, awaitResponse bool) ([]byte, error) {
		if awaitResponse {
			resp, err := HandleFirstMessage(b, p, data)
			if err != nil {
				t.Fatalf("HandleFirstMessage: %v", err)
			}
			return resp, nil
		}

		block, err := HandleFinalMessage(b, p, data)
		if err != nil {
			t.Fatalf("HandleFinalMessage: %v", err)
		}
		bBlock = block

		return nil, nil
	}

	aBlock, err := RunInitiator(pipe, a, p)
	if err != nil {
		t.Fatalf("RunInitiator: %v", err)
	}

	if err := aBlock.Validate(p); err != nil {
		t.Fatalf("A's block failed to validate: %v", err)
	}

	if bBlock == nil {
		t.Fatal("responder never finalized a block")
	}

	if err := bBlock.Validate(p); err != nil {
		t.Fatalf("B's block failed to validate: %v", err)
	}

	if len(aBlock.PublicKeys) != 2 || len(bBlock.PublicKeys) != 2 {
		t.Fatalf("expected 2 participants on both sides")
	}
}

func TestRunInitiatorReturnsPeerDisconnected(t *testing.T) {
	p := newTestPacker(t)
	aPayload := boundwitness.Payload{}
	a := zigzag.NewAssembler(p, []xyocrypto.Signer{newTestSigner(t)}, aPayload)

	pipe := &memPipe{}
	pipe.respond = func(data []byte, awaitResponse bool) ([]byte, error) {
		pipe.disconnect()
		select {} // never resolves on its own; disconnect must win the race
	}

	_, err := RunInitiator(pipe, a, p)
	if err != ErrPeerDisconnected {
		t.Fatalf("expected ErrPeerDisconnected, got %v", err)
	}
}
