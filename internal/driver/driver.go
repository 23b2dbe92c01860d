package driver

import (
	"fmt"
	"sync"
	"sync/atomic"

	"xyonode/internal/boundwitness"
	"xyonode/internal/packer"
	"xyonode/internal/zigzag"
)

// RunInitiator drives the initiator's (A's) side of a negotiation over
// pipe to completion: steps 1 and 3 of spec.md §4.3's protocol. It
// registers the disconnect handler first, as spec.md §4.4 requires, so a
// disconnect at any awaited send resolves with ErrPeerDisconnected instead
// of hanging.
func RunInitiator(pipe Pipe, assembler *zigzag.Assembler, p *packer.Packer) (*boundwitness.BoundWitness, error) {
	defer pipe.Close()

	var disconnected atomic.Bool
	unregister := pipe.OnPeerDisconnect(func() { disconnected.Store(true) })
	defer unregister()

	t1, err := assembler.IncomingData(nil, false)
	if err != nil {
		return nil, fmt.Errorf("driver: step1: %w", err)
	}

	encoded1, err := zigzag.EncodeTransfer(p, t1)
	if err != nil {
		return nil, fmt.Errorf("driver: encode transfer1: %w", err)
	}

	framed1 := prependCatalogueHeader(BitBoundWitness, encoded1)

	respBytes, err := sendAwaiting(pipe, framed1)
	if err != nil {
		return nil, err
	}

	transfer2, err := zigzag.DecodeTransfer(p, respBytes)
	if err != nil {
		return nil, fmt.Errorf("driver: decode transfer2: %w", err)
	}

	t3, err := assembler.IncomingData(transfer2, false)
	if err != nil {
		return nil, fmt.Errorf("driver: step3: %w", err)
	}

	encoded3, err := zigzag.EncodeTransfer(p, t3)
	if err != nil {
		return nil, fmt.Errorf("driver: encode transfer3: %w", err)
	}

	if disconnected.Load() {
		return nil, ErrPeerDisconnected
	}

	if _, err := pipe.Send(encoded3, false); err != nil {
		if disconnected.Load() {
			return nil, ErrPeerDisconnected
		}
		return nil, fmt.Errorf("driver: send transfer3: %w", err)
	}

	block, ok := assembler.Block()
	if !ok {
		return nil, fmt.Errorf("driver: assembler completed without a block")
	}

	return block, nil
}

// HandleFirstMessage drives the responder's (B's) bidi-stream half of the
// negotiation, per step 2 of spec.md §4.3: strip the catalogue header from
// the first inbound message, integrate it, and return the encoded response
// transfer for the caller to send back on the same request/response cycle.
func HandleFirstMessage(assembler *zigzag.Assembler, p *packer.Packer, message1 []byte) ([]byte, error) {
	_, rest, err := splitCatalogueHeader(message1)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}

	transfer1, err := zigzag.DecodeTransfer(p, rest)
	if err != nil {
		return nil, fmt.Errorf("driver: decode transfer1: %w", err)
	}

	t2, err := assembler.IncomingData(transfer1, true)
	if err != nil {
		return nil, fmt.Errorf("driver: step2: %w", err)
	}

	encoded2, err := zigzag.EncodeTransfer(p, t2)
	if err != nil {
		return nil, fmt.Errorf("driver: encode transfer2: %w", err)
	}

	return encoded2, nil
}

// HandleFinalMessage drives the responder's uni-stream half of the
// negotiation, per step 4: integrate the initiator's final signatures and
// finalize the block. There is nothing left to send back.
func HandleFinalMessage(assembler *zigzag.Assembler, p *packer.Packer, message3 []byte) (*boundwitness.BoundWitness, error) {
	transfer3, err := zigzag.DecodeTransfer(p, message3)
	if err != nil {
		return nil, fmt.Errorf("driver: decode transfer3: %w", err)
	}

	if _, err := assembler.IncomingData(transfer3, false); err != nil {
		return nil, fmt.Errorf("driver: step4: %w", err)
	}

	block, ok := assembler.Block()
	if !ok {
		return nil, fmt.Errorf("driver: assembler completed without a block")
	}

	return block, nil
}

// sendAwaiting sends data and waits for the response, racing the pipe's
// disconnect callback so a disconnect while the send is outstanding
// resolves with ErrPeerDisconnected instead of blocking forever.
func sendAwaiting(pipe Pipe, data []byte) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultCh := make(chan result, 1)
	disconnectCh := make(chan struct{})

	var once sync.Once
	unregister := pipe.OnPeerDisconnect(func() { once.Do(func() { close(disconnectCh) }) })
	defer unregister()

	go func() {
		data, err := pipe.Send(data, true)
		resultCh <- result{data: data, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.data, r.err
	case <-disconnectCh:
		return nil, ErrPeerDisconnected
	}
}
