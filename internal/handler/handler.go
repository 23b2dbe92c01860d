// Package handler glues an origin-chain repository, a local payload
// provider, and the zig-zag driver together into the single operation a
// node runs to complete one bound-witness negotiation and, on success,
// advance its own chain (spec.md §4.6).
package handler

import (
	"fmt"

	"xyonode/internal/boundwitness"
	"xyonode/internal/chain"
	"xyonode/internal/driver"
	"xyonode/internal/heuristic"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
	"xyonode/internal/zigzag"
)

// OriginState is the snapshot of chain continuity a PayloadProvider builds
// its contribution against.
type OriginState struct {
	Index           uint64
	PreviousHash    xyocrypto.Hash
	HasPreviousHash bool
}

// PayloadProvider builds the local, domain-specific half of a payload
// (custom heuristics, RSSI, timestamps, bridged blocks, and so on) given
// the current chain state. Handler.Handle prepends the chain-bookkeeping
// heuristics (ChainIndex, PreviousHash, any staged NextPublicKey
// commitment) itself, so a provider need not duplicate them.
type PayloadProvider func(state OriginState) boundwitness.Payload

// SuccessListener is notified once a negotiation completes and the block
// has been hashed, before the repository is advanced.
type SuccessListener interface {
	OnBoundWitnessSuccess(block *boundwitness.BoundWitness)
}

// Handler runs one side of a bound-witness negotiation for a single peer
// session. Signers must correspond, in order, to Repository.GetSigners();
// the repository tracks public commitments only and holds no private key
// material.
type Handler struct {
	Repository      chain.Repository
	Signers         []xyocrypto.Signer
	PayloadProvider PayloadProvider
	Packer          *packer.Packer
	Hasher          xyocrypto.Hasher
	Listeners       []SuccessListener
}

// Handle runs the negotiation over pipe as the initiating side. On
// success it notifies every listener and advances the repository; on
// failure the repository is left untouched (spec.md §4.6, §7).
func (h *Handler) Handle(pipe driver.Pipe) error {
	payload, err := h.buildPayload()
	if err != nil {
		return fmt.Errorf("handler: build payload: %w", err)
	}

	assembler := zigzag.NewAssembler(h.Packer, h.Signers, payload)

	block, err := driver.RunInitiator(pipe, assembler, h.Packer)
	if err != nil {
		return fmt.Errorf("handler: negotiation: %w", err)
	}

	encoded, err := h.Packer.Serialize(block, boundwitness.MajorBoundWitness, boundwitness.MinorBoundWitness, packer.Typed)
	if err != nil {
		return fmt.Errorf("handler: hash block: %w", err)
	}
	hash := h.Hasher.Hash(encoded)

	for _, listener := range h.Listeners {
		listener.OnBoundWitnessSuccess(block)
	}

	if err := h.Repository.UpdateOriginChainState(hash); err != nil {
		return fmt.Errorf("handler: update origin chain state: %w", err)
	}

	return nil
}

func (h *Handler) buildPayload() (boundwitness.Payload, error) {
	index, err := h.Repository.GetIndex()
	if err != nil {
		return boundwitness.Payload{}, fmt.Errorf("get index: %w", err)
	}

	previousHash, hasPrevious, err := h.Repository.GetPreviousHash()
	if err != nil {
		return boundwitness.Payload{}, fmt.Errorf("get previous hash: %w", err)
	}

	nextPublicKey, hasNext, err := h.Repository.GetNextPublicKey()
	if err != nil {
		return boundwitness.Payload{}, fmt.Errorf("get next public key: %w", err)
	}

	state := OriginState{Index: index, PreviousHash: previousHash, HasPreviousHash: hasPrevious}
	payload := h.PayloadProvider(state)

	bookkeeping := []packer.TypedValue{
		{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(index)},
	}
	if hasPrevious {
		bookkeeping = append(bookkeeping, packer.TypedValue{
			Major: heuristic.MajorHeuristic, Minor: heuristic.MinorPreviousHash, Value: heuristic.PreviousHash(previousHash),
		})
	}
	if hasNext {
		bookkeeping = append(bookkeeping, packer.TypedValue{
			Major: heuristic.MajorHeuristic, Minor: heuristic.MinorNextPublicKey,
			Value: heuristic.NextPublicKey{Algorithm: nextPublicKey.Algorithm(), Bytes: nextPublicKey.Bytes()},
		})
	}

	payload.SignedHeuristics = append(bookkeeping, payload.SignedHeuristics...)

	return payload, nil
}
