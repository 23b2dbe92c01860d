// Package zigzag implements the three-message negotiation state machine
// two peers drive to produce a co-signed BoundWitness (spec.md §4.3): the
// initiator opens with its public keys and payloads and no signatures, the
// responder integrates it and signs, and the initiator closes the loop
// with its own signature.
package zigzag

import (
	"fmt"

	"xyonode/internal/boundwitness"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
)

// Phase is the assembler's position in the negotiation.
type Phase int

const (
	P0 Phase = iota
	P1
	P2
	Done
)

func (p Phase) String() string {
	switch p {
	case P0:
		return "P0"
	case P1:
		return "P1"
	case P2:
		return "P2"
	case Done:
		return "Done"
	default:
		return "unknown"
	}
}

// Transfer is the message exchanged between the two peers at each step: the
// ordered lists integrated so far, growing monotonically across the
// exchange. A nil field means "nothing new to integrate on this axis".
type Transfer struct {
	PublicKeys []xyocrypto.PublicKey
	Payloads   []boundwitness.Payload
	Signatures []xyocrypto.Signature
}

// Assembler drives one peer's side of a single negotiation. It supports
// exactly two participants, per spec.md's Design Note restricting the
// zig-zag to the two-party case.
type Assembler struct {
	packer  *packer.Packer
	signers []xyocrypto.Signer
	payload boundwitness.Payload

	phase Phase

	publicKeys []xyocrypto.PublicKey
	payloads   []boundwitness.Payload
	signatures []xyocrypto.Signature

	ownStart int // index into publicKeys/payloads/signatures where this peer's own contributions begin
	ownCount int

	signingData []byte
	block       *boundwitness.BoundWitness
}

// NewAssembler builds an assembler for one peer, contributing signers (one
// public key + signature per entry) and a single shared payload.
func NewAssembler(p *packer.Packer, signers []xyocrypto.Signer, payload boundwitness.Payload) *Assembler {
	return &Assembler{packer: p, signers: signers, payload: payload}
}

// Phase reports the assembler's current phase.
func (a *Assembler) Phase() Phase { return a.phase }

// Block returns the assembled BoundWitness once the assembler has reached
// Done, and reports whether one is available.
func (a *Assembler) Block() (*boundwitness.BoundWitness, bool) {
	return a.block, a.block != nil
}

func (a *Assembler) localPublicKeys() []xyocrypto.PublicKey {
	keys := make([]xyocrypto.PublicKey, len(a.signers))
	for i, s := range a.signers {
		keys[i] = s.PublicKey()
	}

	return keys
}

func (a *Assembler) localPayloads() []boundwitness.Payload {
	payloads := make([]boundwitness.Payload, len(a.signers))
	for i := range a.signers {
		payloads[i] = a.payload
	}

	return payloads
}

func (a *Assembler) sign(signingData []byte) ([]xyocrypto.Signature, error) {
	sigs := make([]xyocrypto.Signature, len(a.signers))

	for i, s := range a.signers {
		sig, err := s.Sign(signingData)
		if err != nil {
			return nil, fmt.Errorf("sign: %w", err)
		}

		sigs[i] = sig
	}

	return sigs, nil
}

// IncomingData advances the state machine with data received from the
// peer, or nil for the initiator's opening call. endPoint marks the call
// that must integrate-and-sign in a single step (the responder's first
// call). It returns the transfer to send onward, or nil when nothing more
// needs to be sent.
func (a *Assembler) IncomingData(transfer *Transfer, endPoint bool) (*Transfer, error) {
	switch a.phase {
	case P0:
		if transfer == nil {
			return a.stepInitiatorOpen(endPoint)
		}
		return a.stepResponderIntegrateAndSign(transfer, endPoint)

	case P1:
		return a.stepInitiatorClose(transfer, endPoint)

	case P2:
		return a.stepResponderClose(transfer, endPoint)

	case Done:
		return nil, aborted("assembler already complete")

	default:
		return nil, aborted("unknown phase %v", a.phase)
	}
}

// stepInitiatorOpen is step 1: A.incoming_data(None, false).
func (a *Assembler) stepInitiatorOpen(endPoint bool) (*Transfer, error) {
	if endPoint {
		return nil, aborted("initiator's opening call must have endPoint=false")
	}

	a.publicKeys = a.localPublicKeys()
	a.payloads = a.localPayloads()
	a.signatures = make([]xyocrypto.Signature, len(a.signers))
	a.ownStart = 0
	a.ownCount = len(a.signers)
	a.phase = P1

	return &Transfer{
		PublicKeys: append([]xyocrypto.PublicKey(nil), a.publicKeys...),
		Payloads:   append([]boundwitness.Payload(nil), a.payloads...),
	}, nil
}

// stepResponderIntegrateAndSign is step 2: B.incoming_data(transfer1, true).
func (a *Assembler) stepResponderIntegrateAndSign(transfer *Transfer, endPoint bool) (*Transfer, error) {
	if !endPoint {
		return nil, aborted("responder's first call must have endPoint=true")
	}

	if len(transfer.PublicKeys) != len(transfer.Payloads) {
		return nil, aborted("transfer1: public key / payload length mismatch")
	}

	if len(transfer.Signatures) != 0 {
		return nil, aborted("transfer1: unexpected signatures before anyone has signed")
	}

	a.ownStart = len(transfer.PublicKeys)
	a.ownCount = len(a.signers)

	a.publicKeys = append(append([]xyocrypto.PublicKey(nil), transfer.PublicKeys...), a.localPublicKeys()...)
	a.payloads = append(append([]boundwitness.Payload(nil), transfer.Payloads...), a.localPayloads()...)

	signingData, err := a.computeSigningData()
	if err != nil {
		return nil, err
	}
	a.signingData = signingData

	ownSigs, err := a.sign(signingData)
	if err != nil {
		return nil, err
	}

	a.signatures = make([]xyocrypto.Signature, len(a.publicKeys))
	copy(a.signatures[a.ownStart:], ownSigs)

	a.phase = P2

	return &Transfer{
		PublicKeys: append([]xyocrypto.PublicKey(nil), a.publicKeys...),
		Payloads:   append([]boundwitness.Payload(nil), a.payloads...),
		Signatures: ownSigs,
	}, nil
}

// stepInitiatorClose is step 3: A.incoming_data(transfer2, false).
func (a *Assembler) stepInitiatorClose(transfer *Transfer, endPoint bool) (*Transfer, error) {
	if endPoint {
		return nil, aborted("initiator's closing call must have endPoint=false")
	}

	if transfer == nil {
		return nil, aborted("transfer2: expected data, got none")
	}

	if len(transfer.PublicKeys) != len(transfer.Payloads) {
		return nil, aborted("transfer2: public key / payload length mismatch")
	}

	if len(transfer.PublicKeys) <= a.ownCount {
		return nil, aborted("transfer2: no new public keys integrated")
	}

	if !samePrefix(transfer.PublicKeys[:a.ownCount], a.publicKeys) {
		return nil, aborted("transfer2: does not extend our own contribution")
	}

	otherCount := len(transfer.PublicKeys) - a.ownCount
	if len(transfer.Signatures) != otherCount {
		return nil, aborted("transfer2: expected %d signatures, got %d", otherCount, len(transfer.Signatures))
	}

	a.publicKeys = append([]xyocrypto.PublicKey(nil), transfer.PublicKeys...)
	a.payloads = append([]boundwitness.Payload(nil), transfer.Payloads...)

	signingData, err := a.computeSigningData()
	if err != nil {
		return nil, err
	}
	a.signingData = signingData

	for i, sig := range transfer.Signatures {
		idx := a.ownCount + i
		if !a.publicKeys[idx].Verify(signingData, sig) {
			return nil, aborted("transfer2: signature %d does not verify", idx)
		}
	}

	ownSigs, err := a.sign(signingData)
	if err != nil {
		return nil, err
	}

	a.signatures = make([]xyocrypto.Signature, len(a.publicKeys))
	copy(a.signatures[:a.ownCount], ownSigs)
	copy(a.signatures[a.ownCount:], transfer.Signatures)

	if err := a.assemble(); err != nil {
		return nil, err
	}

	a.phase = Done

	return &Transfer{Signatures: ownSigs}, nil
}

// stepResponderClose is step 4: B.incoming_data(transfer3, false). Purely
// local finalization; nothing is sent onward.
func (a *Assembler) stepResponderClose(transfer *Transfer, endPoint bool) (*Transfer, error) {
	if endPoint {
		return nil, aborted("responder's closing call must have endPoint=false")
	}

	if transfer == nil {
		return nil, aborted("transfer3: expected data, got none")
	}

	if len(transfer.Signatures) != a.ownStart {
		return nil, aborted("transfer3: expected %d signatures, got %d", a.ownStart, len(transfer.Signatures))
	}

	for i, sig := range transfer.Signatures {
		if !a.publicKeys[i].Verify(a.signingData, sig) {
			return nil, aborted("transfer3: signature %d does not verify", i)
		}
	}

	copy(a.signatures[:a.ownStart], transfer.Signatures)

	if err := a.assemble(); err != nil {
		return nil, err
	}

	a.phase = Done

	return nil, nil
}

func (a *Assembler) computeSigningData() ([]byte, error) {
	signedByParticipant := make([][]packer.TypedValue, len(a.payloads))
	for i, payload := range a.payloads {
		signedByParticipant[i] = payload.SignedHeuristics
	}

	return boundwitness.SigningData(a.packer, a.publicKeys, signedByParticipant)
}

func (a *Assembler) assemble() error {
	block := &boundwitness.BoundWitness{
		PublicKeys: a.publicKeys,
		Payloads:   a.payloads,
		Signatures: a.signatures,
	}

	if err := block.Validate(a.packer); err != nil {
		return aborted("assembled block failed validation: %v", err)
	}

	a.block = block

	return nil
}

func samePrefix(prefix, keys []xyocrypto.PublicKey) bool {
	if len(prefix) > len(keys) {
		return false
	}

	for i, k := range prefix {
		if !k.Equal(keys[i]) {
			return false
		}
	}

	return true
}
