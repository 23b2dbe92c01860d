package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xyonode/internal/boundwitness"
	"xyonode/internal/chain"
	"xyonode/internal/handler"
	"xyonode/internal/heuristic"
	"xyonode/internal/heuristicvm"
	"xyonode/internal/logger"
	"xyonode/internal/network"
	"xyonode/internal/packer"
	"xyonode/internal/xyocrypto"
	"xyonode/internal/zigzag"
)

// Node represents a running origin-chain node: a repository tracking this
// peer's own chain continuity, a network node for bound-witness
// negotiation and gossip, and the handler that runs one negotiation at a
// time end to end.
type Node struct {
	cfg *Config

	repository chain.Repository
	packer     *packer.Packer
	network    *network.Node
	handler    *handler.Handler
	podPool    *heuristicvm.Pool
	signer     xyocrypto.Signer
	blsSigner  *xyocrypto.BLSSigner
}

// NewNode creates and initializes a new node, wiring a repository, a
// packer with every codec the protocol needs, and the network node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	signer, err := xyocrypto.NewEd25519SignerFromKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	n.signer = signer

	blsSigner, err := xyocrypto.DeriveBLSFromEd25519(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("derive bls signer: %w", err)
	}
	n.blsSigner = blsSigner

	if err := n.initPacker(); err != nil {
		return nil, err
	}

	if err := n.initPodVM(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initRepository(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initNetwork(); err != nil {
		n.Close()
		return nil, err
	}

	n.handler = &handler.Handler{
		Repository:      n.repository,
		Signers:         []xyocrypto.Signer{n.signer},
		PayloadProvider: n.buildPayload,
		Packer:          n.packer,
		Hasher:          xyocrypto.Blake3Hasher{},
	}

	n.setupNetworkHandlers()

	return n, nil
}

// initPacker registers every codec the wire format needs: crypto
// primitives, the heuristic catalogue, bound witnesses, and network
// gossip types.
func (n *Node) initPacker() error {
	p := packer.New()

	for _, register := range []func(*packer.Packer) error{
		xyocrypto.RegisterAll,
		heuristic.RegisterAll,
		boundwitness.RegisterAll,
		network.RegisterAll,
	} {
		if err := register(p); err != nil {
			return fmt.Errorf("init packer: %w", err)
		}
	}

	n.packer = p

	return nil
}

// initPodVM loads an optional WASM module validating a custom heuristic.
// Absent a configured path, the pool is left empty. The node does not
// consult the pool when decoding or handling received data: no codec is
// registered for CustomHeuristic items, and nothing here calls
// Pool.Validate.
func (n *Node) initPodVM() error {
	n.podPool = heuristicvm.New()

	if n.cfg.HeuristicPodPath == "" {
		return nil
	}

	wasmBytes, err := os.ReadFile(n.cfg.HeuristicPodPath)
	if err != nil {
		return fmt.Errorf("read heuristic pod:\n%w", err)
	}

	if _, err := n.podPool.Load(wasmBytes, nil); err != nil {
		return fmt.Errorf("load heuristic pod:\n%w", err)
	}

	return nil
}

// initRepository opens a pebble-backed repository when DataPath is set,
// otherwise an in-memory one. With -genesis, this node's own public key
// seeds current_signers so it can negotiate as the sole signer of its
// own chain from index 0.
func (n *Node) initRepository() error {
	var repo chain.Repository

	if n.cfg.DataPath != "" {
		if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
			return fmt.Errorf("create data directory:\n%w", err)
		}

		pebbleRepo, err := chain.NewPebbleRepository(n.cfg.DataPath+"/db", n.packer)
		if err != nil {
			return fmt.Errorf("init repository:\n%w", err)
		}

		repo = pebbleRepo
	} else {
		repo = chain.NewMemRepository()
	}

	if n.cfg.Genesis {
		if err := repo.SetCurrentSigners([]xyocrypto.PublicKey{n.signer.PublicKey()}); err != nil {
			return fmt.Errorf("seed genesis signer:\n%w", err)
		}
	}

	n.repository = repo

	return nil
}

// initNetwork initializes the P2P network node.
func (n *Node) initNetwork() error {
	node, err := network.NewNode(network.Config{
		PrivateKey: n.cfg.PrivateKey,
		ListenAddr: n.cfg.QUICAddress,
		Packer:     n.packer,
	})
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	n.network = node

	return nil
}

// buildPayload supplies the local, non-bookkeeping half of a negotiation's
// payload: this node's current RSSI reading of the peer, if any were
// recorded, is out of scope here (spec.md's non-goals leave RSSI sourcing
// unspecified) so this node contributes an empty signed-heuristic set
// beyond what handler.Handler.Handle prepends itself.
func (n *Node) buildPayload(state handler.OriginState) boundwitness.Payload {
	return boundwitness.Payload{}
}

// setupNetworkHandlers wires the responder side of a negotiation and the
// gossip announcement that follows a successfully committed block.
func (n *Node) setupNetworkHandlers() {
	n.network.OnNegotiationRequest(func(peer *network.Peer) (*zigzag.Assembler, error) {
		payload, err := n.responderPayload()
		if err != nil {
			return nil, fmt.Errorf("build responder payload: %w", err)
		}

		return zigzag.NewAssembler(n.packer, []xyocrypto.Signer{n.signer}, payload), nil
	})

	n.network.OnBlock(func(peer *network.Peer, block *boundwitness.BoundWitness) {
		hash := n.hashBlock(block)

		if err := n.repository.UpdateOriginChainState(hash); err != nil {
			logger.Warn("advance repository after responder block", "error", err)
			return
		}

		logger.Info("responder negotiation committed", "peer", peer.Address())

		n.announce(hash)
	})

	n.network.OnWitnessAnnouncement(func(peer *network.Peer, ann network.WitnessAnnouncement) {
		logger.Debug("witness announcement received", "from", peer.Address())
	})
}

// responderPayload mirrors handler.Handler.buildPayload's bookkeeping for
// the side of a negotiation this node answers rather than initiates.
func (n *Node) responderPayload() (boundwitness.Payload, error) {
	index, err := n.repository.GetIndex()
	if err != nil {
		return boundwitness.Payload{}, fmt.Errorf("get index: %w", err)
	}

	previousHash, hasPrevious, err := n.repository.GetPreviousHash()
	if err != nil {
		return boundwitness.Payload{}, fmt.Errorf("get previous hash: %w", err)
	}

	bookkeeping := []packer.TypedValue{
		{Major: heuristic.MajorHeuristic, Minor: heuristic.MinorChainIndex, Value: heuristic.ChainIndex(index)},
	}
	if hasPrevious {
		bookkeeping = append(bookkeeping, packer.TypedValue{
			Major: heuristic.MajorHeuristic, Minor: heuristic.MinorPreviousHash, Value: heuristic.PreviousHash(previousHash),
		})
	}

	nextPublicKey, hasNext, err := n.repository.GetNextPublicKey()
	if err != nil {
		return boundwitness.Payload{}, fmt.Errorf("get next public key: %w", err)
	}
	if hasNext {
		bookkeeping = append(bookkeeping, packer.TypedValue{
			Major: heuristic.MajorHeuristic, Minor: heuristic.MinorNextPublicKey,
			Value: heuristic.NextPublicKey{Algorithm: nextPublicKey.Algorithm(), Bytes: nextPublicKey.Bytes()},
		})
	}

	return boundwitness.Payload{SignedHeuristics: bookkeeping}, nil
}

func (n *Node) hashBlock(block *boundwitness.BoundWitness) xyocrypto.Hash {
	encoded, err := n.packer.Serialize(block, boundwitness.MajorBoundWitness, boundwitness.MinorBoundWitness, packer.Typed)
	if err != nil {
		logger.Warn("hash block: serialize failed", "error", err)
		return xyocrypto.Hash{}
	}

	return xyocrypto.Blake3Hasher{}.Hash(encoded)
}

// announce signs and gossips a witness announcement for a block this node
// just finished negotiating, so nearby peers learn of the encounter even
// if they were not a direct participant (spec.md §4.8/§4.9).
func (n *Node) announce(hash xyocrypto.Hash) {
	ann, err := network.SignWitnessAnnouncement(hash, n.blsSigner, 0, 1)
	if err != nil {
		logger.Warn("sign witness announcement", "error", err)
		return
	}

	if err := n.network.BroadcastWitnessAnnouncement(ann, int(n.cfg.GossipFanout)); err != nil {
		logger.Warn("gossip witness announcement", "error", err)
	}
}

// Run starts the node and blocks until shutdown signal. If BootstrapAddr
// is configured, this node dials it and runs the initiating side of a
// negotiation, once or on a repeating interval per NegotiationInterval.
func (n *Node) Run() error {
	if err := n.network.Start(); err != nil {
		return fmt.Errorf("start network:\n%w", err)
	}

	if n.cfg.BootstrapAddr != "" {
		go n.negotiationLoop()
	}

	return n.waitForShutdown()
}

// negotiationLoop dials BootstrapAddr and negotiates a block as the
// initiating side, once immediately and then every NegotiationInterval
// seconds if configured.
func (n *Node) negotiationLoop() {
	n.negotiateOnce()

	if n.cfg.NegotiationInterval == 0 {
		return
	}

	ticker := time.NewTicker(time.Duration(n.cfg.NegotiationInterval) * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		n.negotiateOnce()
	}
}

func (n *Node) negotiateOnce() {
	peer, err := n.network.Connect(n.cfg.BootstrapAddr)
	if err != nil {
		logger.Warn("connect to bootstrap peer", "addr", n.cfg.BootstrapAddr, "error", err)
		return
	}

	if err := n.handler.Handle(peer); err != nil {
		logger.Warn("negotiation failed", "peer", peer.Address(), "error", err)
		return
	}

	index, err := n.repository.GetIndex()
	if err != nil {
		logger.Warn("read index after negotiation", "error", err)
		return
	}

	logger.Info("negotiation committed", "peer", peer.Address(), "index", index)

	previousHash, ok, err := n.repository.GetPreviousHash()
	if err == nil && ok {
		n.announce(previousHash)
	}
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.network != nil {
		n.network.Close()
	}

	if n.podPool != nil {
		n.podPool.Close()
	}

	if closer, ok := n.repository.(*chain.PebbleRepository); ok {
		closer.Close()
	}

	return nil
}
