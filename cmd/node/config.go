package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
)

// Config holds the node configuration.
type Config struct {
	// DataPath is the directory for persistent storage. Empty means an
	// in-memory repository (chain.MemRepository) instead of pebble.
	DataPath string

	// QUICAddress is the QUIC P2P listen address.
	QUICAddress string

	// KeyPath is the path to the Ed25519 private key file.
	KeyPath string

	// PrivateKey is the node's Ed25519 signing key.
	PrivateKey ed25519.PrivateKey

	// BootstrapAddr, if set, is a peer address this node dials on startup
	// and negotiates a bound witness with as the initiating side.
	BootstrapAddr string

	// Genesis seeds a fresh repository's current_signers with this
	// node's own public key, standing in for the genesis signer this
	// node's chain has none of yet.
	Genesis bool

	// NegotiationInterval is how often this node re-dials BootstrapAddr
	// to negotiate another block. Zero means negotiate once and exit the
	// retry loop (the process still blocks on shutdown).
	NegotiationInterval uint64

	// GossipFanout is how many peers a successful negotiation's witness
	// announcement is gossiped to.
	GossipFanout uint64

	// HeuristicPodPath, if set, is a WASM module loaded into the
	// heuristicvm.Pool for validating a custom heuristic's payload.
	HeuristicPodPath string
}

// parseFlags parses command-line flags into Config.
func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DataPath, "data", "", "Data directory path (empty for in-memory repository)")
	flag.StringVar(&cfg.QUICAddress, "quic", ":9000", "QUIC P2P listen address")
	flag.StringVar(&cfg.KeyPath, "key", "", "Ed25519 private key path (generates new if missing)")
	flag.StringVar(&cfg.BootstrapAddr, "bootstrap-addr", "", "Peer QUIC address to dial and negotiate with")
	flag.BoolVar(&cfg.Genesis, "genesis", false, "Seed the repository with this node as the genesis signer")
	flag.Uint64Var(&cfg.NegotiationInterval, "negotiation-interval", 0, "Seconds between re-dials of bootstrap-addr (0 to negotiate once)")
	flag.Uint64Var(&cfg.GossipFanout, "gossip-fanout", 3, "Peers to gossip a witness announcement to after a successful negotiation")
	flag.StringVar(&cfg.HeuristicPodPath, "heuristic-pod", "", "Path to a WASM module validating a custom heuristic (optional)")
	flag.Parse()

	return cfg
}

// loadOrGenerateKey loads the private key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}
