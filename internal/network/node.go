package network

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"xyonode/internal/boundwitness"
	"xyonode/internal/driver"
	"xyonode/internal/logger"
	"xyonode/internal/packer"
	"xyonode/internal/zigzag"
)

const (
	// defaultReconnectDelay is the default delay between reconnection attempts.
	defaultReconnectDelay = 5 * time.Second

	// maxReconnectDelay is the maximum delay between reconnection attempts.
	maxReconnectDelay = 60 * time.Second

	// alpnProtocol is the ALPN protocol identifier.
	alpnProtocol = "bluepods/1"
)

// Config holds the configuration for a Node.
type Config struct {
	PrivateKey     ed25519.PrivateKey // PrivateKey is the node's ed25519 private key
	ListenAddr     string             // ListenAddr is the address to listen on (e.g., ":9000")
	ReconnectDelay time.Duration      // ReconnectDelay is the initial delay between reconnection attempts
	Packer         *packer.Packer     // Packer decodes negotiation transfers and gossiped announcements
}

// NegotiationFactory builds a fresh responder assembler for an inbound
// bound-witness negotiation request, keyed on the peer that requested it.
type NegotiationFactory func(peer *Peer) (*zigzag.Assembler, error)

// Node represents a network node that can accept and initiate connections.
type Node struct {
	privateKey ed25519.PrivateKey // privateKey is the node's ed25519 private key
	publicKey  ed25519.PublicKey  // publicKey is the node's ed25519 public key
	listenAddr string             // listenAddr is the address to listen on
	tlsConfig  *tls.Config        // tlsConfig is the TLS configuration
	quicConfig *quic.Config       // quicConfig is the QUIC configuration

	listener *quic.Listener // listener is the QUIC listener

	peers   map[string]*Peer // peers maps public key hex to peer
	peersMu sync.RWMutex     // peersMu protects peers map

	knownAddrs   map[string]string // knownAddrs maps public key hex to address (for reconnection)
	knownAddrsMu sync.RWMutex      // knownAddrsMu protects knownAddrs map

	reconnectDelay time.Duration // reconnectDelay is the initial reconnection delay

	dedup *Dedup // dedup tracks seen messages to prevent duplicate processing

	packer *packer.Packer // packer decodes negotiation transfers and gossiped announcements

	pending   map[string]*zigzag.Assembler // pending maps peer pubkey hex to an in-flight responder negotiation
	pendingMu sync.Mutex                   // pendingMu protects pending

	negotiationFactory NegotiationFactory                  // negotiationFactory builds a responder assembler for an inbound negotiation
	onConnect          func(*Peer)                         // onConnect is called when a peer connects
	onMessage          func(*Peer, []byte)                 // onMessage is called when a non-negotiation, non-announcement message is received
	onDisconnect       func(*Peer)                         // onDisconnect is called when a peer disconnects
	onRequest          func(*Peer, []byte) ([]byte, error) // onRequest handles bidirectional request/response outside the negotiation catalogue bit
	onBlock            func(*Peer, *boundwitness.BoundWitness) // onBlock is called when a responder-side negotiation completes
	onAnnouncement     func(*Peer, WitnessAnnouncement)    // onAnnouncement is called when a gossiped witness announcement arrives
	handlersMu         sync.RWMutex                        // handlersMu protects event handlers

	ctx    context.Context    // ctx is the node's context
	cancel context.CancelFunc // cancel cancels the node's context
	wg     sync.WaitGroup     // wg waits for goroutines to finish
}

// NewNode creates a new network node.
func NewNode(cfg Config) (*Node, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay == 0 {
		reconnectDelay = defaultReconnectDelay
	}

	cert, err := generateCertificate(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("generate certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		ClientAuth:         tls.RequireAnyClientCert,
		InsecureSkipVerify: true, // We verify the public key manually
		NextProtos:         []string{alpnProtocol},
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		privateKey:     cfg.PrivateKey,
		publicKey:      cfg.PrivateKey.Public().(ed25519.PublicKey),
		listenAddr:     cfg.ListenAddr,
		tlsConfig:      tlsConfig,
		quicConfig:     quicConfig,
		peers:          make(map[string]*Peer),
		knownAddrs:     make(map[string]string),
		reconnectDelay: reconnectDelay,
		dedup:          NewDedup(),
		packer:         cfg.Packer,
		pending:        make(map[string]*zigzag.Assembler),
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// PublicKey returns the node's public key.
func (n *Node) PublicKey() ed25519.PublicKey {
	return n.publicKey
}

// Addr returns the listener's address. Returns empty string if not started.
func (n *Node) Addr() string {
	if n.listener == nil {
		return ""
	}

	return n.listener.Addr().String()
}

// Start starts the node and begins accepting connections.
func (n *Node) Start() error {
	listener, err := quic.ListenAddr(n.listenAddr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	n.listener = listener

	n.wg.Add(1)
	go n.acceptLoop()

	return nil
}

// Connect connects to a remote node at the given address.
func (n *Node) Connect(addr string) (*Peer, error) {
	conn, err := quic.DialAddr(n.ctx, addr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	peer, err := n.setupPeer(conn, addr)
	if err != nil {
		conn.CloseWithError(1, "setup failed")
		return nil, err
	}

	return peer, nil
}

// Broadcast sends a message to all connected peers.
func (n *Node) Broadcast(data []byte) error {
	n.peersMu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.peersMu.RUnlock()

	var lastErr error

	for _, p := range peers {
		if _, err := p.Send(data, false); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Gossip sends data to a random subset of connected peers.
// If fanout >= peer count, sends to all peers (same as Broadcast).
func (n *Node) Gossip(data []byte, fanout int) error {
	n.peersMu.RLock()
	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	n.peersMu.RUnlock()

	selected := selectRandomPeers(peers, fanout)

	var lastErr error

	for _, p := range selected {
		if _, err := p.Send(data, false); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// BroadcastWitnessAnnouncement serializes ann and gossips it to fanout
// peers, per spec.md §4.9.
func (n *Node) BroadcastWitnessAnnouncement(ann WitnessAnnouncement, fanout int) error {
	encoded, err := n.packer.Serialize(ann, MajorNetwork, MinorWitnessAnnouncement, packer.Typed)
	if err != nil {
		return fmt.Errorf("network: encode witness announcement: %w", err)
	}

	return n.Gossip(encoded, fanout)
}

// selectRandomPeers returns up to n random peers from the slice.
// If n >= len(peers), returns all peers.
func selectRandomPeers(peers []*Peer, n int) []*Peer {
	if n >= len(peers) {
		return peers
	}

	indices := rand.Perm(len(peers))[:n]
	selected := make([]*Peer, n)

	for i, idx := range indices {
		selected[i] = peers[idx]
	}

	return selected
}

// Peers returns a list of all connected peers.
func (n *Node) Peers() []*Peer {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()

	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}

	return peers
}

// GetPeer returns the peer for the given public key, or nil if not connected.
func (n *Node) GetPeer(pubkey ed25519.PublicKey) *Peer {
	keyHex := hex.EncodeToString(pubkey)

	n.peersMu.RLock()
	defer n.peersMu.RUnlock()

	return n.peers[keyHex]
}

// OnConnect sets the handler called when a peer connects.
func (n *Node) OnConnect(fn func(*Peer)) {
	n.handlersMu.Lock()
	n.onConnect = fn
	n.handlersMu.Unlock()
}

// OnMessage sets the handler called when a message is received.
func (n *Node) OnMessage(fn func(*Peer, []byte)) {
	n.handlersMu.Lock()
	n.onMessage = fn
	n.handlersMu.Unlock()
}

// OnDisconnect sets the handler called when a peer disconnects.
func (n *Node) OnDisconnect(fn func(*Peer)) {
	n.handlersMu.Lock()
	n.onDisconnect = fn
	n.handlersMu.Unlock()
}

// OnRequest sets the handler for incoming bidirectional requests that do
// not carry the bound-witness catalogue bit.
// The handler receives request data and returns response data.
func (n *Node) OnRequest(fn func(*Peer, []byte) ([]byte, error)) {
	n.handlersMu.Lock()
	n.onRequest = fn
	n.handlersMu.Unlock()
}

// OnNegotiationRequest sets the factory used to build a fresh responder
// assembler whenever a peer opens a bound-witness negotiation, per
// spec.md §4.3 step 2.
func (n *Node) OnNegotiationRequest(fn NegotiationFactory) {
	n.handlersMu.Lock()
	n.negotiationFactory = fn
	n.handlersMu.Unlock()
}

// OnBlock sets the handler called when a responder-side negotiation
// completes with a signed block.
func (n *Node) OnBlock(fn func(*Peer, *boundwitness.BoundWitness)) {
	n.handlersMu.Lock()
	n.onBlock = fn
	n.handlersMu.Unlock()
}

// OnWitnessAnnouncement sets the handler called when a gossiped
// WitnessAnnouncement arrives from a peer.
func (n *Node) OnWitnessAnnouncement(fn func(*Peer, WitnessAnnouncement)) {
	n.handlersMu.Lock()
	n.onAnnouncement = fn
	n.handlersMu.Unlock()
}

// Close stops the node and closes all connections.
func (n *Node) Close() error {
	n.cancel()

	if n.listener != nil {
		n.listener.Close()
	}

	n.peersMu.Lock()
	for _, p := range n.peers {
		p.Close()
	}
	n.peers = make(map[string]*Peer)
	n.peersMu.Unlock()

	n.dedup.Close()
	n.wg.Wait()

	return nil
}

// acceptLoop accepts incoming connections.
func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept(n.ctx)
		if err != nil {
			return // Listener closed
		}

		go n.handleIncoming(conn)
	}
}

// handleIncoming handles an incoming connection.
func (n *Node) handleIncoming(conn *quic.Conn) {
	peer, err := n.setupPeer(conn, conn.RemoteAddr().String())
	if err != nil {
		conn.CloseWithError(1, "setup failed")
		return
	}

	n.callOnConnect(peer)
}

// setupPeer creates a Peer from a QUIC connection.
func (n *Node) setupPeer(conn *quic.Conn, addr string) (*Peer, error) {
	tlsState := conn.ConnectionState().TLS

	pubKey, err := extractPublicKey(tlsState)
	if err != nil {
		return nil, fmt.Errorf("extract public key: %w", err)
	}

	keyHex := hex.EncodeToString(pubKey)

	peer := &Peer{
		publicKey: pubKey,
		address:   addr,
		conn:      conn,
		node:      n,
	}

	n.peersMu.Lock()
	n.peers[keyHex] = peer
	n.peersMu.Unlock()

	n.knownAddrsMu.Lock()
	n.knownAddrs[keyHex] = addr
	n.knownAddrsMu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		peer.receiveLoop()
	}()

	return peer, nil
}

// handlePeerDisconnect handles a peer disconnection.
func (n *Node) handlePeerDisconnect(p *Peer) {
	keyHex := hex.EncodeToString(p.publicKey)

	n.peersMu.Lock()
	delete(n.peers, keyHex)
	n.peersMu.Unlock()

	n.callOnDisconnect(p)

	// Schedule reconnection
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.reconnectPeer(keyHex)
	}()
}

// reconnectPeer attempts to reconnect to a peer with exponential backoff.
func (n *Node) reconnectPeer(keyHex string) {
	delay := n.reconnectDelay

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(delay):
		}

		n.knownAddrsMu.RLock()
		addr, ok := n.knownAddrs[keyHex]
		n.knownAddrsMu.RUnlock()

		if !ok {
			return // Peer removed from known addresses
		}

		// Check if already reconnected
		n.peersMu.RLock()
		_, exists := n.peers[keyHex]
		n.peersMu.RUnlock()

		if exists {
			return // Already reconnected
		}

		peer, err := n.Connect(addr)
		if err == nil {
			n.callOnConnect(peer)
			return
		}

		// Exponential backoff
		delay = delay * 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// callOnConnect calls the onConnect handler if set.
func (n *Node) callOnConnect(p *Peer) {
	n.handlersMu.RLock()
	fn := n.onConnect
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p)
	}
}

// callOnMessage dispatches a uni-stream message that was neither a
// negotiation's closing transfer nor deduplicated: a gossiped witness
// announcement if it decodes as one, otherwise whatever onMessage is
// registered for.
func (n *Node) callOnMessage(p *Peer, data []byte) {
	if n.packer != nil {
		if value, err := n.packer.Deserialize(data); err == nil {
			if ann, ok := value.(WitnessAnnouncement); ok {
				n.callOnAnnouncement(p, ann)
				return
			}
		}
	}

	n.handlersMu.RLock()
	fn := n.onMessage
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p, data)
	}
}

// callOnAnnouncement calls the onAnnouncement handler if set.
func (n *Node) callOnAnnouncement(p *Peer, ann WitnessAnnouncement) {
	n.handlersMu.RLock()
	fn := n.onAnnouncement
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p, ann)
	}
}

// callOnBlock calls the onBlock handler if set.
func (n *Node) callOnBlock(p *Peer, block *boundwitness.BoundWitness) {
	n.handlersMu.RLock()
	fn := n.onBlock
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p, block)
	}
}

// callOnPendingNegotiation consumes data as the closing transfer of an
// in-flight responder negotiation with p, if one is pending, per step 4
// of spec.md §4.3. It reports whether data was a negotiation message, so
// the caller can fall back to gossip/dedup handling otherwise.
func (n *Node) callOnPendingNegotiation(p *Peer, data []byte) bool {
	keyHex := hex.EncodeToString(p.publicKey)

	n.pendingMu.Lock()
	assembler, ok := n.pending[keyHex]
	if ok {
		delete(n.pending, keyHex)
	}
	n.pendingMu.Unlock()

	if !ok {
		return false
	}

	block, err := driver.HandleFinalMessage(assembler, n.packer, data)
	if err != nil {
		logger.Debug("negotiation final message rejected", "peer", p.address, "error", err)
		return true
	}

	n.callOnBlock(p, block)

	return true
}

// callOnDisconnect calls the onDisconnect handler if set.
func (n *Node) callOnDisconnect(p *Peer) {
	n.handlersMu.RLock()
	fn := n.onDisconnect
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p)
	}
}

// callOnRequest routes an incoming bidirectional request: one carrying
// the bound-witness catalogue bit opens a new responder negotiation
// (spec.md §4.3 step 2), anything else falls through to the generic
// onRequest handler.
func (n *Node) callOnRequest(p *Peer, data []byte) ([]byte, error) {
	if bitmask, ok := driver.PeekCatalogue(data); ok && bitmask&driver.BitBoundWitness != 0 {
		return n.handleNegotiationRequest(p, data)
	}

	n.handlersMu.RLock()
	fn := n.onRequest
	n.handlersMu.RUnlock()

	if fn == nil {
		return nil, fmt.Errorf("no request handler registered")
	}

	return fn(p, data)
}

// handleNegotiationRequest builds a fresh responder assembler via the
// registered NegotiationFactory, integrates the negotiation's first
// message, and remembers the assembler as pending for p until its
// closing message arrives.
func (n *Node) handleNegotiationRequest(p *Peer, message1 []byte) ([]byte, error) {
	n.handlersMu.RLock()
	factory := n.negotiationFactory
	n.handlersMu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("network: no negotiation factory registered")
	}

	assembler, err := factory(p)
	if err != nil {
		return nil, fmt.Errorf("network: build responder assembler: %w", err)
	}

	encoded2, err := driver.HandleFirstMessage(assembler, n.packer, message1)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	keyHex := hex.EncodeToString(p.publicKey)

	n.pendingMu.Lock()
	n.pending[keyHex] = assembler
	n.pendingMu.Unlock()

	return encoded2, nil
}
