package chain

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"xyonode/internal/packer"
	"xyonode/internal/storage"
	"xyonode/internal/xyocrypto"
)

// continuityKey is the fixed key under which the repository's continuity
// tuple (index, previous_hash, current_signers, waiting_signers,
// next_public_key) is stored.
var continuityKey = []byte("chain:continuity")

// blockKeyPrefix prefixes committed block blobs, keyed by big-endian index,
// so the verifier and nested extractor can replay a peer's chain in order.
var blockKeyPrefix = []byte("chain:block:")

// PebbleRepository persists the continuity tuple in a github.com/
// cockroachdb/pebble keyspace via internal/storage, and stores every
// committed block blob (zstd-compressed) for later replay. Mutations run
// under an in-process mutex since Pebble's own atomicity covers a single
// write, not the read-modify-write sequences this interface exposes.
type PebbleRepository struct {
	mu sync.Mutex

	db      *storage.Storage
	packer  *packer.Packer
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewPebbleRepository opens (or creates) a repository at path, using p to
// encode the continuity record and committed blocks.
func NewPebbleRepository(path string, p *packer.Packer) (*PebbleRepository, error) {
	db, err := storage.New(path)
	if err != nil {
		return nil, fmt.Errorf("chain: open pebble repository: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("chain: new zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("chain: new zstd decoder: %w", err)
	}

	return &PebbleRepository{db: db, packer: p, encoder: encoder, decoder: decoder}, nil
}

// Close releases the underlying Pebble handle.
func (r *PebbleRepository) Close() error {
	r.decoder.Close()
	return r.db.Close()
}

// PutBlock persists a committed block's already-serialized bytes under its
// chain index, zstd-compressed, for later replay by the verifier or the
// nested extractor.
func (r *PebbleRepository) PutBlock(index uint64, serializedBlock []byte) error {
	compressed := r.encoder.EncodeAll(serializedBlock, nil)

	key := blockKey(index)
	if err := r.db.Set(key, compressed); err != nil {
		return fmt.Errorf("%w: put block %d: %v", ErrRepositoryUnavailable, index, err)
	}

	return nil
}

// GetBlock retrieves and decompresses a previously stored block's
// serialized bytes. Returns ok=false if no block was stored at index.
func (r *PebbleRepository) GetBlock(index uint64) (serializedBlock []byte, ok bool, err error) {
	raw, err := r.db.Get(blockKey(index))
	if err != nil {
		return nil, false, fmt.Errorf("%w: get block %d: %v", ErrRepositoryUnavailable, index, err)
	}

	if raw == nil {
		return nil, false, nil
	}

	decoded, err := r.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("chain: decompress block %d: %w", index, err)
	}

	return decoded, true, nil
}

func blockKey(index uint64) []byte {
	key := make([]byte, len(blockKeyPrefix)+8)
	copy(key, blockKeyPrefix)
	binary.BigEndian.PutUint64(key[len(blockKeyPrefix):], index)

	return key
}

// continuityRecord is the packer-serialized shape of a repository's
// continuity tuple.
type continuityRecord struct {
	Index          uint64
	PreviousHash   xyocrypto.Hash
	HasPrevious    bool
	CurrentSigners []xyocrypto.PublicKey
	WaitingSigners []xyocrypto.PublicKey
	NextPublicKey  xyocrypto.PublicKey
	HasNextKey     bool
}

func (r *PebbleRepository) load() (continuityRecord, error) {
	raw, err := r.db.Get(continuityKey)
	if err != nil {
		return continuityRecord{}, fmt.Errorf("%w: load continuity: %v", ErrRepositoryUnavailable, err)
	}

	if raw == nil {
		return continuityRecord{}, nil
	}

	decoded, err := r.decoder.DecodeAll(raw, nil)
	if err != nil {
		return continuityRecord{}, fmt.Errorf("chain: decompress continuity: %w", err)
	}

	rec, err := decodeContinuity(r.packer, decoded)
	if err != nil {
		return continuityRecord{}, fmt.Errorf("chain: decode continuity: %w", err)
	}

	return rec, nil
}

func (r *PebbleRepository) store(rec continuityRecord) error {
	encoded, err := encodeContinuity(r.packer, rec)
	if err != nil {
		return fmt.Errorf("chain: encode continuity: %w", err)
	}

	compressed := r.encoder.EncodeAll(encoded, nil)

	if err := r.db.Set(continuityKey, compressed); err != nil {
		return fmt.Errorf("%w: store continuity: %v", ErrRepositoryUnavailable, err)
	}

	return nil
}

func (r *PebbleRepository) GetIndex() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return 0, err
	}

	return rec.Index, nil
}

func (r *PebbleRepository) GetPreviousHash() (xyocrypto.Hash, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return xyocrypto.Hash{}, false, err
	}

	return rec.PreviousHash, rec.HasPrevious, nil
}

func (r *PebbleRepository) GetSigners() ([]xyocrypto.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return nil, err
	}

	return rec.CurrentSigners, nil
}

func (r *PebbleRepository) GetWaitingSigners() ([]xyocrypto.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return nil, err
	}

	return rec.WaitingSigners, nil
}

func (r *PebbleRepository) GetGenesisSigner() (xyocrypto.PublicKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return nil, false, err
	}

	if len(rec.CurrentSigners) == 0 {
		return nil, false, nil
	}

	return rec.CurrentSigners[0], true, nil
}

func (r *PebbleRepository) GetNextPublicKey() (xyocrypto.PublicKey, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return nil, false, err
	}

	return rec.NextPublicKey, rec.HasNextKey, nil
}

func (r *PebbleRepository) AddSigner(s xyocrypto.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return err
	}

	rec.WaitingSigners = append(rec.WaitingSigners, s)

	return r.store(rec)
}

func (r *PebbleRepository) RemoveOldestSigner() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return err
	}

	if len(rec.CurrentSigners) < 2 {
		return ErrNoRotatableSigners
	}

	rec.CurrentSigners = append(rec.CurrentSigners[:1:1], rec.CurrentSigners[2:]...)

	return r.store(rec)
}

// SetCurrentSigners replaces current_signers wholesale, leaving
// waiting_signers and next_public_key untouched — see the Repository doc
// comment.
func (r *PebbleRepository) SetCurrentSigners(signers []xyocrypto.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return err
	}

	rec.CurrentSigners = append([]xyocrypto.PublicKey(nil), signers...)

	return r.store(rec)
}

func (r *PebbleRepository) SetNextPublicKey(key xyocrypto.PublicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return err
	}

	rec.NextPublicKey = key
	rec.HasNextKey = true

	return r.store(rec)
}

func (r *PebbleRepository) UpdateOriginChainState(hash xyocrypto.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.load()
	if err != nil {
		return err
	}

	rec.PreviousHash = hash
	rec.HasPrevious = true
	rec.Index++

	if len(rec.WaitingSigners) > 0 {
		rec.CurrentSigners = append(rec.CurrentSigners, rec.WaitingSigners[0])
		rec.WaitingSigners = append(rec.WaitingSigners[:0:0], rec.WaitingSigners[1:]...)
	}

	rec.NextPublicKey = nil
	rec.HasNextKey = false

	return r.store(rec)
}
