package txstore

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
	"Verity/internal/ledger"
	"Verity/internal/storage"
)

var (
	txPrefix       = []byte("tx:") // tx:<hash> -> zstd(signed transaction)
	verifiedPrefix = []byte("v:")  // v:<hash> -> marker
)

// Config configures the transaction store.
type Config struct {
	CacheSize int // decoded transactions kept in memory
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{CacheSize: 1024}
}

// Store keeps signed transactions and the set of verified transaction ids.
// It implements ledger.Storage.
type Store struct {
	db     *storage.Storage
	codecs *contracts.Codecs
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	cache  *lru.Cache[crypto.SecureHash, *ledger.SignedTransaction]
}

// New creates a store over db. Records are decoded with codecs.
func New(db *storage.Storage, codecs *contracts.Codecs, cfg Config) (*Store, error) {
	cache, err := lru.New[crypto.SecureHash, *ledger.SignedTransaction](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cache:\n%w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}

	return &Store{db: db, codecs: codecs, enc: enc, dec: dec, cache: cache}, nil
}

// Put stores stx under its id.
func (s *Store) Put(stx *ledger.SignedTransaction) error {
	id := stx.ID()
	record := s.enc.EncodeAll(ledger.EncodeSignedTransaction(stx), nil)

	if err := s.db.Set(txKey(id), record); err != nil {
		return fmt.Errorf("store %s:\n%w", id.Prefix(), err)
	}

	s.cache.Add(id, stx)

	return nil
}

// GetSignedTransaction returns the transaction with the given id, or nil if it is not stored.
func (s *Store) GetSignedTransaction(hash crypto.SecureHash) (*ledger.SignedTransaction, error) {
	if stx, ok := s.cache.Get(hash); ok {
		return stx, nil
	}

	record, err := s.db.Get(txKey(hash))
	if err != nil {
		return nil, fmt.Errorf("load %s:\n%w", hash.Prefix(), err)
	}
	if record == nil {
		return nil, nil
	}

	raw, err := s.dec.DecodeAll(record, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s:\n%w", hash.Prefix(), err)
	}

	stx, err := ledger.DecodeSignedTransaction(raw, s.codecs)
	if err != nil {
		return nil, fmt.Errorf("decode %s:\n%w", hash.Prefix(), err)
	}

	if stx.ID() != hash {
		return nil, fmt.Errorf("record %s holds transaction %s", hash.Prefix(), stx.ID().Prefix())
	}

	s.cache.Add(hash, stx)

	return stx, nil
}

// MarkVerified records the given transactions as verified.
func (s *Store) MarkVerified(hashes ...crypto.SecureHash) error {
	pairs := make([]storage.KeyValue, len(hashes))
	for i, h := range hashes {
		pairs[i] = storage.KeyValue{Key: verifiedKey(h), Value: []byte{1}}
	}

	return s.db.SetBatch(pairs)
}

// IsVerified reports whether hash was marked verified.
func (s *Store) IsVerified(hash crypto.SecureHash) (bool, error) {
	return s.db.Has(verifiedKey(hash))
}

// Hashes returns the ids of all stored transactions in key order.
func (s *Store) Hashes() ([]crypto.SecureHash, error) {
	var hashes []crypto.SecureHash

	err := s.db.IteratePrefix(txPrefix, func(key, _ []byte) error {
		h, ok := crypto.HashFromBytes(key[len(txPrefix):])
		if !ok {
			return fmt.Errorf("malformed key %x", key)
		}

		hashes = append(hashes, h)
		return nil
	})

	return hashes, err
}

// Close releases the codec resources. The underlying storage is not closed.
func (s *Store) Close() {
	s.enc.Close()
	s.dec.Close()
}

func txKey(h crypto.SecureHash) []byte {
	return append(append([]byte(nil), txPrefix...), h[:]...)
}

func verifiedKey(h crypto.SecureHash) []byte {
	return append(append([]byte(nil), verifiedPrefix...), h[:]...)
}
