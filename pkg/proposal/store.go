// Package proposal persists pending Safe transactions and the signatures
// collected for them, keyed by transaction hash, in a local Badger store.
// Records are CBOR-encoded. The store is a cache for coordination between
// owners; the chain remains the source of truth.
package proposal

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/rs/zerolog"

	"github.com/safekit/safe/pkg/signature"
	"github.com/safekit/safe/pkg/types"
)

var (
	// ErrNotFound means no proposal exists for the requested hash.
	ErrNotFound = errors.New("proposal: not found")
	// ErrBadHash means the key is not a 32-byte transaction hash.
	ErrBadHash = errors.New("proposal: hash must be 32 bytes")
)

// Record is one pending Safe transaction with its collected signatures.
type Record struct {
	Hash        []byte                `cbor:"1,keyasint"`
	Transaction types.SafeTransaction `cbor:"2,keyasint"`
	Signatures  []signature.Signature `cbor:"3,keyasint"`
	CreatedAt   time.Time             `cbor:"4,keyasint"`
}

// Store is a Badger-backed proposal store. Safe for concurrent use.
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (or creates) the store at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("proposal: open %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("proposal store opened")
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores or replaces a record under its transaction hash.
func (s *Store) Put(rec *Record) error {
	if len(rec.Hash) != 32 {
		return ErrBadHash
	}
	val, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("proposal: encode: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rec.Hash, val)
	})
}

// Get loads the record for hash, or ErrNotFound.
func (s *Store) Get(hash []byte) (*Record, error) {
	if len(hash) != 32 {
		return nil, ErrBadHash
	}
	var rec Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(hash)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return cbor.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AddSignature appends sig to the record for hash, replacing any earlier
// signature from the same signer. Signers stay unique per proposal.
func (s *Store) AddSignature(hash []byte, sig signature.Signature) error {
	rec, err := s.Get(hash)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range rec.Signatures {
		if existing.Signer == sig.Signer {
			rec.Signatures[i] = sig
			replaced = true
			break
		}
	}
	if !replaced {
		rec.Signatures = append(rec.Signatures, sig)
	}
	s.log.Debug().
		Str("signer", sig.Signer.Hex()).
		Int("collected", len(rec.Signatures)).
		Msg("signature recorded")
	return s.Put(rec)
}

// List returns all pending records, ordered by hash.
func (s *Store) List() ([]*Record, error) {
	var out []*Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := cbor.Unmarshal(raw, &rec); err != nil {
				return err
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the record for hash. Deleting a missing record is not an
// error.
func (s *Store) Delete(hash []byte) error {
	if len(hash) != 32 {
		return ErrBadHash
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(hash)
	})
}

// Packed encodes the collected signature set of hash for submission.
func (s *Store) Packed(hash []byte) ([]byte, error) {
	rec, err := s.Get(hash)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(rec.Hash, hash) {
		return nil, fmt.Errorf("proposal: record hash mismatch")
	}
	return signature.Encode(rec.Signatures)
}
