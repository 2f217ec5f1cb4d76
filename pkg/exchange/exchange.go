// Package exchange coordinates signature collection between co-owners over
// NATS: a proposer announces a pending transaction, owners publish their
// signatures on the per-hash subject, the proposer collects until quorum.
// Envelopes are CBOR. ECDSA signatures are verified against the announced
// hash before they are accepted; the bus is not trusted.
package exchange

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/safekit/safe/pkg/signature"
	"github.com/safekit/safe/pkg/types"
)

// Announcement is the payload a proposer publishes for a pending
// transaction.
type Announcement struct {
	Hash        []byte                `cbor:"1,keyasint"`
	Transaction types.SafeTransaction `cbor:"2,keyasint"`
}

// Submission is one owner's signature for an announced hash.
type Submission struct {
	Hash      []byte              `cbor:"1,keyasint"`
	Signature signature.Signature `cbor:"2,keyasint"`
}

// Exchange is a NATS-backed signature exchange for one or more Safes.
type Exchange struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// Connect dials the NATS server.
func Connect(url string, log zerolog.Logger) (*Exchange, error) {
	nc, err := nats.Connect(url, nats.Name("safectl"))
	if err != nil {
		return nil, fmt.Errorf("exchange: connect %s: %w", url, err)
	}
	return &Exchange{nc: nc, log: log}, nil
}

// Close drains and closes the connection.
func (e *Exchange) Close() {
	if e.nc != nil {
		e.nc.Close()
	}
}

func proposeSubject(safe types.Address) string {
	return fmt.Sprintf("safe.%s.propose", safe.Hex())
}

func sigSubject(safe types.Address, hash []byte) string {
	return fmt.Sprintf("safe.%s.sig.%s", safe.Hex(), hex.EncodeToString(hash))
}

// Announce publishes a pending transaction to co-owners.
func (e *Exchange) Announce(ann Announcement) error {
	payload, err := cbor.Marshal(ann)
	if err != nil {
		return fmt.Errorf("exchange: encode announcement: %w", err)
	}
	subj := proposeSubject(ann.Transaction.SafeAddress)
	if err := e.nc.Publish(subj, payload); err != nil {
		return fmt.Errorf("exchange: publish %s: %w", subj, err)
	}
	e.log.Info().Str("subject", subj).Hex("hash", ann.Hash).Msg("proposal announced")
	return nil
}

// Submit publishes one owner's signature for an announced hash.
func (e *Exchange) Submit(safe types.Address, sub Submission) error {
	payload, err := cbor.Marshal(sub)
	if err != nil {
		return fmt.Errorf("exchange: encode submission: %w", err)
	}
	subj := sigSubject(safe, sub.Hash)
	if err := e.nc.Publish(subj, payload); err != nil {
		return fmt.Errorf("exchange: publish %s: %w", subj, err)
	}
	return nil
}

// Collect subscribes to the per-hash subject and gathers signatures until
// `want` distinct signers accepted or ctx is done. ECDSA submissions that
// do not recover to their claimed signer over hash are dropped.
func (e *Exchange) Collect(ctx context.Context, safe types.Address, hash []byte, want int) ([]signature.Signature, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("exchange: hash must be 32 bytes, got %d", len(hash))
	}
	msgs := make(chan *nats.Msg, 64)
	sub, err := e.nc.ChanSubscribe(sigSubject(safe, hash), msgs)
	if err != nil {
		return nil, fmt.Errorf("exchange: subscribe: %w", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck

	seen := make(map[types.Address]bool, want)
	var out []signature.Signature
	for len(out) < want {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case msg := <-msgs:
			var s Submission
			if err := cbor.Unmarshal(msg.Data, &s); err != nil {
				e.log.Warn().Err(err).Msg("undecodable submission dropped")
				continue
			}
			if !bytes.Equal(s.Hash, hash) || seen[s.Signature.Signer] {
				continue
			}
			if !acceptable(s.Signature, hash) {
				e.log.Warn().Str("signer", s.Signature.Signer.Hex()).Msg("submission failed local verification")
				continue
			}
			seen[s.Signature.Signer] = true
			out = append(out, s.Signature)
			e.log.Info().
				Str("signer", s.Signature.Signer.Hex()).
				Int("collected", len(out)).
				Int("want", want).
				Msg("signature collected")
		}
	}
	return out, nil
}

// acceptable locally verifies what can be verified without the chain:
// ECDSA signatures must recover to the claimed signer. Contract and
// approved-hash signatures pass through; the validator settles them.
func acceptable(sig signature.Signature, hash []byte) bool {
	if sig.Kind != signature.KindECDSA {
		return true
	}
	if len(sig.Data) != signature.ECDSASignatureLength {
		return false
	}
	digest := hash
	data := sig.Data
	if sig.IsEthSign() {
		digest = signature.EthSignDigest(hash)
		data = append([]byte(nil), sig.Data...)
		data[64] -= 4
	}
	recovered, err := signature.RecoverSigner(digest, data)
	return err == nil && recovered == sig.Signer
}
