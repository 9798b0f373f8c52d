package spork

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/catocoin/sporkd/sporkwire"
)

// DefaultMessageMagic is the prefix mixed into every signed message digest
// on the main network.
const DefaultMessageMagic = "DarkNet Signed Message:\n"

// signingPayload returns the canonical string a spork signature commits to:
// the decimal id, value and signing time concatenated without separators.
// Signatures already circulating on the network were produced over exactly
// this string.
func signingPayload(msg *sporkwire.Spork) string {
	return strconv.FormatInt(int64(msg.ID), 10) +
		strconv.FormatInt(msg.Value, 10) +
		strconv.FormatInt(msg.SignedAt, 10)
}

// messageDigest returns the double-SHA256 of the magic and the payload, each
// serialized as a length prefixed string.
func messageDigest(magic, payload string) ([]byte, error) {
	var b bytes.Buffer
	if err := wire.WriteVarString(&b, 0, magic); err != nil {
		return nil, err
	}
	if err := wire.WriteVarString(&b, 0, payload); err != nil {
		return nil, err
	}

	return chainhash.DoubleHashB(b.Bytes()), nil
}

// signSpork produces a compact recoverable signature over msg with key.
func signSpork(key *btcec.PrivateKey, magic string,
	msg *sporkwire.Spork) ([]byte, error) {

	if key == nil {
		return nil, errors.New("no signing key")
	}

	digest, err := messageDigest(magic, signingPayload(msg))
	if err != nil {
		return nil, err
	}

	return ecdsa.SignCompact(key, digest, true), nil
}

// verifySpork checks that the signature of msg recovers exactly trustKey.
// Every failure, including malformed signatures, results in
// ErrInvalidSignature.
func verifySpork(trustKey *btcec.PublicKey, magic string,
	msg *sporkwire.Spork) error {

	if trustKey == nil {
		return fmt.Errorf("%w: no trust key", ErrInvalidSignature)
	}

	digest, err := messageDigest(magic, signingPayload(msg))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	pub, compressed, err := ecdsa.RecoverCompact(msg.Signature, digest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !compressed {
		return fmt.Errorf("%w: signature over uncompressed key",
			ErrInvalidSignature)
	}
	if !pub.IsEqual(trustKey) {
		return fmt.Errorf("%w: signed by %x", ErrInvalidSignature,
			pub.SerializeCompressed())
	}

	return nil
}

// ParseTrustKey parses a hex encoded compressed or uncompressed public key.
func ParseTrustKey(hexKey string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid spork key hex: %w", err)
	}

	return btcec.ParsePubKey(raw)
}
