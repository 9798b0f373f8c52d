package spork

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSigningPayload pins the decimal concatenation signatures commit to.
func TestSigningPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  sporkwire.Spork
		want string
	}{
		{
			msg:  sporkwire.Spork{ID: 10001, Value: 5, SignedAt: 17},
			want: "10001517",
		},
		{
			msg: sporkwire.Spork{
				ID: 10016, Value: 2000, SignedAt: 1700000000,
			},
			want: "1001620001700000000",
		},
		{
			msg:  sporkwire.Spork{ID: 10004, Value: -1, SignedAt: 0},
			want: "10004-10",
		},
		{
			msg:  sporkwire.Spork{},
			want: "000",
		},
	}

	for _, test := range tests {
		require.Equal(t, test.want, signingPayload(&test.msg))
	}
}

// TestMessageDigestMagic asserts the magic is part of the digest.
func TestMessageDigestMagic(t *testing.T) {
	t.Parallel()

	a, err := messageDigest(DefaultMessageMagic, "10001517")
	require.NoError(t, err)
	b, err := messageDigest("Bitcoin Signed Message:\n", "10001517")
	require.NoError(t, err)
	c, err := messageDigest(DefaultMessageMagic, "10001518")
	require.NoError(t, err)

	require.Len(t, a, 32)
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
}

// TestSignVerify checks that only signatures by the trust key verify.
func TestSignVerify(t *testing.T) {
	t.Parallel()

	msg := signedSpork(t, trustPriv, 10001, 1, 1700000000)
	require.Len(t, msg.Signature, 65)
	require.NoError(t, verifySpork(trustPub, DefaultMessageMagic, msg))

	// The same fields signed by another key.
	forged := signedSpork(t, otherPriv, 10001, 1, 1700000000)
	err := verifySpork(trustPub, DefaultMessageMagic, forged)
	require.ErrorIs(t, err, ErrInvalidSignature)

	// A different magic yields a different digest.
	err = verifySpork(trustPub, "Bitcoin Signed Message:\n", msg)
	require.ErrorIs(t, err, ErrInvalidSignature)

	// Changing any signed field breaks the signature.
	for _, mutate := range []func(*sporkwire.Spork){
		func(s *sporkwire.Spork) { s.ID++ },
		func(s *sporkwire.Spork) { s.Value++ },
		func(s *sporkwire.Spork) { s.SignedAt++ },
	} {
		changed := msg.Copy()
		mutate(&changed)
		err := verifySpork(trustPub, DefaultMessageMagic, &changed)
		require.ErrorIs(t, err, ErrInvalidSignature)
	}

	// No trust key configured fails closed.
	err = verifySpork(nil, DefaultMessageMagic, msg)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

// TestVerifyRejectsUncompressed asserts signatures flagged for an
// uncompressed key are rejected even if they recover the trust key.
func TestVerifyRejectsUncompressed(t *testing.T) {
	t.Parallel()

	msg := &sporkwire.Spork{ID: 10002, Value: 3, SignedAt: 4}
	digest, err := messageDigest(DefaultMessageMagic, signingPayload(msg))
	require.NoError(t, err)
	msg.Signature = ecdsa.SignCompact(trustPriv, digest, false)

	err = verifySpork(trustPub, DefaultMessageMagic, msg)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

// TestVerifyRejectsTampered asserts that altering any signature byte makes
// verification fail, whatever the signed fields.
func TestVerifyRejectsTampered(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		msg := signedSpork(
			t, trustPriv, ID(rapid.Int32().Draw(t, "id")),
			rapid.Int64().Draw(t, "value"),
			rapid.Int64().Draw(t, "signedAt"),
		)
		require.NoError(t, verifySpork(
			trustPub, DefaultMessageMagic, msg,
		))

		idx := rapid.IntRange(0, len(msg.Signature)-1).Draw(t, "idx")
		flip := rapid.ByteRange(1, 255).Draw(t, "flip")
		msg.Signature[idx] ^= flip

		err := verifySpork(trustPub, DefaultMessageMagic, msg)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}

// TestVerifyGarbage asserts arbitrary signature bytes never verify.
func TestVerifyGarbage(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		msg := &sporkwire.Spork{
			ID:       rapid.Int32().Draw(t, "id"),
			Value:    rapid.Int64().Draw(t, "value"),
			SignedAt: rapid.Int64().Draw(t, "signedAt"),
			Signature: rapid.SliceOfN(
				rapid.Byte(), 0, sporkwire.MaxSignatureLen,
			).Draw(t, "sig"),
		}

		err := verifySpork(trustPub, DefaultMessageMagic, msg)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}

// TestParseTrustKey parses the main network key.
func TestParseTrustKey(t *testing.T) {
	t.Parallel()

	const mainnetKey = "02d0373ad80b108f0697b961bbccf85a4ed55bdb6cba961" +
		"cf90fcac264ea289e77"

	key, err := ParseTrustKey(mainnetKey)
	require.NoError(t, err)
	require.Equal(t, mainnetKey, hex.EncodeToString(key.SerializeCompressed()))

	_, err = ParseTrustKey("zz")
	require.Error(t, err)

	_, err = ParseTrustKey("02abcd")
	require.Error(t, err)
}
