package solana

import (
	"bytes"
	"crypto/ed25519"
)

// DerivePublicKey derives the Ed25519 public key from 64-byte secret key
// material (32-byte seed followed by the public half). The stored public half
// must agree with the key derived from the seed.
func DerivePublicKey(secret []byte) (PublicKey, error) {
	var pk PublicKey
	if len(secret) != SecretKeyLength {
		return pk, newError(KindKeyMismatch, "derive public key", "secret key is %d bytes, want %d", len(secret), SecretKeyLength)
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	defer clear(derived)

	pub := derived[ed25519.SeedSize:]
	if !bytes.Equal(pub, secret[ed25519.SeedSize:]) {
		return pk, newError(KindKeyMismatch, "derive public key", "secret key material is inconsistent")
	}
	copy(pk[:], pub)
	return pk, nil
}

// VerifyKey checks that secret derives the claimed sender address.
func VerifyKey(secret []byte, claimedAddress string) (PublicKey, error) {
	pk, err := DerivePublicKey(secret)
	if err != nil {
		return pk, err
	}
	if pk.String() != claimedAddress {
		return pk, newError(KindKeyMismatch, "verify key", "secret key does not match sender address %s", claimedAddress)
	}
	return pk, nil
}

// SignMessage produces a detached Ed25519 signature over the raw message
// bytes. Nothing is signed unless secret derives claimedAddress.
func SignMessage(message, secret []byte, claimedAddress string) (Signature, error) {
	var sig Signature
	if _, err := VerifyKey(secret, claimedAddress); err != nil {
		return sig, err
	}
	key := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	defer clear(key)

	copy(sig[:], ed25519.Sign(key, message))
	return sig, nil
}
