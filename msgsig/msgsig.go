// Copyright 2025 Cinder Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package msgsig verifies secp256k1 signatures over governance vote
// payloads. Votes travel over an untrusted network, so verification must
// never panic on arbitrary input.
package msgsig

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// MessageMagic is prepended to every payload before hashing so a vote
// signature can never be replayed as a transaction signature
const MessageMagic = "Exchequer Signed Message:\n"

const compactSignatureLength = 64

// MessageDigest returns the double-SHA256 digest that is actually signed
func MessageDigest(message []byte) []byte {
	buf := make([]byte, 0, len(MessageMagic)+len(message))
	buf = append(buf, MessageMagic...)
	buf = append(buf, message...)
	first := sha256.Sum256(buf)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Verifier checks vote signatures against validator public keys
type Verifier struct{}

// NewVerifier returns a secp256k1 signature verifier
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify reports whether signature is a valid secp256k1 signature by
// publicKey over message. The public key may be in compressed or
// uncompressed form; the signature may be DER or 64-byte compact (r || s).
// Any parse failure is an invalid signature, not an error.
func (v *Verifier) Verify(message []byte, signature []byte, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, ok := parseSignature(signature)
	if !ok {
		return false
	}
	return sig.Verify(MessageDigest(message), pubKey)
}

func parseSignature(signature []byte) (*ecdsa.Signature, bool) {
	if len(signature) == compactSignatureLength {
		var r, s secp256k1.ModNScalar
		if overflow := r.SetByteSlice(signature[:32]); overflow {
			return nil, false
		}
		if overflow := s.SetByteSlice(signature[32:]); overflow {
			return nil, false
		}
		return ecdsa.NewSignature(&r, &s), true
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return nil, false
	}
	return sig, true
}

// Sign produces a DER signature by privateKey over message. It exists for
// tooling and tests; the consensus path only ever verifies.
func Sign(privateKey *secp256k1.PrivateKey, message []byte) []byte {
	return ecdsa.Sign(privateKey, MessageDigest(message)).Serialize()
}
