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

package budget

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashSize is the size of an object content hash in bytes
const HashSize = 32

// Hash identifies a proposal, finalized budget, vote, or fee transaction by
// its content
type Hash [HashSize]byte

// ZeroHash is the all-zeroes hash, used as a placeholder fee transaction id
// when constructing an object before its collateral exists
var ZeroHash = Hash{}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero returns true for the all-zeroes hash
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Less provides the total ordering used for deterministic tie-breaking
func (h Hash) Less(other Hash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// NewHashFromBytes converts a raw slice into a Hash
func NewHashFromBytes(data []byte) (Hash, error) {
	var h Hash
	if len(data) != HashSize {
		return h, fmt.Errorf("invalid hash length: %d", len(data))
	}
	copy(h[:], data)
	return h, nil
}

// NewHashFromString parses a hex-encoded hash
func NewHashFromString(s string) (Hash, error) {
	data, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash: %w", err)
	}
	return NewHashFromBytes(data)
}

func hashContent(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}
