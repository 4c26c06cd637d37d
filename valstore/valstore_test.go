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

package valstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cinderlabs-io/exchequer/budget"
	"github.com/cinderlabs-io/exchequer/valstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLookup(t *testing.T) {
	r, err := valstore.NewRegistry(valstore.RegistryConfig{})
	require.NoError(t, err)
	voter := budget.NewDeterministicVoter([]byte{0x01, 0x02})
	pubKey := []byte{0xaa, 0xbb}
	require.NoError(t, r.Register(voter, pubKey))

	got, ok := r.LookupKey(voter)
	require.True(t, ok)
	assert.Equal(t, pubKey, got)
	assert.Equal(t, 1, r.Count())

	// Duplicate registration fails
	assert.ErrorIs(
		t,
		r.Register(voter, []byte{0xcc}),
		valstore.ErrDuplicateValidator,
	)
}

func TestReplaceDeregister(t *testing.T) {
	r, err := valstore.NewRegistry(valstore.RegistryConfig{})
	require.NoError(t, err)
	voter := budget.NewLegacyVoter(budget.Hash{0x01}, 2)

	assert.ErrorIs(
		t,
		r.Replace(voter, []byte{0x01}),
		valstore.ErrUnknownValidator,
	)

	require.NoError(t, r.Register(voter, []byte{0x01}))
	require.NoError(t, r.Replace(voter, []byte{0x02}))
	got, ok := r.LookupKey(voter)
	require.True(t, ok)
	assert.Equal(t, []byte{0x02}, got)

	r.Deregister(voter)
	_, ok = r.LookupKey(voter)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())

	// Deregistering an unknown voter is a no-op
	r.Deregister(voter)
}

func TestLoadFile(t *testing.T) {
	content := `
validators:
  - operatorKey: "0a0b0c"
    publicKey: "02aabb"
  - collateralTx: "0101010101010101010101010101010101010101010101010101010101010101"
    collateralVout: 1
    publicKey: "03ccdd"
`
	path := filepath.Join(t.TempDir(), "validators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := valstore.NewRegistry(valstore.RegistryConfig{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, r.Count())

	got, ok := r.LookupKey(
		budget.NewDeterministicVoter([]byte{0x0a, 0x0b, 0x0c}),
	)
	require.True(t, ok)
	assert.Equal(t, []byte{0x02, 0xaa, 0xbb}, got)

	var collateralTx budget.Hash
	for i := range collateralTx {
		collateralTx[i] = 0x01
	}
	got, ok = r.LookupKey(budget.NewLegacyVoter(collateralTx, 1))
	require.True(t, ok)
	assert.Equal(t, []byte{0x03, 0xcc, 0xdd}, got)
}

func TestLoadFileInvalid(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{
			name: "both identities",
			content: `validators:
  - operatorKey: "0a"
    collateralTx: "0101010101010101010101010101010101010101010101010101010101010101"
    publicKey: "02aabb"
`,
		},
		{
			name: "no identity",
			content: `validators:
  - publicKey: "02aabb"
`,
		},
		{
			name: "missing public key",
			content: `validators:
  - operatorKey: "0a"
`,
		},
		{
			name: "short collateral tx",
			content: `validators:
  - collateralTx: "0101"
    publicKey: "02aabb"
`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "validators.yaml")
			require.NoError(
				t,
				os.WriteFile(path, []byte(tc.content), 0o600),
			)
			_, err := valstore.NewRegistry(
				valstore.RegistryConfig{Path: path},
			)
			assert.Error(t, err)
		})
	}
}
