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

package budget_test

import (
	"testing"

	"github.com/cinderlabs-io/exchequer/budget"
	"github.com/cinderlabs-io/exchequer/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalEncodeDecode(t *testing.T) {
	p := testProposal()
	body := p.Encode()

	decoded, err := budget.DecodeProposal(body)
	require.NoError(t, err)
	// The decoded record re-derives the identical hash
	assert.Equal(t, p.Hash(), decoded.Hash())
	assert.Equal(t, body, decoded.Encode())
}

func TestProposalDecodeErrors(t *testing.T) {
	body := testProposal().Encode()

	// Truncation anywhere fails
	for _, cut := range []int{0, 1, 2, 10, len(body) - 1} {
		_, err := budget.DecodeProposal(body[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}

	// Trailing bytes fail
	_, err := budget.DecodeProposal(append(append([]byte{}, body...), 0x00))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")

	// Wrong version byte
	bad := append([]byte{}, body...)
	bad[0] = 0xff
	_, err = budget.DecodeProposal(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported record version")

	// Wrong record type
	bad = append([]byte{}, body...)
	bad[1] = 0xff
	_, err = budget.DecodeProposal(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected record type")
}

func TestFinalizedBudgetEncodeDecode(t *testing.T) {
	fb := budget.NewFinalizedBudget(
		"main",
		43200,
		[]budget.BudgetPayment{
			{
				ProposalHash: testHash(0x11),
				Payee:        []byte{0x51},
				Amount:       100 * chaincfg.Coin,
			},
			{
				ProposalHash: testHash(0x12),
				Payee:        []byte{0x52, 0x53},
				Amount:       250 * chaincfg.Coin,
			},
		},
		testHash(0xee),
	)
	body := fb.Encode()

	decoded, err := budget.DecodeFinalizedBudget(body)
	require.NoError(t, err)
	assert.Equal(t, fb.Hash(), decoded.Hash())
	assert.Equal(t, fb.Payments, decoded.Payments)
	assert.Equal(t, body, decoded.Encode())
}

func TestFinalizedBudgetDecodeErrors(t *testing.T) {
	fb := budget.NewFinalizedBudget(
		"main",
		43200,
		[]budget.BudgetPayment{
			{
				ProposalHash: testHash(0x11),
				Payee:        []byte{0x51},
				Amount:       100 * chaincfg.Coin,
			},
		},
		testHash(0xee),
	)
	body := fb.Encode()

	for _, cut := range []int{0, 2, 12, len(body) - 1} {
		_, err := budget.DecodeFinalizedBudget(body[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}

	_, err := budget.DecodeFinalizedBudget(
		append(append([]byte{}, body...), 0x00),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing bytes")

	// A proposal record is not a finalized budget
	_, err = budget.DecodeFinalizedBudget(testProposal().Encode())
	assert.Error(t, err)
}

func TestVotePayloads(t *testing.T) {
	voter := budget.NewLegacyVoter(testHash(0x01), 3)
	vote := budget.Vote{
		Voter:        voter,
		ProposalHash: testHash(0x02),
		Direction:    budget.VoteYes,
		Time:         1700000000,
	}

	// Signature message is deterministic
	assert.Equal(t, vote.SignatureMessage(), vote.SignatureMessage())
	assert.Equal(t, vote.Hash(), vote.Hash())

	// Each field change produces a distinct payload
	changed := vote
	changed.Direction = budget.VoteNo
	assert.NotEqual(t, vote.Hash(), changed.Hash())
	changed = vote
	changed.Time++
	assert.NotEqual(t, vote.Hash(), changed.Hash())
	changed = vote
	changed.Voter = budget.NewLegacyVoter(testHash(0x01), 4)
	assert.NotEqual(t, vote.Hash(), changed.Hash())

	// Finalized budget votes with the same voter/target/time hash the same
	// as a yes proposal vote on the same target
	fbVote := budget.FinalizedBudgetVote{
		Voter:      voter,
		BudgetHash: testHash(0x02),
		Time:       1700000000,
	}
	assert.Equal(t, vote.Hash(), fbVote.Hash())
}

func TestVoterKeys(t *testing.T) {
	legacy := budget.NewLegacyVoter(testHash(0x01), 0)
	operator := budget.NewDeterministicVoter([]byte{0x0a, 0x0b})

	assert.NotEqual(t, legacy.Key(), operator.Key())
	assert.Equal(t, legacy.Key(), budget.NewLegacyVoter(testHash(0x01), 0).Key())
	assert.NotEqual(
		t,
		legacy.Key(),
		budget.NewLegacyVoter(testHash(0x01), 1).Key(),
	)
	assert.Contains(t, legacy.Key(), "legacy:")
	assert.Contains(t, operator.Key(), "operator:")
}
