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
	"time"

	"github.com/cinderlabs-io/exchequer/budget"
	"github.com/cinderlabs-io/exchequer/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHash(b byte) budget.Hash {
	var hash budget.Hash
	for i := range hash {
		hash[i] = b
	}
	return hash
}

func testProposal() *budget.Proposal {
	return budget.NewProposal(
		"network-dev",
		"https://forum.example.com/network-dev",
		[]byte{0x76, 0xa9, 0x14, 0x01},
		500*chaincfg.Coin,
		43200,
		3,
		testHash(0xaa),
	)
}

// stubOracle is a canned maturity oracle
type stubOracle struct {
	confirmed map[budget.Hash]bool
	age       map[budget.Hash]time.Duration
}

func (o *stubOracle) IsConfirmedAndMature(
	feeTxHash budget.Hash,
	confirmations int,
) bool {
	return o.confirmed[feeTxHash]
}

func (o *stubOracle) AgeOf(feeTxHash budget.Hash) (time.Duration, bool) {
	age, ok := o.age[feeTxHash]
	return age, ok
}

func establishedOracle(feeTxHash budget.Hash) *stubOracle {
	return &stubOracle{
		confirmed: map[budget.Hash]bool{feeTxHash: true},
		age: map[budget.Hash]time.Duration{
			feeTxHash: 25 * time.Hour,
		},
	}
}

func TestProposalHashDeterministic(t *testing.T) {
	p1 := testProposal()
	p2 := testProposal()
	assert.Equal(t, p1.Hash(), p2.Hash())
	assert.False(t, p1.Hash().IsZero())

	// Any identity field change produces a different hash
	p3 := budget.NewProposal(
		"network-dev",
		"https://forum.example.com/network-dev",
		[]byte{0x76, 0xa9, 0x14, 0x01},
		500*chaincfg.Coin,
		43200,
		4,
		testHash(0xaa),
	)
	assert.NotEqual(t, p1.Hash(), p3.Hash())
}

func TestProposalBlockEnd(t *testing.T) {
	p := testProposal()
	assert.Equal(t, int64(43200*4), p.BlockEnd(43200))
	assert.Equal(t, 3, p.RemainingPaymentCount(0, 43200))
	assert.Equal(t, 3, p.RemainingPaymentCount(43200, 43200))
	assert.Equal(t, 2, p.RemainingPaymentCount(43200*2, 43200))
	assert.Equal(t, 1, p.RemainingPaymentCount(43200*3, 43200))
	assert.Equal(t, 1, p.RemainingPaymentCount(43200*4-1, 43200))
	assert.Equal(t, 0, p.RemainingPaymentCount(43200*4, 43200))
	assert.Equal(t, int64(1500*chaincfg.Coin), p.TotalPayment())
}

func TestProposalCheckWellFormed(t *testing.T) {
	params := &chaincfg.MainNetParams
	for _, tc := range []struct {
		name     string
		mutate   func(p *budget.Proposal)
		errorMsg string
	}{
		{
			name:   "valid",
			mutate: func(p *budget.Proposal) {},
		},
		{
			name: "empty name",
			mutate: func(p *budget.Proposal) {
				p.Name = ""
			},
			errorMsg: "invalid proposal name",
		},
		{
			name: "name too long",
			mutate: func(p *budget.Proposal) {
				p.Name = "a-very-long-proposal-name"
			},
			errorMsg: "invalid proposal name",
		},
		{
			name: "name with control character",
			mutate: func(p *budget.Proposal) {
				p.Name = "bad\x00name"
			},
			errorMsg: "invalid characters",
		},
		{
			name: "url too short",
			mutate: func(p *budget.Proposal) {
				p.URL = "a"
			},
			errorMsg: "too short",
		},
		{
			name: "url with whitespace",
			mutate: func(p *budget.Proposal) {
				p.URL = "https://example.com/a b"
			},
			errorMsg: "whitespace",
		},
		{
			name: "empty payee",
			mutate: func(p *budget.Proposal) {
				p.Payee = nil
			},
			errorMsg: "empty payee",
		},
		{
			name: "zero payment count",
			mutate: func(p *budget.Proposal) {
				p.PaymentCount = 0
			},
			errorMsg: "more than zero",
		},
		{
			name: "payment count above cap",
			mutate: func(p *budget.Proposal) {
				p.PaymentCount = params.MaxProposalPayments + 1
			},
			errorMsg: "must be <= 12",
		},
		{
			name: "misaligned block start",
			mutate: func(p *budget.Proposal) {
				p.BlockStart = 1000
			},
			errorMsg: "budget cycle block",
		},
		{
			name: "zero block start",
			mutate: func(p *budget.Proposal) {
				p.BlockStart = 0
			},
			errorMsg: "budget cycle block",
		},
		{
			name: "amount below minimum",
			mutate: func(p *budget.Proposal) {
				p.Amount = params.MinProposalAmount - 1
			},
			errorMsg: "less than minimum",
		},
		{
			name: "amount above total budget",
			mutate: func(p *budget.Proposal) {
				p.Amount = params.TotalBudget(p.BlockStart) + 1
			},
			errorMsg: "more than max",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := testProposal()
			tc.mutate(p)
			err := p.CheckWellFormed(params)
			if tc.errorMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
			}
		})
	}
}

func TestProposalEstablished(t *testing.T) {
	params := &chaincfg.MainNetParams
	p := testProposal()

	// No oracle, never established
	assert.False(t, p.IsEstablished(params, nil))

	// Confirmed but too young
	oracle := &stubOracle{
		confirmed: map[budget.Hash]bool{p.FeeTxHash: true},
		age: map[budget.Hash]time.Duration{
			p.FeeTxHash: time.Hour,
		},
	}
	assert.False(t, p.IsEstablished(params, oracle))

	// Old enough but not confirmed
	oracle.confirmed[p.FeeTxHash] = false
	oracle.age[p.FeeTxHash] = 25 * time.Hour
	assert.False(t, p.IsEstablished(params, oracle))

	// Confirmed and old enough
	oracle.confirmed[p.FeeTxHash] = true
	assert.True(t, p.IsEstablished(params, oracle))
}

func TestProposalCheckValid(t *testing.T) {
	params := &chaincfg.MainNetParams
	p := testProposal()
	oracle := establishedOracle(p.FeeTxHash)

	assert.NoError(t, p.CheckValid(0, params, oracle))
	assert.NoError(t, p.CheckValid(p.BlockEnd(params.CycleBlocks)-1, params, oracle))

	err := p.CheckValid(p.BlockEnd(params.CycleBlocks), params, oracle)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended")

	err = p.CheckValid(0, params, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")
}

func TestProposalApplyVote(t *testing.T) {
	p := testProposal()
	voter := budget.NewLegacyVoter(testHash(0x01), 0)
	first := budget.Vote{
		Voter:        voter,
		ProposalHash: p.Hash(),
		Direction:    budget.VoteYes,
		Time:         100,
	}
	require.True(t, p.ApplyVote(first))
	assert.Equal(t, budget.Tally{Yes: 1}, p.Tally())

	// Same timestamp does not replace
	stale := first
	stale.Direction = budget.VoteNo
	assert.False(t, p.ApplyVote(stale))
	assert.Equal(t, budget.Tally{Yes: 1}, p.Tally())

	// Newer timestamp replaces the voter's slot
	newer := stale
	newer.Time = 200
	require.True(t, p.ApplyVote(newer))
	assert.Equal(t, budget.Tally{No: 1}, p.Tally())
	assert.Equal(t, 1, p.VoteCount())

	// A different voter gets its own slot
	other := budget.Vote{
		Voter:        budget.NewDeterministicVoter([]byte{0x02}),
		ProposalHash: p.Hash(),
		Direction:    budget.VoteAbstain,
		Time:         100,
	}
	require.True(t, p.ApplyVote(other))
	assert.Equal(t, budget.Tally{No: 1, Abstain: 1}, p.Tally())
}

func TestTallyDerived(t *testing.T) {
	tally := budget.Tally{Yes: 6, No: 2, Abstain: 4}
	assert.Equal(t, 4, tally.Net())
	assert.InDelta(t, 0.75, tally.Ratio(), 0.0001)
	assert.Equal(t, 0.0, budget.Tally{Abstain: 3}.Ratio())
}
