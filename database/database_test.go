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

package database_test

import (
	"testing"

	"github.com/cinderlabs-io/exchequer/budget"
	"github.com/cinderlabs-io/exchequer/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(database.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func testFeeTxHash(b byte) budget.Hash {
	var hash budget.Hash
	for i := range hash {
		hash[i] = b
	}
	return hash
}

func TestProposalRoundTrip(t *testing.T) {
	db := testDatabase(t)
	p := budget.NewProposal(
		"network-dev",
		"https://forum.example.com/network-dev",
		[]byte{0x76, 0xa9, 0x14, 0x01, 0x02, 0x03},
		500_000_000,
		43200,
		3,
		testFeeTxHash(0xaa),
	)
	require.NoError(t, db.SetProposal(p))

	loaded, err := db.LoadProposals()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, p.Hash(), got.Hash())
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.URL, got.URL)
	assert.Equal(t, p.Payee, got.Payee)
	assert.Equal(t, p.Amount, got.Amount)
	assert.Equal(t, p.BlockStart, got.BlockStart)
	assert.Equal(t, p.PaymentCount, got.PaymentCount)
	assert.Equal(t, p.FeeTxHash, got.FeeTxHash)
}

func TestProposalVotesReload(t *testing.T) {
	db := testDatabase(t)
	p := budget.NewProposal(
		"infra",
		"https://forum.example.com/infra",
		[]byte{0x51},
		100_000_000,
		43200,
		1,
		testFeeTxHash(0xbb),
	)
	require.NoError(t, db.SetProposal(p))

	legacyVote := budget.Vote{
		Voter:        budget.NewLegacyVoter(testFeeTxHash(0x01), 0),
		ProposalHash: p.Hash(),
		Direction:    budget.VoteYes,
		Time:         1700000000,
		Signature:    []byte{0xde, 0xad},
	}
	operatorVote := budget.Vote{
		Voter:        budget.NewDeterministicVoter([]byte{0x0a, 0x0b}),
		ProposalHash: p.Hash(),
		Direction:    budget.VoteNo,
		Time:         1700000100,
		Signature:    []byte{0xbe, 0xef},
	}
	require.NoError(t, db.SetProposalVote(p.Hash(), legacyVote))
	require.NoError(t, db.SetProposalVote(p.Hash(), operatorVote))

	loaded, err := db.LoadProposals()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	votes := loaded[0].Votes()
	require.Len(t, votes, 2)
	byKey := make(map[string]budget.Vote)
	for _, vote := range votes {
		byKey[vote.Voter.Key()] = vote
	}
	got, ok := byKey[legacyVote.Voter.Key()]
	require.True(t, ok)
	assert.Equal(t, legacyVote, got)
	got, ok = byKey[operatorVote.Voter.Key()]
	require.True(t, ok)
	assert.Equal(t, operatorVote, got)
}

func TestProposalVoteReplacement(t *testing.T) {
	db := testDatabase(t)
	p := budget.NewProposal(
		"research",
		"https://forum.example.com/research",
		[]byte{0x51},
		100_000_000,
		43200,
		1,
		testFeeTxHash(0xcc),
	)
	require.NoError(t, db.SetProposal(p))

	voter := budget.NewLegacyVoter(testFeeTxHash(0x02), 1)
	first := budget.Vote{
		Voter:        voter,
		ProposalHash: p.Hash(),
		Direction:    budget.VoteYes,
		Time:         1700000000,
		Signature:    []byte{0x01},
	}
	second := budget.Vote{
		Voter:        voter,
		ProposalHash: p.Hash(),
		Direction:    budget.VoteNo,
		Time:         1700000500,
		Signature:    []byte{0x02},
	}
	require.NoError(t, db.SetProposalVote(p.Hash(), first))
	require.NoError(t, db.SetProposalVote(p.Hash(), second))

	loaded, err := db.LoadProposals()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	votes := loaded[0].Votes()
	require.Len(t, votes, 1)
	assert.Equal(t, second, votes[0])
}

func TestDeleteProposal(t *testing.T) {
	db := testDatabase(t)
	p := budget.NewProposal(
		"short-lived",
		"https://forum.example.com/short-lived",
		[]byte{0x51},
		100_000_000,
		43200,
		1,
		testFeeTxHash(0xdd),
	)
	require.NoError(t, db.SetProposal(p))
	require.NoError(t, db.SetProposalVote(p.Hash(), budget.Vote{
		Voter:        budget.NewLegacyVoter(testFeeTxHash(0x03), 0),
		ProposalHash: p.Hash(),
		Direction:    budget.VoteYes,
		Time:         1700000000,
	}))

	require.NoError(t, db.DeleteProposal(p.Hash()))

	loaded, err := db.LoadProposals()
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// Deleting again is a no-op
	require.NoError(t, db.DeleteProposal(p.Hash()))
}

func TestFinalizedBudgetRoundTrip(t *testing.T) {
	db := testDatabase(t)
	fb := budget.NewFinalizedBudget(
		"main",
		43200,
		[]budget.BudgetPayment{
			{
				ProposalHash: testFeeTxHash(0x11),
				Payee:        []byte{0x51},
				Amount:       100_000_000,
			},
			{
				ProposalHash: testFeeTxHash(0x12),
				Payee:        []byte{0x52},
				Amount:       200_000_000,
			},
		},
		testFeeTxHash(0xee),
	)
	require.NoError(t, db.SetFinalizedBudget(fb))
	require.NoError(t, db.SetFinalizedBudgetVote(
		fb.Hash(),
		budget.FinalizedBudgetVote{
			Voter:      budget.NewDeterministicVoter([]byte{0x0c}),
			BudgetHash: fb.Hash(),
			Time:       1700001000,
			Signature:  []byte{0x03},
		},
	))

	loaded, err := db.LoadFinalizedBudgets()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, fb.Hash(), got.Hash())
	assert.Equal(t, fb.Name, got.Name)
	assert.Equal(t, fb.BlockStart, got.BlockStart)
	assert.Equal(t, fb.Payments, got.Payments)
	assert.Equal(t, fb.FeeTxHash, got.FeeTxHash)
	require.Len(t, got.Votes(), 1)

	require.NoError(t, db.DeleteFinalizedBudget(fb.Hash()))
	loaded, err = db.LoadFinalizedBudgets()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestClear(t *testing.T) {
	db := testDatabase(t)
	p := budget.NewProposal(
		"to-clear",
		"https://forum.example.com/to-clear",
		[]byte{0x51},
		100_000_000,
		43200,
		1,
		testFeeTxHash(0x21),
	)
	require.NoError(t, db.SetProposal(p))
	fb := budget.NewFinalizedBudget(
		"main",
		43200,
		[]budget.BudgetPayment{
			{
				ProposalHash: p.Hash(),
				Payee:        []byte{0x51},
				Amount:       100_000_000,
			},
		},
		testFeeTxHash(0x22),
	)
	require.NoError(t, db.SetFinalizedBudget(fb))

	require.NoError(t, db.Clear())

	proposals, err := db.LoadProposals()
	require.NoError(t, err)
	assert.Empty(t, proposals)
	budgets, err := db.LoadFinalizedBudgets()
	require.NoError(t, err)
	assert.Empty(t, budgets)
}
