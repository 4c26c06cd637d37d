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

import "time"

// SignatureVerifier checks a vote signature against a resolved public key.
// The engine never touches raw cryptographic material beyond opaque byte
// slices.
type SignatureVerifier interface {
	Verify(message, signature, publicKey []byte) bool
}

// ValidatorDirectory resolves voters to their current public keys and
// reports the size of the active validator set, which drives the allotment
// and quorum thresholds.
type ValidatorDirectory interface {
	// LookupKey returns the public key a voter's signatures must verify
	// against, or false if the voter is not an active validator
	LookupKey(voter VoterID) ([]byte, bool)
	// Count returns the number of active validators
	Count() int
}

// MaturityOracle answers confirmation-depth and age questions about fee
// transactions. It is backed by the chain/UTXO engine, which is outside
// this module.
type MaturityOracle interface {
	// IsConfirmedAndMature returns true once the transaction has at least
	// the required number of confirmations
	IsConfirmedAndMature(txid Hash, requiredConfirmations int) bool
	// AgeOf returns the time since the transaction's first confirmation.
	// The second return is false when the transaction is not yet known.
	AgeOf(txid Hash) (time.Duration, bool)
}

// Store persists accepted objects and their votes so the engine can reload
// its registries at startup. Implementations must preserve round-trip
// fidelity: a reloaded object re-derives the identical hash.
type Store interface {
	SetProposal(p *Proposal) error
	DeleteProposal(hash Hash) error
	SetProposalVote(proposalHash Hash, vote Vote) error
	SetFinalizedBudget(fb *FinalizedBudget) error
	DeleteFinalizedBudget(hash Hash) error
	SetFinalizedBudgetVote(budgetHash Hash, vote FinalizedBudgetVote) error
	LoadProposals() ([]*Proposal, error)
	LoadFinalizedBudgets() ([]*FinalizedBudget, error)
	Clear() error
}
