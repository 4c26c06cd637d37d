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
	"errors"
	"fmt"
	"strings"
)

// BudgetPayment is one scheduled payment inside a finalized budget
type BudgetPayment struct {
	ProposalHash Hash
	Payee        []byte
	Amount       int64
}

// FinalizedBudget is a concrete payment schedule for one cycle: one payment
// per block in [BlockStart, BlockEnd). Candidates are voted on by
// validators and the one with the most votes at quorum wins.
type FinalizedBudget struct {
	Name       string
	BlockStart int64
	Payments   []BudgetPayment
	FeeTxHash  Hash

	hash  Hash
	votes map[string]FinalizedBudgetVote
}

// NewFinalizedBudget constructs a finalized budget candidate and computes
// its content hash
func NewFinalizedBudget(
	name string,
	blockStart int64,
	payments []BudgetPayment,
	feeTxHash Hash,
) *FinalizedBudget {
	fb := &FinalizedBudget{
		Name:       name,
		BlockStart: blockStart,
		Payments:   payments,
		FeeTxHash:  feeTxHash,
		votes:      make(map[string]FinalizedBudgetVote),
	}
	fb.hash = hashContent(fb.encodeIdentity())
	return fb
}

// Hash returns the content hash over (name, start, payments, fee tx)
func (fb *FinalizedBudget) Hash() Hash {
	return fb.hash
}

// BlockEnd returns the first height past the schedule
func (fb *FinalizedBudget) BlockEnd() int64 {
	return fb.BlockStart + int64(len(fb.Payments))
}

// Covers returns true when the schedule pays at the given height
func (fb *FinalizedBudget) Covers(height int64) bool {
	return height >= fb.BlockStart && height < fb.BlockEnd()
}

// PaymentForHeight returns the scheduled payment at the given height
func (fb *FinalizedBudget) PaymentForHeight(height int64) (BudgetPayment, bool) {
	if !fb.Covers(height) {
		return BudgetPayment{}, false
	}
	return fb.Payments[height-fb.BlockStart], true
}

// TotalAmount returns the sum of all scheduled payments
func (fb *FinalizedBudget) TotalAmount() int64 {
	var total int64
	for _, payment := range fb.Payments {
		total += payment.Amount
	}
	return total
}

// ProposalHashes returns the referenced proposal hash for each payment, in
// schedule order
func (fb *FinalizedBudget) ProposalHashes() []Hash {
	ret := make([]Hash, len(fb.Payments))
	for i, payment := range fb.Payments {
		ret[i] = payment.ProposalHash
	}
	return ret
}

// Votes returns a snapshot of the candidate's current votes
func (fb *FinalizedBudget) Votes() []FinalizedBudgetVote {
	ret := make([]FinalizedBudgetVote, 0, len(fb.votes))
	for _, vote := range fb.votes {
		ret = append(ret, vote)
	}
	return ret
}

// VoteCount returns the number of retained votes
func (fb *FinalizedBudget) VoteCount() int {
	return len(fb.votes)
}

// ApplyVote inserts or replaces the voter's slot. A vote with a timestamp
// at or below the stored one is a benign no-op and returns false.
func (fb *FinalizedBudget) ApplyVote(vote FinalizedBudgetVote) bool {
	if fb.votes == nil {
		fb.votes = make(map[string]FinalizedBudgetVote)
	}
	key := vote.Voter.Key()
	if existing, ok := fb.votes[key]; ok {
		if vote.Time <= existing.Time {
			return false
		}
	}
	fb.votes[key] = vote
	return true
}

// CheckWellFormed validates the candidate's shape. Cross-validation against
// known proposals is deferred to Status because proposals may arrive after
// the budgets that reference them.
func (fb *FinalizedBudget) CheckWellFormed(cycleBlocks int64) error {
	if fb.Name == "" || len(fb.Name) > MaxProposalNameLength {
		return fmt.Errorf(
			"invalid budget name, limit of %d characters",
			MaxProposalNameLength,
		)
	}
	if fb.BlockStart <= 0 || fb.BlockStart%cycleBlocks != 0 {
		return fmt.Errorf(
			"invalid block start %d, must be a budget cycle block",
			fb.BlockStart,
		)
	}
	if len(fb.Payments) == 0 {
		return errors.New("empty payment schedule")
	}
	if int64(len(fb.Payments)) > cycleBlocks {
		return fmt.Errorf(
			"payment schedule longer than one cycle (%d blocks)",
			cycleBlocks,
		)
	}
	for i, payment := range fb.Payments {
		if len(payment.Payee) == 0 {
			return fmt.Errorf("empty payee script in payment %d", i)
		}
		if payment.Amount <= 0 {
			return fmt.Errorf("invalid amount in payment %d", i)
		}
	}
	return nil
}

// BudgetStatus is the result of cross-validating a finalized budget against
// the proposals it references. Any mismatch degrades the reported status
// but does not by itself evict the budget.
type BudgetStatus struct {
	// UnknownProposals lists referenced proposal hashes not present in the
	// proposal registry
	UnknownProposals []Hash
	// PayeeMismatches lists referenced proposals whose payee or amount
	// differs from the proposal's authoritative values
	PayeeMismatches []Hash
}

// OK returns true when every payment matched a known proposal exactly
func (s BudgetStatus) OK() bool {
	return len(s.UnknownProposals) == 0 && len(s.PayeeMismatches) == 0
}

func (s BudgetStatus) String() string {
	if s.OK() {
		return "OK"
	}
	var parts []string
	if len(s.UnknownProposals) > 0 {
		hashes := make([]string, len(s.UnknownProposals))
		for i, h := range s.UnknownProposals {
			hashes[i] = h.String()
		}
		parts = append(
			parts,
			"unknown proposal(s): "+strings.Join(hashes, ", "),
		)
	}
	if len(s.PayeeMismatches) > 0 {
		hashes := make([]string, len(s.PayeeMismatches))
		for i, h := range s.PayeeMismatches {
			hashes[i] = h.String()
		}
		parts = append(
			parts,
			"payee/amount mismatch: "+strings.Join(hashes, ", "),
		)
	}
	return strings.Join(parts, " -- ")
}
