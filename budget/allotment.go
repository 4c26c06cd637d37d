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
	"fmt"
	"sort"
)

// ProposalSnapshot is a read-only copy of a proposal and its derived state,
// evaluated at a specific height. Snapshots never alias registry state.
type ProposalSnapshot struct {
	Name                  string
	URL                   string
	Hash                  Hash
	FeeTxHash             Hash
	Payee                 []byte
	BlockStart            int64
	BlockEnd              int64
	TotalPaymentCount     int
	RemainingPaymentCount int
	MonthlyPayment        int64
	TotalPayment          int64
	Yes                   int
	No                    int
	Abstain               int
	Ratio                 float64
	IsEstablished         bool
	IsValid               bool
	InvalidReason         string
	// Allotted is the amount assigned by the ranked allotment, zero when
	// the snapshot was not produced by GetBudget
	Allotted int64
}

// FinalizedBudgetSnapshot is a read-only copy of a finalized budget
// candidate with its vote count and cross-validation status
type FinalizedBudgetSnapshot struct {
	Name       string
	Hash       Hash
	FeeTxHash  Hash
	BlockStart int64
	BlockEnd   int64
	Payments   []BudgetPayment
	VoteCount  int
	Status     BudgetStatus
}

// snapshotProposal builds a snapshot at the current tip. Must be called
// with at least the read lock held.
func (m *Manager) snapshotProposal(p *Proposal) ProposalSnapshot {
	params := &m.config.Params
	tally := p.Tally()
	snapshot := ProposalSnapshot{
		Name:              p.Name,
		URL:               p.URL,
		Hash:              p.Hash(),
		FeeTxHash:         p.FeeTxHash,
		Payee:             append([]byte(nil), p.Payee...),
		BlockStart:        p.BlockStart,
		BlockEnd:          p.BlockEnd(params.CycleBlocks),
		TotalPaymentCount: p.PaymentCount,
		RemainingPaymentCount: p.RemainingPaymentCount(
			m.bestHeight,
			params.CycleBlocks,
		),
		MonthlyPayment: p.Amount,
		TotalPayment:   p.TotalPayment(),
		Yes:            tally.Yes,
		No:             tally.No,
		Abstain:        tally.Abstain,
		Ratio:          tally.Ratio(),
		IsEstablished:  p.IsEstablished(params, m.config.Maturity),
	}
	if err := p.CheckValid(m.bestHeight, params, m.config.Maturity); err != nil {
		snapshot.InvalidReason = err.Error()
	} else {
		snapshot.IsValid = true
	}
	return snapshot
}

// snapshotFinalized builds a snapshot with lazily evaluated status. Must be
// called with at least the read lock held.
func (m *Manager) snapshotFinalized(
	fb *FinalizedBudget,
) FinalizedBudgetSnapshot {
	payments := make([]BudgetPayment, len(fb.Payments))
	for i, payment := range fb.Payments {
		payment.Payee = append([]byte(nil), payment.Payee...)
		payments[i] = payment
	}
	return FinalizedBudgetSnapshot{
		Name:       fb.Name,
		Hash:       fb.Hash(),
		FeeTxHash:  fb.FeeTxHash,
		BlockStart: fb.BlockStart,
		BlockEnd:   fb.BlockEnd(),
		Payments:   payments,
		VoteCount:  fb.VoteCount(),
		Status:     m.budgetStatus(fb),
	}
}

// GetAllProposalsOrdered returns snapshots of every stored proposal,
// ordered by descending net yes votes with ties broken by ascending hash
func (m *Manager) GetAllProposalsOrdered() []ProposalSnapshot {
	m.RLock()
	defer m.RUnlock()
	ret := make([]ProposalSnapshot, 0, len(m.proposals))
	for _, p := range m.proposals {
		ret = append(ret, m.snapshotProposal(p))
	}
	sortProposalSnapshots(ret)
	return ret
}

func sortProposalSnapshots(snapshots []ProposalSnapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		netI := snapshots[i].Yes - snapshots[i].No
		netJ := snapshots[j].Yes - snapshots[j].No
		if netI != netJ {
			return netI > netJ
		}
		return snapshots[i].Hash.Less(snapshots[j].Hash)
	})
}

// GetBudget returns the ranked allotment at the engine's current tip: the
// proposals that would be funded by the next superblock, in funding order,
// with their allotted amounts filled in
func (m *Manager) GetBudget() []ProposalSnapshot {
	m.RLock()
	defer m.RUnlock()
	return m.rankedAllotment(m.bestHeight)
}

// RankedAllotment returns the funded proposal set for the cycle containing
// the given height
func (m *Manager) RankedAllotment(height int64) []ProposalSnapshot {
	m.RLock()
	defer m.RUnlock()
	return m.rankedAllotment(height)
}

// rankedAllotment selects and funds proposals deterministically. Must be
// called with at least the read lock held.
//
// Eligibility: valid (well-formed, established, not expired) with net yes
// votes above the validator-count threshold. Order: net yes descending,
// ties by ascending hash. Funding is greedy and all-or-nothing: a proposal
// that does not fit in the remaining allowance is skipped entirely.
func (m *Manager) rankedAllotment(height int64) []ProposalSnapshot {
	params := &m.config.Params
	threshold := 0
	if m.config.Validators != nil && params.ProposalNetYesDivisor > 0 {
		threshold = m.config.Validators.Count() / params.ProposalNetYesDivisor
	}
	eligible := make([]ProposalSnapshot, 0, len(m.proposals))
	for _, p := range m.proposals {
		if err := p.CheckValid(height, params, m.config.Maturity); err != nil {
			continue
		}
		if p.Tally().Net() <= threshold {
			continue
		}
		eligible = append(eligible, m.snapshotProposal(p))
	}
	sortProposalSnapshots(eligible)
	remaining := params.TotalBudget(height)
	funded := make([]ProposalSnapshot, 0, len(eligible))
	for _, snapshot := range eligible {
		if snapshot.MonthlyPayment > remaining {
			// No partial funding
			continue
		}
		snapshot.Allotted = snapshot.MonthlyPayment
		remaining -= snapshot.MonthlyPayment
		funded = append(funded, snapshot)
	}
	return funded
}

// GetFinalizedBudgets returns snapshots of every stored finalized budget
// candidate, ordered by descending vote count with ties broken by
// ascending hash
func (m *Manager) GetFinalizedBudgets() []FinalizedBudgetSnapshot {
	m.RLock()
	defer m.RUnlock()
	ret := make([]FinalizedBudgetSnapshot, 0, len(m.finalized))
	for _, fb := range m.finalized {
		ret = append(ret, m.snapshotFinalized(fb))
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].VoteCount != ret[j].VoteCount {
			return ret[i].VoteCount > ret[j].VoteCount
		}
		return ret[i].Hash.Less(ret[j].Hash)
	})
	return ret
}

// Status cross-validates a stored finalized budget against the proposal
// registry
func (m *Manager) Status(budgetHash Hash) (BudgetStatus, bool) {
	m.RLock()
	defer m.RUnlock()
	fb, ok := m.finalized[budgetHash]
	if !ok {
		return BudgetStatus{}, false
	}
	return m.budgetStatus(fb), true
}

// budgetStatus checks every scheduled payment against the authoritative
// proposal values. Must be called with at least the read lock held.
func (m *Manager) budgetStatus(fb *FinalizedBudget) BudgetStatus {
	var status BudgetStatus
	seenUnknown := make(map[Hash]bool)
	seenMismatch := make(map[Hash]bool)
	for height := fb.BlockStart; height < fb.BlockEnd(); height++ {
		payment, ok := fb.PaymentForHeight(height)
		if !ok {
			continue
		}
		p, ok := m.proposals[payment.ProposalHash]
		if !ok {
			if !seenUnknown[payment.ProposalHash] {
				seenUnknown[payment.ProposalHash] = true
				status.UnknownProposals = append(
					status.UnknownProposals,
					payment.ProposalHash,
				)
			}
			continue
		}
		if !bytes.Equal(p.Payee, payment.Payee) || p.Amount != payment.Amount {
			if !seenMismatch[payment.ProposalHash] {
				seenMismatch[payment.ProposalHash] = true
				status.PayeeMismatches = append(
					status.PayeeMismatches,
					payment.ProposalHash,
				)
			}
		}
	}
	return status
}

// WinningBudget returns the finalized budget that superblock validation
// should enforce at the given height: the candidate covering the height
// with the most votes at or above quorum. Ties break by ascending hash.
// The second return is false when no candidate reaches quorum, in which
// case the superblock pays no governance outputs.
func (m *Manager) WinningBudget(height int64) (FinalizedBudgetSnapshot, bool) {
	m.RLock()
	defer m.RUnlock()
	quorum := 1
	if m.config.Validators != nil &&
		m.config.Params.FinalizedQuorumDivisor > 0 {
		quorum = m.config.Validators.Count() /
			m.config.Params.FinalizedQuorumDivisor
		if quorum < 1 {
			quorum = 1
		}
	}
	var winner *FinalizedBudget
	for _, fb := range m.finalized {
		if !fb.Covers(height) {
			continue
		}
		if fb.VoteCount() < quorum {
			continue
		}
		if winner == nil ||
			fb.VoteCount() > winner.VoteCount() ||
			(fb.VoteCount() == winner.VoteCount() &&
				fb.Hash().Less(winner.Hash())) {
			winner = fb
		}
	}
	if winner == nil {
		return FinalizedBudgetSnapshot{}, false
	}
	return m.snapshotFinalized(winner), true
}

// SuggestFinalBudget builds a finalized budget candidate from the current
// ranked allotment for the next cycle. The caller is responsible for
// creating the collateral fee transaction and resubmitting the candidate
// through AddFinalizedBudget.
func (m *Manager) SuggestFinalBudget() (*FinalizedBudget, error) {
	m.RLock()
	defer m.RUnlock()
	blockStart := m.config.Params.NextCycleStart(m.bestHeight)
	funded := m.rankedAllotment(blockStart)
	if len(funded) == 0 {
		return nil, fmt.Errorf(
			"no fundable proposals for cycle starting at %d",
			blockStart,
		)
	}
	payments := make([]BudgetPayment, 0, len(funded))
	for _, snapshot := range funded {
		payments = append(payments, BudgetPayment{
			ProposalHash: snapshot.Hash,
			Payee:        snapshot.Payee,
			Amount:       snapshot.Allotted,
		})
	}
	return NewFinalizedBudget("main", blockStart, payments, ZeroHash), nil
}
