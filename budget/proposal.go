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
	"unicode"

	"github.com/cinderlabs-io/exchequer/chaincfg"
)

const (
	// MaxProposalNameLength bounds the proposal name
	MaxProposalNameLength = 20
	// MaxProposalURLLength bounds the proposal URL
	MaxProposalURLLength = 64
)

// Proposal is a recurring payment request voted on by validators. The
// identity fields are immutable once constructed; only the vote map
// changes, and only through the manager.
type Proposal struct {
	Name string
	URL  string
	// Payee is the output script payments are made to
	Payee []byte
	// Amount is the payment per cycle in minor currency units
	Amount int64
	// BlockStart is the first superblock height this proposal is paid at.
	// It must be a multiple of the cycle length.
	BlockStart int64
	// PaymentCount is the total number of cycle payments requested
	PaymentCount int
	// FeeTxHash is the collateral fee transaction proving the submission
	// fee was paid
	FeeTxHash Hash

	hash  Hash
	votes map[string]Vote
}

// NewProposal constructs a proposal and computes its content hash
func NewProposal(
	name string,
	url string,
	payee []byte,
	amount int64,
	blockStart int64,
	paymentCount int,
	feeTxHash Hash,
) *Proposal {
	p := &Proposal{
		Name:         name,
		URL:          url,
		Payee:        payee,
		Amount:       amount,
		BlockStart:   blockStart,
		PaymentCount: paymentCount,
		FeeTxHash:    feeTxHash,
		votes:        make(map[string]Vote),
	}
	p.hash = hashContent(p.encodeIdentity())
	return p
}

// Hash returns the content hash over the proposal's immutable fields
func (p *Proposal) Hash() Hash {
	return p.hash
}

// BlockEnd returns the first height past the proposal's final payment
func (p *Proposal) BlockEnd(cycleBlocks int64) int64 {
	return p.BlockStart + int64(p.PaymentCount)*cycleBlocks
}

// RemainingPaymentCount returns how many cycle payments have not yet
// elapsed at the given height
func (p *Proposal) RemainingPaymentCount(
	height int64,
	cycleBlocks int64,
) int {
	if cycleBlocks <= 0 {
		return 0
	}
	end := p.BlockEnd(cycleBlocks)
	if height >= end {
		return 0
	}
	remaining := (end - height + cycleBlocks - 1) / cycleBlocks
	if remaining > int64(p.PaymentCount) {
		remaining = int64(p.PaymentCount)
	}
	return int(remaining)
}

// TotalPayment returns the amount requested over the proposal's lifetime
func (p *Proposal) TotalPayment() int64 {
	return p.Amount * int64(p.PaymentCount)
}

// Tally is a count of current vote directions
type Tally struct {
	Yes     int
	No      int
	Abstain int
}

// Net returns yes votes minus no votes
func (t Tally) Net() int {
	return t.Yes - t.No
}

// Ratio returns the approval ratio yes/(yes+no), or zero with no votes
func (t Tally) Ratio() float64 {
	total := t.Yes + t.No
	if total == 0 {
		return 0
	}
	return float64(t.Yes) / float64(total)
}

// Tally counts the proposal's current vote directions
func (p *Proposal) Tally() Tally {
	var t Tally
	for _, vote := range p.votes {
		switch vote.Direction {
		case VoteYes:
			t.Yes++
		case VoteNo:
			t.No++
		case VoteAbstain:
			t.Abstain++
		}
	}
	return t
}

// Votes returns a snapshot of the proposal's current votes
func (p *Proposal) Votes() []Vote {
	ret := make([]Vote, 0, len(p.votes))
	for _, vote := range p.votes {
		ret = append(ret, vote)
	}
	return ret
}

// VoteCount returns the number of retained votes
func (p *Proposal) VoteCount() int {
	return len(p.votes)
}

// ApplyVote inserts or replaces the voter's slot. A vote with a timestamp
// at or below the stored one is a benign no-op and returns false.
func (p *Proposal) ApplyVote(vote Vote) bool {
	if p.votes == nil {
		p.votes = make(map[string]Vote)
	}
	key := vote.Voter.Key()
	if existing, ok := p.votes[key]; ok {
		if vote.Time <= existing.Time {
			return false
		}
	}
	p.votes[key] = vote
	return true
}

// CheckWellFormed validates the proposal's immutable fields against the
// consensus parameters. The total budget is evaluated at the proposal's
// start height.
func (p *Proposal) CheckWellFormed(params *chaincfg.Params) error {
	if p.Name == "" || len(p.Name) > MaxProposalNameLength {
		return fmt.Errorf(
			"invalid proposal name, limit of %d characters",
			MaxProposalNameLength,
		)
	}
	if !isSanitized(p.Name) {
		return errors.New("proposal name contains invalid characters")
	}
	if err := validateURL(p.URL); err != nil {
		return err
	}
	if len(p.Payee) == 0 {
		return errors.New("empty payee script")
	}
	if p.PaymentCount < 1 {
		return errors.New("invalid payment count, must be more than zero")
	}
	if p.PaymentCount > params.MaxProposalPayments {
		return fmt.Errorf(
			"invalid payment count, must be <= %d",
			params.MaxProposalPayments,
		)
	}
	if p.BlockStart <= 0 || !params.IsCycleStart(p.BlockStart) {
		return fmt.Errorf(
			"invalid block start %d, must be a budget cycle block",
			p.BlockStart,
		)
	}
	if p.Amount < params.MinProposalAmount {
		return fmt.Errorf(
			"invalid amount, payment of %d is less than minimum %d allowed",
			p.Amount,
			params.MinProposalAmount,
		)
	}
	if totalBudget := params.TotalBudget(p.BlockStart); p.Amount > totalBudget {
		return fmt.Errorf(
			"invalid amount, payment of %d is more than max of %d",
			p.Amount,
			totalBudget,
		)
	}
	return nil
}

// IsEstablished returns true once the fee transaction is both confirmed to
// the required depth and older than the network maturity duration
func (p *Proposal) IsEstablished(
	params *chaincfg.Params,
	oracle MaturityOracle,
) bool {
	if oracle == nil {
		return false
	}
	if !oracle.IsConfirmedAndMature(p.FeeTxHash, params.FeeConfirmations) {
		return false
	}
	age, ok := oracle.AgeOf(p.FeeTxHash)
	if !ok {
		return false
	}
	return age >= params.EstablishedMaturity
}

// CheckValid reports why the proposal cannot be funded at the given height,
// or nil if it can. Validity is well-formedness plus establishment plus not
// being expired.
func (p *Proposal) CheckValid(
	height int64,
	params *chaincfg.Params,
	oracle MaturityOracle,
) error {
	if err := p.CheckWellFormed(params); err != nil {
		return err
	}
	if height >= p.BlockEnd(params.CycleBlocks) {
		return fmt.Errorf(
			"proposal ended at height %d",
			p.BlockEnd(params.CycleBlocks),
		)
	}
	if !p.IsEstablished(params, oracle) {
		return errors.New("proposal fee transaction is not established")
	}
	return nil
}

func isSanitized(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func validateURL(url string) error {
	if len(url) < 4 {
		return errors.New("invalid URL, too short")
	}
	if len(url) > MaxProposalURLLength {
		return fmt.Errorf(
			"invalid URL, limit of %d characters",
			MaxProposalURLLength,
		)
	}
	if strings.ContainsFunc(url, unicode.IsSpace) {
		return errors.New("invalid URL, contains whitespace")
	}
	if !isSanitized(url) {
		return errors.New("invalid URL, contains invalid characters")
	}
	return nil
}
