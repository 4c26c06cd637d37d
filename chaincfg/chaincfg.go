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

// Package chaincfg holds the consensus parameters consumed by the budget
// engine and the superblock cycle arithmetic derived from them.
package chaincfg

import (
	"fmt"
	"time"
)

// Coin is the number of minor currency units per whole coin.
const Coin int64 = 100_000_000

// BudgetStep is one step of the per-cycle budget allowance schedule. The
// allowance for a height is the amount of the highest step whose activation
// height is at or below that height.
type BudgetStep struct {
	Height int64
	Amount int64
}

// Params describes the consensus parameters for one network.
type Params struct {
	// Name is the canonical network name ("mainnet", "testnet", "regtest")
	Name string
	// CycleBlocks is the number of blocks between superblocks. Proposal
	// start heights must be multiples of this value.
	CycleBlocks int64
	// MaxProposalPayments bounds the total payment count of a proposal
	MaxProposalPayments int
	// ProposalFee is the collateral burned by the proposal fee transaction
	ProposalFee int64
	// MinProposalAmount is the smallest allowed monthly payment
	MinProposalAmount int64
	// FeeConfirmations is the confirmation depth required before a fee
	// transaction counts toward established status
	FeeConfirmations int
	// EstablishedMaturity is the minimum fee transaction age before a
	// proposal is considered established
	EstablishedMaturity time.Duration
	// MaturityGrace is how long past EstablishedMaturity a proposal's fee
	// transaction may remain unestablished before the sweep evicts it
	MaturityGrace time.Duration
	// ProposalNetYesDivisor sets the allotment threshold: a proposal needs
	// net yes votes above validatorCount/ProposalNetYesDivisor to be funded
	ProposalNetYesDivisor int
	// FinalizedQuorumDivisor sets the finalized budget quorum: a candidate
	// needs at least validatorCount/FinalizedQuorumDivisor votes to win
	FinalizedQuorumDivisor int
	// BudgetSchedule is the per-cycle allowance step function, ordered by
	// ascending activation height
	BudgetSchedule []BudgetStep
}

// MainNetParams are the production network parameters. One budget cycle is
// roughly thirty days of one-minute blocks.
var MainNetParams = Params{
	Name:                   "mainnet",
	CycleBlocks:            43200,
	MaxProposalPayments:    12,
	ProposalFee:            50 * Coin,
	MinProposalAmount:      10 * Coin,
	FeeConfirmations:       6,
	EstablishedMaturity:    24 * time.Hour,
	MaturityGrace:          72 * time.Hour,
	ProposalNetYesDivisor:  10,
	FinalizedQuorumDivisor: 20,
	BudgetSchedule: []BudgetStep{
		{Height: 0, Amount: 43200 * Coin},
	},
}

// TestNetParams are the public test network parameters
var TestNetParams = Params{
	Name:                   "testnet",
	CycleBlocks:            144,
	MaxProposalPayments:    20,
	ProposalFee:            50 * Coin,
	MinProposalAmount:      10 * Coin,
	FeeConfirmations:       3,
	EstablishedMaturity:    5 * time.Minute,
	MaturityGrace:          30 * time.Minute,
	ProposalNetYesDivisor:  10,
	FinalizedQuorumDivisor: 20,
	BudgetSchedule: []BudgetStep{
		{Height: 0, Amount: 144 * Coin},
	},
}

// RegTestParams are for local regression testing
var RegTestParams = Params{
	Name:                   "regtest",
	CycleBlocks:            144,
	MaxProposalPayments:    20,
	ProposalFee:            50 * Coin,
	MinProposalAmount:      10 * Coin,
	FeeConfirmations:       1,
	EstablishedMaturity:    time.Minute,
	MaturityGrace:          time.Hour,
	ProposalNetYesDivisor:  10,
	FinalizedQuorumDivisor: 20,
	BudgetSchedule: []BudgetStep{
		{Height: 0, Amount: 1000 * Coin},
	},
}

// ByName returns the parameters for a named network
func ByName(name string) (Params, error) {
	switch name {
	case "mainnet", "":
		return MainNetParams, nil
	case "testnet":
		return TestNetParams, nil
	case "regtest":
		return RegTestParams, nil
	default:
		return Params{}, fmt.Errorf("unknown network name: %s", name)
	}
}

// IsCycleStart returns true when the given height is a superblock height
func (p *Params) IsCycleStart(height int64) bool {
	if p.CycleBlocks <= 0 {
		return false
	}
	return height%p.CycleBlocks == 0
}

// CycleStart returns the superblock height of the cycle containing the
// given height
func (p *Params) CycleStart(height int64) int64 {
	if p.CycleBlocks <= 0 {
		return 0
	}
	return height - height%p.CycleBlocks
}

// NextCycleStart returns the first superblock height strictly after the
// current cycle boundary. A height already on a boundary rolls forward to
// the next one.
func (p *Params) NextCycleStart(height int64) int64 {
	if p.CycleBlocks <= 0 {
		return 0
	}
	return p.CycleStart(height) + p.CycleBlocks
}

// TotalBudget returns the per-cycle allowance for the cycle containing the
// given height
func (p *Params) TotalBudget(height int64) int64 {
	var amount int64
	for _, step := range p.BudgetSchedule {
		if height < step.Height {
			break
		}
		amount = step.Amount
	}
	return amount
}
