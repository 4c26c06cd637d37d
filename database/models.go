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

package database

// ProposalRow indexes a stored proposal. The canonical record lives in the
// blob store; this row exists for listing and cleanup.
type ProposalRow struct {
	ID           uint   `gorm:"primarykey"`
	Hash         []byte `gorm:"uniqueIndex;size:32;not null"`
	Name         string `gorm:"index;size:20;not null"`
	BlockStart   int64  `gorm:"index;not null"`
	PaymentCount int64  `gorm:"not null"`
	Amount       int64  `gorm:"not null"`
}

// TableName returns the table name
func (ProposalRow) TableName() string {
	return "proposal"
}

// ProposalVoteRow holds one validator's current vote on a proposal. The
// (proposal, voter) pair is unique; a newer vote replaces the row.
type ProposalVoteRow struct {
	ID             uint   `gorm:"primarykey"`
	ProposalHash   []byte `gorm:"uniqueIndex:idx_proposal_vote_unique,priority:1;size:32;not null"`
	VoterKey       string `gorm:"uniqueIndex:idx_proposal_vote_unique,priority:2;size:160;not null"`
	VoterKind      uint8  `gorm:"not null"`
	CollateralTx   []byte `gorm:"size:32"`
	CollateralVout uint32
	OperatorKey    []byte
	Direction      uint8 `gorm:"not null"`
	Time           int64 `gorm:"not null"`
	Signature      []byte
}

// TableName returns the table name
func (ProposalVoteRow) TableName() string {
	return "proposal_vote"
}

// FinalizedBudgetRow indexes a stored finalized budget candidate
type FinalizedBudgetRow struct {
	ID         uint   `gorm:"primarykey"`
	Hash       []byte `gorm:"uniqueIndex;size:32;not null"`
	Name       string `gorm:"size:20;not null"`
	BlockStart int64  `gorm:"index;not null"`
	BlockEnd   int64  `gorm:"index;not null"`
}

// TableName returns the table name
func (FinalizedBudgetRow) TableName() string {
	return "finalized_budget"
}

// FinalizedBudgetVoteRow holds one validator's current vote on a finalized
// budget candidate
type FinalizedBudgetVoteRow struct {
	ID             uint   `gorm:"primarykey"`
	BudgetHash     []byte `gorm:"uniqueIndex:idx_finalized_vote_unique,priority:1;size:32;not null"`
	VoterKey       string `gorm:"uniqueIndex:idx_finalized_vote_unique,priority:2;size:160;not null"`
	VoterKind      uint8  `gorm:"not null"`
	CollateralTx   []byte `gorm:"size:32"`
	CollateralVout uint32
	OperatorKey    []byte
	Time           int64 `gorm:"not null"`
	Signature      []byte
}

// TableName returns the table name
func (FinalizedBudgetVoteRow) TableName() string {
	return "finalized_budget_vote"
}
