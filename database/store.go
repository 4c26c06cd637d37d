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

import (
	"errors"
	"fmt"

	"github.com/cinderlabs-io/exchequer/budget"
	badger "github.com/dgraph-io/badger/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	proposalBlobPrefix  = []byte("proposal:")
	finalizedBlobPrefix = []byte("finalized:")
)

func proposalBlobKey(hash budget.Hash) []byte {
	return append(append([]byte{}, proposalBlobPrefix...), hash[:]...)
}

func finalizedBlobKey(hash budget.Hash) []byte {
	return append(append([]byte{}, finalizedBlobPrefix...), hash[:]...)
}

// SetProposal stores a proposal's canonical record and its index row
func (d *Database) SetProposal(p *budget.Proposal) error {
	if p == nil {
		return errors.New("proposal cannot be nil")
	}
	hash := p.Hash()
	if err := d.blobSet(proposalBlobKey(hash), p.Encode()); err != nil {
		return fmt.Errorf("failed to store proposal blob: %w", err)
	}
	row := ProposalRow{
		Hash:         hash[:],
		Name:         p.Name,
		BlockStart:   p.BlockStart,
		PaymentCount: int64(p.PaymentCount),
		Amount:       p.Amount,
	}
	result := d.metadata.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		UpdateAll: true,
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to index proposal: %w", result.Error)
	}
	return nil
}

// DeleteProposal removes a proposal, its index row, and its votes
func (d *Database) DeleteProposal(hash budget.Hash) error {
	if err := d.blobDelete(proposalBlobKey(hash)); err != nil {
		return fmt.Errorf("failed to delete proposal blob: %w", err)
	}
	if err := d.metadata.Where("hash = ?", hash[:]).
		Delete(&ProposalRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete proposal row: %w", err)
	}
	if err := d.metadata.Where("proposal_hash = ?", hash[:]).
		Delete(&ProposalVoteRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete proposal votes: %w", err)
	}
	return nil
}

// SetProposalVote stores or replaces a validator's vote on a proposal
func (d *Database) SetProposalVote(
	proposalHash budget.Hash,
	vote budget.Vote,
) error {
	row := ProposalVoteRow{
		ProposalHash:   proposalHash[:],
		VoterKey:       vote.Voter.Key(),
		VoterKind:      uint8(vote.Voter.Kind),
		CollateralTx:   vote.Voter.CollateralTx[:],
		CollateralVout: vote.Voter.CollateralVout,
		OperatorKey:    vote.Voter.OperatorKey,
		Direction:      uint8(vote.Direction),
		Time:           vote.Time,
		Signature:      vote.Signature,
	}
	result := d.metadata.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "proposal_hash"},
			{Name: "voter_key"},
		},
		UpdateAll: true,
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to store proposal vote: %w", result.Error)
	}
	return nil
}

// SetFinalizedBudget stores a finalized budget's canonical record and its
// index row
func (d *Database) SetFinalizedBudget(fb *budget.FinalizedBudget) error {
	if fb == nil {
		return errors.New("finalized budget cannot be nil")
	}
	hash := fb.Hash()
	if err := d.blobSet(finalizedBlobKey(hash), fb.Encode()); err != nil {
		return fmt.Errorf("failed to store finalized budget blob: %w", err)
	}
	row := FinalizedBudgetRow{
		Hash:       hash[:],
		Name:       fb.Name,
		BlockStart: fb.BlockStart,
		BlockEnd:   fb.BlockEnd(),
	}
	result := d.metadata.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hash"}},
		UpdateAll: true,
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf(
			"failed to index finalized budget: %w",
			result.Error,
		)
	}
	return nil
}

// DeleteFinalizedBudget removes a finalized budget, its index row, and its
// votes
func (d *Database) DeleteFinalizedBudget(hash budget.Hash) error {
	if err := d.blobDelete(finalizedBlobKey(hash)); err != nil {
		return fmt.Errorf("failed to delete finalized budget blob: %w", err)
	}
	if err := d.metadata.Where("hash = ?", hash[:]).
		Delete(&FinalizedBudgetRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete finalized budget row: %w", err)
	}
	if err := d.metadata.Where("budget_hash = ?", hash[:]).
		Delete(&FinalizedBudgetVoteRow{}).Error; err != nil {
		return fmt.Errorf(
			"failed to delete finalized budget votes: %w",
			err,
		)
	}
	return nil
}

// SetFinalizedBudgetVote stores or replaces a validator's vote on a
// finalized budget
func (d *Database) SetFinalizedBudgetVote(
	budgetHash budget.Hash,
	vote budget.FinalizedBudgetVote,
) error {
	row := FinalizedBudgetVoteRow{
		BudgetHash:     budgetHash[:],
		VoterKey:       vote.Voter.Key(),
		VoterKind:      uint8(vote.Voter.Kind),
		CollateralTx:   vote.Voter.CollateralTx[:],
		CollateralVout: vote.Voter.CollateralVout,
		OperatorKey:    vote.Voter.OperatorKey,
		Time:           vote.Time,
		Signature:      vote.Signature,
	}
	result := d.metadata.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "budget_hash"},
			{Name: "voter_key"},
		},
		UpdateAll: true,
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf(
			"failed to store finalized budget vote: %w",
			result.Error,
		)
	}
	return nil
}

// LoadProposals reloads every stored proposal and its votes. Records whose
// blob is missing or undecodable are skipped with a log entry rather than
// failing the whole reload.
func (d *Database) LoadProposals() ([]*budget.Proposal, error) {
	var rows []ProposalRow
	if err := d.metadata.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	ret := make([]*budget.Proposal, 0, len(rows))
	for _, row := range rows {
		hash, err := budget.NewHashFromBytes(row.Hash)
		if err != nil {
			return nil, fmt.Errorf("corrupt proposal row %d: %w", row.ID, err)
		}
		body, err := d.blobGet(proposalBlobKey(hash))
		if err != nil {
			d.logger.Warn(
				"skipping proposal with missing blob",
				"component", "database",
				"proposal_hash", hash.String(),
				"error", err,
			)
			continue
		}
		p, err := budget.DecodeProposal(body)
		if err != nil {
			d.logger.Warn(
				"skipping undecodable proposal",
				"component", "database",
				"proposal_hash", hash.String(),
				"error", err,
			)
			continue
		}
		if p.Hash() != hash {
			d.logger.Warn(
				"skipping proposal with hash mismatch",
				"component", "database",
				"proposal_hash", hash.String(),
				"computed_hash", p.Hash().String(),
			)
			continue
		}
		var voteRows []ProposalVoteRow
		if err := d.metadata.Where("proposal_hash = ?", row.Hash).
			Find(&voteRows).Error; err != nil {
			return nil, fmt.Errorf("failed to list proposal votes: %w", err)
		}
		for _, voteRow := range voteRows {
			vote, err := voteRow.toVote(hash)
			if err != nil {
				d.logger.Warn(
					"skipping corrupt proposal vote",
					"component", "database",
					"proposal_hash", hash.String(),
					"error", err,
				)
				continue
			}
			p.ApplyVote(vote)
		}
		ret = append(ret, p)
	}
	return ret, nil
}

// LoadFinalizedBudgets reloads every stored finalized budget and its votes
func (d *Database) LoadFinalizedBudgets() ([]*budget.FinalizedBudget, error) {
	var rows []FinalizedBudgetRow
	if err := d.metadata.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list finalized budgets: %w", err)
	}
	ret := make([]*budget.FinalizedBudget, 0, len(rows))
	for _, row := range rows {
		hash, err := budget.NewHashFromBytes(row.Hash)
		if err != nil {
			return nil, fmt.Errorf(
				"corrupt finalized budget row %d: %w",
				row.ID,
				err,
			)
		}
		body, err := d.blobGet(finalizedBlobKey(hash))
		if err != nil {
			d.logger.Warn(
				"skipping finalized budget with missing blob",
				"component", "database",
				"budget_hash", hash.String(),
				"error", err,
			)
			continue
		}
		fb, err := budget.DecodeFinalizedBudget(body)
		if err != nil {
			d.logger.Warn(
				"skipping undecodable finalized budget",
				"component", "database",
				"budget_hash", hash.String(),
				"error", err,
			)
			continue
		}
		if fb.Hash() != hash {
			d.logger.Warn(
				"skipping finalized budget with hash mismatch",
				"component", "database",
				"budget_hash", hash.String(),
				"computed_hash", fb.Hash().String(),
			)
			continue
		}
		var voteRows []FinalizedBudgetVoteRow
		if err := d.metadata.Where("budget_hash = ?", row.Hash).
			Find(&voteRows).Error; err != nil {
			return nil, fmt.Errorf(
				"failed to list finalized budget votes: %w",
				err,
			)
		}
		for _, voteRow := range voteRows {
			vote, err := voteRow.toVote(hash)
			if err != nil {
				d.logger.Warn(
					"skipping corrupt finalized budget vote",
					"component", "database",
					"budget_hash", hash.String(),
					"error", err,
				)
				continue
			}
			fb.ApplyVote(vote)
		}
		ret = append(ret, fb)
	}
	return ret, nil
}

// Clear wipes all stored budget state. Used for full resynchronization.
func (d *Database) Clear() error {
	if err := d.blob.DropAll(); err != nil {
		return fmt.Errorf("failed to clear blob store: %w", err)
	}
	for _, model := range []any{
		&ProposalRow{},
		&ProposalVoteRow{},
		&FinalizedBudgetRow{},
		&FinalizedBudgetVoteRow{},
	} {
		if err := d.metadata.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear metadata: %w", err)
		}
	}
	return nil
}

func (r *ProposalVoteRow) toVote(proposalHash budget.Hash) (budget.Vote, error) {
	voter, err := rowVoter(
		r.VoterKind,
		r.CollateralTx,
		r.CollateralVout,
		r.OperatorKey,
	)
	if err != nil {
		return budget.Vote{}, err
	}
	return budget.Vote{
		Voter:        voter,
		ProposalHash: proposalHash,
		Direction:    budget.VoteDirection(r.Direction),
		Time:         r.Time,
		Signature:    r.Signature,
	}, nil
}

func (r *FinalizedBudgetVoteRow) toVote(
	budgetHash budget.Hash,
) (budget.FinalizedBudgetVote, error) {
	voter, err := rowVoter(
		r.VoterKind,
		r.CollateralTx,
		r.CollateralVout,
		r.OperatorKey,
	)
	if err != nil {
		return budget.FinalizedBudgetVote{}, err
	}
	return budget.FinalizedBudgetVote{
		Voter:      voter,
		BudgetHash: budgetHash,
		Time:       r.Time,
		Signature:  r.Signature,
	}, nil
}

func rowVoter(
	kind uint8,
	collateralTx []byte,
	collateralVout uint32,
	operatorKey []byte,
) (budget.VoterID, error) {
	switch budget.VoterKind(kind) {
	case budget.VoterLegacy:
		txHash, err := budget.NewHashFromBytes(collateralTx)
		if err != nil {
			return budget.VoterID{}, fmt.Errorf(
				"corrupt collateral tx: %w",
				err,
			)
		}
		return budget.NewLegacyVoter(txHash, collateralVout), nil
	case budget.VoterDeterministic:
		return budget.NewDeterministicVoter(operatorKey), nil
	default:
		return budget.VoterID{}, fmt.Errorf("unknown voter kind: %d", kind)
	}
}

func (d *Database) blobSet(key, value []byte) error {
	return d.blob.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (d *Database) blobGet(key []byte) ([]byte, error) {
	var value []byte
	err := d.blob.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

func (d *Database) blobDelete(key []byte) error {
	return d.blob.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
