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
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// VoteDirection is the choice cast by a validator on a proposal or
// finalized budget
type VoteDirection uint8

const (
	VoteAbstain VoteDirection = 0
	VoteYes     VoteDirection = 1
	VoteNo      VoteDirection = 2
)

func (d VoteDirection) String() string {
	switch d {
	case VoteYes:
		return "YES"
	case VoteNo:
		return "NO"
	case VoteAbstain:
		return "ABSTAIN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(d))
	}
}

// Valid returns true for a known vote direction
func (d VoteDirection) Valid() bool {
	switch d {
	case VoteYes, VoteNo, VoteAbstain:
		return true
	default:
		return false
	}
}

// VoterKind distinguishes the two validator voting modes
type VoterKind uint8

const (
	// VoterLegacy identifies a validator by its collateral outpoint and
	// signs with the validator key
	VoterLegacy VoterKind = 1
	// VoterDeterministic identifies a validator by its registered operator
	// key hash and signs with the operator key
	VoterDeterministic VoterKind = 2
)

// VoterID identifies the validator casting a vote. It is a tagged variant:
// exactly one of the legacy outpoint or the deterministic operator key is
// meaningful, selected by Kind.
type VoterID struct {
	Kind VoterKind
	// Legacy collateral outpoint
	CollateralTx   Hash
	CollateralVout uint32
	// Deterministic operator key hash
	OperatorKey []byte
}

// NewLegacyVoter builds a VoterID for a legacy validator collateral outpoint
func NewLegacyVoter(collateralTx Hash, vout uint32) VoterID {
	return VoterID{
		Kind:           VoterLegacy,
		CollateralTx:   collateralTx,
		CollateralVout: vout,
	}
}

// NewDeterministicVoter builds a VoterID for a deterministic validator
// operator key hash
func NewDeterministicVoter(operatorKey []byte) VoterID {
	return VoterID{
		Kind:        VoterDeterministic,
		OperatorKey: operatorKey,
	}
}

// Key returns a stable map key holding one vote slot per validator
func (v VoterID) Key() string {
	switch v.Kind {
	case VoterLegacy:
		return fmt.Sprintf(
			"legacy:%s-%d",
			v.CollateralTx,
			v.CollateralVout,
		)
	case VoterDeterministic:
		return "operator:" + hex.EncodeToString(v.OperatorKey)
	default:
		return fmt.Sprintf("unknown:%d", v.Kind)
	}
}

func (v VoterID) String() string {
	return v.Key()
}

// Vote is a validator's signed choice on a budget proposal
type Vote struct {
	Voter        VoterID
	ProposalHash Hash
	Direction    VoteDirection
	// Time is the vote timestamp in seconds since the epoch. A voter's
	// newer vote replaces their older one.
	Time      int64
	Signature []byte
}

// Hash returns the content hash identifying this vote on the wire
func (v *Vote) Hash() Hash {
	return hashContent(v.signaturePayload())
}

// SignatureMessage returns the canonical bytes the voter signs
func (v *Vote) SignatureMessage() []byte {
	return v.signaturePayload()
}

func (v *Vote) signaturePayload() []byte {
	return voteSignaturePayload(
		v.Voter,
		v.ProposalHash,
		v.Direction,
		v.Time,
	)
}

// FinalizedBudgetVote is a validator's signed endorsement of a finalized
// budget candidate
type FinalizedBudgetVote struct {
	Voter      VoterID
	BudgetHash Hash
	Time       int64
	Signature  []byte
}

// Hash returns the content hash identifying this vote on the wire
func (v *FinalizedBudgetVote) Hash() Hash {
	return hashContent(v.signaturePayload())
}

// SignatureMessage returns the canonical bytes the voter signs
func (v *FinalizedBudgetVote) SignatureMessage() []byte {
	return v.signaturePayload()
}

func (v *FinalizedBudgetVote) signaturePayload() []byte {
	// Finalized budget votes are always yes votes; the direction slot is
	// retained so the payload layout matches proposal votes
	return voteSignaturePayload(v.Voter, v.BudgetHash, VoteYes, v.Time)
}

func voteSignaturePayload(
	voter VoterID,
	target Hash,
	direction VoteDirection,
	voteTime int64,
) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, byte(voter.Kind))
	buf = append(buf, voter.CollateralTx[:]...)
	buf = binary.BigEndian.AppendUint32(buf, voter.CollateralVout)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(voter.OperatorKey)))
	buf = append(buf, voter.OperatorKey...)
	buf = append(buf, target[:]...)
	buf = append(buf, byte(direction))
	buf = binary.BigEndian.AppendUint64(buf, uint64(voteTime))
	return buf
}
