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
	"github.com/cinderlabs-io/exchequer/event"
)

const (
	AddProposalEventType       event.EventType = "budget.add_proposal"
	AddProposalVoteEventType   event.EventType = "budget.add_proposal_vote"
	RemoveProposalEventType    event.EventType = "budget.remove_proposal"
	AddFinalizedEventType      event.EventType = "budget.add_finalized"
	AddFinalizedVoteEventType  event.EventType = "budget.add_finalized_vote"
	RemoveFinalizedEventType   event.EventType = "budget.remove_finalized"
	BlockConnectedEventType    event.EventType = "budget.block_connected"
	RegistriesClearedEventType event.EventType = "budget.registries_cleared"
)

// AddProposalEvent is published when a proposal is accepted into the
// registry. Body carries the canonical record bytes for relay.
type AddProposalEvent struct {
	Hash Hash
	Body []byte
}

// AddProposalVoteEvent is published when a proposal vote is accepted
type AddProposalVoteEvent struct {
	ProposalHash Hash
	Vote         Vote
}

// RemoveProposalEvent is published when a sweep evicts a proposal
type RemoveProposalEvent struct {
	Hash   Hash
	Reason string
}

// AddFinalizedEvent is published when a finalized budget candidate is
// accepted into the registry
type AddFinalizedEvent struct {
	Hash Hash
	Body []byte
}

// AddFinalizedVoteEvent is published when a finalized budget vote is
// accepted
type AddFinalizedVoteEvent struct {
	BudgetHash Hash
	Vote       FinalizedBudgetVote
}

// RemoveFinalizedEvent is published when a sweep evicts a finalized budget
type RemoveFinalizedEvent struct {
	Hash   Hash
	Reason string
}

// BlockConnectedEvent is published after the engine processes a new block
// notification
type BlockConnectedEvent struct {
	Height int64
}
