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

// Package budget implements the budget consensus engine: the registries of
// proposals and finalized budgets received from the network, vote tallying,
// expiry sweeps, and deterministic superblock payment selection.
package budget

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cinderlabs-io/exchequer/chaincfg"
	"github.com/cinderlabs-io/exchequer/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ManagerConfig carries the collaborators injected into a Manager
type ManagerConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Verifier     SignatureVerifier
	Validators   ValidatorDirectory
	Maturity     MaturityOracle
	// Store is optional; without one the registries are memory-only
	Store  Store
	Params chaincfg.Params
}

// Manager owns the proposal and finalized budget registries behind a single
// lock. It is the only mutation and query surface exposed to the RPC layer,
// network message handlers, and block-connection hooks.
type Manager struct {
	config  ManagerConfig
	metrics struct {
		proposals        prometheus.Gauge
		finalizedBudgets prometheus.Gauge
		votesProcessed   prometheus.Counter
		rejections       *prometheus.CounterVec
	}
	logger     *slog.Logger
	eventBus   *event.EventBus
	proposals  map[Hash]*Proposal
	finalized  map[Hash]*FinalizedBudget
	bestHeight int64
	sync.RWMutex
}

// NewManager creates a budget manager with empty registries
func NewManager(config ManagerConfig) *Manager {
	m := &Manager{
		config:    config,
		eventBus:  config.EventBus,
		proposals: make(map[Hash]*Proposal),
		finalized: make(map[Hash]*FinalizedBudget),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	// Init metrics
	promautoFactory := promauto.With(config.PromRegistry)
	m.metrics.proposals = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "exchequer_budget_proposals",
		Help: "current count of budget proposals in the registry",
	})
	m.metrics.finalizedBudgets = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "exchequer_budget_finalized_budgets",
			Help: "current count of finalized budget candidates",
		},
	)
	m.metrics.votesProcessed = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "exchequer_budget_votes_processed_total",
			Help: "total accepted budget and finalization votes",
		},
	)
	m.metrics.rejections = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchequer_budget_rejections_total",
			Help: "total rejected budget objects by class",
		},
		[]string{"class"},
	)
	return m
}

// LoadFromStore repopulates both registries from the configured store. It
// replaces any in-memory state and is intended to run once at startup,
// before the manager is shared with other goroutines.
func (m *Manager) LoadFromStore() error {
	if m.config.Store == nil {
		return nil
	}
	proposals, err := m.config.Store.LoadProposals()
	if err != nil {
		return fmt.Errorf("load proposals: %w", err)
	}
	finalized, err := m.config.Store.LoadFinalizedBudgets()
	if err != nil {
		return fmt.Errorf("load finalized budgets: %w", err)
	}
	m.Lock()
	defer m.Unlock()
	m.proposals = make(map[Hash]*Proposal, len(proposals))
	for _, p := range proposals {
		m.proposals[p.Hash()] = p
	}
	m.finalized = make(map[Hash]*FinalizedBudget, len(finalized))
	for _, fb := range finalized {
		m.finalized[fb.Hash()] = fb
	}
	m.metrics.proposals.Set(float64(len(m.proposals)))
	m.metrics.finalizedBudgets.Set(float64(len(m.finalized)))
	m.logger.Info(
		"loaded budget registries",
		"component", "budget",
		"proposals", len(m.proposals),
		"finalized_budgets", len(m.finalized),
	)
	return nil
}

func (m *Manager) reject(err *RejectionError) *RejectionError {
	m.metrics.rejections.WithLabelValues(string(err.Class)).Inc()
	return err
}

// AddProposal validates a candidate proposal and inserts it into the
// registry. A proposal whose hash is already present is a benign no-op:
// the first return is false and the error is nil. On acceptance the
// proposal is persisted and published for relay.
func (m *Manager) AddProposal(p *Proposal) (bool, error) {
	if p == nil {
		return false, rejectf(RejectMalformed, "nil proposal")
	}
	m.Lock()
	defer m.Unlock()
	hash := p.Hash()
	if _, ok := m.proposals[hash]; ok {
		return false, nil
	}
	if err := p.CheckWellFormed(&m.config.Params); err != nil {
		return false, m.reject(
			rejectf(RejectMalformed, "invalid budget proposal: %s", err),
		)
	}
	if end := p.BlockEnd(m.config.Params.CycleBlocks); end <= m.bestHeight {
		return false, m.reject(rejectf(
			RejectMalformed,
			"proposal ended at height %d, current height %d",
			end,
			m.bestHeight,
		))
	}
	// Insert with an empty vote set; votes arrive separately
	stored := *p
	stored.Payee = append([]byte(nil), p.Payee...)
	stored.votes = make(map[string]Vote)
	m.proposals[hash] = &stored
	m.metrics.proposals.Inc()
	m.persistProposal(&stored)
	m.logger.Debug(
		"added proposal",
		"component", "budget",
		"proposal_hash", hash.String(),
		"name", stored.Name,
	)
	m.publish(AddProposalEventType, AddProposalEvent{
		Hash: hash,
		Body: stored.Encode(),
	})
	return true, nil
}

// ProcessProposalVote verifies and applies a vote to its target proposal.
// Stale and duplicate votes are benign no-ops (false, nil).
func (m *Manager) ProcessProposalVote(vote Vote) (bool, error) {
	m.Lock()
	defer m.Unlock()
	p, ok := m.proposals[vote.ProposalHash]
	if !ok {
		return false, m.reject(rejectf(
			RejectUnknownReference,
			"unknown proposal %s",
			vote.ProposalHash,
		))
	}
	if err := m.verifyVoter(
		vote.Voter,
		vote.SignatureMessage(),
		vote.Signature,
	); err != nil {
		return false, err
	}
	if !vote.Direction.Valid() {
		return false, m.reject(
			rejectf(RejectMalformed, "invalid vote direction"),
		)
	}
	if !p.ApplyVote(vote) {
		return false, nil
	}
	m.metrics.votesProcessed.Inc()
	m.persistProposalVote(p.Hash(), vote)
	m.logger.Debug(
		"added proposal vote",
		"component", "budget",
		"proposal_hash", vote.ProposalHash.String(),
		"voter", vote.Voter.String(),
		"direction", vote.Direction.String(),
	)
	m.publish(AddProposalVoteEventType, AddProposalVoteEvent{
		ProposalHash: vote.ProposalHash,
		Vote:         vote,
	})
	return true, nil
}

// AddFinalizedBudget inserts a finalized budget candidate. Duplicates by
// hash are benign no-ops. Cross-validation against known proposals is left
// to Status, because the referenced proposals may arrive later.
func (m *Manager) AddFinalizedBudget(fb *FinalizedBudget) (bool, error) {
	if fb == nil {
		return false, rejectf(RejectMalformed, "nil finalized budget")
	}
	m.Lock()
	defer m.Unlock()
	hash := fb.Hash()
	if _, ok := m.finalized[hash]; ok {
		return false, nil
	}
	if err := fb.CheckWellFormed(m.config.Params.CycleBlocks); err != nil {
		return false, m.reject(
			rejectf(RejectMalformed, "invalid finalized budget: %s", err),
		)
	}
	stored := *fb
	stored.votes = make(map[string]FinalizedBudgetVote)
	stored.Payments = make([]BudgetPayment, len(fb.Payments))
	for i, payment := range fb.Payments {
		payment.Payee = append([]byte(nil), payment.Payee...)
		stored.Payments[i] = payment
	}
	m.finalized[hash] = &stored
	m.metrics.finalizedBudgets.Inc()
	m.persistFinalizedBudget(&stored)
	m.logger.Debug(
		"added finalized budget",
		"component", "budget",
		"budget_hash", hash.String(),
		"block_start", stored.BlockStart,
	)
	m.publish(AddFinalizedEventType, AddFinalizedEvent{
		Hash: hash,
		Body: stored.Encode(),
	})
	return true, nil
}

// ProcessFinalizedBudgetVote verifies and applies a vote to its target
// finalized budget. Stale and duplicate votes are benign no-ops.
func (m *Manager) ProcessFinalizedBudgetVote(
	vote FinalizedBudgetVote,
) (bool, error) {
	m.Lock()
	defer m.Unlock()
	fb, ok := m.finalized[vote.BudgetHash]
	if !ok {
		return false, m.reject(rejectf(
			RejectUnknownReference,
			"unknown finalized budget %s",
			vote.BudgetHash,
		))
	}
	if err := m.verifyVoter(
		vote.Voter,
		vote.SignatureMessage(),
		vote.Signature,
	); err != nil {
		return false, err
	}
	if !fb.ApplyVote(vote) {
		return false, nil
	}
	m.metrics.votesProcessed.Inc()
	m.persistFinalizedBudgetVote(fb.Hash(), vote)
	m.logger.Debug(
		"added finalized budget vote",
		"component", "budget",
		"budget_hash", vote.BudgetHash.String(),
		"voter", vote.Voter.String(),
	)
	m.publish(AddFinalizedVoteEventType, AddFinalizedVoteEvent{
		BudgetHash: vote.BudgetHash,
		Vote:       vote,
	})
	return true, nil
}

// verifyVoter resolves the voter's key and checks the signature. Must be
// called with the lock held.
func (m *Manager) verifyVoter(
	voter VoterID,
	message []byte,
	signature []byte,
) error {
	if m.config.Validators == nil {
		return m.reject(rejectf(
			RejectUnknownReference,
			"no validator directory configured",
		))
	}
	pubKey, ok := m.config.Validators.LookupKey(voter)
	if !ok {
		return m.reject(rejectf(
			RejectUnknownReference,
			"failed to find validator %s",
			voter,
		))
	}
	if m.config.Verifier == nil ||
		!m.config.Verifier.Verify(message, signature, pubKey) {
		return m.reject(rejectf(
			RejectSignatureInvalid,
			"failed to verify signature for %s",
			voter,
		))
	}
	return nil
}

// Tally returns the current vote counts for a proposal
func (m *Manager) Tally(proposalHash Hash) (Tally, bool) {
	m.RLock()
	defer m.RUnlock()
	p, ok := m.proposals[proposalHash]
	if !ok {
		return Tally{}, false
	}
	return p.Tally(), true
}

// FindProposal returns a snapshot of the proposal with the given hash
func (m *Manager) FindProposal(hash Hash) (ProposalSnapshot, bool) {
	m.RLock()
	defer m.RUnlock()
	p, ok := m.proposals[hash]
	if !ok {
		return ProposalSnapshot{}, false
	}
	return m.snapshotProposal(p), true
}

// FindProposalByName returns a snapshot of the first proposal with the
// given name, preferring the one with the most net yes votes
func (m *Manager) FindProposalByName(name string) (ProposalSnapshot, bool) {
	m.RLock()
	defer m.RUnlock()
	var found *Proposal
	var foundNet int
	for _, p := range m.proposals {
		if p.Name != name {
			continue
		}
		net := p.Tally().Net()
		if found == nil || net > foundNet ||
			(net == foundNet && p.Hash().Less(found.Hash())) {
			found = p
			foundNet = net
		}
	}
	if found == nil {
		return ProposalSnapshot{}, false
	}
	return m.snapshotProposal(found), true
}

// ProposalVotes returns a snapshot of the votes cast on a proposal
func (m *Manager) ProposalVotes(hash Hash) ([]Vote, bool) {
	m.RLock()
	defer m.RUnlock()
	p, ok := m.proposals[hash]
	if !ok {
		return nil, false
	}
	return p.Votes(), true
}

// FindFinalizedBudget returns a snapshot of the finalized budget with the
// given hash
func (m *Manager) FindFinalizedBudget(
	hash Hash,
) (FinalizedBudgetSnapshot, bool) {
	m.RLock()
	defer m.RUnlock()
	fb, ok := m.finalized[hash]
	if !ok {
		return FinalizedBudgetSnapshot{}, false
	}
	return m.snapshotFinalized(fb), true
}

// FinalizedBudgetVotes returns a snapshot of the votes cast on a finalized
// budget
func (m *Manager) FinalizedBudgetVotes(
	hash Hash,
) ([]FinalizedBudgetVote, bool) {
	m.RLock()
	defer m.RUnlock()
	fb, ok := m.finalized[hash]
	if !ok {
		return nil, false
	}
	return fb.Votes(), true
}

// GetTotalBudget returns the total allowance for the cycle containing the
// given height
func (m *Manager) GetTotalBudget(height int64) int64 {
	return m.config.Params.TotalBudget(height)
}

// GetBestHeight returns the engine's view of the chain tip
func (m *Manager) GetBestHeight() int64 {
	m.RLock()
	defer m.RUnlock()
	return m.bestHeight
}

// OnBlockConnected must be invoked once per newly connected block, in
// height order. It advances the engine's view of the chain tip and drives
// the expiry sweep. Out-of-order calls are ignored rather than rewinding
// the tip.
func (m *Manager) OnBlockConnected(height int64) {
	m.Lock()
	if height <= m.bestHeight {
		m.Unlock()
		m.logger.Debug(
			"ignoring stale block notification",
			"component", "budget",
			"height", height,
		)
		return
	}
	m.bestHeight = height
	m.sweep(height)
	m.Unlock()
	m.publish(BlockConnectedEventType, BlockConnectedEvent{Height: height})
}

// CheckAndRemove runs the expiry sweep at the current tip. It is safe to
// invoke repeatedly with no intervening block.
func (m *Manager) CheckAndRemove() {
	m.Lock()
	defer m.Unlock()
	m.sweep(m.bestHeight)
}

// Clear empties both registries and the store. It is an externally
// triggered recovery action: the caller is responsible for arranging a full
// network resynchronization afterwards.
func (m *Manager) Clear() error {
	m.Lock()
	m.proposals = make(map[Hash]*Proposal)
	m.finalized = make(map[Hash]*FinalizedBudget)
	m.metrics.proposals.Set(0)
	m.metrics.finalizedBudgets.Set(0)
	var err error
	if m.config.Store != nil {
		err = m.config.Store.Clear()
	}
	m.Unlock()
	m.logger.Info("budget data cleaned", "component", "budget")
	m.publish(RegistriesClearedEventType, nil)
	return err
}

// sweep evicts proposals and finalized budgets that can no longer become
// relevant. Must be called with the lock held. Idempotent.
func (m *Manager) sweep(height int64) {
	params := &m.config.Params
	for hash, p := range m.proposals {
		var reason string
		switch {
		case p.BlockEnd(params.CycleBlocks) <= height:
			reason = "proposal end height passed"
		case m.feeMaturityExpired(p):
			reason = "fee transaction failed to mature in time"
		default:
			continue
		}
		delete(m.proposals, hash)
		m.metrics.proposals.Dec()
		if m.config.Store != nil {
			if err := m.config.Store.DeleteProposal(hash); err != nil {
				m.logger.Error(
					"failed to delete proposal from store",
					"component", "budget",
					"proposal_hash", hash.String(),
					"error", err,
				)
			}
		}
		m.logger.Debug(
			"removed proposal",
			"component", "budget",
			"proposal_hash", hash.String(),
			"reason", reason,
		)
		m.publish(RemoveProposalEventType, RemoveProposalEvent{
			Hash:   hash,
			Reason: reason,
		})
	}
	for hash, fb := range m.finalized {
		if fb.BlockEnd() > height {
			continue
		}
		delete(m.finalized, hash)
		m.metrics.finalizedBudgets.Dec()
		if m.config.Store != nil {
			if err := m.config.Store.DeleteFinalizedBudget(hash); err != nil {
				m.logger.Error(
					"failed to delete finalized budget from store",
					"component", "budget",
					"budget_hash", hash.String(),
					"error", err,
				)
			}
		}
		m.logger.Debug(
			"removed finalized budget",
			"component", "budget",
			"budget_hash", hash.String(),
		)
		m.publish(RemoveFinalizedEventType, RemoveFinalizedEvent{
			Hash:   hash,
			Reason: "budget end height passed",
		})
	}
}

// feeMaturityExpired returns true when the proposal's fee transaction has
// been visible longer than the maturity deadline plus grace window without
// reaching established status
func (m *Manager) feeMaturityExpired(p *Proposal) bool {
	params := &m.config.Params
	if p.IsEstablished(params, m.config.Maturity) {
		return false
	}
	if m.config.Maturity == nil {
		return false
	}
	age, ok := m.config.Maturity.AgeOf(p.FeeTxHash)
	if !ok {
		// Fee transaction not seen yet; leave the proposal for a later sweep
		return false
	}
	return age > params.EstablishedMaturity+params.MaturityGrace
}

func (m *Manager) publish(eventType event.EventType, data any) {
	if m.eventBus == nil {
		return
	}
	m.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func (m *Manager) persistProposal(p *Proposal) {
	if m.config.Store == nil {
		return
	}
	if err := m.config.Store.SetProposal(p); err != nil {
		m.logger.Error(
			"failed to persist proposal",
			"component", "budget",
			"proposal_hash", p.Hash().String(),
			"error", err,
		)
	}
}

func (m *Manager) persistProposalVote(hash Hash, vote Vote) {
	if m.config.Store == nil {
		return
	}
	if err := m.config.Store.SetProposalVote(hash, vote); err != nil {
		m.logger.Error(
			"failed to persist proposal vote",
			"component", "budget",
			"proposal_hash", hash.String(),
			"error", err,
		)
	}
}

func (m *Manager) persistFinalizedBudget(fb *FinalizedBudget) {
	if m.config.Store == nil {
		return
	}
	if err := m.config.Store.SetFinalizedBudget(fb); err != nil {
		m.logger.Error(
			"failed to persist finalized budget",
			"component", "budget",
			"budget_hash", fb.Hash().String(),
			"error", err,
		)
	}
}

func (m *Manager) persistFinalizedBudgetVote(
	hash Hash,
	vote FinalizedBudgetVote,
) {
	if m.config.Store == nil {
		return
	}
	if err := m.config.Store.SetFinalizedBudgetVote(hash, vote); err != nil {
		m.logger.Error(
			"failed to persist finalized budget vote",
			"component", "budget",
			"budget_hash", hash.String(),
			"error", err,
		)
	}
}
