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

// Package valstore maintains the registry of validator voting keys. It maps
// a voter identity to the public key that must have signed that voter's
// budget votes, and supplies the active validator count used for vote
// thresholds.
package valstore

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/cinderlabs-io/exchequer/budget"
)

// Common errors returned by Registry operations.
var (
	ErrDuplicateValidator = errors.New("validator already registered")
	ErrUnknownValidator   = errors.New("validator not registered")
)

// RegistryConfig holds configuration for the Registry.
type RegistryConfig struct {
	Logger *slog.Logger
	// Path is an optional validator file loaded at startup
	Path string
}

// Registry is an in-memory validator key registry. The host chain updates
// it as validators register and deregister; the budget manager reads it on
// every vote.
type Registry struct {
	mutex  sync.RWMutex
	logger *slog.Logger
	keys   map[string][]byte
}

// NewRegistry creates an empty validator registry
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r := &Registry{
		logger: logger,
		keys:   make(map[string][]byte),
	}
	if cfg.Path != "" {
		if err := r.LoadFile(cfg.Path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a validator's voting key. Registering the same voter twice
// is an error; use Replace for key rotation.
func (r *Registry) Register(voter budget.VoterID, publicKey []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	key := voter.Key()
	if _, ok := r.keys[key]; ok {
		return ErrDuplicateValidator
	}
	r.keys[key] = append([]byte(nil), publicKey...)
	r.logger.Debug(
		"registered validator",
		"component", "valstore",
		"voter", key,
	)
	return nil
}

// Replace swaps a registered validator's voting key
func (r *Registry) Replace(voter budget.VoterID, publicKey []byte) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	key := voter.Key()
	if _, ok := r.keys[key]; !ok {
		return ErrUnknownValidator
	}
	r.keys[key] = append([]byte(nil), publicKey...)
	return nil
}

// Deregister removes a validator. Removing an unknown voter is a no-op.
func (r *Registry) Deregister(voter budget.VoterID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	key := voter.Key()
	if _, ok := r.keys[key]; ok {
		delete(r.keys, key)
		r.logger.Debug(
			"deregistered validator",
			"component", "valstore",
			"voter", key,
		)
	}
}

// LookupKey returns the voting public key for a voter
func (r *Registry) LookupKey(voter budget.VoterID) ([]byte, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	key, ok := r.keys[voter.Key()]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), key...), true
}

// Count returns the number of registered validators
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.keys)
}
