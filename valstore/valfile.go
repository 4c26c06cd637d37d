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

package valstore

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/cinderlabs-io/exchequer/budget"
	"gopkg.in/yaml.v3"
)

type validatorFile struct {
	Validators []validatorFileEntry `yaml:"validators"`
}

// validatorFileEntry describes one validator: either a legacy collateral
// outpoint or a deterministic operator key hash, plus the voting public key
type validatorFileEntry struct {
	CollateralTx   string `yaml:"collateralTx,omitempty"`
	CollateralVout uint32 `yaml:"collateralVout,omitempty"`
	OperatorKey    string `yaml:"operatorKey,omitempty"`
	PublicKey      string `yaml:"publicKey"`
}

func (e *validatorFileEntry) voter() (budget.VoterID, error) {
	switch {
	case e.OperatorKey != "":
		if e.CollateralTx != "" {
			return budget.VoterID{}, fmt.Errorf(
				"validator entry cannot set both operatorKey and collateralTx",
			)
		}
		operatorKey, err := hex.DecodeString(e.OperatorKey)
		if err != nil {
			return budget.VoterID{}, fmt.Errorf(
				"invalid operator key: %w",
				err,
			)
		}
		return budget.NewDeterministicVoter(operatorKey), nil
	case e.CollateralTx != "":
		txBytes, err := hex.DecodeString(e.CollateralTx)
		if err != nil {
			return budget.VoterID{}, fmt.Errorf(
				"invalid collateral tx: %w",
				err,
			)
		}
		txHash, err := budget.NewHashFromBytes(txBytes)
		if err != nil {
			return budget.VoterID{}, fmt.Errorf(
				"invalid collateral tx: %w",
				err,
			)
		}
		return budget.NewLegacyVoter(txHash, e.CollateralVout), nil
	default:
		return budget.VoterID{}, fmt.Errorf(
			"validator entry must set operatorKey or collateralTx",
		)
	}
}

// LoadFile merges validators from a YAML file into the registry. Entries
// for voters already registered replace the existing key.
func (r *Registry) LoadFile(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading validator file: %w", err)
	}
	var vf validatorFile
	if err := yaml.Unmarshal(buf, &vf); err != nil {
		return fmt.Errorf("error parsing validator file: %w", err)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for i, entry := range vf.Validators {
		voter, err := entry.voter()
		if err != nil {
			return fmt.Errorf("validator entry %d: %w", i, err)
		}
		publicKey, err := hex.DecodeString(entry.PublicKey)
		if err != nil {
			return fmt.Errorf(
				"validator entry %d: invalid public key: %w",
				i,
				err,
			)
		}
		if len(publicKey) == 0 {
			return fmt.Errorf(
				"validator entry %d: missing public key",
				i,
			)
		}
		r.keys[voter.Key()] = publicKey
	}
	r.logger.Info(
		"loaded validator file",
		"component", "valstore",
		"path", path,
		"validators", len(r.keys),
	)
	return nil
}
