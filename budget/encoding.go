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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Canonical record encoding for proposals and finalized budgets. Object
// content hashes are computed over these bytes, so the encoding must be
// deterministic and a decoded record must re-encode to identical bytes.

const (
	recordVersion = 1

	recordTypeProposal        = 1
	recordTypeFinalizedBudget = 2
)

// Encode returns the proposal's canonical record bytes
func (p *Proposal) Encode() []byte {
	return p.encodeIdentity()
}

func (p *Proposal) encodeIdentity() []byte {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion)
	buf.WriteByte(recordTypeProposal)
	writeString(&buf, p.Name)
	writeString(&buf, p.URL)
	writeBytes(&buf, p.Payee)
	writeInt64(&buf, p.Amount)
	writeInt64(&buf, p.BlockStart)
	writeInt64(&buf, int64(p.PaymentCount))
	buf.Write(p.FeeTxHash[:])
	return buf.Bytes()
}

// DecodeProposal reconstructs a proposal from its canonical record bytes
// and re-derives its hash
func DecodeProposal(data []byte) (*Proposal, error) {
	r := bytes.NewReader(data)
	if err := readHeader(r, recordTypeProposal); err != nil {
		return nil, fmt.Errorf("decode proposal: %w", err)
	}
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal name: %w", err)
	}
	url, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal url: %w", err)
	}
	payee, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal payee: %w", err)
	}
	amount, err := readInt64(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal amount: %w", err)
	}
	blockStart, err := readInt64(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal block start: %w", err)
	}
	paymentCount, err := readInt64(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal payment count: %w", err)
	}
	feeTxHash, err := readHash(r)
	if err != nil {
		return nil, fmt.Errorf("decode proposal fee tx: %w", err)
	}
	if r.Len() != 0 {
		return nil, errors.New("decode proposal: trailing bytes")
	}
	return NewProposal(
		name,
		url,
		payee,
		amount,
		blockStart,
		int(paymentCount),
		feeTxHash,
	), nil
}

// Encode returns the finalized budget's canonical record bytes
func (fb *FinalizedBudget) Encode() []byte {
	return fb.encodeIdentity()
}

func (fb *FinalizedBudget) encodeIdentity() []byte {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion)
	buf.WriteByte(recordTypeFinalizedBudget)
	writeString(&buf, fb.Name)
	writeInt64(&buf, fb.BlockStart)
	writeInt64(&buf, int64(len(fb.Payments)))
	for _, payment := range fb.Payments {
		buf.Write(payment.ProposalHash[:])
		writeBytes(&buf, payment.Payee)
		writeInt64(&buf, payment.Amount)
	}
	buf.Write(fb.FeeTxHash[:])
	return buf.Bytes()
}

// DecodeFinalizedBudget reconstructs a finalized budget from its canonical
// record bytes and re-derives its hash
func DecodeFinalizedBudget(data []byte) (*FinalizedBudget, error) {
	r := bytes.NewReader(data)
	if err := readHeader(r, recordTypeFinalizedBudget); err != nil {
		return nil, fmt.Errorf("decode finalized budget: %w", err)
	}
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("decode budget name: %w", err)
	}
	blockStart, err := readInt64(r)
	if err != nil {
		return nil, fmt.Errorf("decode budget block start: %w", err)
	}
	paymentCount, err := readInt64(r)
	if err != nil {
		return nil, fmt.Errorf("decode budget payment count: %w", err)
	}
	if paymentCount < 0 || paymentCount > int64(r.Len()) {
		return nil, fmt.Errorf("invalid payment count: %d", paymentCount)
	}
	payments := make([]BudgetPayment, 0, paymentCount)
	for i := int64(0); i < paymentCount; i++ {
		proposalHash, err := readHash(r)
		if err != nil {
			return nil, fmt.Errorf("decode payment %d proposal: %w", i, err)
		}
		payee, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("decode payment %d payee: %w", i, err)
		}
		amount, err := readInt64(r)
		if err != nil {
			return nil, fmt.Errorf("decode payment %d amount: %w", i, err)
		}
		payments = append(payments, BudgetPayment{
			ProposalHash: proposalHash,
			Payee:        payee,
			Amount:       amount,
		})
	}
	feeTxHash, err := readHash(r)
	if err != nil {
		return nil, fmt.Errorf("decode budget fee tx: %w", err)
	}
	if r.Len() != 0 {
		return nil, errors.New("decode finalized budget: trailing bytes")
	}
	return NewFinalizedBudget(name, blockStart, payments, feeTxHash), nil
}

func readHeader(r *bytes.Reader, recordType byte) error {
	version, err := r.ReadByte()
	if err != nil {
		return err
	}
	if version != recordVersion {
		return fmt.Errorf("unsupported record version: %d", version)
	}
	typeByte, err := r.ReadByte()
	if err != nil {
		return err
	}
	if typeByte != recordType {
		return fmt.Errorf("unexpected record type: %d", typeByte)
	}
	return nil
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func readInt64(r *bytes.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(tmp[:])), nil
}

func writeBytes(buf *bytes.Buffer, data []byte) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(data)))
	buf.Write(tmp[:])
	buf.Write(data)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(tmp[:])
	if int(length) > r.Len() {
		return nil, fmt.Errorf("invalid length prefix: %d", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func readString(r *bytes.Reader) (string, error) {
	data, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readHash(r *bytes.Reader) (Hash, error) {
	var h Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, err
	}
	return h, nil
}
