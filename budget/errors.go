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

import "fmt"

// RejectClass groups rejection reasons for callers and metrics. Stale or
// duplicate submissions are not rejections; they are benign no-ops reported
// through the accepted/added boolean on each mutation entry point.
type RejectClass string

const (
	// RejectMalformed covers field bounds, cycle misalignment, and amount
	// range violations
	RejectMalformed RejectClass = "malformed"
	// RejectUnknownReference covers votes on unknown proposal or budget
	// hashes and unresolvable validators
	RejectUnknownReference RejectClass = "unknown-reference"
	// RejectSignatureInvalid covers votes whose signature does not verify
	// against the validator's current key
	RejectSignatureInvalid RejectClass = "signature-invalid"
)

// RejectionError is returned by mutation entry points when an input is not
// accepted. No state changes when it is returned.
type RejectionError struct {
	Class  RejectClass
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Reason)
}

func rejectf(class RejectClass, format string, args ...any) *RejectionError {
	return &RejectionError{
		Class:  class,
		Reason: fmt.Sprintf(format, args...),
	}
}
