// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what a caller may safely do about it.
type Kind uint8

const (
	KindUnknown = Kind(iota)
	// StorageUnavailable is transient: timeouts, unavailable replicas. Retry with backoff.
	StorageUnavailable
	// StorageUnknown is an ambiguous write outcome. Retry only idempotent writes.
	StorageUnknown
	// StorageRejected is permanent: malformed statement, schema or type mismatch.
	StorageRejected
	// MalformedBinaryMetadata is a NonRDFSource payload without a binary identifier.
	MalformedBinaryMetadata
	// BinaryNotFound means no content is stored for a binary identifier.
	BinaryNotFound
)

var kindNames = map[Kind]string{
	KindUnknown:             "Unknown",
	StorageUnavailable:      "StorageUnavailable",
	StorageUnknown:          "StorageUnknown",
	StorageRejected:         "StorageRejected",
	MalformedBinaryMetadata: "MalformedBinaryMetadata",
	BinaryNotFound:          "BinaryNotFound",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", k)
}

var (
	ErrStorageUnavailable      = &Error{Kind: StorageUnavailable}
	ErrStorageUnknown          = &Error{Kind: StorageUnknown}
	ErrStorageRejected         = &Error{Kind: StorageRejected}
	ErrMalformedBinaryMetadata = &Error{Kind: MalformedBinaryMetadata}
	ErrBinaryNotFound          = &Error{Kind: BinaryNotFound}

	ErrUnsupportedInteractionModel = errors.New("unsupported interaction model")
	ErrInvalidRange                = errors.New("invalid byte range")
	ErrClosed                      = errors.New("executor is closed")
)

// Error carries one Kind plus the operation and cause. errors.Is matches
// on Kind, so errors.Is(err, ErrStorageUnknown) holds for every
// StorageUnknown failure regardless of its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " [" + e.Op + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err may be retried without knowing whether
// the operation is idempotent.
func IsRetryable(err error) bool {
	return KindOf(err) == StorageUnavailable
}
