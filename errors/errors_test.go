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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := New(StorageUnknown, "mutable_insert", context.DeadlineExceeded)
	wrapped := fmt.Errorf("create: %w", err)

	require.ErrorIs(t, wrapped, ErrStorageUnknown)
	require.ErrorIs(t, wrapped, context.DeadlineExceeded)
	require.NotErrorIs(t, wrapped, ErrStorageUnavailable)
	require.ErrorIs(t, wrapped, &Error{Kind: StorageUnknown, Op: "mutable_insert"})
	require.NotErrorIs(t, wrapped, &Error{Kind: StorageUnknown, Op: "touch"})

	require.Equal(t, StorageUnknown, KindOf(wrapped))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.False(t, IsRetryable(wrapped))
	require.True(t, IsRetryable(New(StorageUnavailable, "get", nil)))
}

func TestError_Message(t *testing.T) {
	require.Equal(t, "StorageRejected [get]: bad", New(StorageRejected, "get", errors.New("bad")).Error())
	require.Equal(t, "BinaryNotFound", ErrBinaryNotFound.Error())
	require.Equal(t, "Kind(99)", Kind(99).String())
}
