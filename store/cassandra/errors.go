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

package cassandra

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	apierrors "github.com/cubefs/ldpstore/errors"
)

// classify maps a driver error onto the storage error kinds. A write
// whose outcome the cluster could not confirm is StorageUnknown since it
// may still have been applied.
func classify(err error, op string, write bool) error {
	if err == nil {
		return nil
	}
	kind := apierrors.StorageUnavailable
	if write {
		kind = apierrors.StorageUnknown
	}

	var reqErr gocql.RequestError
	switch {
	case errors.As(err, &reqErr):
		switch reqErr.Code() {
		case gocql.ErrCodeSyntax, gocql.ErrCodeInvalid, gocql.ErrCodeUnauthorized,
			gocql.ErrCodeConfig, gocql.ErrCodeAlreadyExists, gocql.ErrCodeCredentials:
			kind = apierrors.StorageRejected
		case gocql.ErrCodeUnavailable, gocql.ErrCodeOverloaded, gocql.ErrCodeBootstrapping,
			gocql.ErrCodeTruncate, gocql.ErrCodeReadTimeout, gocql.ErrCodeReadFailure:
			// the coordinator did not start the mutation, or this is a read
			kind = apierrors.StorageUnavailable
		case gocql.ErrCodeWriteTimeout, gocql.ErrCodeWriteFailure:
			kind = apierrors.StorageUnknown
		}
	case errors.Is(err, gocql.ErrNoConnections), errors.Is(err, gocql.ErrSessionClosed),
		errors.Is(err, gocql.ErrUnavailable):
		kind = apierrors.StorageUnavailable
	case errors.Is(err, gocql.ErrNotFound):
		kind = apierrors.StorageUnavailable
	case errors.Is(err, gocql.ErrTimeoutNoResponse), errors.Is(err, context.DeadlineExceeded):
		if !write {
			kind = apierrors.StorageUnavailable
		}
	}
	return apierrors.New(kind, op, err)
}
