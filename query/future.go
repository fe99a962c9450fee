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

package query

import (
	"context"

	apierrors "github.com/cubefs/ldpstore/errors"
)

// Future is the eventual result of an asynchronous operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
	// abandon is the kind reported by a wait that gives up first
	abandon apierrors.Kind
}

func newFuture[T any]() *Future[T] {
	return newFutureAbandon[T](apierrors.StorageUnknown)
}

func newFutureAbandon[T any](abandon apierrors.Kind) *Future[T] {
	return &Future[T]{done: make(chan struct{}), abandon: abandon}
}

func Completed[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

func (f *Future[T]) complete(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the result is available or ctx ends. Giving up on a
// future does not stop I/O it already dispatched: an abandoned read is
// StorageUnavailable, an abandoned write is StorageUnknown since it may
// still apply.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	default:
	}
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, apierrors.New(f.abandon, "wait", ctx.Err())
	}
}

// Then chains fn onto f. fn runs once f succeeds; a failure of f skips fn
// and propagates. Abandoning the chained future reports what abandoning f
// would, so fn must not write.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return then(f, fn, f.abandon)
}

// ThenWrite is Then for an fn that may write.
func ThenWrite[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return then(f, fn, apierrors.StorageUnknown)
}

func then[T, U any](f *Future[T], fn func(T) (U, error), abandon apierrors.Kind) *Future[U] {
	next := newFutureAbandon[U](abandon)
	go func() {
		<-f.done
		if f.err != nil {
			var zero U
			next.complete(zero, f.err)
			return
		}
		next.complete(fn(f.val))
	}()
	return next
}
