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
	"sync"
	"sync/atomic"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/taskpool"

	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/metrics"
)

const (
	defaultReadPoolSize   = 16
	defaultWritePoolSize  = 8
	defaultPageSize       = 1000
	defaultReadTimeoutMs  = 12000
	defaultWriteTimeoutMs = 12000

	pathRead  = "read"
	pathWrite = "write"
)

type Config struct {
	ReadPoolSize   int `json:"read_pool_size"`
	WritePoolSize  int `json:"write_pool_size"`
	PageSize       int `json:"page_size"`
	ReadTimeoutMs  int `json:"read_timeout_ms"`
	WriteTimeoutMs int `json:"write_timeout_ms"`
}

func (cfg *Config) fillDefaults() {
	if cfg.ReadPoolSize <= 0 {
		cfg.ReadPoolSize = defaultReadPoolSize
	}
	if cfg.WritePoolSize <= 0 {
		cfg.WritePoolSize = defaultWritePoolSize
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.ReadTimeoutMs <= 0 {
		cfg.ReadTimeoutMs = defaultReadTimeoutMs
	}
	if cfg.WriteTimeoutMs <= 0 {
		cfg.WriteTimeoutMs = defaultWriteTimeoutMs
	}
}

type Status struct {
	Config        Config `json:"config"`
	ReadInflight  int64  `json:"read_inflight"`
	WriteInflight int64  `json:"write_inflight"`
}

// Executor runs bound statements on a Session. Reads and writes go
// through separate worker pools so that a burst on one path cannot hold
// completions on the other.
type Executor struct {
	session   Session
	cfg       Config
	readPool  taskpool.TaskPool
	writePool taskpool.TaskPool

	readInflight  int64
	writeInflight int64

	// held for reading while a task is handed to a pool
	lock   sync.RWMutex
	closed bool
}

func NewExecutor(session Session, cfg Config) *Executor {
	cfg.fillDefaults()
	return &Executor{
		session:   session,
		cfg:       cfg,
		readPool:  taskpool.New(cfg.ReadPoolSize, cfg.ReadPoolSize*4),
		writePool: taskpool.New(cfg.WritePoolSize, cfg.WritePoolSize*4),
	}
}

func (e *Executor) PageSize() int { return e.cfg.PageSize }

// Read fetches the first page of b and returns a lazy row sequence over
// all pages.
func (e *Executor) Read(ctx context.Context, b *Bound, c Consistency) *Future[*Rows] {
	return e.ReadPaged(ctx, b, c, e.cfg.PageSize)
}

func (e *Executor) ReadPaged(ctx context.Context, b *Bound, c Consistency, pageSize int) *Future[*Rows] {
	if pageSize <= 0 {
		pageSize = e.cfg.PageSize
	}
	return Then(e.fetch(ctx, b, c, pageSize, nil), func(p *Page) (*Rows, error) {
		return &Rows{exec: e, bound: b, consistency: c, pageSize: pageSize, page: p.Rows, next: p.Next}, nil
	})
}

// ReadOne resolves to the first row of b, or nil when b matches nothing.
func (e *Executor) ReadOne(ctx context.Context, b *Bound, c Consistency) *Future[Row] {
	return Then(e.fetch(ctx, b, c, 1, nil), func(p *Page) (Row, error) {
		if len(p.Rows) == 0 {
			return nil, nil
		}
		return p.Rows[0], nil
	})
}

func (e *Executor) Write(ctx context.Context, b *Bound, c Consistency) *Future[struct{}] {
	return e.submitWrite(ctx, b.Stmt.Name, func(ctx context.Context) error {
		return e.session.Exec(ctx, b, c)
	})
}

// Batch submits bs as a single logged batch.
func (e *Executor) Batch(ctx context.Context, name string, c Consistency, bs ...*Bound) *Future[struct{}] {
	return e.submitWrite(ctx, name, func(ctx context.Context) error {
		return e.session.ExecBatch(ctx, bs, c)
	})
}

func (e *Executor) Status() Status {
	return Status{
		Config:        e.cfg,
		ReadInflight:  atomic.LoadInt64(&e.readInflight),
		WriteInflight: atomic.LoadInt64(&e.writeInflight),
	}
}

// Close stops accepting statements and releases the pools. The session is
// owned by the caller.
func (e *Executor) Close() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.readPool.Close()
	e.writePool.Close()
}

// run hands task to pool unless the executor is closed.
func (e *Executor) run(pool taskpool.TaskPool, task func()) bool {
	e.lock.RLock()
	defer e.lock.RUnlock()
	if e.closed {
		return false
	}
	pool.Run(task)
	return true
}

func (e *Executor) fetch(ctx context.Context, b *Bound, c Consistency, pageSize int, pageState []byte) *Future[*Page] {
	f := newFutureAbandon[*Page](apierrors.StorageUnavailable)
	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.ReadTimeoutMs)*time.Millisecond)
	atomic.AddInt64(&e.readInflight, 1)
	metrics.Inflight.WithLabelValues(pathRead).Inc()
	ok := e.run(e.readPool, func() {
		defer func() {
			cancel()
			atomic.AddInt64(&e.readInflight, -1)
			metrics.Inflight.WithLabelValues(pathRead).Dec()
		}()
		if err := ctx.Err(); err != nil {
			f.complete(nil, e.fail(ctx, b.Stmt.Name, apierrors.New(apierrors.StorageUnavailable, b.Stmt.Name, err)))
			return
		}
		start := time.Now()
		page, err := e.session.Query(ctx, b, c, pageSize, pageState)
		metrics.QueryDuration.WithLabelValues(b.Stmt.Name, pathRead).Observe(time.Since(start).Seconds())
		if err != nil {
			f.complete(nil, e.fail(ctx, b.Stmt.Name, classify(err, b.Stmt.Name, apierrors.StorageUnavailable)))
			return
		}
		f.complete(page, nil)
	})
	if !ok {
		cancel()
		atomic.AddInt64(&e.readInflight, -1)
		metrics.Inflight.WithLabelValues(pathRead).Dec()
		f.complete(nil, apierrors.New(apierrors.StorageUnavailable, b.Stmt.Name, apierrors.ErrClosed))
	}
	return f
}

func (e *Executor) submitWrite(ctx context.Context, name string, exec func(ctx context.Context) error) *Future[struct{}] {
	f := newFuture[struct{}]()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.WriteTimeoutMs)*time.Millisecond)
	atomic.AddInt64(&e.writeInflight, 1)
	metrics.Inflight.WithLabelValues(pathWrite).Inc()
	ok := e.run(e.writePool, func() {
		defer func() {
			cancel()
			atomic.AddInt64(&e.writeInflight, -1)
			metrics.Inflight.WithLabelValues(pathWrite).Dec()
		}()
		// nothing was sent yet, so the outcome is not ambiguous
		if err := ctx.Err(); err != nil {
			f.complete(struct{}{}, e.fail(ctx, name, apierrors.New(apierrors.StorageUnavailable, name, err)))
			return
		}
		start := time.Now()
		err := exec(ctx)
		metrics.QueryDuration.WithLabelValues(name, pathWrite).Observe(time.Since(start).Seconds())
		if err != nil {
			f.complete(struct{}{}, e.fail(ctx, name, classify(err, name, apierrors.StorageUnknown)))
			return
		}
		f.complete(struct{}{}, nil)
	})
	if !ok {
		cancel()
		atomic.AddInt64(&e.writeInflight, -1)
		metrics.Inflight.WithLabelValues(pathWrite).Dec()
		f.complete(struct{}{}, apierrors.New(apierrors.StorageUnavailable, name, apierrors.ErrClosed))
	}
	return f
}

func (e *Executor) fail(ctx context.Context, name string, err error) error {
	kind := apierrors.KindOf(err)
	metrics.QueryErrors.WithLabelValues(name, kind.String()).Inc()
	trace.SpanFromContextSafe(ctx).Warnf("statement %s failed: %s", name, err)
	return err
}

// classify keeps a driver's classification and gives anything
// unclassified the fallback kind of its path.
func classify(err error, name string, fallback apierrors.Kind) error {
	if apierrors.KindOf(err) != apierrors.KindUnknown {
		return err
	}
	return apierrors.New(fallback, name, err)
}
