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

// Package limiter bounds the number of concurrent binary transfers and
// their throughput in each direction.
package limiter

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const mb = 1 << 20

var ErrLimitExceeded = errors.New("limit exceeded")

// Config values of zero leave the corresponding dimension unlimited.
type Config struct {
	ReadConcurrency  int `json:"read_concurrency"`
	WriteConcurrency int `json:"write_concurrency"`
	ReadMBPS         int `json:"read_mbps"`
	WriteMBPS        int `json:"write_mbps"`
}

type Status struct {
	Config       Config `json:"config"`
	ReadRunning  int    `json:"read_running"`
	WriteRunning int    `json:"write_running"`
	// estimated delay in ms before half a second of budget is available
	ReadWait  int `json:"read_wait"`
	WriteWait int `json:"write_wait"`
}

type Limiter struct {
	config     Config
	readCount  *countLimit
	writeCount *countLimit
	readRate   *rate.Limiter
	writeRate  *rate.Limiter
}

func New(cfg Config) *Limiter {
	l := &Limiter{config: cfg}
	if cfg.ReadConcurrency > 0 {
		l.readCount = &countLimit{limit: uint32(cfg.ReadConcurrency)}
	}
	if cfg.WriteConcurrency > 0 {
		l.writeCount = &countLimit{limit: uint32(cfg.WriteConcurrency)}
	}
	if cfg.ReadMBPS > 0 {
		l.readRate = rate.NewLimiter(rate.Limit(cfg.ReadMBPS*mb), cfg.ReadMBPS*mb)
	}
	if cfg.WriteMBPS > 0 {
		l.writeRate = rate.NewLimiter(rate.Limit(cfg.WriteMBPS*mb), cfg.WriteMBPS*mb)
	}
	return l
}

// AcquireRead takes a read slot without waiting. It fails with
// ErrLimitExceeded when every slot is taken.
func (l *Limiter) AcquireRead() error { return l.readCount.acquire() }

func (l *Limiter) ReleaseRead() { l.readCount.release() }

func (l *Limiter) AcquireWrite() error { return l.writeCount.acquire() }

func (l *Limiter) ReleaseWrite() { l.writeCount.release() }

// Reader throttles reads from r to the configured read rate.
func (l *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if l.readRate == nil {
		return r
	}
	return &rateReader{ctx: ctx, rate: l.readRate, underlying: r}
}

// SourceReader throttles a stream being stored, at the write rate.
func (l *Limiter) SourceReader(ctx context.Context, r io.Reader) io.Reader {
	if l.writeRate == nil {
		return r
	}
	return &rateReader{ctx: ctx, rate: l.writeRate, underlying: r}
}

func (l *Limiter) Status() Status {
	return Status{
		Config:       l.config,
		ReadRunning:  l.readCount.running(),
		WriteRunning: l.writeCount.running(),
		ReadWait:     rateWait(l.readRate),
		WriteWait:    rateWait(l.writeRate),
	}
}

type rateReader struct {
	ctx        context.Context
	rate       *rate.Limiter
	underlying io.Reader
}

func (r *rateReader) Read(p []byte) (int, error) {
	// WaitN rejects requests above the burst
	if burst := r.rate.Burst(); len(p) > burst {
		p = p[:burst]
	}
	if err := r.rate.WaitN(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.underlying.Read(p)
}

func rateWait(r *rate.Limiter) int {
	if r == nil {
		return 0
	}
	now := time.Now()
	reserve := r.ReserveN(now, int(r.Limit())/2)
	duration := reserve.DelayFrom(now)
	reserve.Cancel()
	return int(duration.Milliseconds())
}

const minusOne = ^uint32(0)

// countLimit is nil when unlimited.
type countLimit struct {
	limit   uint32
	current uint32
}

func (c *countLimit) running() int {
	if c == nil {
		return 0
	}
	return int(atomic.LoadUint32(&c.current))
}

func (c *countLimit) acquire() error {
	if c == nil {
		return nil
	}
	if atomic.AddUint32(&c.current, 1) > c.limit {
		atomic.AddUint32(&c.current, minusOne)
		return ErrLimitExceeded
	}
	return nil
}

func (c *countLimit) release() {
	if c == nil {
		return
	}
	atomic.AddUint32(&c.current, minusOne)
}
