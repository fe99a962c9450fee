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

package binary

import (
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/util/limiter"
)

const (
	defaultChunkSize        = 1 << 20
	defaultReadPageSize     = 4
	defaultWriteParallelism = 4
	maxChunkSize            = 64 << 20
)

type Config struct {
	// ChunkSize applies to new writes only; stored binaries keep their own.
	ChunkSize        int               `json:"chunk_size"`
	ReadConsistency  query.Consistency `json:"read_consistency"`
	WriteConsistency query.Consistency `json:"write_consistency"`
	// ReadPageSize is the number of chunks fetched per page.
	ReadPageSize     int            `json:"read_page_size"`
	WriteParallelism int            `json:"write_parallelism"`
	Limit            limiter.Config `json:"limit"`
}

func (cfg *Config) fillDefaults() {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkSize > maxChunkSize {
		cfg.ChunkSize = maxChunkSize
	}
	if cfg.ReadPageSize <= 0 {
		cfg.ReadPageSize = defaultReadPageSize
	}
	if cfg.WriteParallelism <= 0 {
		cfg.WriteParallelism = defaultWriteParallelism
	}
	cfg.ReadConsistency = cfg.ReadConsistency.Or(query.One)
	cfg.WriteConsistency = cfg.WriteConsistency.Or(query.One)
}
