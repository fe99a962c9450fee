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

package store

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/pkg/errors"

	"github.com/cubefs/ldpstore/common/kvstore"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/store/cassandra"
	"github.com/cubefs/ldpstore/store/wide"
)

const (
	BackendCassandra = "cassandra"
	BackendRocksdb   = "rocksdb"
	BackendBadger    = "badger"
)

type KVConfig struct {
	Path   string         `json:"path"`
	Option kvstore.Option `json:"option"`
}

type Config struct {
	Backend   string           `json:"backend"`
	Cassandra cassandra.Config `json:"cassandra"`
	KV        KVConfig         `json:"kv"`
}

// NewSession opens the configured backend with the given tables in place.
func NewSession(ctx context.Context, cfg Config, tables ...*query.Table) (query.Session, error) {
	span := trace.SpanFromContextSafe(ctx)
	switch cfg.Backend {
	case BackendCassandra, "":
		return cassandra.NewSession(ctx, cfg.Cassandra, tables...)
	case BackendRocksdb, BackendBadger:
		opt := cfg.KV.Option
		opt.CreateIfMissing = true
		for _, t := range tables {
			opt.ColumnFamily = append(opt.ColumnFamily, kvstore.CF(t.Name))
		}
		kv, err := kvstore.NewKVStore(ctx, cfg.KV.Path, kvstore.LsmKVType(cfg.Backend), &opt)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s at %s", cfg.Backend, cfg.KV.Path)
		}
		span.Infof("opened %s store at %s", cfg.Backend, cfg.KV.Path)
		return wide.NewSession(ctx, kv, tables...)
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
