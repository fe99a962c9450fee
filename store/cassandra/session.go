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
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cubefs/ldpstore/query"
)

const (
	defaultTimeoutMs        = 12000
	defaultConnectTimeoutMs = 5000
	defaultNumConns         = 2
	defaultReplication      = 1
)

type Config struct {
	Hosts             []string `json:"hosts"`
	Port              int      `json:"port"`
	Keyspace          string   `json:"keyspace"`
	LocalDC           string   `json:"local_dc"`
	Username          string   `json:"username"`
	Password          string   `json:"password"`
	ProtoVersion      int      `json:"proto_version"`
	NumConns          int      `json:"num_conns"`
	TimeoutMs         int      `json:"timeout_ms"`
	ConnectTimeoutMs  int      `json:"connect_timeout_ms"`
	ReplicationFactor int      `json:"replication_factor"`
	// CreateSchema creates the keyspace and tables when missing.
	CreateSchema bool `json:"create_schema"`
}

func (cfg *Config) fillDefaults() {
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"127.0.0.1"}
	}
	if cfg.Keyspace == "" {
		cfg.Keyspace = "trellis"
	}
	if cfg.NumConns <= 0 {
		cfg.NumConns = defaultNumConns
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = defaultTimeoutMs
	}
	if cfg.ConnectTimeoutMs <= 0 {
		cfg.ConnectTimeoutMs = defaultConnectTimeoutMs
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = defaultReplication
	}
}

func (cfg *Config) cluster(keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = keyspace
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	if cfg.ProtoVersion > 0 {
		cluster.ProtoVersion = cfg.ProtoVersion
	}
	cluster.NumConns = cfg.NumConns
	cluster.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	cluster.ConnectTimeout = time.Duration(cfg.ConnectTimeoutMs) * time.Millisecond
	// failures go back to the caller, who knows whether a retry is safe
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 0}
	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cfg.LocalDC))
	} else {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}
	return cluster
}

// Session runs statements on a Cassandra cluster.
type Session struct {
	cfg     Config
	session *gocql.Session
}

// NewSession connects to the cluster. With CreateSchema set the keyspace
// and the given tables are created first.
func NewSession(ctx context.Context, cfg Config, tables ...*query.Table) (*Session, error) {
	span := trace.SpanFromContextSafe(ctx)
	cfg.fillDefaults()
	if cfg.CreateSchema {
		if err := createSchema(ctx, &cfg, tables); err != nil {
			return nil, err
		}
	}
	session, err := cfg.cluster(cfg.Keyspace).CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connect keyspace %s", cfg.Keyspace)
	}
	span.Infof("connected to cassandra %v keyspace %s", cfg.Hosts, cfg.Keyspace)
	return &Session{cfg: cfg, session: session}, nil
}

// Query fetches one page. Only the rows of the current page are read from
// the iterator so that the driver does not fetch ahead.
func (s *Session) Query(ctx context.Context, b *query.Bound, c query.Consistency, pageSize int, pageState []byte) (*query.Page, error) {
	q := s.session.Query(b.Stmt.CQL(), bindValues(b.Values)...).
		WithContext(ctx).
		Consistency(toGocql(c)).
		PageSize(pageSize).
		PageState(pageState)
	iter := q.Iter()
	n := iter.NumRows()
	page := &query.Page{Rows: make([]query.Row, 0, n)}
	for i := 0; i < n; i++ {
		m := make(map[string]interface{}, len(b.Stmt.Columns))
		if !iter.MapScan(m) {
			break
		}
		page.Rows = append(page.Rows, fromGocql(m))
	}
	if next := iter.PageState(); len(next) > 0 && len(page.Rows) == n {
		page.Next = append([]byte(nil), next...)
	}
	if err := iter.Close(); err != nil {
		return nil, classify(err, b.Stmt.Name, false)
	}
	return page, nil
}

func (s *Session) Exec(ctx context.Context, b *query.Bound, c query.Consistency) error {
	err := s.session.Query(b.Stmt.CQL(), bindValues(b.Values)...).
		WithContext(ctx).
		Consistency(toGocql(c)).
		Exec()
	if err != nil {
		return classify(err, b.Stmt.Name, true)
	}
	return nil
}

func (s *Session) ExecBatch(ctx context.Context, bs []*query.Bound, c query.Consistency) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SetConsistency(toGocql(c))
	for _, b := range bs {
		batch.Query(b.Stmt.CQL(), bindValues(b.Values)...)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return classify(err, "batch", true)
	}
	return nil
}

func (s *Session) Close() {
	s.session.Close()
}

var consistencies = map[query.Consistency]gocql.Consistency{
	query.Any:         gocql.Any,
	query.One:         gocql.One,
	query.Two:         gocql.Two,
	query.Three:       gocql.Three,
	query.Quorum:      gocql.Quorum,
	query.All:         gocql.All,
	query.LocalQuorum: gocql.LocalQuorum,
	query.EachQuorum:  gocql.EachQuorum,
	query.LocalOne:    gocql.LocalOne,
}

func toGocql(c query.Consistency) gocql.Consistency {
	if gc, ok := consistencies[c]; ok {
		return gc
	}
	return gocql.Quorum
}

// bindValues converts bound values into the shapes the driver marshals.
func bindValues(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		if u, ok := v.(uuid.UUID); ok {
			out[i] = gocql.UUID(u)
			continue
		}
		out[i] = v
	}
	return out
}

func fromGocql(m map[string]interface{}) query.Row {
	row := make(query.Row, len(m))
	for k, v := range m {
		if u, ok := v.(gocql.UUID); ok {
			row[k] = uuid.UUID(u)
			continue
		}
		row[k] = v
	}
	return row
}
