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

package server

import (
	"context"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/pkg/errors"

	"github.com/cubefs/ldpstore/binary"
	"github.com/cubefs/ldpstore/engine"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/schema"
	"github.com/cubefs/ldpstore/store"
	"github.com/cubefs/ldpstore/util/limiter"
)

const defaultInitTimeoutS = 60

type Config struct {
	Store  store.Config  `json:"store"`
	Query  query.Config  `json:"query"`
	Engine engine.Config `json:"engine"`
	Binary binary.Config `json:"binary"`

	// InitTimeoutS bounds opening the store and creating the root container.
	InitTimeoutS int `json:"init_timeout_s"`
}

// Server owns the storage session and the services built on it.
type Server struct {
	session   query.Session
	exec      *query.Executor
	Resources *engine.Service
	Binaries  *binary.Store
}

// NewServer opens the store, creates the schema when configured to and
// makes sure the root container exists before returning.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	span := trace.SpanFromContextSafe(ctx)
	if cfg.InitTimeoutS <= 0 {
		cfg.InitTimeoutS = defaultInitTimeoutS
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.InitTimeoutS)*time.Second)
	defer cancel()

	session, err := store.NewSession(ctx, cfg.Store, schema.Tables()...)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	exec := query.NewExecutor(session, cfg.Query)
	s := &Server{
		session:   session,
		exec:      exec,
		Resources: engine.NewService(exec, cfg.Engine),
		Binaries:  binary.New(exec, cfg.Binary),
	}
	if err = s.Resources.InitializeRoot(ctx); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "initialize root container")
	}
	span.Infof("server ready, backend %q", cfg.Store.Backend)
	return s, nil
}

type Stats struct {
	Query  query.Status   `json:"query"`
	Binary limiter.Status `json:"binary"`
}

func (s *Server) Stats() Stats {
	return Stats{Query: s.exec.Status(), Binary: s.Binaries.LimiterStatus()}
}

func (s *Server) Close() {
	s.exec.Close()
	s.session.Close()
}
