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

package engine

import (
	"context"
	"sort"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/resource"
	"github.com/cubefs/ldpstore/schema"
)

type Config struct {
	ReadConsistency  query.Consistency `json:"read_consistency"`
	WriteConsistency query.Consistency `json:"write_consistency"`
}

var supportedInteractionModels = []rdf.IRI{
	rdf.LDPResource,
	rdf.LDPRDFSource,
	rdf.LDPNonRDFSource,
	rdf.LDPContainer,
	rdf.LDPBasicContainer,
}

// Service stores LDP resources in wide-column tables. It keeps no state of
// its own besides the shared executor; every call goes to the store.
type Service struct {
	exec    *query.Executor
	cfg     Config
	builder *builder
	writer  *writer
	now     func() time.Time
}

func NewService(exec *query.Executor, cfg Config) *Service {
	cfg.ReadConsistency = cfg.ReadConsistency.Or(query.LocalQuorum)
	cfg.WriteConsistency = cfg.WriteConsistency.Or(query.LocalQuorum)
	return &Service{
		exec:    exec,
		cfg:     cfg,
		builder: &builder{assembler: &assembler{exec: exec, consistency: cfg.ReadConsistency}},
		writer:  &writer{exec: exec, consistency: cfg.WriteConsistency},
		now:     time.Now,
	}
}

// GetAsync reads the current state of id.
func (s *Service) GetAsync(ctx context.Context, id rdf.IRI) *query.Future[resource.Lookup] {
	b, err := selectMetadata.Bind(query.Params{schema.ColIdentifier: string(id)})
	if err != nil {
		return query.Failed[resource.Lookup](err)
	}
	return s.chain(ctx, id, s.exec.ReadOne(ctx, b, s.cfg.ReadConsistency), func(row query.Row) quadSource {
		return liveSource{created: row.UUID(schema.ColCreated)}
	})
}

// GetAtAsync reads id as of t: the newest version created within or
// before t's second.
func (s *Service) GetAtAsync(ctx context.Context, id rdf.IRI, t time.Time) *query.Future[resource.Lookup] {
	end := t.Truncate(time.Second).Add(time.Second - time.Millisecond)
	b, err := selectVersionAt.Bind(query.Params{schema.ColIdentifier: string(id), paramTime: end})
	if err != nil {
		return query.Failed[resource.Lookup](err)
	}
	return s.chain(ctx, id, s.exec.ReadOne(ctx, b, s.cfg.ReadConsistency), func(row query.Row) quadSource {
		return mementoSource{created: row.UUID(schema.ColCreated)}
	})
}

func (s *Service) chain(ctx context.Context, id rdf.IRI, row *query.Future[query.Row], src func(query.Row) quadSource) *query.Future[resource.Lookup] {
	return query.Then(row, func(r query.Row) (resource.Lookup, error) {
		if r == nil {
			return resource.Missing, nil
		}
		return s.builder.build(ctx, id, r, src(r)).Wait(ctx)
	})
}

func (s *Service) Get(ctx context.Context, id rdf.IRI) (resource.Lookup, error) {
	return s.GetAsync(ctx, id).Wait(ctx)
}

func (s *Service) GetAt(ctx context.Context, id rdf.IRI, t time.Time) (resource.Lookup, error) {
	return s.GetAtAsync(ctx, id, t).Wait(ctx)
}

// CreateAsync stores the first version of meta.Identifier.
func (s *Service) CreateAsync(ctx context.Context, meta resource.Metadata, dataset *rdf.Dataset) *query.Future[struct{}] {
	return s.putAsync(ctx, "create", meta, dataset)
}

// ReplaceAsync writes a new version. Older versions stay readable as
// mementos.
func (s *Service) ReplaceAsync(ctx context.Context, meta resource.Metadata, dataset *rdf.Dataset) *query.Future[struct{}] {
	return s.putAsync(ctx, "replace", meta, dataset)
}

func (s *Service) putAsync(ctx context.Context, op string, meta resource.Metadata, dataset *rdf.Dataset) *query.Future[struct{}] {
	if !supported(meta.InteractionModel) {
		return query.Failed[struct{}](apierrors.New(apierrors.StorageRejected, op,
			errors.Wrapf(apierrors.ErrUnsupportedInteractionModel, "%s", meta.InteractionModel)))
	}
	return s.writer.write(ctx, meta, dataset)
}

func (s *Service) Create(ctx context.Context, meta resource.Metadata, dataset *rdf.Dataset) error {
	return s.wait(ctx, "create", meta.Identifier, s.CreateAsync(ctx, meta, dataset))
}

func (s *Service) Replace(ctx context.Context, meta resource.Metadata, dataset *rdf.Dataset) error {
	return s.wait(ctx, "replace", meta.Identifier, s.ReplaceAsync(ctx, meta, dataset))
}

func (s *Service) wait(ctx context.Context, op string, id rdf.IRI, f *query.Future[struct{}]) error {
	_, err := f.Wait(ctx)
	if err != nil {
		trace.SpanFromContextSafe(ctx).Warnf("%s %s failed: %s", op, id, errors.Cause(err))
	}
	return err
}

func supported(model rdf.IRI) bool {
	for _, m := range supportedInteractionModels {
		if m == model {
			return true
		}
	}
	return false
}

// DeleteAsync removes id with its versions, its containment and, for a
// NonRDFSource, its binary content. When meta carries no binary or
// container, the stored metadata row supplies them.
func (s *Service) DeleteAsync(ctx context.Context, meta resource.Metadata) *query.Future[struct{}] {
	if meta.Binary != nil && meta.Container != "" {
		return s.writer.delete(ctx, meta)
	}
	b, err := selectMetadata.Bind(query.Params{schema.ColIdentifier: string(meta.Identifier)})
	if err != nil {
		return query.Failed[struct{}](err)
	}
	return query.ThenWrite(s.exec.ReadOne(ctx, b, s.cfg.ReadConsistency), func(row query.Row) (struct{}, error) {
		if row != nil {
			stored := resourceFromRow(meta.Identifier, row)
			if meta.Binary == nil {
				meta.Binary = stored.Binary
			}
			if meta.Container == "" {
				meta.Container = stored.Container
			}
		}
		return s.writer.delete(ctx, meta).Wait(ctx)
	})
}

func (s *Service) Delete(ctx context.Context, meta resource.Metadata) error {
	return s.wait(ctx, "delete", meta.Identifier, s.DeleteAsync(ctx, meta))
}

// AddAsync appends immutable quads, such as audit statements, to id.
func (s *Service) AddAsync(ctx context.Context, id rdf.IRI, dataset *rdf.Dataset) *query.Future[struct{}] {
	return s.writer.add(ctx, id, dataset)
}

func (s *Service) Add(ctx context.Context, id rdf.IRI, dataset *rdf.Dataset) error {
	return s.wait(ctx, "add", id, s.AddAsync(ctx, id, dataset))
}

// TouchAsync sets the modified time of id to now. It reads the current
// version and then writes it, without isolation from concurrent replaces.
// Touching a missing resource does nothing.
func (s *Service) TouchAsync(ctx context.Context, id rdf.IRI) *query.Future[struct{}] {
	b, err := selectMetadata.Bind(query.Params{schema.ColIdentifier: string(id)})
	if err != nil {
		return query.Failed[struct{}](err)
	}
	return query.ThenWrite(s.exec.ReadOne(ctx, b, s.cfg.ReadConsistency), func(row query.Row) (struct{}, error) {
		if row == nil {
			trace.SpanFromContextSafe(ctx).Debugf("touch of missing %s ignored", id)
			return struct{}{}, nil
		}
		return s.writer.touch(ctx, id, row.UUID(schema.ColCreated), s.now()).Wait(ctx)
	})
}

func (s *Service) Touch(ctx context.Context, id rdf.IRI) error {
	return s.wait(ctx, "touch", id, s.TouchAsync(ctx, id))
}

// MementosAsync lists the instants of every stored version, truncated to
// the second, ascending and without duplicates.
func (s *Service) MementosAsync(ctx context.Context, id rdf.IRI) *query.Future[[]time.Time] {
	b, err := selectMementos.Bind(query.Params{schema.ColIdentifier: string(id)})
	if err != nil {
		return query.Failed[[]time.Time](err)
	}
	return query.Then(s.exec.Read(ctx, b, s.cfg.ReadConsistency), func(rows *query.Rows) ([]time.Time, error) {
		seen := make(map[int64]struct{})
		var instants []time.Time
		for rows.Next(ctx) {
			t := rows.Row().Time(schema.ColModified).Truncate(time.Second)
			if _, ok := seen[t.Unix()]; ok {
				continue
			}
			seen[t.Unix()] = struct{}{}
			instants = append(instants, t)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })
		return instants, nil
	})
}

func (s *Service) Mementos(ctx context.Context, id rdf.IRI) ([]time.Time, error) {
	return s.MementosAsync(ctx, id).Wait(ctx)
}

// GenerateIdentifier returns a new opaque identifier.
func (s *Service) GenerateIdentifier() string {
	return uuid.NewString()
}

func (s *Service) SupportedInteractionModels() []rdf.IRI {
	return append([]rdf.IRI(nil), supportedInteractionModels...)
}
