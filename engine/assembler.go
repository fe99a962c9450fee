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

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/google/uuid"

	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/schema"
)

// assembler reads the quads of a resource from the tables that hold them.
// Every retrieval is an independent future so that a read can issue them
// concurrently.
type assembler struct {
	exec        *query.Executor
	consistency query.Consistency
}

// mutable reads the quads of the version created at created. Live reads
// pass the version the metadata row points at, which need not be the
// newest stored one when writes were applied out of token order.
func (a *assembler) mutable(ctx context.Context, id rdf.IRI, created uuid.UUID) *query.Future[*rdf.Dataset] {
	return a.quads(ctx, selectVersionQuads, query.Params{schema.ColIdentifier: string(id), schema.ColCreated: created})
}

// immutable reads the union of every immutable contribution.
func (a *assembler) immutable(ctx context.Context, id rdf.IRI) *query.Future[*rdf.Dataset] {
	return a.quads(ctx, selectImmutableQuads, query.Params{schema.ColIdentifier: string(id)})
}

// containment computes the ldp:contains quads of a container from the
// containment index.
func (a *assembler) containment(ctx context.Context, id rdf.IRI) *query.Future[*rdf.Dataset] {
	b, err := selectContained.Bind(query.Params{schema.ColContainer: string(id)})
	if err != nil {
		return query.Failed[*rdf.Dataset](err)
	}
	return query.Then(a.exec.Read(ctx, b, a.consistency), func(rows *query.Rows) (*rdf.Dataset, error) {
		d := rdf.NewDataset()
		for rows.Next(ctx) {
			child := rows.Row().String(schema.ColIdentifier)
			if child == "" {
				continue
			}
			d.Add(rdf.NewQuad(rdf.LDPPreferContainment, id, rdf.LDPContains, rdf.IRI(child)))
		}
		return d, rows.Err()
	})
}

func (a *assembler) quads(ctx context.Context, stmt *query.Statement, params query.Params) *query.Future[*rdf.Dataset] {
	b, err := stmt.Bind(params)
	if err != nil {
		return query.Failed[*rdf.Dataset](err)
	}
	return query.Then(a.exec.Read(ctx, b, a.consistency), func(rows *query.Rows) (*rdf.Dataset, error) {
		d := rdf.NewDataset()
		for rows.Next(ctx) {
			cell, err := rdf.UnmarshalDataset(rows.Row().Bytes(schema.ColQuads))
			if err != nil {
				trace.SpanFromContextSafe(ctx).Errorf("corrupt quad cell in %s: %s", stmt.Name, err)
				return nil, apierrors.New(apierrors.StorageRejected, stmt.Name, err)
			}
			d.AddAll(cell)
		}
		return d, rows.Err()
	})
}

// assemble merges the retrieved parts into one dataset. For containers
// the containment graph is exactly the computed one, whatever stored data
// says.
func assemble(mutable, immutable, containment *rdf.Dataset, container bool) *rdf.Dataset {
	d := rdf.NewDataset()
	if container {
		d.AddAll(mutable.Without(rdf.LDPPreferContainment))
		d.AddAll(immutable.Without(rdf.LDPPreferContainment))
		d.AddAll(containment)
		return d
	}
	d.AddAll(mutable)
	d.AddAll(immutable)
	return d
}
