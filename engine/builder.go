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

	"github.com/google/uuid"

	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/resource"
	"github.com/cubefs/ldpstore/schema"
)

// quadSource decides where the mutable and containment quads of a resource
// come from. Live resources and mementos differ only here.
type quadSource interface {
	mutable(ctx context.Context, a *assembler, id rdf.IRI) *query.Future[*rdf.Dataset]
	containment(ctx context.Context, a *assembler, id rdf.IRI) *query.Future[*rdf.Dataset]
	memento() bool
}

// liveSource reads the version the metadata row points at.
type liveSource struct {
	created uuid.UUID
}

func (l liveSource) mutable(ctx context.Context, a *assembler, id rdf.IRI) *query.Future[*rdf.Dataset] {
	return a.mutable(ctx, id, l.created)
}

func (liveSource) containment(ctx context.Context, a *assembler, id rdf.IRI) *query.Future[*rdf.Dataset] {
	return a.containment(ctx, id)
}

func (liveSource) memento() bool { return false }

// mementoSource reads the version with the given token. Membership of a
// container as of a past instant is not reconstructed.
type mementoSource struct {
	created uuid.UUID
}

func (m mementoSource) mutable(ctx context.Context, a *assembler, id rdf.IRI) *query.Future[*rdf.Dataset] {
	return a.mutable(ctx, id, m.created)
}

func (mementoSource) containment(ctx context.Context, a *assembler, id rdf.IRI) *query.Future[*rdf.Dataset] {
	return query.Completed(rdf.NewDataset())
}

func (mementoSource) memento() bool { return true }

type builder struct {
	assembler *assembler
}

// build turns a metadata or version row into a resource. A nil row is
// Missing. The quad retrievals are started together and joined once all
// of them completed.
func (b *builder) build(ctx context.Context, id rdf.IRI, row query.Row, src quadSource) *query.Future[resource.Lookup] {
	if row == nil {
		return query.Completed(resource.Missing)
	}
	r := resourceFromRow(id, row)
	r.Memento = src.memento()

	mutable := src.mutable(ctx, b.assembler, id)
	immutable := b.assembler.immutable(ctx, id)
	containment := query.Completed(rdf.NewDataset())
	if r.IsContainer() {
		containment = src.containment(ctx, b.assembler, id)
	}

	return query.Then(mutable, func(m *rdf.Dataset) (resource.Lookup, error) {
		i, err := immutable.Wait(ctx)
		if err != nil {
			return resource.Missing, err
		}
		c, err := containment.Wait(ctx)
		if err != nil {
			return resource.Missing, err
		}
		r.Dataset = assemble(m, i, c, r.IsContainer())
		return resource.Found(r), nil
	})
}

func resourceFromRow(id rdf.IRI, row query.Row) *resource.Resource {
	r := &resource.Resource{
		Identifier:       id,
		InteractionModel: rdf.IRI(row.String(schema.ColInteractionModel)),
		Container:        rdf.IRI(row.String(schema.ColContainer)),
		HasAcl:           row.Bool(schema.ColHasAcl),
		Modified:         row.Time(schema.ColModified),
		Created:          row.UUID(schema.ColCreated),
	}
	if r.InteractionModel == rdf.LDPNonRDFSource {
		r.Binary = &resource.BinaryMetadata{
			Identifier: rdf.IRI(row.String(schema.ColBinaryIdentifier)),
			MimeType:   row.String(schema.ColMimeType),
			Size:       row.Int64(schema.ColSize),
		}
		if r.Binary.MimeType == "" {
			r.Binary.MimeType = resource.DefaultMimeType
		}
	}
	return r
}
