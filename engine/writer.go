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
	"strconv"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cubefs/ldpstore/binary"
	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/resource"
	"github.com/cubefs/ldpstore/schema"
)

// writer turns resource mutations into batches. Concurrent writers of one
// identifier are not serialized: the last batch applied wins.
type writer struct {
	exec        *query.Executor
	consistency query.Consistency
}

func versionToken(meta resource.Metadata) (uuid.UUID, error) {
	if meta.Version != uuid.Nil {
		if meta.Version.Version() != 1 {
			return uuid.Nil, apierrors.New(apierrors.StorageRejected, "write", errors.New("version token is not time based"))
		}
		return meta.Version, nil
	}
	return uuid.NewUUID()
}

func tokenTime(u uuid.UUID) time.Time {
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}

// write stores dataset as a new version of meta.Identifier. The version
// row, the metadata row and the parent's containment row are one batch.
func (w *writer) write(ctx context.Context, meta resource.Metadata, dataset *rdf.Dataset) *query.Future[struct{}] {
	span := trace.SpanFromContextSafe(ctx)
	id := meta.Identifier

	version, err := versionToken(meta)
	if err != nil {
		return query.Failed[struct{}](err)
	}
	bin, err := binaryMetadataOf(meta, dataset)
	if err != nil {
		return query.Failed[struct{}](err)
	}
	// derived from the token so that a retried batch writes identical values
	modified := tokenTime(version)

	// the containment graph is computed on read, never stored
	stored := dataset.Without(rdf.LDPPreferContainment)
	quads, err := rdf.MarshalDataset(stored)
	if err != nil {
		return query.Failed[struct{}](apierrors.New(apierrors.StorageRejected, "write", err))
	}

	columns := query.Params{
		schema.ColInteractionModel: string(meta.InteractionModel),
		schema.ColContainer:        nullable(meta.Container),
		schema.ColHasAcl:           meta.HasAcl || dataset.HasGraph(rdf.PreferAccessControl),
		schema.ColBinaryIdentifier: nil,
		schema.ColMimeType:         nil,
		schema.ColSize:             nil,
		schema.ColCreated:          version,
		schema.ColModified:         modified,
	}
	if bin != nil {
		columns[schema.ColBinaryIdentifier] = string(bin.Identifier)
		columns[schema.ColMimeType] = bin.MimeType
		columns[schema.ColSize] = bin.Size
	}

	mutableParams := query.Params{schema.ColIdentifier: string(id), schema.ColQuads: quads}
	metadataParams := query.Params{schema.ColIdentifier: string(id)}
	for k, v := range columns {
		mutableParams[k] = v
		metadataParams[k] = v
	}

	bounds := make([]*query.Bound, 0, 3)
	for _, s := range []struct {
		stmt   *query.Statement
		params query.Params
	}{
		{insertMutable, mutableParams},
		{updateMetadata, metadataParams},
	} {
		b, err := s.stmt.Bind(s.params)
		if err != nil {
			return query.Failed[struct{}](err)
		}
		bounds = append(bounds, b)
	}
	if meta.Container != "" {
		b, err := insertContainment.Bind(query.Params{schema.ColContainer: string(meta.Container), schema.ColIdentifier: string(id)})
		if err != nil {
			return query.Failed[struct{}](err)
		}
		bounds = append(bounds, b)
	}

	span.Debugf("write %s version %s model %s", id, version, meta.InteractionModel)
	return w.exec.Batch(ctx, "write_resource", w.consistency, bounds...)
}

// delete removes every row of the resource except its immutable data.
func (w *writer) delete(ctx context.Context, meta resource.Metadata) *query.Future[struct{}] {
	id := string(meta.Identifier)
	params := query.Params{schema.ColIdentifier: id}
	bounds := []*query.Bound{
		deleteMetadata.MustBind(params),
		deleteMutable.MustBind(params),
		deleteContained.MustBind(query.Params{schema.ColContainer: id}),
	}
	if meta.Container != "" {
		b, err := deleteContainment.Bind(query.Params{schema.ColContainer: string(meta.Container), schema.ColIdentifier: id})
		if err != nil {
			return query.Failed[struct{}](err)
		}
		bounds = append(bounds, b)
	}
	if meta.Binary != nil && meta.Binary.Identifier != "" {
		bs, err := binary.DeleteBounds(meta.Binary.Identifier)
		if err != nil {
			return query.Failed[struct{}](err)
		}
		bounds = append(bounds, bs...)
	}
	trace.SpanFromContextSafe(ctx).Debugf("delete %s", id)
	return w.exec.Batch(ctx, "delete_resource", w.consistency, bounds...)
}

// add appends an immutable contribution under a fresh key, so concurrent
// adds never overwrite each other.
func (w *writer) add(ctx context.Context, id rdf.IRI, dataset *rdf.Dataset) *query.Future[struct{}] {
	if dataset.Len() == 0 {
		return query.Completed(struct{}{})
	}
	quads, err := rdf.MarshalDataset(dataset)
	if err != nil {
		return query.Failed[struct{}](apierrors.New(apierrors.StorageRejected, "add", err))
	}
	created, err := uuid.NewUUID()
	if err != nil {
		return query.Failed[struct{}](err)
	}
	b, err := insertImmutable.Bind(query.Params{
		schema.ColIdentifier: string(id),
		schema.ColCreated:    created,
		schema.ColQuads:      quads,
	})
	if err != nil {
		return query.Failed[struct{}](err)
	}
	return w.exec.Write(ctx, b, w.consistency)
}

// touch sets the modified time of the metadata row and of the version row
// created names. It is the write half of a read-then-write: a replace that
// lands between the read and this write is not detected, and the touched
// version row may no longer be current.
func (w *writer) touch(ctx context.Context, id rdf.IRI, created uuid.UUID, now time.Time) *query.Future[struct{}] {
	b1, err := touchMetadata.Bind(query.Params{schema.ColIdentifier: string(id), schema.ColModified: now})
	if err != nil {
		return query.Failed[struct{}](err)
	}
	b2, err := touchMutable.Bind(query.Params{schema.ColIdentifier: string(id), schema.ColCreated: created, schema.ColModified: now})
	if err != nil {
		return query.Failed[struct{}](err)
	}
	return w.exec.Batch(ctx, "touch_resource", w.consistency, b1, b2)
}

// binaryMetadataOf extracts the description of a NonRDFSource's content
// from the server managed graph of its payload.
func binaryMetadataOf(meta resource.Metadata, dataset *rdf.Dataset) (*resource.BinaryMetadata, error) {
	if meta.InteractionModel != rdf.LDPNonRDFSource {
		return nil, nil
	}
	malformed := func(format string, args ...interface{}) error {
		return apierrors.New(apierrors.MalformedBinaryMetadata, string(meta.Identifier), errors.Errorf(format, args...))
	}

	parts := dataset.Match(rdf.PreferServerManaged, meta.Identifier, rdf.DCHasPart)
	if len(parts) == 0 {
		return nil, malformed("no %s for %s", rdf.DCHasPart, meta.Identifier)
	}
	// first in lexical order when several are given
	binID, ok := parts[0].Object.(rdf.IRI)
	if !ok {
		return nil, malformed("%s of %s is not an IRI", rdf.DCHasPart, meta.Identifier)
	}
	bin := &resource.BinaryMetadata{Identifier: binID, MimeType: resource.DefaultMimeType}

	if extents := dataset.Match(rdf.PreferServerManaged, binID, rdf.DCExtent); len(extents) > 0 {
		lexical := lexicalOf(extents[0].Object)
		size, err := strconv.ParseInt(lexical, 10, 64)
		if err != nil || size < 0 {
			return nil, malformed("invalid %s %q of %s", rdf.DCExtent, lexical, binID)
		}
		bin.Size = size
	}
	if formats := dataset.Match(rdf.PreferServerManaged, binID, rdf.DCFormat); len(formats) > 0 {
		if mt := lexicalOf(formats[0].Object); mt != "" {
			bin.MimeType = mt
		}
	}
	return bin, nil
}

func lexicalOf(t rdf.Term) string {
	switch v := t.(type) {
	case rdf.Literal:
		return v.Lexical
	case rdf.IRI:
		return string(v)
	}
	return ""
}

func nullable(iri rdf.IRI) interface{} {
	if iri == "" {
		return nil
	}
	return string(iri)
}
