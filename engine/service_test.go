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
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cubefs/ldpstore/binary"
	"github.com/cubefs/ldpstore/common/kvstore"
	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/resource"
	"github.com/cubefs/ldpstore/schema"
	"github.com/cubefs/ldpstore/store"
)

const gregorianOffset = 122192928000000000

var base = time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

// versionAt builds a version token carrying time t.
func versionAt(t time.Time, seq byte) uuid.UUID {
	var u uuid.UUID
	ts := uint64(t.UnixNano()/100 + gregorianOffset)
	u[0], u[1], u[2], u[3] = byte(ts>>24), byte(ts>>16), byte(ts>>8), byte(ts)
	u[4], u[5] = byte(ts>>40), byte(ts>>32)
	u[6], u[7] = byte(ts>>56)&0x0f|0x10, byte(ts>>48)
	u[8] = 0x80
	u[15] = seq
	return u
}

func newTestService(t *testing.T) (*Service, *query.Executor) {
	ctx := context.TODO()
	session, err := store.NewSession(ctx, store.Config{
		Backend: store.BackendBadger,
		KV:      store.KVConfig{Option: kvstore.Option{InMemory: true}},
	}, schema.Tables()...)
	require.NoError(t, err)
	exec := query.NewExecutor(session, query.Config{PageSize: 2})
	t.Cleanup(func() {
		exec.Close()
		session.Close()
	})
	return NewService(exec, Config{}), exec
}

func mustGet(t *testing.T, s *Service, id rdf.IRI) *resource.Resource {
	l, err := s.Get(context.TODO(), id)
	require.NoError(t, err)
	r, ok := l.Get()
	require.True(t, ok, "%s not found", id)
	return r
}

func userQuad(id rdf.IRI, title string) rdf.Quad {
	return rdf.NewQuad(rdf.PreferUserManaged, id, "http://purl.org/dc/terms/title", rdf.NewLiteral(title))
}

func TestService_GetMissing(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)

	l, err := s.Get(ctx, "trellis:data/nothing")
	require.NoError(t, err)
	require.True(t, l.IsMissing())

	l, err = s.GetAt(ctx, "trellis:data/nothing", time.Now())
	require.NoError(t, err)
	require.True(t, l.IsMissing())

	mementos, err := s.Mementos(ctx, "trellis:data/nothing")
	require.NoError(t, err)
	require.Empty(t, mementos)
}

func TestService_CreateReplaceMementos(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/doc")
	t1 := base.Add(250 * time.Millisecond)
	t2 := base.Add(3*time.Second + 600*time.Millisecond)

	meta := resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource, Version: versionAt(t1, 1)}
	require.NoError(t, s.Create(ctx, meta, rdf.NewDataset(userQuad(id, "first"))))
	meta.Version = versionAt(t2, 2)
	require.NoError(t, s.Replace(ctx, meta, rdf.NewDataset(userQuad(id, "second"))))

	r := mustGet(t, s, id)
	require.False(t, r.Memento)
	require.Equal(t, rdf.LDPRDFSource, r.InteractionModel)
	require.Equal(t, versionAt(t2, 2), r.Created)
	require.True(t, r.ModifiedSecond().Equal(t2.Truncate(time.Second)))
	require.True(t, r.Dataset.Contains(userQuad(id, "second")))
	require.False(t, r.Dataset.Contains(userQuad(id, "first")))
	require.Nil(t, r.Binary)

	mementos, err := s.Mementos(ctx, id)
	require.NoError(t, err)
	require.Len(t, mementos, 2)
	require.True(t, mementos[0].Equal(t1.Truncate(time.Second)))
	require.True(t, mementos[1].Equal(t2.Truncate(time.Second)))

	// each listed instant resolves to its own version
	for i, want := range []string{"first", "second"} {
		l, err := s.GetAt(ctx, id, mementos[i])
		require.NoError(t, err)
		m, ok := l.Get()
		require.True(t, ok)
		require.True(t, m.Memento)
		require.True(t, m.ModifiedSecond().Equal(mementos[i]))
		require.True(t, m.Dataset.Contains(userQuad(id, want)))
		require.Equal(t, 1, len(m.Stream(rdf.PreferUserManaged)))
	}

	l, err := s.GetAt(ctx, id, t1.Add(-time.Second))
	require.NoError(t, err)
	require.True(t, l.IsMissing())

	l, err = s.GetAt(ctx, id, t2.Add(time.Hour))
	require.NoError(t, err)
	m, ok := l.Get()
	require.True(t, ok)
	require.True(t, m.Dataset.Contains(userQuad(id, "second")))
}

func TestService_OutOfOrderWrites(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/late")
	t1 := base.Add(time.Second)
	t2 := base.Add(5 * time.Second)

	require.NoError(t, s.Replace(ctx, resource.Metadata{
		Identifier: id, InteractionModel: rdf.LDPBasicContainer, Version: versionAt(t2, 2),
	}, rdf.NewDataset(userQuad(id, "second"))))
	// a delayed retry of an older write lands last
	require.NoError(t, s.Create(ctx, resource.Metadata{
		Identifier: id, InteractionModel: rdf.LDPRDFSource, Version: versionAt(t1, 1),
	}, rdf.NewDataset(userQuad(id, "first"))))

	// metadata and quads come from the same version
	r := mustGet(t, s, id)
	require.Equal(t, rdf.LDPRDFSource, r.InteractionModel)
	require.Equal(t, versionAt(t1, 1), r.Created)
	require.True(t, r.Dataset.Contains(userQuad(id, "first")))
	require.False(t, r.Dataset.Contains(userQuad(id, "second")))
}

func TestService_IdempotentRetry(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/retry")
	meta := resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource, Version: versionAt(base, 7)}
	data := rdf.NewDataset(userQuad(id, "same"))

	require.NoError(t, s.Create(ctx, meta, data))
	require.NoError(t, s.Create(ctx, meta, data))

	mementos, err := s.Mementos(ctx, id)
	require.NoError(t, err)
	require.Len(t, mementos, 1)
	r := mustGet(t, s, id)
	require.Equal(t, 1, r.Dataset.Len())

	// a token that is not time based is refused
	meta.Version = uuid.New()
	err = s.Replace(ctx, meta, data)
	require.ErrorIs(t, err, apierrors.ErrStorageRejected)
}

func TestService_Containment(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	parent := rdf.IRI("trellis:data/c")
	a, b := parent+"/a", parent+"/b"

	// stored containment quads never show up
	stale := rdf.NewQuad(rdf.LDPPreferContainment, parent, rdf.LDPContains, rdf.IRI("trellis:data/c/ghost"))
	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: parent, InteractionModel: rdf.LDPBasicContainer},
		rdf.NewDataset(stale, userQuad(parent, "container"))))
	require.Empty(t, mustGet(t, s, parent).Stream(rdf.LDPPreferContainment))

	for _, child := range []rdf.IRI{a, b} {
		require.NoError(t, s.Create(ctx, resource.Metadata{
			Identifier: child, InteractionModel: rdf.LDPRDFSource, Container: parent,
		}, rdf.NewDataset(userQuad(child, "child"))))
	}
	// a second version of a child does not duplicate its containment
	require.NoError(t, s.Replace(ctx, resource.Metadata{
		Identifier: a, InteractionModel: rdf.LDPRDFSource, Container: parent,
	}, rdf.NewDataset(userQuad(a, "child again"))))

	r := mustGet(t, s, parent)
	require.True(t, r.IsContainer())
	contained := r.Stream(rdf.LDPPreferContainment)
	require.Len(t, contained, 2)
	require.True(t, r.Dataset.Contains(rdf.NewQuad(rdf.LDPPreferContainment, parent, rdf.LDPContains, a)))
	require.True(t, r.Dataset.Contains(rdf.NewQuad(rdf.LDPPreferContainment, parent, rdf.LDPContains, b)))
	require.True(t, r.Dataset.Contains(userQuad(parent, "container")))
	require.Equal(t, parent, mustGet(t, s, a).Container)

	// children of a non-container are not listed
	require.Empty(t, mustGet(t, s, a).Stream(rdf.LDPPreferContainment))

	require.NoError(t, s.Delete(ctx, resource.Metadata{Identifier: a, InteractionModel: rdf.LDPRDFSource, Container: parent}))
	l, err := s.Get(ctx, a)
	require.NoError(t, err)
	require.True(t, l.IsMissing())

	r = mustGet(t, s, parent)
	require.Equal(t, []rdf.Quad{rdf.NewQuad(rdf.LDPPreferContainment, parent, rdf.LDPContains, b)},
		r.Stream(rdf.LDPPreferContainment))

	// mementos carry no containment
	mementos, err := s.Mementos(ctx, parent)
	require.NoError(t, err)
	require.Len(t, mementos, 1)
	l, err = s.GetAt(ctx, parent, mementos[0])
	require.NoError(t, err)
	m, ok := l.Get()
	require.True(t, ok)
	require.Empty(t, m.Stream(rdf.LDPPreferContainment))
	require.True(t, m.Dataset.Contains(userQuad(parent, "container")))
}

func TestService_ConcurrentAdds(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/audited")
	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource},
		rdf.NewDataset(userQuad(id, "audited"))))

	audit := func(i int) rdf.Quad {
		return rdf.NewQuad(rdf.PreferAudit, id, "http://www.w3.org/ns/prov#wasGeneratedBy", rdf.BlankNode(fmt.Sprintf("event%d", i)))
	}
	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Add(ctx, id, rdf.NewDataset(audit(i)))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, s.Add(ctx, id, rdf.NewDataset()))

	r := mustGet(t, s, id)
	require.Len(t, r.Stream(rdf.PreferAudit), n)
	for i := 0; i < n; i++ {
		require.True(t, r.Dataset.Contains(audit(i)))
	}
	require.True(t, r.Dataset.Contains(userQuad(id, "audited")))

	// immutable data outlives a replace
	require.NoError(t, s.Replace(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource},
		rdf.NewDataset(userQuad(id, "replaced"))))
	require.Len(t, mustGet(t, s, id).Stream(rdf.PreferAudit), n)
}

func TestService_BinaryMetadata(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/file")
	bin := rdf.IRI("file:///binaries/1")
	meta := resource.Metadata{Identifier: id, InteractionModel: rdf.LDPNonRDFSource}

	data := rdf.NewDataset(
		rdf.NewQuad(rdf.PreferServerManaged, id, rdf.DCHasPart, bin),
		rdf.NewQuad(rdf.PreferServerManaged, bin, rdf.DCExtent, rdf.NewTypedLiteral("1024", rdf.XSDLong)),
		rdf.NewQuad(rdf.PreferServerManaged, bin, rdf.DCFormat, rdf.NewLiteral("image/png")),
	)
	require.NoError(t, s.Create(ctx, meta, data))
	r := mustGet(t, s, id)
	require.NotNil(t, r.Binary)
	require.Equal(t, resource.BinaryMetadata{Identifier: bin, MimeType: "image/png", Size: 1024}, *r.Binary)

	// defaults
	other := rdf.IRI("trellis:data/file2")
	meta.Identifier = other
	require.NoError(t, s.Create(ctx, meta, rdf.NewDataset(rdf.NewQuad(rdf.PreferServerManaged, other, rdf.DCHasPart, bin))))
	r = mustGet(t, s, other)
	require.Equal(t, resource.BinaryMetadata{Identifier: bin, MimeType: resource.DefaultMimeType}, *r.Binary)

	// user managed statements do not count
	meta.Identifier = "trellis:data/file3"
	err := s.Create(ctx, meta, rdf.NewDataset(rdf.NewQuad(rdf.PreferUserManaged, meta.Identifier, rdf.DCHasPart, bin)))
	require.ErrorIs(t, err, apierrors.ErrMalformedBinaryMetadata)
	l, err := s.Get(ctx, meta.Identifier)
	require.NoError(t, err)
	require.True(t, l.IsMissing())

	err = s.Create(ctx, meta, rdf.NewDataset(
		rdf.NewQuad(rdf.PreferServerManaged, meta.Identifier, rdf.DCHasPart, bin),
		rdf.NewQuad(rdf.PreferServerManaged, bin, rdf.DCExtent, rdf.NewLiteral("huge")),
	))
	require.ErrorIs(t, err, apierrors.ErrMalformedBinaryMetadata)
}

func TestService_DeleteRemovesBinary(t *testing.T) {
	ctx := context.TODO()
	s, exec := newTestService(t)
	bs := binary.New(exec, binary.Config{ChunkSize: 4})
	id := rdf.IRI("trellis:data/blob")
	bin := rdf.IRI("file:///binaries/blob")

	n, err := bs.Write(ctx, bin, bytes.NewReader([]byte("hello, binary")))
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPNonRDFSource},
		rdf.NewDataset(
			rdf.NewQuad(rdf.PreferServerManaged, id, rdf.DCHasPart, bin),
			rdf.NewQuad(rdf.PreferServerManaged, bin, rdf.DCExtent, rdf.NewLiteral(fmt.Sprint(n))),
		)))
	r := mustGet(t, s, id)
	require.Equal(t, n, r.Binary.Size)

	require.NoError(t, s.Delete(ctx, resource.Metadata{
		Identifier: id, InteractionModel: rdf.LDPNonRDFSource, Binary: r.Binary,
	}))
	_, err = bs.Read(ctx, bin)
	require.ErrorIs(t, err, apierrors.ErrBinaryNotFound)
	mementos, err := s.Mementos(ctx, id)
	require.NoError(t, err)
	require.Empty(t, mementos)
}

func TestService_DeleteLooksUpStoredBinary(t *testing.T) {
	ctx := context.TODO()
	s, exec := newTestService(t)
	bs := binary.New(exec, binary.Config{ChunkSize: 4})
	parent := rdf.IRI("trellis:data/files")
	id := parent + "/bare"
	bin := rdf.IRI("file:///binaries/bare")

	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: parent, InteractionModel: rdf.LDPBasicContainer}, rdf.NewDataset()))
	_, err := bs.Write(ctx, bin, bytes.NewReader([]byte("left behind?")))
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPNonRDFSource, Container: parent},
		rdf.NewDataset(rdf.NewQuad(rdf.PreferServerManaged, id, rdf.DCHasPart, bin))))
	require.Len(t, mustGet(t, s, parent).Stream(rdf.LDPPreferContainment), 1)

	// only the identifier is known to the caller
	require.NoError(t, s.Delete(ctx, resource.Metadata{Identifier: id}))

	_, err = bs.Read(ctx, bin)
	require.ErrorIs(t, err, apierrors.ErrBinaryNotFound)
	require.Empty(t, mustGet(t, s, parent).Stream(rdf.LDPPreferContainment))
	l, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, l.IsMissing())

	// deleting what is gone succeeds
	require.NoError(t, s.Delete(ctx, resource.Metadata{Identifier: id}))
}

func TestService_AsyncWrites(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/async")

	futures := []*query.Future[struct{}]{
		s.CreateAsync(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource, Version: versionAt(base, 1)},
			rdf.NewDataset(userQuad(id, "async"))),
		s.AddAsync(ctx, id, rdf.NewDataset(rdf.NewQuad(rdf.PreferAudit, id, rdf.IRI("http://www.w3.org/ns/prov#wasGeneratedBy"), rdf.IRI("trellis:bnode/1")))),
	}
	for _, f := range futures {
		_, err := f.Wait(ctx)
		require.NoError(t, err)
	}
	r := mustGet(t, s, id)
	require.True(t, r.Dataset.Contains(userQuad(id, "async")))
	require.Len(t, r.Stream(rdf.PreferAudit), 1)

	_, err := s.TouchAsync(ctx, id).Wait(ctx)
	require.NoError(t, err)
	_, err = s.ReplaceAsync(ctx, resource.Metadata{Identifier: id, InteractionModel: "http://example.org/Unknown"}, rdf.NewDataset()).Wait(ctx)
	require.ErrorIs(t, err, apierrors.ErrStorageRejected)

	_, err = s.DeleteAsync(ctx, resource.Metadata{Identifier: id}).Wait(ctx)
	require.NoError(t, err)
	l, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, l.IsMissing())
}

// stalledSession never answers before the caller gives up.
type stalledSession struct{}

func (stalledSession) Query(ctx context.Context, b *query.Bound, c query.Consistency, pageSize int, state []byte) (*query.Page, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledSession) Exec(ctx context.Context, b *query.Bound, c query.Consistency) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s stalledSession) ExecBatch(ctx context.Context, bs []*query.Bound, c query.Consistency) error {
	return s.Exec(ctx, nil, c)
}

func (stalledSession) Close() {}

func TestService_DeadlineKinds(t *testing.T) {
	exec := query.NewExecutor(stalledSession{}, query.Config{ReadTimeoutMs: 5000, WriteTimeoutMs: 5000})
	defer exec.Close()
	s := NewService(exec, Config{})
	id := rdf.IRI("trellis:data/slow")

	short := func() context.Context {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		t.Cleanup(cancel)
		return ctx
	}
	_, err := s.Get(short(), id)
	require.ErrorIs(t, err, apierrors.ErrStorageUnavailable)
	_, err = s.GetAt(short(), id, base)
	require.ErrorIs(t, err, apierrors.ErrStorageUnavailable)
	_, err = s.Mementos(short(), id)
	require.ErrorIs(t, err, apierrors.ErrStorageUnavailable)
	require.True(t, apierrors.IsRetryable(err))

	err = s.Create(short(), resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource}, rdf.NewDataset())
	require.ErrorIs(t, err, apierrors.ErrStorageUnknown)
	require.False(t, apierrors.IsRetryable(err))
}

func TestService_HasAcl(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/acl")

	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource},
		rdf.NewDataset(rdf.NewQuad(rdf.PreferAccessControl, id, "http://www.w3.org/ns/auth/acl#mode", rdf.IRI("http://www.w3.org/ns/auth/acl#Read")))))
	require.True(t, mustGet(t, s, id).HasAcl)

	require.NoError(t, s.Replace(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource},
		rdf.NewDataset(userQuad(id, "no acl"))))
	require.False(t, mustGet(t, s, id).HasAcl)

	require.NoError(t, s.Replace(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource, HasAcl: true},
		rdf.NewDataset(userQuad(id, "flagged"))))
	require.True(t, mustGet(t, s, id).HasAcl)
}

func TestService_UnsupportedModel(t *testing.T) {
	s, _ := newTestService(t)
	err := s.Create(context.TODO(), resource.Metadata{Identifier: "trellis:data/x", InteractionModel: rdf.LDPDirectContainer}, nil)
	require.ErrorIs(t, err, apierrors.ErrUnsupportedInteractionModel)
	require.Equal(t, apierrors.StorageRejected, apierrors.KindOf(err))

	require.Len(t, s.SupportedInteractionModels(), 5)
	require.Contains(t, s.SupportedInteractionModels(), rdf.LDPNonRDFSource)
	require.NotEqual(t, s.GenerateIdentifier(), s.GenerateIdentifier())
}

func TestService_Touch(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)
	id := rdf.IRI("trellis:data/touched")
	version := versionAt(base, 3)
	require.NoError(t, s.Create(ctx, resource.Metadata{Identifier: id, InteractionModel: rdf.LDPRDFSource, Version: version},
		rdf.NewDataset(userQuad(id, "touched"))))

	later := base.Add(time.Hour)
	s.now = func() time.Time { return later }
	require.NoError(t, s.Touch(ctx, id))

	r := mustGet(t, s, id)
	require.True(t, r.Modified.Equal(later))
	require.Equal(t, version, r.Created)
	require.True(t, r.Dataset.Contains(userQuad(id, "touched")))

	mementos, err := s.Mementos(ctx, id)
	require.NoError(t, err)
	require.Len(t, mementos, 1)
	require.True(t, mementos[0].Equal(later))

	require.NoError(t, s.Touch(ctx, "trellis:data/untouched"))
	l, err := s.Get(ctx, "trellis:data/untouched")
	require.NoError(t, err)
	require.True(t, l.IsMissing())
}

func TestService_InitializeRoot(t *testing.T) {
	ctx := context.TODO()
	s, _ := newTestService(t)

	require.NoError(t, s.InitializeRoot(ctx))
	require.NoError(t, s.InitializeRoot(ctx))

	r := mustGet(t, s, rdf.DataPrefix)
	require.Equal(t, rdf.LDPBasicContainer, r.InteractionModel)
	require.True(t, r.IsContainer())
	mementos, err := s.Mementos(ctx, rdf.DataPrefix)
	require.NoError(t, err)
	require.Len(t, mementos, 1)
}

func TestService_ClosedExecutor(t *testing.T) {
	ctx := context.TODO()
	s, exec := newTestService(t)
	exec.Close()

	_, err := s.Get(ctx, "trellis:data/any")
	require.ErrorIs(t, err, apierrors.ErrStorageUnavailable)
	require.True(t, apierrors.IsRetryable(err))
}
