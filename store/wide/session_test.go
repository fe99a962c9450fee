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

package wide

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cubefs/ldpstore/common/kvstore"
	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
)

var (
	versions = &query.Table{
		Name:         "versions",
		PartitionKey: "identifier",
		Clustering:   []query.ClusteringColumn{{Name: "created", Desc: true}},
		Columns: []query.Column{
			{Name: "identifier", Type: query.Text},
			{Name: "created", Type: query.TimeUUID},
			{Name: "payload", Type: query.Blob},
			{Name: "modified", Type: query.Timestamp},
			{Name: "flag", Type: query.Boolean},
		},
	}
	chunks = &query.Table{
		Name:         "chunks",
		PartitionKey: "identifier",
		Clustering:   []query.ClusteringColumn{{Name: "idx"}},
		Columns: []query.Column{
			{Name: "identifier", Type: query.Text},
			{Name: "idx", Type: query.Int},
			{Name: "size", Type: query.BigInt},
		},
	}

	insertVersion = query.MustPrepare(query.Insert("insert_version", versions, "identifier", "created", "payload", "modified"))
	touchVersion  = query.MustPrepare(query.Update("touch_version", versions, "modified", "flag").WhereEq("identifier", "created"))
	allVersions   = query.MustPrepare(query.Select("all_versions", versions, "created", "payload", "modified", "flag").WhereEq("identifier"))
	versionAt     = query.MustPrepare(query.Select("version_at", versions, "created", "payload").
			WhereEq("identifier").
			WhereCond(query.Condition{Column: "created", Op: query.Le, Func: query.MaxTimeUUID, Param: "time"}).
			WithLimit(1))
	deleteVersions = query.MustPrepare(query.Delete("delete_versions", versions).WhereEq("identifier"))
	deleteVersion  = query.MustPrepare(query.Delete("delete_version", versions).WhereEq("identifier", "created"))

	insertChunk = query.MustPrepare(query.Insert("insert_chunk", chunks, "identifier", "idx", "size"))
	allChunks   = query.MustPrepare(query.Select("all_chunks", chunks, "idx", "size").WhereEq("identifier"))
	chunksFrom  = query.MustPrepare(query.Select("chunks_from", chunks, "idx").
			WhereEq("identifier").WhereCond(query.Condition{Column: "idx", Op: query.Ge}))
)

func newTestSession(t *testing.T) *Session {
	kv, err := kvstore.NewKVStore(context.TODO(), "", kvstore.BadgerLsmKVType, &kvstore.Option{InMemory: true})
	require.NoError(t, err)
	s, err := NewSession(context.TODO(), kv, versions, chunks)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func queryAll(t *testing.T, s *Session, b *query.Bound, pageSize int) []query.Row {
	var rows []query.Row
	var state []byte
	for {
		page, err := s.Query(context.TODO(), b, query.One, pageSize, state)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Rows), pageSize)
		rows = append(rows, page.Rows...)
		if page.Next == nil {
			return rows
		}
		state = page.Next
	}
}

// timeUUIDAt builds a version 1 UUID carrying time t.
func timeUUIDAt(t time.Time, seq byte) uuid.UUID {
	var u uuid.UUID
	ts := uint64(t.UnixNano()/100 + gregorianOffset)
	u[0], u[1], u[2], u[3] = byte(ts>>24), byte(ts>>16), byte(ts>>8), byte(ts)
	u[4], u[5] = byte(ts>>40), byte(ts>>32)
	u[6], u[7] = byte(ts>>56)&0x0f|0x10, byte(ts>>48)
	u[8] = 0x80
	u[15] = seq
	return u
}

func TestTimeUUIDAt(t *testing.T) {
	now := time.Now()
	u := timeUUIDAt(now, 0)
	require.Equal(t, uuid.Version(1), u.Version())
	sec, nsec := u.Time().UnixTime()
	require.Equal(t, now.UnixNano()/100, (sec*1e9+nsec)/100)
}

func TestKeyOrder(t *testing.T) {
	enc := func(typ query.Type, v interface{}, desc bool) []byte {
		b, err := appendComponent(nil, typ, v, desc)
		require.NoError(t, err)
		return b
	}
	less := func(a, b []byte) { require.Equal(t, -1, bytes.Compare(a, b)) }

	less(enc(query.Int, -5, false), enc(query.Int, 3, false))
	less(enc(query.BigInt, int64(-1)<<40, false), enc(query.BigInt, int64(0), false))
	less(enc(query.Text, "a", false), enc(query.Text, "a\x00", false))
	less(enc(query.Text, "a\x00", false), enc(query.Text, "ab", false))
	less(enc(query.Text, "ab", false), enc(query.Text, "b", false))

	// partition "a" must not be a prefix of partition "ab"
	require.False(t, bytes.HasPrefix(enc(query.Text, "ab", false), enc(query.Text, "a", false)))

	t0 := time.Unix(1700000000, 0)
	early, late := timeUUIDAt(t0, 9), timeUUIDAt(t0.Add(time.Microsecond), 0)
	less(enc(query.TimeUUID, early, false), enc(query.TimeUUID, late, false))
	less(enc(query.TimeUUID, late, true), enc(query.TimeUUID, early, true))

	less(enc(query.TimeUUID, timeUUIDAt(t0.Add(999*time.Microsecond), 0xff), false), maxTimeUUIDBound(t0))
	less(maxTimeUUIDBound(t0), enc(query.TimeUUID, timeUUIDAt(t0.Add(time.Millisecond), 0), false))
}

func TestSession_InsertSelectOrdered(t *testing.T) {
	ctx := context.TODO()
	s := newTestSession(t)
	t0 := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Exec(ctx, insertVersion.MustBind(query.Params{
			"identifier": "a", "created": timeUUIDAt(t0.Add(time.Duration(i)*time.Second), 0),
			"payload": []byte{byte(i)}, "modified": t0.Add(time.Duration(i) * time.Second),
		}), query.Quorum))
	}
	require.NoError(t, s.Exec(ctx, insertVersion.MustBind(query.Params{
		"identifier": "ab", "created": timeUUIDAt(t0, 0), "payload": []byte("other"), "modified": t0,
	}), query.Quorum))

	for _, pageSize := range []int{1, 2, 5, 100} {
		rows := queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "a"}), pageSize)
		require.Len(t, rows, 5)
		for i, r := range rows {
			require.Equal(t, []byte{byte(4 - i)}, r.Bytes("payload"))
			require.True(t, r.Time("modified").Equal(t0.Add(time.Duration(4-i)*time.Second)))
			require.Nil(t, r["flag"])
		}
	}

	rows := queryAll(t, s, versionAt.MustBind(query.Params{"identifier": "a", "time": t0.Add(2500 * time.Millisecond)}), 10)
	require.Len(t, rows, 1)
	require.Equal(t, []byte{2}, rows[0].Bytes("payload"))

	rows = queryAll(t, s, versionAt.MustBind(query.Params{"identifier": "a", "time": t0.Add(-time.Second)}), 10)
	require.Empty(t, rows)

	rows = queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "missing"}), 10)
	require.Empty(t, rows)
}

func TestSession_UpdateMerges(t *testing.T) {
	ctx := context.TODO()
	s := newTestSession(t)
	t0 := time.Unix(1700000000, 0)
	id := timeUUIDAt(t0, 1)

	require.NoError(t, s.Exec(ctx, insertVersion.MustBind(query.Params{
		"identifier": "a", "created": id, "payload": []byte("p"), "modified": t0,
	}), query.One))
	require.NoError(t, s.Exec(ctx, touchVersion.MustBind(query.Params{
		"identifier": "a", "created": id, "modified": t0.Add(time.Hour), "flag": true,
	}), query.One))

	rows := queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "a"}), 10)
	require.Len(t, rows, 1)
	require.Equal(t, []byte("p"), rows[0].Bytes("payload"))
	require.Equal(t, id, rows[0].UUID("created"))
	require.True(t, rows[0].Bool("flag"))
	require.True(t, rows[0].Time("modified").Equal(t0.Add(time.Hour)))

	// update of an absent row creates it
	other := timeUUIDAt(t0, 2)
	require.NoError(t, s.Exec(ctx, touchVersion.MustBind(query.Params{
		"identifier": "b", "created": other, "modified": t0, "flag": nil,
	}), query.One))
	rows = queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "b"}), 10)
	require.Len(t, rows, 1)
	require.Nil(t, rows[0]["payload"])
}

func TestSession_BatchAndDelete(t *testing.T) {
	ctx := context.TODO()
	s := newTestSession(t)
	t0 := time.Unix(1700000000, 0)
	v1, v2 := timeUUIDAt(t0, 1), timeUUIDAt(t0.Add(time.Second), 1)

	// later statements see earlier ones in the same batch
	require.NoError(t, s.ExecBatch(ctx, []*query.Bound{
		insertVersion.MustBind(query.Params{"identifier": "a", "created": v1, "payload": []byte("1"), "modified": t0}),
		insertVersion.MustBind(query.Params{"identifier": "a", "created": v2, "payload": []byte("2"), "modified": t0}),
		touchVersion.MustBind(query.Params{"identifier": "a", "created": v2, "modified": t0, "flag": true}),
		insertChunk.MustBind(query.Params{"identifier": "a", "idx": 0, "size": 10}),
	}, query.Quorum))
	rows := queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "a"}), 10)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Bool("flag"))
	require.Equal(t, []byte("2"), rows[0].Bytes("payload"))

	require.NoError(t, s.Exec(ctx, deleteVersion.MustBind(query.Params{"identifier": "a", "created": v2}), query.Quorum))
	rows = queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "a"}), 10)
	require.Len(t, rows, 1)
	require.Equal(t, v1, rows[0].UUID("created"))

	// a batch failing part way applies nothing
	unknown := &query.Table{Name: "unknown", PartitionKey: "identifier", Columns: []query.Column{{Name: "identifier", Type: query.Text}}}
	insertUnknown := query.MustPrepare(query.Insert("insert_unknown", unknown, "identifier"))
	err := s.ExecBatch(ctx, []*query.Bound{
		deleteVersions.MustBind(query.Params{"identifier": "a"}),
		insertUnknown.MustBind(query.Params{"identifier": "a"}),
	}, query.Quorum)
	require.ErrorIs(t, err, apierrors.ErrStorageRejected)
	require.Len(t, queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "a"}), 10), 1)

	require.NoError(t, s.Exec(ctx, deleteVersions.MustBind(query.Params{"identifier": "a"}), query.Quorum))
	require.Empty(t, queryAll(t, s, allVersions.MustBind(query.Params{"identifier": "a"}), 10))
	require.Len(t, queryAll(t, s, allChunks.MustBind(query.Params{"identifier": "a"}), 10), 1)
}

func TestSession_AscendingRange(t *testing.T) {
	ctx := context.TODO()
	s := newTestSession(t)
	for _, i := range []int{3, 0, 2, 1, 4} {
		require.NoError(t, s.Exec(ctx, insertChunk.MustBind(query.Params{"identifier": "c", "idx": i, "size": int64(i * 10)}), query.One))
	}
	rows := queryAll(t, s, allChunks.MustBind(query.Params{"identifier": "c"}), 2)
	require.Len(t, rows, 5)
	for i, r := range rows {
		require.Equal(t, i, r.Int("idx"))
		require.Equal(t, int64(i*10), r.Int64("size"))
	}
	rows = queryAll(t, s, chunksFrom.MustBind(query.Params{"identifier": "c", "idx": 3}), 1)
	require.Len(t, rows, 2)
	require.Equal(t, 3, rows[0].Int("idx"))
}

func TestSession_Rejections(t *testing.T) {
	ctx := context.TODO()
	s := newTestSession(t)

	_, err := s.Query(ctx, insertChunk.MustBind(query.Params{"identifier": "c", "idx": 1, "size": 1}), query.One, 10, nil)
	require.ErrorIs(t, err, apierrors.ErrStorageRejected)

	_, err = s.Query(ctx, allChunks.MustBind(query.Params{"identifier": "c"}), query.One, 10, []byte("garbage"))
	require.ErrorIs(t, err, apierrors.ErrStorageRejected)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = s.Exec(cctx, insertChunk.MustBind(query.Params{"identifier": "c", "idx": 1, "size": 1}), query.One)
	require.ErrorIs(t, err, apierrors.ErrStorageUnavailable)
}
