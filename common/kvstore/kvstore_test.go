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

package kvstore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/ldpstore/util"
)

type testEg struct {
	engine Store
	path   string
}

type engineFactory func(ctx context.Context, path string, opt *Option) (Store, error)

// testEngines is extended by engines compiled in behind build tags.
var testEngines = map[LsmKVType]engineFactory{
	BadgerLsmKVType: newBadger,
}

func newEngine(t *testing.T, typ LsmKVType, opt *Option) *testEg {
	path, err := util.GenTmpPath()
	require.NoError(t, err)
	if opt == nil {
		opt = new(Option)
	}
	opt.CreateIfMissing = true
	opt.Sync = true
	engine, err := testEngines[typ](context.TODO(), path, opt)
	require.NoError(t, err)
	return &testEg{engine: engine, path: path}
}

func (eg *testEg) close() {
	eg.engine.Close()
	os.RemoveAll(eg.path)
}

func forEachEngine(t *testing.T, fn func(t *testing.T, typ LsmKVType)) {
	for typ := range testEngines {
		t.Run(string(typ), func(t *testing.T) { fn(t, typ) })
	}
}

func TestNewKVStore(t *testing.T) {
	ctx := context.TODO()
	_, err := NewKVStore(ctx, "", LsmKVType("leveldb"), nil)
	require.ErrorIs(t, err, ErrKVTypeNotFound)

	s, err := NewKVStore(ctx, "", BadgerLsmKVType, &Option{InMemory: true, ColumnFamily: []CF{"a"}})
	require.NoError(t, err)
	defer s.Close()
	require.True(t, s.CheckColumns("a"))
	require.False(t, s.CheckColumns("b"))

	_, err = NewKVStore(ctx, "", BadgerLsmKVType, &Option{})
	require.Error(t, err)
}

func TestInstance_CreateColumn(t *testing.T) {
	forEachEngine(t, func(t *testing.T, typ LsmKVType) {
		eg := newEngine(t, typ, nil)
		defer eg.close()

		require.False(t, eg.engine.CheckColumns("colA"))
		require.NoError(t, eg.engine.CreateColumn("colA"))
		require.NoError(t, eg.engine.CreateColumn("colA"))
		require.True(t, eg.engine.CheckColumns("colA"))
		require.Contains(t, eg.engine.GetAllColumns(), CF("colA"))

		err := eg.engine.SetRaw(context.TODO(), "colB", []byte("k"), []byte("v"))
		require.ErrorIs(t, err, ErrColumnNotExist)
	})
}

func TestInstance_SetGetRaw(t *testing.T) {
	forEachEngine(t, func(t *testing.T, typ LsmKVType) {
		ctx := context.TODO()
		eg := newEngine(t, typ, &Option{ColumnFamily: []CF{"c1"}})
		defer eg.close()

		k := []byte("key1")
		v := []byte("value1")
		require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, k, v))
		v1, err := eg.engine.GetRaw(ctx, defaultCF, k)
		require.NoError(t, err)
		require.Equal(t, v, v1)

		// same key in another column family is independent
		_, err = eg.engine.GetRaw(ctx, "c1", k)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, eg.engine.Delete(ctx, defaultCF, k))
		_, err = eg.engine.GetRaw(ctx, defaultCF, k)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInstance_WriteBatch(t *testing.T) {
	forEachEngine(t, func(t *testing.T, typ LsmKVType) {
		ctx := context.TODO()
		eg := newEngine(t, typ, &Option{ColumnFamily: []CF{"c1", "c2"}})
		defer eg.close()

		require.NoError(t, eg.engine.SetRaw(ctx, "c2", []byte("old"), []byte("x")))

		batch := eg.engine.NewWriteBatch()
		for i := 0; i < 5; i++ {
			batch.Put("c1", []byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
		}
		batch.Delete("c2", []byte("old"))
		require.Equal(t, 6, batch.Count())
		require.NoError(t, eg.engine.Write(ctx, batch))
		batch.Close()

		for i := 0; i < 5; i++ {
			v, err := eg.engine.GetRaw(ctx, "c1", []byte(fmt.Sprintf("k%d", i)))
			require.NoError(t, err)
			require.Equal(t, []byte(fmt.Sprintf("v%d", i)), v)
		}
		_, err := eg.engine.GetRaw(ctx, "c2", []byte("old"))
		require.ErrorIs(t, err, ErrNotFound)

		// a batch touching an unknown column family applies nothing
		batch = eg.engine.NewWriteBatch()
		batch.Put("c1", []byte("k9"), []byte("v9"))
		batch.Put("nope", []byte("k9"), []byte("v9"))
		require.ErrorIs(t, eg.engine.Write(ctx, batch), ErrColumnNotExist)
		batch.Close()
		_, err = eg.engine.GetRaw(ctx, "c1", []byte("k9"))
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestInstance_List(t *testing.T) {
	forEachEngine(t, func(t *testing.T, typ LsmKVType) {
		ctx := context.TODO()
		eg := newEngine(t, typ, &Option{ColumnFamily: []CF{"other"}})
		defer eg.close()

		for _, kv := range [][2]string{
			{"key1", "value1"}, {"word1", "w1"}, {"key2", "value2"}, {"check", "0"},
			{"word2", "w2"}, {"key3", "value3"}, {"word3", "w3"}, {"xyz", "zyx"}, {"key4", "value4"},
		} {
			require.NoError(t, eg.engine.SetRaw(ctx, defaultCF, []byte(kv[0]), []byte(kv[1])))
		}
		require.NoError(t, eg.engine.SetRaw(ctx, "other", []byte("key0"), []byte("hidden")))

		readAll := func(ls ListReader) (keys []string) {
			defer ls.Close()
			for {
				k, _, err := ls.ReadNextCopy()
				require.NoError(t, err)
				if k == nil {
					return
				}
				keys = append(keys, string(k))
			}
		}

		require.Equal(t, []string{"key1", "key2", "key3", "key4"}, readAll(eg.engine.List(ctx, defaultCF, []byte("key"), nil)))
		require.Equal(t, []string{"word2", "word3"}, readAll(eg.engine.List(ctx, defaultCF, []byte("word"), []byte("word2"))))
		require.Equal(t, []string{"key0"}, readAll(eg.engine.List(ctx, "other", nil, nil)))
		require.Len(t, readAll(eg.engine.List(ctx, defaultCF, nil, nil)), 9)
		require.Empty(t, readAll(eg.engine.List(ctx, defaultCF, []byte("zzz"), nil)))

		ls := eg.engine.List(ctx, defaultCF, []byte("key"), []byte("key2"))
		_, v, err := ls.ReadNextCopy()
		require.NoError(t, err)
		require.Equal(t, []byte("value2"), v)
		ls.Close()

		ls = eg.engine.List(ctx, "missing", nil, nil)
		_, _, err = ls.ReadNextCopy()
		require.ErrorIs(t, err, ErrColumnNotExist)
		ls.Close()
	})
}

func TestInstance_Stats(t *testing.T) {
	forEachEngine(t, func(t *testing.T, typ LsmKVType) {
		eg := newEngine(t, typ, nil)
		defer eg.close()
		_, err := eg.engine.Stats(context.TODO())
		require.NoError(t, err)
	})
}
