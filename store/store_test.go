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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/ldpstore/common/kvstore"
	"github.com/cubefs/ldpstore/query"
)

func TestNewSession(t *testing.T) {
	ctx := context.TODO()
	table := &query.Table{
		Name:         "things",
		PartitionKey: "identifier",
		Columns:      []query.Column{{Name: "identifier", Type: query.Text}, {Name: "size", Type: query.BigInt}},
	}
	s, err := NewSession(ctx, Config{Backend: BackendBadger, KV: KVConfig{Option: kvstore.Option{InMemory: true}}}, table)
	require.NoError(t, err)
	defer s.Close()

	ins := query.MustPrepare(query.Insert("ins", table, "identifier", "size"))
	require.NoError(t, s.Exec(ctx, ins.MustBind(query.Params{"identifier": "a", "size": 1}), query.One))
	sel := query.MustPrepare(query.Select("sel", table, "size").WhereEq("identifier"))
	page, err := s.Query(ctx, sel.MustBind(query.Params{"identifier": "a"}), query.One, 10, nil)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	require.Equal(t, int64(1), page.Rows[0].Int64("size"))

	_, err = NewSession(ctx, Config{Backend: "sqlite"})
	require.Error(t, err)
}
