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

package binary

import (
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/schema"
)

const (
	paramFirst = "first"
	paramEnd   = "end"
)

var (
	selectMetadata = query.MustPrepare(query.Select("select_binary_metadata", schema.BinaryMetadata,
		schema.ColSize, schema.ColChunkSize, schema.ColChunks).
		WhereEq(schema.ColIdentifier))

	// chunks [first, end) of a binary, ascending
	selectChunks = query.MustPrepare(query.Select("select_chunks", schema.BinaryData,
		schema.ColChunkIndex, schema.ColChunkSize, schema.ColDigest, schema.ColChunk).
		WhereEq(schema.ColIdentifier).
		WhereCond(query.Condition{Column: schema.ColChunkIndex, Op: query.Ge, Param: paramFirst}).
		WhereCond(query.Condition{Column: schema.ColChunkIndex, Op: query.Lt, Param: paramEnd}))

	insertChunk = query.MustPrepare(query.Insert("insert_chunk", schema.BinaryData,
		schema.ColIdentifier, schema.ColChunkIndex, schema.ColChunkSize, schema.ColDigest, schema.ColChunk))

	insertMetadata = query.MustPrepare(query.Insert("insert_binary_metadata", schema.BinaryMetadata,
		schema.ColIdentifier, schema.ColSize, schema.ColChunkSize, schema.ColChunks))

	deleteChunks = query.MustPrepare(query.Delete("delete_chunks", schema.BinaryData).
		WhereEq(schema.ColIdentifier))

	deleteMetadata = query.MustPrepare(query.Delete("delete_binary_metadata", schema.BinaryMetadata).
		WhereEq(schema.ColIdentifier))
)
