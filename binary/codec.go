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
	"bytes"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/schema"
)

// chunkCodec maps one chunk to and from its binarydata cells. The chunk
// cell carries the raw bytes; digest is their blake3-256 sum.
type chunkCodec struct{}

func (chunkCodec) encode(id rdf.IRI, index int, data []byte) query.Params {
	sum := blake3.Sum256(data)
	return query.Params{
		schema.ColIdentifier: string(id),
		schema.ColChunkIndex: index,
		schema.ColChunkSize:  len(data),
		schema.ColDigest:     sum[:],
		schema.ColChunk:      data,
	}
}

// decode returns the chunk's index and payload after checking its length
// and digest.
func (chunkCodec) decode(id rdf.IRI, row query.Row) (int, []byte, error) {
	index := row.Int(schema.ColChunkIndex)
	data := row.Bytes(schema.ColChunk)
	if size := row.Int(schema.ColChunkSize); size != len(data) {
		return index, nil, apierrors.New(apierrors.StorageRejected, string(id),
			errors.Errorf("chunk %d holds %d bytes, recorded %d", index, len(data), size))
	}
	sum := blake3.Sum256(data)
	if !bytes.Equal(sum[:], row.Bytes(schema.ColDigest)) {
		return index, nil, apierrors.New(apierrors.StorageRejected, string(id),
			errors.Errorf("chunk %d digest mismatch", index))
	}
	return index, data, nil
}
