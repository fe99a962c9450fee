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

// Package schema defines the tables resources and binaries are stored in.
//
// Mutable data is time-versioned: every create or replace adds a row to
// mutabledata clustered by its version token, newest first, and points the
// single metadata row at it. Past versions are read back as mementos.
package schema

import "github.com/cubefs/ldpstore/query"

const (
	ColIdentifier       = "identifier"
	ColInteractionModel = "interaction_model"
	ColContainer        = "container"
	ColHasAcl           = "has_acl"
	ColBinaryIdentifier = "binary_identifier"
	ColMimeType         = "mime_type"
	ColSize             = "size"
	ColCreated          = "created"
	ColModified         = "modified"
	ColQuads            = "quads"

	ColChunkIndex = "chunk_index"
	ColChunkSize  = "chunk_size"
	ColDigest     = "digest"
	ColChunk      = "chunk"
	ColChunks     = "chunks"
)

var resourceColumns = []query.Column{
	{Name: ColInteractionModel, Type: query.Text},
	{Name: ColContainer, Type: query.Text},
	{Name: ColHasAcl, Type: query.Boolean},
	{Name: ColBinaryIdentifier, Type: query.Text},
	{Name: ColMimeType, Type: query.Text},
	{Name: ColSize, Type: query.BigInt},
	{Name: ColCreated, Type: query.TimeUUID},
	{Name: ColModified, Type: query.Timestamp},
}

// ResourceColumns are the columns shared by metadata and mutabledata rows.
var ResourceColumns = []string{
	ColInteractionModel, ColContainer, ColHasAcl, ColBinaryIdentifier,
	ColMimeType, ColSize, ColCreated, ColModified,
}

var (
	Metadata = &query.Table{
		Name:         "metadata",
		PartitionKey: ColIdentifier,
		Columns:      append([]query.Column{{Name: ColIdentifier, Type: query.Text}}, resourceColumns...),
	}

	MutableData = &query.Table{
		Name:         "mutabledata",
		PartitionKey: ColIdentifier,
		Clustering:   []query.ClusteringColumn{{Name: ColCreated, Desc: true}},
		Columns: append(append([]query.Column{{Name: ColIdentifier, Type: query.Text}}, resourceColumns...),
			query.Column{Name: ColQuads, Type: query.Blob}),
	}

	ImmutableData = &query.Table{
		Name:         "immutabledata",
		PartitionKey: ColIdentifier,
		Clustering:   []query.ClusteringColumn{{Name: ColCreated}},
		Columns: []query.Column{
			{Name: ColIdentifier, Type: query.Text},
			{Name: ColCreated, Type: query.TimeUUID},
			{Name: ColQuads, Type: query.Blob},
		},
	}

	BasicContainment = &query.Table{
		Name:         "basiccontainment",
		PartitionKey: ColContainer,
		Clustering:   []query.ClusteringColumn{{Name: ColIdentifier}},
		Columns: []query.Column{
			{Name: ColContainer, Type: query.Text},
			{Name: ColIdentifier, Type: query.Text},
		},
	}

	BinaryData = &query.Table{
		Name:         "binarydata",
		PartitionKey: ColIdentifier,
		Clustering:   []query.ClusteringColumn{{Name: ColChunkIndex}},
		Columns: []query.Column{
			{Name: ColIdentifier, Type: query.Text},
			{Name: ColChunkIndex, Type: query.Int},
			{Name: ColChunkSize, Type: query.Int},
			{Name: ColDigest, Type: query.Blob},
			{Name: ColChunk, Type: query.Blob},
		},
	}

	BinaryMetadata = &query.Table{
		Name:         "binarymetadata",
		PartitionKey: ColIdentifier,
		Columns: []query.Column{
			{Name: ColIdentifier, Type: query.Text},
			{Name: ColSize, Type: query.BigInt},
			{Name: ColChunkSize, Type: query.Int},
			{Name: ColChunks, Type: query.Int},
		},
	}
)

// Tables lists every table, in creation order.
func Tables() []*query.Table {
	return []*query.Table{Metadata, MutableData, ImmutableData, BasicContainment, BinaryData, BinaryMetadata}
}
