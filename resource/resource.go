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

package resource

import (
	"time"

	"github.com/google/uuid"

	"github.com/cubefs/ldpstore/rdf"
)

const DefaultMimeType = "application/octet-stream"

// BinaryMetadata describes the content of a NonRDFSource.
type BinaryMetadata struct {
	Identifier rdf.IRI
	MimeType   string
	Size       int64
}

// Metadata is what a caller supplies to write or delete a resource.
type Metadata struct {
	Identifier       rdf.IRI
	InteractionModel rdf.IRI
	// Container is the parent, empty for the root.
	Container rdf.IRI
	HasAcl    bool
	// Binary is only consulted on delete, to remove the resource's content.
	Binary *BinaryMetadata
	// Version, when not nil, is used as the version token of the write.
	// Retrying a write with the same token rewrites identical rows.
	Version uuid.UUID
}

// Resource is a resource as read from storage, either live or as of a past
// instant.
type Resource struct {
	Identifier       rdf.IRI
	InteractionModel rdf.IRI
	Container        rdf.IRI
	HasAcl           bool
	// Modified has the store's precision. Use ModifiedSecond for the
	// externally visible value.
	Modified time.Time
	// Created is the version token of the row the resource was read from.
	Created uuid.UUID
	Binary  *BinaryMetadata
	Dataset *rdf.Dataset
	Memento bool
}

func (r *Resource) IsContainer() bool {
	return rdf.IsContainer(r.InteractionModel)
}

func (r *Resource) ModifiedSecond() time.Time {
	return r.Modified.Truncate(time.Second)
}

// Stream returns the quads of one named graph.
func (r *Resource) Stream(graph rdf.IRI) []rdf.Quad {
	return r.Dataset.Graph(graph)
}

// Lookup is the outcome of reading a resource: either a found Resource or
// Missing. Absence is a value, never an error.
type Lookup struct {
	res *Resource
}

// Missing is the Lookup of an identifier with no stored resource.
var Missing = Lookup{}

func Found(r *Resource) Lookup {
	return Lookup{res: r}
}

// Get returns the resource and whether it was found.
func (l Lookup) Get() (*Resource, bool) {
	return l.res, l.res != nil
}

func (l Lookup) IsMissing() bool {
	return l.res == nil
}
