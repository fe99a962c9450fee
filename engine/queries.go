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
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/schema"
)

const paramTime = "time"

var (
	selectMetadata = query.MustPrepare(
		query.Select("select_metadata", schema.Metadata, schema.ResourceColumns...).
			WhereEq(schema.ColIdentifier))
	// mutabledata is clustered newest first
	selectVersionAt = query.MustPrepare(
		query.Select("select_version_at", schema.MutableData, schema.ResourceColumns...).
			WhereEq(schema.ColIdentifier).
			WhereCond(query.Condition{Column: schema.ColCreated, Op: query.Le, Func: query.MaxTimeUUID, Param: paramTime}).
			WithLimit(1))
	selectVersionQuads = query.MustPrepare(
		query.Select("select_version_quads", schema.MutableData, schema.ColQuads).
			WhereEq(schema.ColIdentifier, schema.ColCreated))
	selectImmutableQuads = query.MustPrepare(
		query.Select("select_immutable_quads", schema.ImmutableData, schema.ColQuads).
			WhereEq(schema.ColIdentifier))
	selectContained = query.MustPrepare(
		query.Select("select_contained", schema.BasicContainment, schema.ColIdentifier).
			WhereEq(schema.ColContainer))
	selectMementos = query.MustPrepare(
		query.Select("select_mementos", schema.MutableData, schema.ColModified).
			WhereEq(schema.ColIdentifier))

	insertMutable = query.MustPrepare(
		query.Insert("insert_mutable", schema.MutableData,
			append([]string{schema.ColIdentifier, schema.ColQuads}, schema.ResourceColumns...)...))
	updateMetadata = query.MustPrepare(
		query.Update("update_metadata", schema.Metadata, schema.ResourceColumns...).
			WhereEq(schema.ColIdentifier))
	insertContainment = query.MustPrepare(
		query.Insert("insert_containment", schema.BasicContainment, schema.ColContainer, schema.ColIdentifier))
	insertImmutable = query.MustPrepare(
		query.Insert("insert_immutable", schema.ImmutableData, schema.ColIdentifier, schema.ColCreated, schema.ColQuads))

	deleteMetadata = query.MustPrepare(
		query.Delete("delete_metadata", schema.Metadata).WhereEq(schema.ColIdentifier))
	deleteMutable = query.MustPrepare(
		query.Delete("delete_mutable", schema.MutableData).WhereEq(schema.ColIdentifier))
	deleteContainment = query.MustPrepare(
		query.Delete("delete_containment", schema.BasicContainment).WhereEq(schema.ColContainer, schema.ColIdentifier))
	deleteContained = query.MustPrepare(
		query.Delete("delete_contained", schema.BasicContainment).WhereEq(schema.ColContainer))

	touchMetadata = query.MustPrepare(
		query.Update("touch_metadata", schema.Metadata, schema.ColModified).WhereEq(schema.ColIdentifier))
	touchMutable = query.MustPrepare(
		query.Update("touch_mutable", schema.MutableData, schema.ColModified).WhereEq(schema.ColIdentifier, schema.ColCreated))
)
