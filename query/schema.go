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

package query

import (
	"fmt"
	"strings"
)

// Type is the storage type of a column.
type Type uint8

const (
	Text = Type(iota + 1)
	TimeUUID
	Timestamp
	Blob
	Int
	BigInt
	Boolean
)

var typeNames = map[Type]string{
	Text:      "text",
	TimeUUID:  "timeuuid",
	Timestamp: "timestamp",
	Blob:      "blob",
	Int:       "int",
	BigInt:    "bigint",
	Boolean:   "boolean",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", t)
}

type Column struct {
	Name string
	Type Type
}

type ClusteringColumn struct {
	Name string
	Desc bool
}

// Table describes one wide-column table: a single-column partition key,
// zero or more clustering columns, and regular columns. Columns lists
// every column including the key columns.
type Table struct {
	Name         string
	PartitionKey string
	Clustering   []ClusteringColumn
	Columns      []Column
}

func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) IsKey(name string) bool {
	if name == t.PartitionKey {
		return true
	}
	for _, c := range t.Clustering {
		if c.Name == name {
			return true
		}
	}
	return false
}

// DDL renders an idempotent CREATE TABLE statement.
func (t *Table) DDL() string {
	return t.DDLIn("")
}

// DDLIn is DDL with the table qualified by keyspace.
func (t *Table) DDLIn(keyspace string) string {
	name := t.Name
	if keyspace != "" {
		name = keyspace + "." + name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", name)
	for _, c := range t.Columns {
		fmt.Fprintf(&b, "%s %s, ", c.Name, c.Type)
	}
	keys := []string{"(" + t.PartitionKey + ")"}
	for _, c := range t.Clustering {
		keys = append(keys, c.Name)
	}
	fmt.Fprintf(&b, "PRIMARY KEY (%s))", strings.Join(keys, ", "))

	if len(t.Clustering) > 0 {
		orders := make([]string, 0, len(t.Clustering))
		for _, c := range t.Clustering {
			order := "ASC"
			if c.Desc {
				order = "DESC"
			}
			orders = append(orders, c.Name+" "+order)
		}
		fmt.Fprintf(&b, " WITH CLUSTERING ORDER BY (%s)", strings.Join(orders, ", "))
	}
	return b.String()
}
