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

package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTables(t *testing.T) {
	names := map[string]bool{}
	for _, table := range Tables() {
		require.False(t, names[table.Name], table.Name)
		names[table.Name] = true
		_, ok := table.Column(table.PartitionKey)
		require.True(t, ok, table.Name)
		for _, c := range table.Clustering {
			_, ok := table.Column(c.Name)
			require.True(t, ok, table.Name)
		}
	}
	for _, col := range ResourceColumns {
		_, ok := Metadata.Column(col)
		require.True(t, ok, col)
		_, ok = MutableData.Column(col)
		require.True(t, ok, col)
	}
	require.Equal(t,
		"CREATE TABLE IF NOT EXISTS trellis.basiccontainment (container text, identifier text, "+
			"PRIMARY KEY ((container), identifier)) WITH CLUSTERING ORDER BY (identifier ASC)",
		BasicContainment.DDLIn("trellis"))
}
