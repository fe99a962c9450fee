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

package cassandra

import (
	"context"
	"fmt"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/pkg/errors"

	"github.com/cubefs/ldpstore/query"
)

func keyspaceDDL(keyspace string, replication int) string {
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}",
		keyspace, replication)
}

func createSchema(ctx context.Context, cfg *Config, tables []*query.Table) error {
	span := trace.SpanFromContextSafe(ctx)
	session, err := cfg.cluster("").CreateSession()
	if err != nil {
		return errors.Wrap(err, "connect for schema")
	}
	defer session.Close()

	if err = session.Query(keyspaceDDL(cfg.Keyspace, cfg.ReplicationFactor)).WithContext(ctx).Exec(); err != nil {
		return classify(err, "create_keyspace", true)
	}
	for _, t := range tables {
		if err = session.Query(t.DDLIn(cfg.Keyspace)).WithContext(ctx).Exec(); err != nil {
			return classify(err, "create_table_"+t.Name, true)
		}
		span.Infof("table %s.%s ready", cfg.Keyspace, t.Name)
	}
	return nil
}
