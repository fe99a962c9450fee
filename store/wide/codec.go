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

package wide

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/cubefs/ldpstore/query"
)

// A row is stored as a CBOR map from column name to a primitive value.
// Null columns are absent from the map.

func encodeRow(t *query.Table, values map[string]interface{}) ([]byte, error) {
	m := make(map[string]interface{}, len(values))
	for name, v := range values {
		if v == nil {
			continue
		}
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %s.%s", t.Name, name)
		}
		pv, err := toPrimitive(col.Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		m[name] = pv
	}
	return cbor.Marshal(m)
}

func decodeRow(t *query.Table, data []byte) (map[string]interface{}, error) {
	var raw map[string]cbor.RawMessage
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(raw))
	for name, r := range raw {
		col, ok := t.Column(name)
		if !ok {
			// column dropped from the schema
			continue
		}
		v, err := fromPrimitive(col.Type, r)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

func toPrimitive(typ query.Type, v interface{}) (interface{}, error) {
	switch typ {
	case query.Text, query.Blob, query.Boolean, query.BigInt:
		return v, nil
	case query.Int:
		n, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("%T is not int", v)
		}
		return int64(n), nil
	case query.TimeUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("%T is not timeuuid", v)
		}
		return u[:], nil
	case query.Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%T is not timestamp", v)
		}
		return t.UnixMilli(), nil
	}
	return nil, fmt.Errorf("unsupported type %s", typ)
}

func fromPrimitive(typ query.Type, r cbor.RawMessage) (interface{}, error) {
	switch typ {
	case query.Text:
		var s string
		err := cbor.Unmarshal(r, &s)
		return s, err
	case query.Blob:
		var b []byte
		if err := cbor.Unmarshal(r, &b); err != nil {
			return nil, err
		}
		if b == nil {
			b = []byte{}
		}
		return b, nil
	case query.Boolean:
		var b bool
		err := cbor.Unmarshal(r, &b)
		return b, err
	case query.BigInt:
		var n int64
		err := cbor.Unmarshal(r, &n)
		return n, err
	case query.Int:
		var n int64
		err := cbor.Unmarshal(r, &n)
		return int(n), err
	case query.TimeUUID:
		var b []byte
		if err := cbor.Unmarshal(r, &b); err != nil {
			return nil, err
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return nil, err
		}
		return u, nil
	case query.Timestamp:
		var ms int64
		if err := cbor.Unmarshal(r, &ms); err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return nil, fmt.Errorf("unsupported type %s", typ)
}
