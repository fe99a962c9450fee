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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cubefs/ldpstore/query"
)

const (
	escapeByte     = 0x00
	escapedZero    = 0xff
	terminatorByte = 0x01

	// 100ns intervals between 1582-10-15 and 1970-01-01
	gregorianOffset = 122192928000000000
)

// Every key component is encoded so that bytes.Compare on the encoding
// agrees with the column type's order, and so that no encoding is a prefix
// of another. Descending clustering columns are stored inverted.

func appendEscaped(dst []byte, b []byte) []byte {
	for _, c := range b {
		if c == escapeByte {
			dst = append(dst, escapeByte, escapedZero)
			continue
		}
		dst = append(dst, c)
	}
	return append(dst, escapeByte, terminatorByte)
}

func appendComponent(dst []byte, typ query.Type, v interface{}, desc bool) ([]byte, error) {
	start := len(dst)
	switch typ {
	case query.Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%T is not text", v)
		}
		dst = appendEscaped(dst, []byte(s))
	case query.Blob:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("%T is not blob", v)
		}
		dst = appendEscaped(dst, b)
	case query.TimeUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return nil, fmt.Errorf("%T is not timeuuid", v)
		}
		dst = binary.BigEndian.AppendUint64(dst, uint64(u.Time()))
		dst = append(dst, u[:]...)
	case query.Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%T is not timestamp", v)
		}
		dst = binary.BigEndian.AppendUint64(dst, uint64(t.UnixMilli())^(1<<63))
	case query.Int:
		n, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("%T is not int", v)
		}
		dst = binary.BigEndian.AppendUint32(dst, uint32(int32(n))^(1<<31))
	case query.BigInt:
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("%T is not bigint", v)
		}
		dst = binary.BigEndian.AppendUint64(dst, uint64(n)^(1<<63))
	case query.Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%T is not boolean", v)
		}
		if b {
			dst = append(dst, 1)
		} else {
			dst = append(dst, 0)
		}
	default:
		return nil, fmt.Errorf("unsupported key type %s", typ)
	}
	if desc {
		for i := start; i < len(dst); i++ {
			dst[i] = ^dst[i]
		}
	}
	return dst, nil
}

// maxTimeUUIDBound is the encoding of the greatest time UUID within the
// millisecond of t.
func maxTimeUUIDBound(t time.Time) []byte {
	ts := uint64(t.UnixMilli()*10000 + 9999 + gregorianOffset)
	b := binary.BigEndian.AppendUint64(make([]byte, 0, 24), ts)
	for i := 0; i < 16; i++ {
		b = append(b, 0xff)
	}
	return b
}

// rowKey encodes the full primary key of a row from its column values.
func rowKey(t *query.Table, values map[string]interface{}) ([]byte, error) {
	pk, _ := t.Column(t.PartitionKey)
	v, ok := values[t.PartitionKey]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing partition key %s", t.PartitionKey)
	}
	key, err := appendComponent(nil, pk.Type, v, false)
	if err != nil {
		return nil, err
	}
	for _, cc := range t.Clustering {
		col, _ := t.Column(cc.Name)
		v, ok := values[cc.Name]
		if !ok || v == nil {
			return nil, fmt.Errorf("missing clustering column %s", cc.Name)
		}
		if key, err = appendComponent(key, col.Type, v, cc.Desc); err != nil {
			return nil, err
		}
	}
	return key, nil
}
