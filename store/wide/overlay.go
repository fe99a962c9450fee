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
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/cubefs/ldpstore/common/kvstore"
)

type overlayEntry struct {
	cf      kvstore.CF
	key     []byte
	value   []byte
	deleted bool
}

// overlay holds the pending mutations of one batch so that later
// statements observe earlier ones.
type overlay struct {
	kv      kvstore.Store
	index   map[string]*overlayEntry
	entries []*overlayEntry
}

func newOverlay(kv kvstore.Store) *overlay {
	return &overlay{kv: kv, index: make(map[string]*overlayEntry)}
}

func overlayKey(cf kvstore.CF, key []byte) string {
	return string(cf) + "\x00" + string(key)
}

func (o *overlay) set(cf kvstore.CF, key, value []byte, deleted bool) {
	k := overlayKey(cf, key)
	if e, ok := o.index[k]; ok {
		e.value, e.deleted = value, deleted
		return
	}
	e := &overlayEntry{cf: cf, key: key, value: value, deleted: deleted}
	o.index[k] = e
	o.entries = append(o.entries, e)
}

func (o *overlay) put(cf kvstore.CF, key, value []byte) {
	o.set(cf, key, value, false)
}

func (o *overlay) remove(cf kvstore.CF, key []byte) {
	o.set(cf, key, nil, true)
}

func (o *overlay) get(ctx context.Context, cf kvstore.CF, key []byte) ([]byte, bool, error) {
	if e, ok := o.index[overlayKey(cf, key)]; ok {
		return e.value, !e.deleted, nil
	}
	value, err := o.kv.GetRaw(ctx, cf, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// keys lists the live keys with the given prefix, pending mutations
// included, in key order.
func (o *overlay) keys(ctx context.Context, cf kvstore.CF, prefix []byte) ([][]byte, error) {
	live := make(map[string][]byte)
	lr := o.kv.List(ctx, cf, prefix, nil)
	for {
		key, _, err := lr.ReadNextCopy()
		if err != nil {
			lr.Close()
			return nil, err
		}
		if key == nil {
			break
		}
		live[string(key)] = key
	}
	lr.Close()
	for _, e := range o.entries {
		if e.cf != cf || !bytes.HasPrefix(e.key, prefix) {
			continue
		}
		if e.deleted {
			delete(live, string(e.key))
			continue
		}
		live[string(e.key)] = e.key
	}
	keys := make([][]byte, 0, len(live))
	for _, k := range live {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys, nil
}
