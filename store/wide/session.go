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
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/cubefs/ldpstore/common/kvstore"
	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/query"
)

// Session executes statements against an ordered key-value store. Each
// table lives in its own column family keyed by the encoded primary key,
// so a partition is a contiguous key range sorted in clustering order.
// It runs in-process and ignores consistency levels.
type Session struct {
	kv     kvstore.Store
	tables map[string]*query.Table
	// serializes read-modify-write of rows
	lock sync.Mutex
}

func NewSession(ctx context.Context, kv kvstore.Store, tables ...*query.Table) (*Session, error) {
	s := &Session{kv: kv, tables: make(map[string]*query.Table)}
	for _, t := range tables {
		if err := s.CreateTable(ctx, t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) CreateTable(ctx context.Context, t *query.Table) error {
	if err := s.kv.CreateColumn(kvstore.CF(t.Name)); err != nil {
		return errors.Wrapf(err, "create table %s", t.Name)
	}
	s.lock.Lock()
	s.tables[t.Name] = t
	s.lock.Unlock()
	trace.SpanFromContextSafe(ctx).Debugf("table %s ready", t.Name)
	return nil
}

type pageState struct {
	Marker []byte `cbor:"1,keyasint"`
	Served int    `cbor:"2,keyasint"`
}

func (s *Session) Query(ctx context.Context, b *query.Bound, c query.Consistency, pageSize int, state []byte) (*query.Page, error) {
	stmt := b.Stmt
	if err := ctx.Err(); err != nil {
		return nil, apierrors.New(apierrors.StorageUnavailable, stmt.Name, err)
	}
	if stmt.Kind != query.KindSelect {
		return nil, apierrors.New(apierrors.StorageRejected, stmt.Name, errors.New("not a select"))
	}
	t, err := s.table(stmt)
	if err != nil {
		return nil, err
	}
	p, err := newPlan(t, b)
	if err != nil {
		return nil, apierrors.New(apierrors.StorageRejected, stmt.Name, err)
	}
	if pageSize <= 0 {
		pageSize = math.MaxInt
	}
	var st pageState
	if len(state) > 0 {
		if err = cbor.Unmarshal(state, &st); err != nil {
			return nil, apierrors.New(apierrors.StorageRejected, stmt.Name, errors.Wrap(err, "page state"))
		}
	}

	lr := s.kv.List(ctx, kvstore.CF(t.Name), p.prefix, st.Marker)
	defer lr.Close()

	page := &query.Page{}
	for {
		key, value, err := lr.ReadNextCopy()
		if err != nil {
			return nil, apierrors.New(apierrors.StorageUnavailable, stmt.Name, err)
		}
		if key == nil {
			break
		}
		values, err := decodeRow(t, value)
		if err != nil {
			return nil, apierrors.New(apierrors.StorageUnavailable, stmt.Name, errors.Wrap(err, "decode row"))
		}
		if !p.match(values) {
			continue
		}
		served := st.Served + len(page.Rows)
		if stmt.Limit > 0 && served >= stmt.Limit {
			break
		}
		if len(page.Rows) >= pageSize {
			page.Next, err = cbor.Marshal(pageState{Marker: key, Served: served})
			if err != nil {
				return nil, apierrors.New(apierrors.StorageUnavailable, stmt.Name, err)
			}
			break
		}
		row := make(query.Row, len(stmt.Columns))
		for _, col := range stmt.Columns {
			row[col] = values[col]
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

func (s *Session) Exec(ctx context.Context, b *query.Bound, c query.Consistency) error {
	return s.ExecBatch(ctx, []*query.Bound{b}, c)
}

// ExecBatch applies the statements in order on a private overlay and
// commits the resulting mutations in one atomic kv write.
func (s *Session) ExecBatch(ctx context.Context, bs []*query.Bound, c query.Consistency) error {
	if err := ctx.Err(); err != nil {
		return apierrors.New(apierrors.StorageUnavailable, batchName(bs), err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	ov := newOverlay(s.kv)
	for _, b := range bs {
		if err := s.apply(ctx, ov, b); err != nil {
			return err
		}
	}

	wb := s.kv.NewWriteBatch()
	defer wb.Close()
	for _, e := range ov.entries {
		if e.deleted {
			wb.Delete(e.cf, e.key)
			continue
		}
		wb.Put(e.cf, e.key, e.value)
	}
	if err := s.kv.Write(ctx, wb); err != nil {
		return apierrors.New(apierrors.StorageUnknown, batchName(bs), err)
	}
	return nil
}

func (s *Session) Close() {
	s.kv.Close()
}

func (s *Session) table(stmt *query.Statement) (*query.Table, error) {
	s.lock.Lock()
	t, ok := s.tables[stmt.Table.Name]
	s.lock.Unlock()
	if !ok {
		return nil, apierrors.New(apierrors.StorageRejected, stmt.Name, fmt.Errorf("unknown table %s", stmt.Table.Name))
	}
	return t, nil
}

func (s *Session) apply(ctx context.Context, ov *overlay, b *query.Bound) error {
	stmt := b.Stmt
	t, ok := s.tables[stmt.Table.Name]
	if !ok {
		return apierrors.New(apierrors.StorageRejected, stmt.Name, fmt.Errorf("unknown table %s", stmt.Table.Name))
	}
	cf := kvstore.CF(t.Name)
	rejected := func(err error) error {
		return apierrors.New(apierrors.StorageRejected, stmt.Name, err)
	}

	switch stmt.Kind {
	case query.KindInsert:
		values := make(map[string]interface{}, len(stmt.Columns))
		for _, col := range stmt.Columns {
			values[col] = b.Named[col]
		}
		key, err := rowKey(t, values)
		if err != nil {
			return rejected(err)
		}
		return s.merge(ctx, ov, t, key, values)

	case query.KindUpdate:
		keyValues, err := keyFromWhere(t, b)
		if err != nil {
			return rejected(err)
		}
		key, err := rowKey(t, keyValues)
		if err != nil {
			return rejected(err)
		}
		values := keyValues
		for _, col := range stmt.Columns {
			values[col] = b.Named[col]
		}
		return s.merge(ctx, ov, t, key, values)

	case query.KindDelete:
		p, err := newPlan(t, b)
		if err != nil {
			return rejected(err)
		}
		if len(p.filters) > 0 {
			return rejected(errors.New("delete supports equality on a key prefix only"))
		}
		keys, err := ov.keys(ctx, cf, p.prefix)
		if err != nil {
			return apierrors.New(apierrors.StorageUnavailable, stmt.Name, err)
		}
		for _, key := range keys {
			ov.remove(cf, key)
		}
		return nil
	}
	return rejected(errors.New("not a write"))
}

// merge upserts values into the row at key. Nil values clear columns.
func (s *Session) merge(ctx context.Context, ov *overlay, t *query.Table, key []byte, values map[string]interface{}) error {
	cf := kvstore.CF(t.Name)
	data, found, err := ov.get(ctx, cf, key)
	if err != nil {
		return apierrors.New(apierrors.StorageUnavailable, t.Name, err)
	}
	row := make(map[string]interface{})
	if found {
		if row, err = decodeRow(t, data); err != nil {
			return apierrors.New(apierrors.StorageUnavailable, t.Name, errors.Wrap(err, "decode row"))
		}
	}
	for col, v := range values {
		if v == nil {
			delete(row, col)
			continue
		}
		row[col] = v
	}
	if data, err = encodeRow(t, row); err != nil {
		return apierrors.New(apierrors.StorageRejected, t.Name, err)
	}
	ov.put(cf, key, data)
	return nil
}

func keyFromWhere(t *query.Table, b *query.Bound) (map[string]interface{}, error) {
	values := make(map[string]interface{})
	for _, cond := range b.Stmt.Where {
		if cond.Op != query.Eq || cond.Func != "" {
			return nil, fmt.Errorf("update restricts %s by %s", cond.Column, cond.Op)
		}
		values[cond.Column] = b.Named[cond.ParamName()]
	}
	if len(values) != len(t.Clustering)+1 {
		return nil, errors.New("update must restrict the full primary key")
	}
	return values, nil
}

func batchName(bs []*query.Bound) string {
	if len(bs) == 1 {
		return bs[0].Stmt.Name
	}
	return "batch"
}

// plan is the key range and residual filters of a restricted statement.
type plan struct {
	prefix  []byte
	filters []filter
}

type filter struct {
	column string
	typ    query.Type
	op     query.Op
	bound  []byte
}

// newPlan turns the partition key and the leading equality restrictions on
// clustering columns into a key prefix. Everything else is filtered row by
// row.
func newPlan(t *query.Table, b *query.Bound) (*plan, error) {
	conds := make(map[string][]query.Condition)
	for _, cond := range b.Stmt.Where {
		conds[cond.Column] = append(conds[cond.Column], cond)
	}
	pk, _ := t.Column(t.PartitionKey)
	pc := conds[t.PartitionKey]
	if len(pc) != 1 {
		return nil, fmt.Errorf("partition key %s must be restricted once", t.PartitionKey)
	}
	prefix, err := appendComponent(nil, pk.Type, b.Named[pc[0].ParamName()], false)
	if err != nil {
		return nil, err
	}
	p := &plan{}
	inPrefix := true
	for _, cc := range t.Clustering {
		col, _ := t.Column(cc.Name)
		for _, cond := range conds[cc.Name] {
			v := b.Named[cond.ParamName()]
			if inPrefix && len(conds[cc.Name]) == 1 && cond.Op == query.Eq && cond.Func == "" {
				if prefix, err = appendComponent(prefix, col.Type, v, cc.Desc); err != nil {
					return nil, err
				}
				continue
			}
			f := filter{column: cc.Name, typ: col.Type, op: cond.Op}
			switch cond.Func {
			case query.MaxTimeUUID:
				if col.Type != query.TimeUUID {
					return nil, fmt.Errorf("%s applied to %s column %s", cond.Func, col.Type, cc.Name)
				}
				f.bound = maxTimeUUIDBound(v.(time.Time))
			case "":
				if f.bound, err = appendComponent(nil, col.Type, v, false); err != nil {
					return nil, err
				}
			default:
				return nil, fmt.Errorf("unsupported function %s", cond.Func)
			}
			p.filters = append(p.filters, f)
		}
		if len(conds[cc.Name]) != 1 || conds[cc.Name][0].Op != query.Eq || conds[cc.Name][0].Func != "" {
			inPrefix = false
		}
	}
	p.prefix = prefix
	return p, nil
}

func (p *plan) match(values map[string]interface{}) bool {
	for _, f := range p.filters {
		v, ok := values[f.column]
		if !ok || v == nil {
			return false
		}
		enc, err := appendComponent(nil, f.typ, v, false)
		if err != nil {
			return false
		}
		cmp := bytes.Compare(enc, f.bound)
		var pass bool
		switch f.op {
		case query.Eq:
			pass = cmp == 0
		case query.Lt:
			pass = cmp < 0
		case query.Le:
			pass = cmp <= 0
		case query.Gt:
			pass = cmp > 0
		case query.Ge:
			pass = cmp >= 0
		}
		if !pass {
			return false
		}
	}
	return true
}
