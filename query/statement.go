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

type Kind uint8

const (
	KindSelect = Kind(iota + 1)
	KindInsert
	KindUpdate
	KindDelete
)

// IsWrite reports whether statements of this kind mutate the store.
func (k Kind) IsWrite() bool { return k != KindSelect }

type Op string

const (
	Eq = Op("=")
	Lt = Op("<")
	Le = Op("<=")
	Gt = Op(">")
	Ge = Op(">=")
)

// Func wraps a bound value in a server-side function.
type Func string

// MaxTimeUUID turns a timestamp into the greatest time UUID of its millisecond.
const MaxTimeUUID = Func("maxTimeuuid")

// Condition restricts a key column. Param names the bound parameter and
// defaults to Column.
type Condition struct {
	Column string
	Op     Op
	Func   Func
	Param  string
}

func (c Condition) ParamName() string {
	if c.Param != "" {
		return c.Param
	}
	return c.Column
}

// Statement is a parameterized statement against one table. Statements
// are built once, validated against the table schema, and bound per call.
type Statement struct {
	Name    string
	Kind    Kind
	Table   *Table
	Columns []string
	Where   []Condition
	Limit   int

	cql    string
	params []param
}

type param struct {
	name string
	typ  Type
	key  bool
}

func Select(name string, table *Table, columns ...string) *Statement {
	return &Statement{Name: name, Kind: KindSelect, Table: table, Columns: columns}
}

func Insert(name string, table *Table, columns ...string) *Statement {
	return &Statement{Name: name, Kind: KindInsert, Table: table, Columns: columns}
}

func Update(name string, table *Table, columns ...string) *Statement {
	return &Statement{Name: name, Kind: KindUpdate, Table: table, Columns: columns}
}

func Delete(name string, table *Table) *Statement {
	return &Statement{Name: name, Kind: KindDelete, Table: table}
}

func (s *Statement) WhereEq(columns ...string) *Statement {
	for _, c := range columns {
		s.Where = append(s.Where, Condition{Column: c, Op: Eq})
	}
	return s
}

func (s *Statement) WhereCond(c Condition) *Statement {
	s.Where = append(s.Where, c)
	return s
}

func (s *Statement) WithLimit(n int) *Statement {
	s.Limit = n
	return s
}

// Prepare validates the statement against its table and renders its CQL.
// Preparing twice is a no-op.
func (s *Statement) Prepare() error {
	if s.cql != "" {
		return nil
	}
	if s.Table == nil {
		return fmt.Errorf("statement %s: no table", s.Name)
	}
	var params []param
	for _, name := range s.Columns {
		col, ok := s.Table.Column(name)
		if !ok {
			return fmt.Errorf("statement %s: unknown column %s.%s", s.Name, s.Table.Name, name)
		}
		if s.Kind == KindUpdate && s.Table.IsKey(name) {
			return fmt.Errorf("statement %s: update sets key column %s", s.Name, name)
		}
		if s.Kind != KindSelect {
			params = append(params, param{name: name, typ: col.Type, key: s.Table.IsKey(name)})
		}
	}
	hasPartition := false
	for _, cond := range s.Where {
		col, ok := s.Table.Column(cond.Column)
		if !ok || !s.Table.IsKey(cond.Column) {
			return fmt.Errorf("statement %s: condition on non-key column %s", s.Name, cond.Column)
		}
		if cond.Column == s.Table.PartitionKey {
			if cond.Op != Eq {
				return fmt.Errorf("statement %s: partition key %s restricted by %s", s.Name, cond.Column, cond.Op)
			}
			hasPartition = true
		}
		typ := col.Type
		if cond.Func == MaxTimeUUID {
			typ = Timestamp
		}
		params = append(params, param{name: cond.ParamName(), typ: typ, key: true})
	}
	switch s.Kind {
	case KindInsert:
		if !s.hasColumn(s.Table.PartitionKey) {
			return fmt.Errorf("statement %s: insert without partition key", s.Name)
		}
	default:
		if !hasPartition {
			return fmt.Errorf("statement %s: partition key %s not restricted", s.Name, s.Table.PartitionKey)
		}
	}
	s.params = params
	s.cql = s.render()
	return nil
}

// MustPrepare is Prepare for statically defined statements.
func MustPrepare(s *Statement) *Statement {
	if err := s.Prepare(); err != nil {
		panic(err)
	}
	return s
}

// CQL returns the rendered statement, or "" before Prepare.
func (s *Statement) CQL() string { return s.cql }

func (s *Statement) String() string { return s.Name }

func (s *Statement) hasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (s *Statement) render() string {
	var b strings.Builder
	switch s.Kind {
	case KindSelect:
		fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(s.Columns, ", "), s.Table.Name)
	case KindInsert:
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(s.Columns)), ", ")
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", s.Table.Name, strings.Join(s.Columns, ", "), marks)
	case KindUpdate:
		sets := make([]string, 0, len(s.Columns))
		for _, c := range s.Columns {
			sets = append(sets, c+" = ?")
		}
		fmt.Fprintf(&b, "UPDATE %s SET %s", s.Table.Name, strings.Join(sets, ", "))
	case KindDelete:
		fmt.Fprintf(&b, "DELETE FROM %s", s.Table.Name)
	}
	if len(s.Where) > 0 {
		conds := make([]string, 0, len(s.Where))
		for _, c := range s.Where {
			mark := "?"
			if c.Func != "" {
				mark = string(c.Func) + "(?)"
			}
			conds = append(conds, fmt.Sprintf("%s %s %s", c.Column, c.Op, mark))
		}
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	return b.String()
}
