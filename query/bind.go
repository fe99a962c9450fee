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
	"reflect"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/cubefs/ldpstore/errors"
)

// Params are the named values bound to a statement.
type Params map[string]interface{}

// Bound is a statement with its parameters checked and normalized.
// Values are in placeholder order; Named holds the same values by name.
type Bound struct {
	Stmt   *Statement
	Values []interface{}
	Named  map[string]interface{}
}

// Bind checks params against the statement's placeholders. Every
// placeholder needs a value, extra names are rejected, and each value
// must have a Go shape its column type accepts. Failures are
// StorageRejected and happen here, never at execution.
func (s *Statement) Bind(params Params) (*Bound, error) {
	if err := s.Prepare(); err != nil {
		return nil, apierrors.New(apierrors.StorageRejected, s.Name, err)
	}
	b := &Bound{
		Stmt:   s,
		Values: make([]interface{}, 0, len(s.params)),
		Named:  make(map[string]interface{}, len(s.params)),
	}
	for _, p := range s.params {
		v, ok := params[p.name]
		if !ok {
			return nil, apierrors.New(apierrors.StorageRejected, s.Name, fmt.Errorf("missing parameter %s", p.name))
		}
		nv, err := normalize(p, v)
		if err != nil {
			return nil, apierrors.New(apierrors.StorageRejected, s.Name, err)
		}
		b.Values = append(b.Values, nv)
		b.Named[p.name] = nv
	}
	if len(params) != len(b.Named) {
		for name := range params {
			if _, ok := b.Named[name]; !ok {
				return nil, apierrors.New(apierrors.StorageRejected, s.Name, fmt.Errorf("unexpected parameter %s", name))
			}
		}
	}
	return b, nil
}

// MustBind is Bind for parameters whose shapes are fixed by the caller's code.
func (s *Statement) MustBind(params Params) *Bound {
	b, err := s.Bind(params)
	if err != nil {
		panic(err)
	}
	return b
}

// normalize converts v into the canonical Go value of p's type:
// string, uuid.UUID, time.Time, []byte, int, int64 or bool. Nil is
// accepted for non-key columns and means null.
func normalize(p param, v interface{}) (interface{}, error) {
	if v == nil {
		if p.key {
			return nil, fmt.Errorf("parameter %s: key column cannot be null", p.name)
		}
		return nil, nil
	}
	mismatch := func() error {
		return fmt.Errorf("parameter %s: %T is not a %s", p.name, v, p.typ)
	}
	rv := reflect.ValueOf(v)
	switch p.typ {
	case Text:
		if rv.Kind() != reflect.String {
			return nil, mismatch()
		}
		s := rv.String()
		if p.key && s == "" {
			return nil, fmt.Errorf("parameter %s: key column cannot be empty", p.name)
		}
		return s, nil
	case TimeUUID:
		u, ok := v.(uuid.UUID)
		if !ok {
			return nil, mismatch()
		}
		if u.Version() != 1 {
			return nil, fmt.Errorf("parameter %s: uuid version %d is not time based", p.name, u.Version())
		}
		return u, nil
	case Timestamp:
		t, ok := v.(time.Time)
		if !ok {
			return nil, mismatch()
		}
		return t, nil
	case Blob:
		b, ok := v.([]byte)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	case Int:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n := rv.Int()
			if n < -1<<31 || n > 1<<31-1 {
				return nil, fmt.Errorf("parameter %s: %d overflows int", p.name, n)
			}
			return int(n), nil
		}
		return nil, mismatch()
	case BigInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		}
		return nil, mismatch()
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch()
		}
		return b, nil
	}
	return nil, fmt.Errorf("parameter %s: unsupported column type %s", p.name, p.typ)
}
