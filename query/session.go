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
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the driver contract: a long-lived, process-wide handle to the
// store shared by every component. Implementations classify their
// failures into the errors package taxonomy.
type Session interface {
	// Query fetches one page of at most pageSize rows, starting at
	// pageState (nil for the first page). Page.Next is nil on the last page.
	Query(ctx context.Context, b *Bound, c Consistency, pageSize int, pageState []byte) (*Page, error)
	Exec(ctx context.Context, b *Bound, c Consistency) error
	// ExecBatch applies all statements as one logged batch: all of them
	// apply, or the outcome is reported as failed or unknown.
	ExecBatch(ctx context.Context, bs []*Bound, c Consistency) error
	Close()
}

type Page struct {
	Rows []Row
	Next []byte
}

// Row maps column names to normalized values: string, uuid.UUID,
// time.Time, []byte, int, int64 or bool. Absent and null columns read as
// zero values.
type Row map[string]interface{}

func (r Row) String(col string) string {
	s, _ := r[col].(string)
	return s
}

func (r Row) UUID(col string) uuid.UUID {
	u, _ := r[col].(uuid.UUID)
	return u
}

func (r Row) Time(col string) time.Time {
	t, _ := r[col].(time.Time)
	return t
}

func (r Row) Bytes(col string) []byte {
	b, _ := r[col].([]byte)
	return b
}

func (r Row) Int(col string) int {
	switch v := r[col].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return 0
}

func (r Row) Bool(col string) bool {
	b, _ := r[col].(bool)
	return b
}
