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

import "context"

// Rows iterates a result set page by page. Following pages are fetched
// through the executor's read pool when the current one is exhausted, so a
// failure on any page surfaces from Next and Err rather than as a short
// result.
type Rows struct {
	exec        *Executor
	bound       *Bound
	consistency Consistency
	pageSize    int

	page []Row
	pos  int
	next []byte
	cur  Row
	err  error
}

// Next advances to the next row. It returns false at the end of the
// sequence or on error.
func (r *Rows) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	for r.pos >= len(r.page) {
		if r.next == nil {
			r.cur = nil
			return false
		}
		page, err := r.exec.fetch(ctx, r.bound, r.consistency, r.pageSize, r.next).Wait(ctx)
		if err != nil {
			r.err = err
			r.cur = nil
			return false
		}
		r.page, r.pos, r.next = page.Rows, 0, page.Next
	}
	r.cur = r.page[r.pos]
	r.pos++
	return true
}

func (r *Rows) Row() Row { return r.cur }

func (r *Rows) Err() error { return r.err }

// All drains the remaining rows.
func (r *Rows) All(ctx context.Context) ([]Row, error) {
	var rows []Row
	for r.Next(ctx) {
		rows = append(rows, r.Row())
	}
	if r.err != nil {
		return nil, r.err
	}
	return rows, nil
}
