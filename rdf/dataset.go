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

package rdf

import "sort"

// Dataset is an unordered set of quads partitioned by named graph. Adding
// an exact duplicate is a no-op. The zero value and a nil *Dataset are
// both empty and readable.
type Dataset struct {
	quads map[Quad]struct{}
}

func NewDataset(quads ...Quad) *Dataset {
	d := &Dataset{quads: make(map[Quad]struct{}, len(quads))}
	d.Add(quads...)
	return d
}

func (d *Dataset) Add(quads ...Quad) {
	if d.quads == nil {
		d.quads = make(map[Quad]struct{}, len(quads))
	}
	for _, q := range quads {
		d.quads[q] = struct{}{}
	}
}

// AddAll adds every quad of o into d.
func (d *Dataset) AddAll(o *Dataset) {
	if o == nil {
		return
	}
	for q := range o.quads {
		d.Add(q)
	}
}

func (d *Dataset) Contains(q Quad) bool {
	if d == nil {
		return false
	}
	_, ok := d.quads[q]
	return ok
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.quads)
}

// Quads returns every quad in N-Quads lexical order.
func (d *Dataset) Quads() []Quad {
	return d.filter(func(Quad) bool { return true })
}

// Graph returns the quads of one named graph.
func (d *Dataset) Graph(graph IRI) []Quad {
	return d.filter(func(q Quad) bool { return q.Graph == graph })
}

func (d *Dataset) HasGraph(graph IRI) bool {
	if d == nil {
		return false
	}
	for q := range d.quads {
		if q.Graph == graph {
			return true
		}
	}
	return false
}

// Match returns the quads of graph with the given subject and predicate.
// A nil subject or empty predicate matches anything.
func (d *Dataset) Match(graph IRI, subject Term, predicate IRI) []Quad {
	return d.filter(func(q Quad) bool {
		return q.Graph == graph &&
			(subject == nil || q.Subject == subject) &&
			(predicate == "" || q.Predicate == predicate)
	})
}

// Without returns a copy of d lacking every quad of the given graphs.
func (d *Dataset) Without(graphs ...IRI) *Dataset {
	ret := NewDataset()
	if d == nil {
		return ret
	}
Next:
	for q := range d.quads {
		for _, g := range graphs {
			if q.Graph == g {
				continue Next
			}
		}
		ret.quads[q] = struct{}{}
	}
	return ret
}

func (d *Dataset) filter(keep func(Quad) bool) []Quad {
	if d == nil {
		return nil
	}
	ret := make([]Quad, 0, len(d.quads))
	for q := range d.quads {
		if keep(q) {
			ret = append(ret, q)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].String() < ret[j].String() })
	return ret
}
