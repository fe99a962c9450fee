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

import (
	"strconv"
	"strings"
)

type termKind uint8

const (
	kindIRI = termKind(iota + 1)
	kindBlank
	kindLiteral
)

// Term is an RDF node: an IRI, a blank node or a literal.
type Term interface {
	// NTriples renders the term in N-Triples syntax.
	NTriples() string
	kind() termKind
}

// IRI is an internationalized resource identifier.
type IRI string

func (i IRI) NTriples() string { return "<" + string(i) + ">" }

func (i IRI) String() string { return string(i) }

func (IRI) kind() termKind { return kindIRI }

// BlankNode is identified by its label, without the "_:" prefix.
type BlankNode string

func (b BlankNode) NTriples() string { return "_:" + string(b) }

func (BlankNode) kind() termKind { return kindBlank }

type Literal struct {
	Lexical  string
	Datatype IRI
	Lang     string
}

func NewLiteral(lexical string) Literal {
	return Literal{Lexical: lexical, Datatype: XSDString}
}

func NewTypedLiteral(lexical string, datatype IRI) Literal {
	return Literal{Lexical: lexical, Datatype: datatype}
}

func NewLangLiteral(lexical, lang string) Literal {
	return Literal{Lexical: lexical, Datatype: RDFLangString, Lang: strings.ToLower(lang)}
}

func (l Literal) NTriples() string {
	s := strconv.Quote(l.Lexical)
	switch {
	case l.Lang != "":
		return s + "@" + l.Lang
	case l.Datatype != "" && l.Datatype != XSDString:
		return s + "^^" + l.Datatype.NTriples()
	}
	return s
}

func (Literal) kind() termKind { return kindLiteral }

// Quad is a statement in a named graph. An empty Graph is the default graph.
type Quad struct {
	Subject   Term
	Predicate IRI
	Object    Term
	Graph     IRI
}

func NewQuad(graph IRI, subject Term, predicate IRI, object Term) Quad {
	return Quad{Subject: subject, Predicate: predicate, Object: object, Graph: graph}
}

// String renders the quad as one N-Quads line without the trailing newline.
func (q Quad) String() string {
	var b strings.Builder
	b.WriteString(q.Subject.NTriples())
	b.WriteByte(' ')
	b.WriteString(q.Predicate.NTriples())
	b.WriteByte(' ')
	b.WriteString(q.Object.NTriples())
	if q.Graph != "" {
		b.WriteByte(' ')
		b.WriteString(q.Graph.NTriples())
	}
	b.WriteString(" .")
	return b.String()
}
