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
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Quad cells are a one byte format tag followed by a CBOR array of quad
// records, zstd compressed once the encoded form outgrows compressThreshold.
const (
	formatCBOR = byte(1)
	formatZstd = byte(2)

	compressThreshold = 4 << 10
)

var (
	ErrUnknownCellFormat = errors.New("unknown quad cell format")
	ErrInvalidTerm       = errors.New("invalid rdf term in quad cell")

	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

type quadRecord struct {
	Subject     string   `cbor:"1,keyasint"`
	SubjectKind termKind `cbor:"2,keyasint"`
	Predicate   string   `cbor:"3,keyasint"`
	Object      string   `cbor:"4,keyasint"`
	ObjectKind  termKind `cbor:"5,keyasint"`
	Datatype    string   `cbor:"6,keyasint,omitempty"`
	Lang        string   `cbor:"7,keyasint,omitempty"`
	Graph       string   `cbor:"8,keyasint,omitempty"`
}

// MarshalDataset encodes d into a storage cell. An empty dataset encodes
// to nil.
func MarshalDataset(d *Dataset) ([]byte, error) {
	if d.Len() == 0 {
		return nil, nil
	}
	records := make([]quadRecord, 0, d.Len())
	for _, q := range d.Quads() {
		r := quadRecord{Predicate: string(q.Predicate), Graph: string(q.Graph)}
		r.Subject, r.SubjectKind, _, _ = termFields(q.Subject)
		r.Object, r.ObjectKind, r.Datatype, r.Lang = termFields(q.Object)
		records = append(records, r)
	}
	data, err := cbor.Marshal(records)
	if err != nil {
		return nil, errors.Wrap(err, "cbor marshal quads")
	}
	if len(data) < compressThreshold {
		return append([]byte{formatCBOR}, data...), nil
	}
	return zstdEncoder.EncodeAll(data, []byte{formatZstd}), nil
}

// UnmarshalDataset decodes a storage cell written by MarshalDataset.
func UnmarshalDataset(cell []byte) (*Dataset, error) {
	d := NewDataset()
	if len(cell) == 0 {
		return d, nil
	}
	data := cell[1:]
	switch cell[0] {
	case formatCBOR:
	case formatZstd:
		var err error
		if data, err = zstdDecoder.DecodeAll(data, nil); err != nil {
			return nil, errors.Wrap(err, "zstd decode quads")
		}
	default:
		return nil, errors.Wrapf(ErrUnknownCellFormat, "format %d", cell[0])
	}

	var records []quadRecord
	if err := cbor.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "cbor unmarshal quads")
	}
	for _, r := range records {
		subject, err := newTerm(r.Subject, r.SubjectKind, "", "")
		if err != nil {
			return nil, err
		}
		object, err := newTerm(r.Object, r.ObjectKind, r.Datatype, r.Lang)
		if err != nil {
			return nil, err
		}
		d.Add(Quad{Subject: subject, Predicate: IRI(r.Predicate), Object: object, Graph: IRI(r.Graph)})
	}
	return d, nil
}

func termFields(t Term) (value string, kind termKind, datatype, lang string) {
	switch v := t.(type) {
	case IRI:
		return string(v), kindIRI, "", ""
	case BlankNode:
		return string(v), kindBlank, "", ""
	case Literal:
		return v.Lexical, kindLiteral, string(v.Datatype), v.Lang
	}
	return "", 0, "", ""
}

func newTerm(value string, kind termKind, datatype, lang string) (Term, error) {
	switch kind {
	case kindIRI:
		return IRI(value), nil
	case kindBlank:
		return BlankNode(value), nil
	case kindLiteral:
		return Literal{Lexical: value, Datatype: IRI(datatype), Lang: lang}, nil
	}
	return nil, errors.Wrapf(ErrInvalidTerm, "kind %d", kind)
}
