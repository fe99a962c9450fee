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

const (
	ldpNS     = "http://www.w3.org/ns/ldp#"
	dcNS      = "http://purl.org/dc/terms/"
	trellisNS = "http://www.trellisldp.org/ns/trellis#"
	xsdNS     = "http://www.w3.org/2001/XMLSchema#"
	rdfNS     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
)

// LDP interaction models and containment terms.
const (
	LDPResource          IRI = ldpNS + "Resource"
	LDPRDFSource         IRI = ldpNS + "RDFSource"
	LDPNonRDFSource      IRI = ldpNS + "NonRDFSource"
	LDPContainer         IRI = ldpNS + "Container"
	LDPBasicContainer    IRI = ldpNS + "BasicContainer"
	LDPDirectContainer   IRI = ldpNS + "DirectContainer"
	LDPIndirectContainer IRI = ldpNS + "IndirectContainer"

	LDPContains          IRI = ldpNS + "contains"
	LDPPreferContainment IRI = ldpNS + "PreferContainment"
)

// Server-managed binary description terms.
const (
	DCHasPart IRI = dcNS + "hasPart"
	DCExtent  IRI = dcNS + "extent"
	DCFormat  IRI = dcNS + "format"
)

// Named graphs a resource's dataset is partitioned into.
const (
	PreferUserManaged   IRI = trellisNS + "PreferUserManaged"
	PreferServerManaged IRI = trellisNS + "PreferServerManaged"
	PreferAudit         IRI = trellisNS + "PreferAudit"
	PreferAccessControl IRI = trellisNS + "PreferAccessControl"

	// DataPrefix is the identifier of the repository root.
	DataPrefix IRI = "trellis:data/"
)

const (
	XSDString     IRI = xsdNS + "string"
	XSDLong       IRI = xsdNS + "long"
	RDFLangString IRI = rdfNS + "langString"
)

var superclasses = map[IRI]IRI{
	LDPRDFSource:         LDPResource,
	LDPNonRDFSource:      LDPResource,
	LDPContainer:         LDPRDFSource,
	LDPBasicContainer:    LDPContainer,
	LDPDirectContainer:   LDPContainer,
	LDPIndirectContainer: LDPContainer,
}

// SuperclassOf returns the direct LDP superclass of an interaction model,
// or "" for ldp:Resource and unknown models.
func SuperclassOf(model IRI) IRI {
	return superclasses[model]
}

// IsContainer reports whether model is ldp:Container or one of its direct subclasses.
func IsContainer(model IRI) bool {
	return model == LDPContainer || SuperclassOf(model) == LDPContainer
}
