/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# ldpstore: LDP resources on a wide-column store

## Why

Linked Data Platform servers need versioned RDF resources, containment
listings that are always current, and large binaries, while the host server
stays storage agnostic.

## Data Model

* Metadata, identifier --> the live row: interaction model, container, acl flag, binary description, current version token

* Mutable data, <identifier, created> --> the quads of one version, newest first. Past versions are mementos

* Immutable data, <identifier, created> --> appended quads (audit), never superseded

* Basic containment, <container, child> --> the index ldp:contains is computed from on read

* Binary data, <identifier, chunk index> --> fixed size chunks with a blake3 digest

* Binary metadata, identifier --> total size, chunk size and chunk count, written last


## Architecture

* engine, the resource service: parallel sub-queries per read, one logged batch per write

* binary, chunked binary content with bounded parallel writes and lazy reads

* query, prepared statements, bind-time checking, executor with separate read and write pools

* store, sessions: Cassandra through gocql, or the embedded wide-column emulation over rocksdb or badger


## Building Blocks

* Cassandra (gocql)
* Rocksdb / Badger
* CBOR + zstd quad cells
* Prometheus

*/

package ldpstore
