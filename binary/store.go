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

// Package binary stores non-RDF content as fixed-size chunks. A binary
// becomes visible once its binarymetadata row is written, after every
// chunk is stored.
package binary

import (
	"context"
	"io"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	apierrors "github.com/cubefs/ldpstore/errors"
	"github.com/cubefs/ldpstore/metrics"
	"github.com/cubefs/ldpstore/query"
	"github.com/cubefs/ldpstore/rdf"
	"github.com/cubefs/ldpstore/schema"
	"github.com/cubefs/ldpstore/util"
	"github.com/cubefs/ldpstore/util/limiter"
)

type Store struct {
	exec    *query.Executor
	cfg     Config
	codec   chunkCodec
	limiter *limiter.Limiter
}

func New(exec *query.Executor, cfg Config) *Store {
	cfg.fillDefaults()
	return &Store{exec: exec, cfg: cfg, limiter: limiter.New(cfg.Limit)}
}

func (s *Store) LimiterStatus() limiter.Status {
	return s.limiter.Status()
}

// DeleteBounds returns the statements removing every chunk and the
// metadata of id, for inclusion in a caller's batch.
func DeleteBounds(id rdf.IRI) ([]*query.Bound, error) {
	params := query.Params{schema.ColIdentifier: string(id)}
	chunks, err := deleteChunks.Bind(params)
	if err != nil {
		return nil, err
	}
	meta, err := deleteMetadata.Bind(params)
	if err != nil {
		return nil, err
	}
	return []*query.Bound{chunks, meta}, nil
}

// Write stores r under id and returns its length. Chunks are written in
// parallel; the metadata row follows once all of them succeed. Empty
// content is stored as one empty chunk. A failed write may leave chunks
// behind, which stay invisible without metadata.
func (s *Store) Write(ctx context.Context, id rdf.IRI, r io.Reader) (int64, error) {
	span := trace.SpanFromContextSafe(ctx)
	if err := s.limiter.AcquireWrite(); err != nil {
		return 0, apierrors.New(apierrors.StorageUnavailable, "write_binary", err)
	}
	defer s.limiter.ReleaseWrite()

	src := &util.TimeReader{R: s.limiter.SourceReader(ctx, r)}
	chunkSize := s.cfg.ChunkSize
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WriteParallelism)

	var size int64
	index := 0
	for gctx.Err() == nil {
		buf := util.GetBuffer(chunkSize)
		n, err := io.ReadFull(src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			util.PutBuffer(buf)
			_ = g.Wait()
			return 0, apierrors.New(apierrors.StorageRejected, "write_binary", errors.Wrap(err, "read source"))
		}
		if n == 0 && index > 0 {
			util.PutBuffer(buf)
			break
		}
		b, bindErr := insertChunk.Bind(s.codec.encode(id, index, buf[:n]))
		if bindErr != nil {
			util.PutBuffer(buf)
			_ = g.Wait()
			return 0, bindErr
		}
		g.Go(func() error {
			if _, err := s.exec.Write(gctx, b, s.cfg.WriteConsistency).Wait(gctx); err != nil {
				// the statement may still hold buf
				return err
			}
			util.PutBuffer(buf)
			return nil
		})
		size += int64(n)
		index++
		if n < chunkSize {
			break
		}
	}
	if err := g.Wait(); err != nil {
		span.Warnf("write binary %s failed after %d chunks: %s", id, index, err)
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, apierrors.New(apierrors.StorageUnavailable, "write_binary", err)
	}

	b, err := insertMetadata.Bind(query.Params{
		schema.ColIdentifier: string(id),
		schema.ColSize:       size,
		schema.ColChunkSize:  chunkSize,
		schema.ColChunks:     index,
	})
	if err != nil {
		return 0, err
	}
	if _, err = s.exec.Write(ctx, b, s.cfg.WriteConsistency).Wait(ctx); err != nil {
		return 0, err
	}
	metrics.BinaryBytes.WithLabelValues("write").Add(float64(size))
	span.Debugf("wrote binary %s: %d bytes in %d chunks, source read %s", id, size, index, src.Cost())
	return size, nil
}

type binaryMeta struct {
	size      int64
	chunkSize int
	chunks    int
}

func (s *Store) metadata(ctx context.Context, id rdf.IRI) (binaryMeta, error) {
	b, err := selectMetadata.Bind(query.Params{schema.ColIdentifier: string(id)})
	if err != nil {
		return binaryMeta{}, err
	}
	row, err := s.exec.ReadOne(ctx, b, s.cfg.ReadConsistency).Wait(ctx)
	if err != nil {
		return binaryMeta{}, err
	}
	if row == nil {
		return binaryMeta{}, apierrors.New(apierrors.BinaryNotFound, string(id), nil)
	}
	return binaryMeta{
		size:      row.Int64(schema.ColSize),
		chunkSize: row.Int(schema.ColChunkSize),
		chunks:    row.Int(schema.ColChunks),
	}, nil
}

// Size returns the recorded length of id.
func (s *Store) Size(ctx context.Context, id rdf.IRI) (int64, error) {
	m, err := s.metadata(ctx, id)
	if err != nil {
		return 0, err
	}
	return m.size, nil
}

// Read streams the whole content of id. Chunks are fetched page by page
// as the reader is consumed.
func (s *Store) Read(ctx context.Context, id rdf.IRI) (io.ReadCloser, error) {
	m, err := s.metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, id, m, 0, m.chunks, 0, m.size)
}

// ReadRange streams bytes from through to of id, both inclusive. to is
// clipped to the end of the content.
func (s *Store) ReadRange(ctx context.Context, id rdf.IRI, from, to int64) (io.ReadCloser, error) {
	if from < 0 || to < from {
		return nil, apierrors.New(apierrors.StorageRejected, string(id), apierrors.ErrInvalidRange)
	}
	m, err := s.metadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if from >= m.size {
		return nil, apierrors.New(apierrors.StorageRejected, string(id), apierrors.ErrInvalidRange)
	}
	if to >= m.size {
		to = m.size - 1
	}
	if m.chunkSize <= 0 {
		return nil, apierrors.New(apierrors.StorageRejected, string(id), errors.Errorf("recorded chunk size %d", m.chunkSize))
	}
	cs := int64(m.chunkSize)
	first, last := int(from/cs), int(to/cs)
	return s.open(ctx, id, m, first, last+1, from-int64(first)*cs, to-from+1)
}

func (s *Store) open(ctx context.Context, id rdf.IRI, m binaryMeta, first, end int, skip, length int64) (io.ReadCloser, error) {
	if err := s.limiter.AcquireRead(); err != nil {
		return nil, apierrors.New(apierrors.StorageUnavailable, "read_binary", err)
	}
	b, err := selectChunks.Bind(query.Params{
		schema.ColIdentifier: string(id),
		paramFirst:           first,
		paramEnd:             end,
	})
	if err != nil {
		s.limiter.ReleaseRead()
		return nil, err
	}
	rows, err := s.exec.ReadPaged(ctx, b, s.cfg.ReadConsistency, s.cfg.ReadPageSize).Wait(ctx)
	if err != nil {
		s.limiter.ReleaseRead()
		return nil, err
	}
	cr := &chunkReader{
		ctx:     ctx,
		id:      id,
		codec:   s.codec,
		rows:    rows,
		next:    first,
		end:     end,
		skip:    skip,
		remain:  length,
		release: s.limiter.ReleaseRead,
	}
	// fail here rather than on the first Read when nothing is stored
	if err = cr.fill(); err != nil {
		cr.Close()
		return nil, err
	}
	return &readCloser{Reader: s.limiter.Reader(ctx, cr), Closer: cr}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// chunkReader concatenates chunks [next, end) as they arrive from rows,
// dropping skip leading bytes and stopping after remain bytes.
type chunkReader struct {
	ctx     context.Context
	id      rdf.IRI
	codec   chunkCodec
	rows    *query.Rows
	next    int
	end     int
	skip    int64
	remain  int64
	cur     []byte
	read    int64
	err     error
	release func()
}

// fill loads the next chunk into cur. An empty chunk leaves cur empty.
func (r *chunkReader) fill() error {
	if r.next >= r.end {
		return io.EOF
	}
	if !r.rows.Next(r.ctx) {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return apierrors.New(apierrors.BinaryNotFound, string(r.id), errors.Errorf("chunk %d missing", r.next))
	}
	index, data, err := r.codec.decode(r.id, r.rows.Row())
	if err != nil {
		return err
	}
	if index != r.next {
		return apierrors.New(apierrors.BinaryNotFound, string(r.id), errors.Errorf("chunk %d missing", r.next))
	}
	r.next++
	if r.skip > 0 {
		if r.skip >= int64(len(data)) {
			r.skip -= int64(len(data))
			data = nil
		} else {
			data = data[r.skip:]
			r.skip = 0
		}
	}
	r.cur = data
	return nil
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	// a range may end inside the current chunk
	if r.remain <= 0 {
		r.err = io.EOF
		return 0, r.err
	}
	for len(r.cur) == 0 {
		if err := r.fill(); err != nil {
			if err == io.EOF {
				// fewer bytes stored than recorded
				err = apierrors.New(apierrors.StorageRejected, string(r.id), io.ErrUnexpectedEOF)
			}
			r.err = err
			return 0, err
		}
	}
	if int64(len(p)) > r.remain {
		p = p[:r.remain]
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	r.remain -= int64(n)
	r.read += int64(n)
	return n, nil
}

func (r *chunkReader) Close() error {
	if r.release != nil {
		r.release()
		r.release = nil
		metrics.BinaryBytes.WithLabelValues("read").Add(float64(r.read))
	}
	return nil
}

// Delete removes the content of id.
func (s *Store) Delete(ctx context.Context, id rdf.IRI) error {
	bs, err := DeleteBounds(id)
	if err != nil {
		return err
	}
	_, err = s.exec.Batch(ctx, "delete_binary", s.cfg.WriteConsistency, bs...).Wait(ctx)
	return err
}
